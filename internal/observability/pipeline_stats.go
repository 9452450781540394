// Package observability provides counters describing what the pipeline did with each event.
package observability

import (
	"sync/atomic"
)

// DropReason explains why Record did not append an event.
type DropReason int

const (
	DropStopped DropReason = iota
	DropExcluded
	DropSentinel
	DropOverflow
	DropInvalid
)

// String returns the reason name used in log lines.
func (r DropReason) String() string {
	switch r {
	case DropStopped:
		return "stopped"
	case DropExcluded:
		return "excluded"
	case DropSentinel:
		return "sentinel"
	case DropOverflow:
		return "overflow"
	case DropInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// PipelineStats is shared by the buffer and the delivery client. All methods
// are safe for concurrent use and never block.
type PipelineStats struct {
	recorded        atomic.Int64
	droppedStopped  atomic.Int64
	droppedExcluded atomic.Int64
	droppedSentinel atomic.Int64
	droppedOverflow atomic.Int64
	droppedInvalid  atomic.Int64
	fullBuffer      atomic.Int64
	lowMemory       atomic.Int64
	drains          atomic.Int64
	batchesSent     atomic.Int64
	batchesFailed   atomic.Int64
	batchesEmpty    atomic.Int64
	eventsDelivered atomic.Int64
	eventsLost      atomic.Int64
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Recorded        int64 `json:"recorded"`
	DroppedStopped  int64 `json:"dropped_stopped"`
	DroppedExcluded int64 `json:"dropped_excluded"`
	DroppedSentinel int64 `json:"dropped_sentinel"`
	DroppedOverflow int64 `json:"dropped_overflow"`
	DroppedInvalid  int64 `json:"dropped_invalid"`
	FullBuffer      int64 `json:"full_buffer"`
	LowMemory       int64 `json:"low_memory"`
	Drains          int64 `json:"drains"`
	BatchesSent     int64 `json:"batches_sent"`
	BatchesFailed   int64 `json:"batches_failed"`
	BatchesEmpty    int64 `json:"batches_empty"`
	EventsDelivered int64 `json:"events_delivered"`
	EventsLost      int64 `json:"events_lost"`
}

// NewPipelineStats creates a zeroed stats tracker.
func NewPipelineStats() *PipelineStats {
	return &PipelineStats{}
}

// RecordAppended counts an event that entered the buffer.
func (s *PipelineStats) RecordAppended() {
	s.recorded.Add(1)
}

// RecordDropped counts an event Record refused.
func (s *PipelineStats) RecordDropped(reason DropReason) {
	switch reason {
	case DropStopped:
		s.droppedStopped.Add(1)
	case DropExcluded:
		s.droppedExcluded.Add(1)
	case DropSentinel:
		s.droppedSentinel.Add(1)
	case DropOverflow:
		s.droppedOverflow.Add(1)
	case DropInvalid:
		s.droppedInvalid.Add(1)
	}
}

// RecordSentinel counts a FULL_BUFFER (full=true) or LOW_MEMORY marker.
func (s *PipelineStats) RecordSentinel(full bool) {
	if full {
		s.fullBuffer.Add(1)
		return
	}
	s.lowMemory.Add(1)
}

// RecordDrain counts a buffer swap.
func (s *PipelineStats) RecordDrain() {
	s.drains.Add(1)
}

// RecordBatch counts the outcome of one delivery attempt carrying n events.
func (s *PipelineStats) RecordBatch(n int, err error) {
	if n == 0 {
		s.batchesEmpty.Add(1)
		return
	}
	if err != nil {
		s.batchesFailed.Add(1)
		s.eventsLost.Add(int64(n))
		return
	}
	s.batchesSent.Add(1)
	s.eventsDelivered.Add(int64(n))
}

// Snapshot returns a copy of all counters.
func (s *PipelineStats) Snapshot() Snapshot {
	return Snapshot{
		Recorded:        s.recorded.Load(),
		DroppedStopped:  s.droppedStopped.Load(),
		DroppedExcluded: s.droppedExcluded.Load(),
		DroppedSentinel: s.droppedSentinel.Load(),
		DroppedOverflow: s.droppedOverflow.Load(),
		DroppedInvalid:  s.droppedInvalid.Load(),
		FullBuffer:      s.fullBuffer.Load(),
		LowMemory:       s.lowMemory.Load(),
		Drains:          s.drains.Load(),
		BatchesSent:     s.batchesSent.Load(),
		BatchesFailed:   s.batchesFailed.Load(),
		BatchesEmpty:    s.batchesEmpty.Load(),
		EventsDelivered: s.eventsDelivered.Load(),
		EventsLost:      s.eventsLost.Load(),
	}
}
