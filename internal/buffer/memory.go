package buffer

import (
	"context"
	"runtime"
	"time"
)

// MemoryMonitor samples the Go heap and raises the low-memory sentinel once
// per crossing of the threshold. A host with its own memory-pressure signal
// can call EventBuffer.SignalLowMemory directly instead.
type MemoryMonitor struct {
	buffer    *EventBuffer
	threshold uint64
	interval  time.Duration
	readMem   func(*runtime.MemStats)
	above     bool
}

// NewMemoryMonitor creates a monitor. threshold is in heap-alloc bytes.
func NewMemoryMonitor(b *EventBuffer, threshold uint64, interval time.Duration) *MemoryMonitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &MemoryMonitor{
		buffer:    b,
		threshold: threshold,
		interval:  interval,
		readMem:   b.readMem,
	}
}

// Run polls until ctx is cancelled.
func (m *MemoryMonitor) Run(ctx context.Context) {
	if m.threshold == 0 {
		return
	}
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check()
		}
	}
}

// Check takes one sample. Returns true when it raised a sentinel.
func (m *MemoryMonitor) Check() bool {
	var ms runtime.MemStats
	m.readMem(&ms)

	if ms.HeapAlloc < m.threshold {
		m.above = false
		return false
	}
	if m.above {
		return false
	}
	m.above = true
	return m.buffer.SignalLowMemory()
}
