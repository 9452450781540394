// Package buffer provides the bounded, mutex-guarded event list that every
// producer appends to and the delivery client drains.
package buffer

import (
	"fmt"
	"log"
	"runtime"
	"sync"

	"github.com/arkilian/beacon/internal/bloom"
	beaconerrors "github.com/arkilian/beacon/internal/errors"
	"github.com/arkilian/beacon/internal/observability"
	"github.com/arkilian/beacon/internal/session"
	"github.com/arkilian/beacon/pkg/types"
)

// DefaultMaxEvents is the ceiling used when Config.MaxEvents is unset.
const DefaultMaxEvents = 2000

// Sentinel is the backpressure state of the buffer.
type Sentinel int

const (
	SentinelNone Sentinel = iota
	SentinelFull
	SentinelLowMemory
)

// String returns the sentinel name.
func (s Sentinel) String() string {
	switch s {
	case SentinelFull:
		return "full"
	case SentinelLowMemory:
		return "low-memory"
	default:
		return "none"
	}
}

// ActivityObserver is told about every appended activity event.
type ActivityObserver interface {
	Restart()
}

// FlushRequester performs an immediate delivery on behalf of the buffer.
type FlushRequester interface {
	RequestImmediateFlush(blocking bool) error
}

// SensorSource supplies the latest sensor sample at drain time.
type SensorSource interface {
	Latest() (types.SensorReadings, bool)
}

// Config holds buffer construction parameters.
type Config struct {
	MaxEvents int
	Sensors   SensorSource
	Stats     *observability.PipelineStats
	Logger    *log.Logger

	// ReadMemStats is replaceable in tests
	ReadMemStats func(*runtime.MemStats)
}

// EventBuffer is the single in-memory queue between producers and delivery.
// One lock guards the list, the sentinel flag and the exclusion set.
type EventBuffer struct {
	mu        sync.Mutex
	events    []types.Event
	sentinel  Sentinel
	excluded  map[string]struct{}
	prefilter *bloom.Filter

	maxEvents int
	session   *session.State
	sensors   SensorSource
	stats     *observability.PipelineStats
	logger    *log.Logger
	readMem   func(*runtime.MemStats)

	observer ActivityObserver
	flusher  FlushRequester
}

// New creates an empty buffer bound to the given session.
func New(sess *session.State, cfg Config) *EventBuffer {
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = DefaultMaxEvents
	}
	if cfg.Stats == nil {
		cfg.Stats = observability.NewPipelineStats()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.ReadMemStats == nil {
		cfg.ReadMemStats = runtime.ReadMemStats
	}

	return &EventBuffer{
		events:    make([]types.Event, 0, initialCapacity(cfg.MaxEvents)),
		excluded:  make(map[string]struct{}),
		prefilter: bloom.NewWithEstimates(256, 0.01),
		maxEvents: cfg.MaxEvents,
		session:   sess,
		sensors:   cfg.Sensors,
		stats:     cfg.Stats,
		logger:    cfg.Logger,
		readMem:   cfg.ReadMemStats,
	}
}

func initialCapacity(max int) int {
	if max < 64 {
		return max + 1
	}
	return 64
}

// SetActivityObserver attaches the inactivity watchdog. The watchdog records
// through this buffer, so it is attached after both exist.
func (b *EventBuffer) SetActivityObserver(o ActivityObserver) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observer = o
}

// SetFlushRequester attaches the flush scheduler.
func (b *EventBuffer) SetFlushRequester(f FlushRequester) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flusher = f
}

// Record appends an event. It never fails: stopped, excluded and overflow
// events are dropped and counted. Hooks run after the lock is released.
//
// The started check is made under the buffer lock. Stop clears the session
// flag before the final drain takes that lock, so no event can land after
// the final drain.
func (b *EventBuffer) Record(e types.Event) {
	b.mu.Lock()
	if !b.session.Started() {
		b.mu.Unlock()
		b.stats.RecordDropped(observability.DropStopped)
		return
	}

	if e.TargetID != "" && b.excludedLocked(e.TargetID) {
		b.mu.Unlock()
		b.stats.RecordDropped(observability.DropExcluded)
		return
	}

	if b.sentinel != SentinelNone {
		sentinel := b.sentinel
		b.mu.Unlock()
		b.stats.RecordDropped(observability.DropSentinel)
		b.logger.Printf("[WARN] buffer: %s sentinel set, dropping %s event", sentinel, e.Type)
		return
	}

	if len(b.events) >= b.maxEvents {
		mem := b.memoryStatsLocked()
		b.events = append(b.events, types.NewSentinelEvent(types.EventFullBuffer, mem))
		b.sentinel = SentinelFull
		b.mu.Unlock()
		b.stats.RecordSentinel(true)
		b.stats.RecordDropped(observability.DropOverflow)
		b.logger.Printf("[WARN] buffer: %v, dropping until next drain",
			beaconerrors.NewCapacityError(beaconerrors.CodeBufferFull,
				fmt.Sprintf("full at %d events (heap %d bytes)", b.maxEvents, mem.HeapAlloc)))
		return
	}

	b.events = append(b.events, e)
	observer, flusher := b.observer, b.flusher
	b.mu.Unlock()
	b.stats.RecordAppended()

	if observer != nil && isActivity(e.Type) {
		observer.Restart()
	}
	if flusher != nil {
		if blocking, ok := immediateFlush(e.Type); ok {
			if err := flusher.RequestImmediateFlush(blocking); err != nil {
				b.logger.Printf("[WARN] buffer: immediate flush after %s rejected: %v", e.Type, err)
			}
		}
	}
}

// SignalLowMemory inserts a LOW_MEMORY sentinel. Nothing else is appended
// until the next drain. A second signal before the drain is ignored.
func (b *EventBuffer) SignalLowMemory() bool {
	b.mu.Lock()
	if !b.session.Started() || b.sentinel != SentinelNone {
		b.mu.Unlock()
		return false
	}
	mem := b.memoryStatsLocked()
	b.events = append(b.events, types.NewSentinelEvent(types.EventLowMemory, mem))
	b.sentinel = SentinelLowMemory
	b.mu.Unlock()

	b.stats.RecordSentinel(false)
	b.logger.Printf("[WARN] buffer: %v, dropping until next drain",
		beaconerrors.NewCapacityError(beaconerrors.CodeLowMemory,
			fmt.Sprintf("low memory (heap %d bytes)", mem.HeapAlloc)))
	return true
}

// DrainAndNormalize swaps the list for an empty one and clears the sentinel
// under a single lock acquisition, then backfills deferred fields on the
// returned copy.
func (b *EventBuffer) DrainAndNormalize() []types.Event {
	drained := b.swap()
	if len(drained) == 0 {
		return nil
	}

	var latest types.SensorReadings
	var hasLatest bool
	if b.sensors != nil {
		latest, hasLatest = b.sensors.Latest()
	}
	screen := b.session.Screen()

	for i := range drained {
		drained[i] = Normalize(drained[i], latest, hasLatest, screen)
	}
	return drained
}

// Clear drains and discards everything. Returns the number of events dropped.
func (b *EventBuffer) Clear() int {
	return len(b.swap())
}

func (b *EventBuffer) swap() []types.Event {
	b.mu.Lock()
	drained := b.events
	b.events = make([]types.Event, 0, initialCapacity(b.maxEvents))
	b.sentinel = SentinelNone
	b.mu.Unlock()

	b.stats.RecordDrain()
	return drained
}

// Normalize fills the deferred fields of e. It returns a copy and never
// touches e: empty sensor readings take the latest sample, and a session
// start without a url takes the current screen name.
func Normalize(e types.Event, latest types.SensorReadings, hasLatest bool, screen string) types.Event {
	if hasLatest && !e.HasSensors() && !e.Type.IsSentinel() {
		e = e.WithSensors(latest)
	}
	if e.IsSessionCreation() && e.URL == "" && screen != "" {
		e = e.WithURL(screen)
	}
	return e
}

// AddExclusion stops events targeting id from being recorded. Idempotent.
func (b *EventBuffer) AddExclusion(id string) {
	if id == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.excluded[id]; ok {
		return
	}
	b.excluded[id] = struct{}{}
	b.prefilter.Add(id)
}

// RemoveExclusion re-admits id. The prefilter cannot delete, so it is rebuilt.
func (b *EventBuffer) RemoveExclusion(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.excluded[id]; !ok {
		return
	}
	delete(b.excluded, id)

	b.prefilter.Reset()
	for other := range b.excluded {
		b.prefilter.Add(other)
	}
}

// Excluded reports whether id is in the exclusion set.
func (b *EventBuffer) Excluded(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.excludedLocked(id)
}

// excludedLocked answers "definitely not excluded" from the prefilter and
// confirms positives against the map, which stays authoritative. With an
// empty set nothing is hashed. Caller must hold lock.
func (b *EventBuffer) excludedLocked(id string) bool {
	if len(b.excluded) == 0 || !b.prefilter.Contains(id) {
		return false
	}
	_, ok := b.excluded[id]
	return ok
}

// Len returns the number of buffered events, including a sentinel.
func (b *EventBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// Sentinel returns the current backpressure state.
func (b *EventBuffer) Sentinel() Sentinel {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sentinel
}

// Stats returns the shared pipeline counters.
func (b *EventBuffer) Stats() observability.Snapshot {
	return b.stats.Snapshot()
}

// memoryStatsLocked samples the heap for a sentinel payload (caller must hold lock).
func (b *EventBuffer) memoryStatsLocked() types.MemoryStats {
	var ms runtime.MemStats
	b.readMem(&ms)
	return types.MemoryStats{
		HeapAlloc:   ms.HeapAlloc,
		HeapSys:     ms.HeapSys,
		NumGC:       ms.NumGC,
		Buffered:    len(b.events),
		MaxBuffer:   b.maxEvents,
		SampledAtMs: types.NowMillis(),
	}
}

// isActivity reports whether t should restart the inactivity countdown.
func isActivity(t types.EventType) bool {
	switch t {
	case types.EventInactive, types.EventBlur, types.EventLog, types.EventIdentifierResult,
		types.EventFullBuffer, types.EventLowMemory:
		return false
	}
	return true
}

// immediateFlush reports whether t triggers a delivery and whether the
// recorder waits for it.
func immediateFlush(t types.EventType) (blocking bool, ok bool) {
	switch t {
	case types.EventBlur:
		return false, true
	case types.EventSessionEnd:
		return true, true
	}
	return false, false
}
