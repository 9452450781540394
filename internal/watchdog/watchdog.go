// Package watchdog records a synthetic INACTIVE event when no activity has
// been seen for a configured duration.
package watchdog

import (
	"sync"
	"time"

	"github.com/arkilian/beacon/pkg/types"
)

// DefaultTimeout is the inactivity period used when none is configured.
const DefaultTimeout = 30 * time.Second

// Recorder is the ordinary Record path the watchdog reports through.
type Recorder interface {
	Record(e types.Event)
}

// Watchdog is a restartable one-shot countdown. Every Restart cancels the
// pending timer and arms a new one; a timer from an earlier generation that
// already fired checks its generation and does nothing.
type Watchdog struct {
	recorder Recorder
	timeout  time.Duration

	mu         sync.Mutex
	timer      *time.Timer
	generation uint64
	running    bool
}

// New creates a stopped watchdog.
func New(recorder Recorder, timeout time.Duration) *Watchdog {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Watchdog{recorder: recorder, timeout: timeout}
}

// Start arms the countdown.
func (w *Watchdog) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.running = true
	w.armLocked()
}

// Restart cancels the pending countdown and schedules a fresh one. It is a
// no-op while stopped.
func (w *Watchdog) Restart() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.armLocked()
}

// Stop cancels the countdown. Safe to call more than once.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.running = false
	w.generation++
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// Pending reports whether a countdown is armed.
func (w *Watchdog) Pending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.timer != nil
}

// armLocked replaces the timer (caller must hold lock).
func (w *Watchdog) armLocked() {
	if w.timer != nil {
		w.timer.Stop()
	}
	w.generation++
	gen := w.generation
	w.timer = time.AfterFunc(w.timeout, func() { w.fire(gen) })
}

func (w *Watchdog) fire(gen uint64) {
	w.mu.Lock()
	if !w.running || gen != w.generation {
		w.mu.Unlock()
		return
	}
	// One-shot: the next activity event re-arms it.
	w.timer = nil
	w.mu.Unlock()

	w.recorder.Record(types.NewEvent(types.EventInactive, ""))
}
