package watchdog

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/arkilian/beacon/pkg/types"
)

type fakeRecorder struct {
	mu     sync.Mutex
	events []types.Event
}

func (r *fakeRecorder) Record(e types.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *fakeRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestWatchdog_FiresOnceAfterTimeout(t *testing.T) {
	rec := &fakeRecorder{}
	w := New(rec, 20*time.Millisecond)
	w.Start()
	defer w.Stop()

	assert.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, types.EventInactive, rec.events[0].Type)
	assert.False(t, w.Pending())

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, rec.count(), "does not reschedule itself")
}

func TestWatchdog_RestartPostpones(t *testing.T) {
	rec := &fakeRecorder{}
	w := New(rec, 80*time.Millisecond)
	w.Start()
	defer w.Stop()

	for i := 0; i < 5; i++ {
		time.Sleep(30 * time.Millisecond)
		w.Restart()
	}
	assert.Equal(t, 0, rec.count(), "restarts keep pushing the deadline")

	assert.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestWatchdog_StaleGenerationIsNoOp(t *testing.T) {
	rec := &fakeRecorder{}
	w := New(rec, time.Hour)
	w.Start()
	defer w.Stop()

	w.mu.Lock()
	stale := w.generation
	w.mu.Unlock()

	w.Restart()
	w.fire(stale)
	assert.Equal(t, 0, rec.count())
	assert.True(t, w.Pending())
}

func TestWatchdog_StopCancels(t *testing.T) {
	rec := &fakeRecorder{}
	w := New(rec, 20*time.Millisecond)
	w.Start()
	w.Stop()
	w.Stop()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, rec.count())

	w.Restart()
	assert.False(t, w.Pending(), "restart while stopped is ignored")
}

func TestWatchdog_ActivityRestartsAfterFiring(t *testing.T) {
	rec := &fakeRecorder{}
	w := New(rec, 15*time.Millisecond)
	w.Start()
	defer w.Stop()

	assert.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	w.Restart()
	assert.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, 5*time.Millisecond)
}

func TestNew_DefaultTimeout(t *testing.T) {
	w := New(&fakeRecorder{}, 0)
	assert.Equal(t, DefaultTimeout, w.timeout)
}
