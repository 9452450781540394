package buffer

import (
	"bytes"
	"context"
	"log"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/arkilian/beacon/internal/session"
	"github.com/arkilian/beacon/pkg/types"
)

func TestMemoryMonitor_OncePerCrossing(t *testing.T) {
	sess := session.New()
	sess.Start()

	heap := uint64(0)
	b := New(sess, Config{
		MaxEvents:    10,
		Logger:       log.New(&bytes.Buffer{}, "", 0),
		ReadMemStats: func(ms *runtime.MemStats) { ms.HeapAlloc = heap },
	})
	m := NewMemoryMonitor(b, 1000, time.Second)

	heap = 500
	assert.False(t, m.Check())

	heap = 2000
	assert.True(t, m.Check())
	b.DrainAndNormalize()
	assert.False(t, m.Check(), "still above: no second sentinel")

	heap = 100
	assert.False(t, m.Check())
	heap = 5000
	assert.True(t, m.Check())

	drained := b.DrainAndNormalize()
	if assert.Len(t, drained, 1) {
		assert.Equal(t, types.EventLowMemory, drained[0].Type)
	}
}

func TestMemoryMonitor_DisabledReturnsImmediately(t *testing.T) {
	b, _, _ := newTestBuffer(t, 10)
	m := NewMemoryMonitor(b, 0, time.Millisecond)

	done := make(chan struct{})
	go func() {
		m.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run with zero threshold should return")
	}
}
