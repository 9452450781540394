package buffer

import (
	"fmt"
	"io"
	"log"
	"sync"
	"testing"

	"github.com/arkilian/beacon/internal/sensor"
	"github.com/arkilian/beacon/internal/session"
	"github.com/arkilian/beacon/pkg/types"
)

func newBenchBuffer(b *testing.B, max int) *EventBuffer {
	b.Helper()
	sess := session.New()
	sess.Start()
	sensors := sensor.NewLatest()
	sensors.Update(types.SensorReadings{Gyro: types.NewTriple(0.1, 0.2, 0.3)})
	return New(sess, Config{
		MaxEvents: max,
		Sensors:   sensors,
		Logger:    log.New(io.Discard, "", 0),
	})
}

// BenchmarkRecord measures single-producer append throughput.
func BenchmarkRecord(b *testing.B) {
	buf := newBenchBuffer(b, b.N+1)
	e := types.NewEvent(types.EventScroll, "feed")

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		buf.Record(e)
	}

	b.ReportMetric(float64(b.N)/b.Elapsed().Seconds(), "events/sec")
}

// BenchmarkRecordParallel measures append throughput under producer contention.
func BenchmarkRecordParallel(b *testing.B) {
	buf := newBenchBuffer(b, 1<<30)
	e := types.NewEvent(types.EventTextChange, "email")

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			buf.Record(e)
		}
	})
}

// BenchmarkDrainAndNormalize measures drain cost for typical batch sizes.
func BenchmarkDrainAndNormalize(b *testing.B) {
	for _, n := range []int{10, 100, 1000} {
		b.Run(fmt.Sprintf("events=%d", n), func(b *testing.B) {
			buf := newBenchBuffer(b, n+1)
			e := types.NewEvent(types.EventClick, "buy")

			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				b.StopTimer()
				for j := 0; j < n; j++ {
					buf.Record(e)
				}
				b.StartTimer()
				if got := len(buf.DrainAndNormalize()); got != n {
					b.Fatalf("drained %d events, want %d", got, n)
				}
			}
		})
	}
}

// BenchmarkRecordWhileDraining measures producers racing a periodic drain.
func BenchmarkRecordWhileDraining(b *testing.B) {
	buf := newBenchBuffer(b, 1<<30)
	e := types.NewEvent(types.EventTouch, "canvas")

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				buf.DrainAndNormalize()
			}
		}
	}()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Record(e)
	}
	b.StopTimer()
	close(stop)
	wg.Wait()
}
