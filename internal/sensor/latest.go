// Package sensor holds the most recent motion-sensor sample published by the
// host's sensor producer.
package sensor

import (
	"sync"

	"github.com/arkilian/beacon/pkg/types"
)

// Latest is the last sample seen. The buffer reads it at drain time to
// backfill events recorded without sensor data.
type Latest struct {
	mu       sync.RWMutex
	readings types.SensorReadings
	set      bool
}

// NewLatest creates an empty holder.
func NewLatest() *Latest {
	return &Latest{}
}

// Update replaces the stored sample. Unsampled axes in r keep the previous
// value so gyro and accelerometer callbacks can arrive independently.
func (l *Latest) Update(r types.SensorReadings) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.readings.Gyro = merge(l.readings.Gyro, r.Gyro)
	l.readings.Accel = merge(l.readings.Accel, r.Accel)
	l.set = !l.readings.IsEmpty()
}

// UpdateGyro stores an angular-rate sample.
func (l *Latest) UpdateGyro(x, y, z float64) {
	l.Update(types.SensorReadings{Gyro: types.NewTriple(x, y, z)})
}

// UpdateAccel stores a linear-acceleration sample.
func (l *Latest) UpdateAccel(x, y, z float64) {
	l.Update(types.SensorReadings{Accel: types.NewTriple(x, y, z)})
}

// Latest returns the stored sample and whether anything has been sampled.
func (l *Latest) Latest() (types.SensorReadings, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.readings, l.set
}

// Reset forgets every sample.
func (l *Latest) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.readings = types.SensorReadings{}
	l.set = false
}

func merge(old, next types.Triple) types.Triple {
	if next.X != nil {
		old.X = next.X
	}
	if next.Y != nil {
		old.Y = next.Y
	}
	if next.Z != nil {
		old.Z = next.Z
	}
	return old
}
