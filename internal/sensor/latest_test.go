package sensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkilian/beacon/pkg/types"
)

func TestLatest_EmptyByDefault(t *testing.T) {
	l := NewLatest()
	r, ok := l.Latest()
	assert.False(t, ok)
	assert.True(t, r.IsEmpty())
}

func TestLatest_IndependentAxes(t *testing.T) {
	l := NewLatest()
	l.UpdateGyro(1, 2, 3)
	l.UpdateAccel(4, 5, 6)

	r, ok := l.Latest()
	require.True(t, ok)
	assert.Equal(t, 1.0, *r.Gyro.X)
	assert.Equal(t, 6.0, *r.Accel.Z)

	l.UpdateGyro(7, 8, 9)
	r, _ = l.Latest()
	assert.Equal(t, 7.0, *r.Gyro.X)
	assert.Equal(t, 4.0, *r.Accel.X, "accel survives a gyro update")
}

func TestLatest_PartialTripleKeepsOtherAxes(t *testing.T) {
	l := NewLatest()
	l.UpdateGyro(1, 2, 3)

	z := 30.0
	l.Update(types.SensorReadings{Gyro: types.Triple{Z: &z}})

	r, _ := l.Latest()
	assert.Equal(t, 1.0, *r.Gyro.X)
	assert.Equal(t, 30.0, *r.Gyro.Z)
}

func TestLatest_Reset(t *testing.T) {
	l := NewLatest()
	l.UpdateAccel(1, 1, 1)
	l.Reset()
	_, ok := l.Latest()
	assert.False(t, ok)
}
