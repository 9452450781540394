package types

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_JSONOmitsUnsetFields(t *testing.T) {
	e := Event{Type: EventClick, Timestamp: 1700000000000}

	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"CLICK","ts":1700000000000}`, string(data))
}

func TestEvent_JSONCarriesOptionalFields(t *testing.T) {
	e := NewIdentifierEvent("XYZ", true)
	e.Timestamp = 42

	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"IDENTIFIER_RESULT","ts":42,"identifier":"XYZ","cached":true}`, string(data))
}

func TestEvent_WithSensorsCopies(t *testing.T) {
	orig := NewEvent(EventTouch, "btn")
	filled := orig.WithSensors(SensorReadings{Gyro: NewTriple(1, 2, 3)})

	assert.Nil(t, orig.Sensors, "original must not be mutated")
	assert.True(t, filled.HasSensors())
	assert.Equal(t, 2.0, *filled.Sensors.Gyro.Y)
}

func TestSensorReadings_IsEmpty(t *testing.T) {
	assert.True(t, SensorReadings{}.IsEmpty())

	x := 0.5
	assert.False(t, SensorReadings{Accel: Triple{X: &x}}.IsEmpty())
}

func TestEvent_Validate(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		ok    bool
	}{
		{"valid", Event{Type: EventFocus, Timestamp: 1}, true},
		{"missing type", Event{Timestamp: 1}, false},
		{"zero timestamp", Event{Type: EventFocus}, false},
	}
	for _, tt := range tests {
		err := tt.event.Validate()
		if tt.ok && err != nil {
			t.Errorf("%s: unexpected error %v", tt.name, err)
		}
		if !tt.ok && !errors.Is(err, ErrInvalidEvent) {
			t.Errorf("%s: expected ErrInvalidEvent, got %v", tt.name, err)
		}
	}
}

func TestEventType_IsSentinel(t *testing.T) {
	assert.True(t, EventFullBuffer.IsSentinel())
	assert.True(t, EventLowMemory.IsSentinel())
	assert.False(t, EventBlur.IsSentinel())
}
