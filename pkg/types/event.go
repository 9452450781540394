// Package types defines the event model shared by producers, the buffer and the delivery client.
package types

import (
	"fmt"
	"time"
)

// EventType identifies what an event describes.
type EventType string

const (
	EventTouch       EventType = "TOUCH"
	EventClick       EventType = "CLICK"
	EventLongPress   EventType = "LONG_PRESS"
	EventScroll      EventType = "SCROLL"
	EventFocus       EventType = "FOCUS"
	EventBlur        EventType = "BLUR"
	EventTextChange  EventType = "TEXT_CHANGE"
	EventPaste       EventType = "PASTE"
	EventScreenView  EventType = "SCREEN_VIEW"
	EventSensor      EventType = "SENSOR"
	EventCustom      EventType = "CUSTOM"
	EventSessionOpen EventType = "SESSION_START"
	EventSessionEnd  EventType = "SESSION_CLOSE"

	// Synthetic events produced by the pipeline itself.
	EventInactive         EventType = "INACTIVE"
	EventIdentifierResult EventType = "IDENTIFIER_RESULT"
	EventLog              EventType = "LOG"
	EventFullBuffer       EventType = "FULL_BUFFER"
	EventLowMemory        EventType = "LOW_MEMORY"
)

// IsSentinel reports whether t marks a backpressure condition.
func (t EventType) IsSentinel() bool {
	return t == EventFullBuffer || t == EventLowMemory
}

// Log levels carried by LOG events.
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Attributes is a free-form metadata map. Events carry an ordered list of them.
type Attributes map[string]string

// MotionSample is one position/pressure tuple of a gesture.
type MotionSample struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Pressure float64 `json:"p"`
	Offset   int64   `json:"t,omitempty"` // ms since the gesture began
}

// Triple is a three-axis sensor reading. A nil axis means "not sampled".
type Triple struct {
	X *float64 `json:"x,omitempty"`
	Y *float64 `json:"y,omitempty"`
	Z *float64 `json:"z,omitempty"`
}

// NewTriple returns a fully populated triple.
func NewTriple(x, y, z float64) Triple {
	return Triple{X: &x, Y: &y, Z: &z}
}

// IsEmpty reports whether no axis has been sampled.
func (t Triple) IsEmpty() bool {
	return t.X == nil && t.Y == nil && t.Z == nil
}

// SensorReadings holds the angular-rate and linear-acceleration triples.
type SensorReadings struct {
	Gyro  Triple `json:"gyro"`
	Accel Triple `json:"accel"`
}

// IsEmpty reports whether both triples are unsampled.
func (s SensorReadings) IsEmpty() bool {
	return s.Gyro.IsEmpty() && s.Accel.IsEmpty()
}

// SessionFields are populated only on session-creation events.
type SessionFields struct {
	SessionID    string `json:"sessionId,omitempty"`
	ClientID     string `json:"clientId,omitempty"`
	DeviceID     string `json:"deviceId,omitempty"`
	Locale       string `json:"locale,omitempty"`
	UserAgent    string `json:"userAgent,omitempty"`
	ScreenWidth  int    `json:"screenWidth,omitempty"`
	ScreenHeight int    `json:"screenHeight,omitempty"`
}

// MemoryStats is the diagnostic payload of a sentinel event.
type MemoryStats struct {
	HeapAlloc   uint64 `json:"heapAlloc"`
	HeapSys     uint64 `json:"heapSys"`
	NumGC       uint32 `json:"numGC"`
	Buffered    int    `json:"buffered"`
	MaxBuffer   int    `json:"maxBuffer"`
	SampledAtMs int64  `json:"sampledAt"`
}

// Event is one observed interaction or system occurrence. Treat it as a value:
// the pipeline never mutates a stored event, it copies with the With* helpers.
type Event struct {
	Type          EventType       `json:"type"`
	Timestamp     int64           `json:"ts"`
	TargetID      string          `json:"id,omitempty"`
	Attributes    []Attributes    `json:"attrs,omitempty"`
	MotionSamples []MotionSample  `json:"motion,omitempty"`
	Sensors       *SensorReadings `json:"sensors,omitempty"`
	Session       *SessionFields  `json:"session,omitempty"`
	URL           string          `json:"url,omitempty"`
	Cached        *bool           `json:"cached,omitempty"`
	Identifier    string          `json:"identifier,omitempty"`
	Level         string          `json:"level,omitempty"`
	Message       string          `json:"msg,omitempty"`
	Memory        *MemoryStats    `json:"mem,omitempty"`
}

// NowMillis returns the current wall-clock time in milliseconds.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// NewEvent creates an event of the given type stamped with the current time.
func NewEvent(t EventType, targetID string) Event {
	return Event{Type: t, Timestamp: NowMillis(), TargetID: targetID}
}

// NewLogEvent creates a LOG event.
func NewLogEvent(level, msg string) Event {
	return Event{Type: EventLog, Timestamp: NowMillis(), Level: level, Message: msg}
}

// NewIdentifierEvent creates an IDENTIFIER_RESULT event.
func NewIdentifierEvent(id string, cached bool) Event {
	return Event{Type: EventIdentifierResult, Timestamp: NowMillis(), Identifier: id, Cached: &cached}
}

// NewSentinelEvent creates a FULL_BUFFER or LOW_MEMORY marker.
func NewSentinelEvent(t EventType, mem MemoryStats) Event {
	return Event{Type: t, Timestamp: NowMillis(), Memory: &mem}
}

// NewSessionStartEvent creates the session-creation event.
func NewSessionStartEvent(fields SessionFields) Event {
	return Event{Type: EventSessionOpen, Timestamp: NowMillis(), Session: &fields}
}

// IsSessionCreation reports whether e opens a session.
func (e Event) IsSessionCreation() bool {
	return e.Type == EventSessionOpen
}

// HasSensors reports whether any sensor axis is populated.
func (e Event) HasSensors() bool {
	return e.Sensors != nil && !e.Sensors.IsEmpty()
}

// WithSensors returns a copy of e carrying the given readings.
func (e Event) WithSensors(s SensorReadings) Event {
	e.Sensors = &s
	return e
}

// WithURL returns a copy of e carrying the given url.
func (e Event) WithURL(url string) Event {
	e.URL = url
	return e
}

// Validate checks the fields every event must carry.
func (e Event) Validate() error {
	if e.Type == "" {
		return fmt.Errorf("%w: missing type", ErrInvalidEvent)
	}
	if e.Timestamp <= 0 {
		return fmt.Errorf("%w: %s has non-positive timestamp %d", ErrInvalidEvent, e.Type, e.Timestamp)
	}
	return nil
}
