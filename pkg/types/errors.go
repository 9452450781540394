package types

import "errors"

var (
	// ErrInvalidEvent is returned by Event.Validate for malformed events.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrInvalidBatchIDLength is returned when a batch id string or byte slice has incorrect length.
	ErrInvalidBatchIDLength = errors.New("invalid batch id length")

	// ErrInvalidBatchIDCharacter is returned when a batch id string contains invalid characters.
	ErrInvalidBatchIDCharacter = errors.New("invalid batch id character")
)
