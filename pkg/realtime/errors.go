package realtime

import "errors"

var (
	ErrEmptyUserID    = errors.New("realtime: empty user id")
	ErrNotConnected   = errors.New("realtime: not connected")
	ErrInvalidURL     = errors.New("realtime: invalid transport url")
	ErrDialFailed     = errors.New("realtime: dial failed")
	ErrInvalidPayload = errors.New("realtime: invalid outbound payload")
)
