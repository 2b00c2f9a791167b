package devserver

import "errors"

var (
	ErrInvalidRegistration = errors.New("devserver: invalid push registration")
	ErrRegistryUnavailable = errors.New("devserver: push registry unavailable")
	ErrUnknownEvent        = errors.New("devserver: unknown event")
	ErrMissingUserID       = errors.New("devserver: user id is required")
)
