package pipeline

import "errors"

var (
	ErrUnknownStorage = errors.New("pipeline: unknown storage backend")
	ErrStorageOpen    = errors.New("pipeline: failed to open storage")
	ErrTransport      = errors.New("pipeline: failed to create transport")
	ErrClosed         = errors.New("pipeline: closed")
)
