package storage

import "errors"

var (
	ErrNotFound       = errors.New("storage: key not found")
	ErrInvalidKey     = errors.New("storage: invalid key")
	ErrQuotaExceeded  = errors.New("storage: quota exceeded")
	ErrUnavailable    = errors.New("storage: persistent storage unavailable")
	ErrEncodingFailed = errors.New("storage: failed to encode value")
	ErrDecodingFailed = errors.New("storage: failed to decode value")
)
