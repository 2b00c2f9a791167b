package sqlite

import "errors"

var (
	ErrOpenFailed      = errors.New("sqlite: failed to open database")
	ErrMigrationFailed = errors.New("sqlite: failed to apply migrations")
	ErrQueryFailed     = errors.New("sqlite: query failed")
)
