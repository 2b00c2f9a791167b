// Package sqlite provides a storage.Store backed by a local SQLite database.
//
// It uses github.com/jmoiron/sqlx over the pure-Go modernc.org/sqlite driver,
// so no cgo toolchain is required. Values live in a single key/value table
// created by the built-in migrations when the store is opened.
//
//	store, err := sqlite.Open(ctx, "notifykit.db")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
// Use ":memory:" for an ephemeral database in tests.
package sqlite
