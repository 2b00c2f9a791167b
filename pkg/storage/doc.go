// Package storage defines the key/value persistence contract used by the
// notification pipeline and ships two local backends.
//
// A Store keeps opaque byte values under string keys. The pipeline persists
// three independent keys through it: the notification history, the user's
// preferences and the push subscription descriptors. Backends with external
// dependencies live in their own packages (pkg/redis, pkg/sqlite) and
// satisfy the same interface.
//
// # Backends
//
//   - MemoryStore keeps values in a map. It can be configured to reject writes
//     to emulate a platform without persistent storage or a full quota.
//   - FileStore writes one JSON file per key into a directory, replacing files
//     atomically through a temporary file and rename.
//
// # JSON helpers
//
// GetJSON and SetJSON encode values with encoding/json:
//
//	var prefs Preferences
//	if err := storage.GetJSON(ctx, store, "notification-preferences", &prefs); err != nil {
//	    if errors.Is(err, storage.ErrNotFound) {
//	        prefs = DefaultPreferences()
//	    }
//	}
//
// Missing keys always report ErrNotFound so callers can fall back to defaults.
package storage
