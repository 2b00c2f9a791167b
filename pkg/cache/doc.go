// Package cache provides a generic, thread-safe LRU cache.
//
// The notification dispatcher uses it as a bounded window of recently seen
// notification ids, so an event replayed by the server after the original was
// evicted from history is still recognised as a duplicate:
//
//	seen := cache.New[string, struct{}](512)
//	if seen.Contains(id) {
//	    return // replay
//	}
//	seen.Put(id, struct{}{})
//
// Get and Put mark a key as recently used; Peek and Contains do not.
// When the cache is full, Put evicts the least recently used key and calls
// the callback registered with WithEvictCallback.
package cache
