package storage

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu       sync.RWMutex
	data     map[string][]byte
	writeErr error
	maxBytes int
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithWriteError makes every Set and Delete fail with err.
// Useful to emulate a platform where persistent storage is unavailable.
func WithWriteError(err error) MemoryOption {
	return func(s *MemoryStore) {
		s.writeErr = err
	}
}

// WithQuota limits the total size of stored values in bytes.
// Writes that would exceed it fail with ErrQuotaExceeded.
func WithQuota(maxBytes int) MemoryOption {
	return func(s *MemoryStore) {
		s.maxBytes = maxBytes
	}
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{data: make(map[string][]byte)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns a copy of the value stored under key.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Set stores a copy of value under key.
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writeErr != nil {
		return s.writeErr
	}
	if s.maxBytes > 0 && s.sizeLocked()-len(s.data[key])+len(value) > s.maxBytes {
		return ErrQuotaExceeded
	}
	s.data[key] = append([]byte(nil), value...)
	return nil
}

// Delete removes key.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writeErr != nil {
		return s.writeErr
	}
	delete(s.data, key)
	return nil
}

// Len returns the number of stored keys.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *MemoryStore) sizeLocked() int {
	total := 0
	for _, v := range s.data {
		total += len(v)
	}
	return total
}
