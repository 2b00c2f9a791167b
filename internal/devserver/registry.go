package devserver

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/platform"
	"github.com/dmitrymomot/notifykit/pkg/push"
)

// Record is a stored push registration. Endpoint is unique: registering the
// same endpoint again updates the owner and keys but keeps ID and CreatedAt.
type Record struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId"`
	Endpoint  string            `json:"endpoint"`
	Keys      platform.PushKeys `json:"keys"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Registry stores push registrations.
type Registry interface {
	Save(ctx context.Context, reg push.Registration) (Record, error)
	List(ctx context.Context, userID string) ([]Record, error)
}

func validateRegistration(reg push.Registration) error {
	var missing []string
	if strings.TrimSpace(reg.UserID) == "" {
		missing = append(missing, "userId")
	}
	if strings.TrimSpace(reg.Subscription.Endpoint) == "" {
		missing = append(missing, "subscription.endpoint")
	}
	if reg.Subscription.Keys.P256dh == "" {
		missing = append(missing, "subscription.keys.p256dh")
	}
	if reg.Subscription.Keys.Auth == "" {
		missing = append(missing, "subscription.keys.auth")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidRegistration, strings.Join(missing, ", "))
	}
	return nil
}

func sortRecords(records []Record) {
	slices.SortFunc(records, func(a, b Record) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// MemoryRegistry keeps registrations in process memory.
type MemoryRegistry struct {
	mu         sync.RWMutex
	byEndpoint map[string]Record
	now        func() time.Time
}

// NewMemoryRegistry returns an empty registry. A nil now uses time.Now.
func NewMemoryRegistry(now func() time.Time) *MemoryRegistry {
	if now == nil {
		now = time.Now
	}
	return &MemoryRegistry{byEndpoint: make(map[string]Record), now: now}
}

func (r *MemoryRegistry) Save(_ context.Context, reg push.Registration) (Record, error) {
	if err := validateRegistration(reg); err != nil {
		return Record{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	rec, ok := r.byEndpoint[reg.Subscription.Endpoint]
	if !ok {
		rec = Record{
			ID:        uuid.NewString(),
			Endpoint:  reg.Subscription.Endpoint,
			CreatedAt: now,
		}
	}
	rec.UserID = reg.UserID
	rec.Keys = reg.Subscription.Keys
	rec.UpdatedAt = now
	r.byEndpoint[rec.Endpoint] = rec
	return rec, nil
}

func (r *MemoryRegistry) List(_ context.Context, userID string) ([]Record, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Record, 0)
	for _, rec := range r.byEndpoint {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	sortRecords(out)
	return out, nil
}
