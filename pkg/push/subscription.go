package push

import (
	"time"

	"github.com/dmitrymomot/notifykit/pkg/platform"
)

// SubscriptionsKey is the storage key of the persisted descriptor set.
const SubscriptionsKey = "push-subscriptions"

// Subscription is a persisted push subscription descriptor.
type Subscription struct {
	ID        string            `json:"id"`
	Endpoint  string            `json:"endpoint"`
	Keys      platform.PushKeys `json:"keys"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Registration is the body posted to the subscription endpoint.
type Registration struct {
	Subscription platform.PushEndpoint `json:"subscription"`
	UserID       string                `json:"userId"`
}

// Status describes the outcome of Init.
type Status string

const (
	StatusIdle        Status = "idle"
	StatusUnsupported Status = "unsupported"
	StatusDenied      Status = "denied"
	StatusSubscribed  Status = "subscribed"
	StatusFailed      Status = "failed"
)

// Active reports whether background delivery is set up.
func (s Status) Active() bool { return s == StatusSubscribed }
