package notifications

import "errors"

var (
	ErrUnknownEvent     = errors.New("notifications: unknown event")
	ErrMalformedPayload = errors.New("notifications: malformed event payload")
	ErrUnknownCategory  = errors.New("notifications: unknown category")
	ErrInvalidDigest    = errors.New("notifications: invalid email digest")
	ErrFiltered         = errors.New("notifications: dropped by preferences")
	ErrDuplicate        = errors.New("notifications: duplicate notification id")
	ErrDeliveryPanicked = errors.New("notifications: deliverer panicked")
)
