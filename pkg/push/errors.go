package push

import "errors"

var (
	ErrMissingPublicKey   = errors.New("push: public key is not configured")
	ErrSubscribeFailed    = errors.New("push: platform subscription failed")
	ErrRegistrationFailed = errors.New("push: subscription registration failed")
	ErrPersistFailed      = errors.New("push: failed to persist subscription")
)
