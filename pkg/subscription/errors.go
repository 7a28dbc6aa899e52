package subscription

import "errors"

var (
	ErrSubscriptionNotFound      = errors.New("subscription not found")
	ErrSubscriptionAlreadyExists = errors.New("subscription already exists")
	ErrUnknownProviderStatus     = errors.New("unknown provider subscription status")

	ErrInvalidRecord = errors.New("invalid subscription record")

	// ErrAlreadyEnded is returned when reactivating a subscription whose
	// paid period has elapsed.
	ErrAlreadyEnded = errors.New("subscription has already ended")

	// ErrNeedsSync indicates local period data is stale relative to the
	// wall clock; the caller should resync from the provider instead of
	// trusting the local record.
	ErrNeedsSync = errors.New("subscription record needs provider resync")
)
