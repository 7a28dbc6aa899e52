package billing

import (
	"errors"
	"fmt"
)

var (
	ErrMissingAPIKey        = errors.New("billing provider API key is required")
	ErrMissingWebhookSecret = errors.New("billing provider webhook secret is required")
	ErrInvalidEnvironment   = errors.New("invalid billing provider environment")

	// ErrNotFound indicates the customer/subscription/invoice does not
	// exist on the provider side.
	ErrNotFound = errors.New("billing resource not found")

	// ErrAlreadyExpired indicates a reactivation attempt after the paid
	// period elapsed.
	ErrAlreadyExpired = errors.New("subscription period already elapsed")

	// ErrSignatureInvalid indicates a webhook payload whose signature did
	// not verify. The event must be rejected without processing.
	ErrSignatureInvalid = errors.New("webhook signature verification failed")
)

// BillingError carries the provider-side failure detail. Message is safe to
// log but never forwarded verbatim to API clients.
type BillingError struct {
	Code      string // provider error code or HTTP status class
	Message   string
	Transient bool // retriable: network failure or provider 5xx
}

func (e *BillingError) Error() string {
	return fmt.Sprintf("billing provider error %s: %s", e.Code, e.Message)
}

// IsTransient reports whether err is a retriable provider failure.
// Validation (4xx) errors are never transient.
func IsTransient(err error) bool {
	var be *BillingError
	return errors.As(err, &be) && be.Transient
}
