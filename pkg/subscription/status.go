package subscription

import "fmt"

// Status is the local subscription status mirrored from the provider.
type Status string

const (
	StatusTrialing   Status = "trialing"
	StatusActive     Status = "active"
	StatusPastDue    Status = "past_due"
	StatusCanceled   Status = "canceled"
	StatusIncomplete Status = "incomplete"
)

// AllStatuses enumerates every valid status; tests assert the transition
// table covers all of them.
var AllStatuses = []Status{
	StatusTrialing,
	StatusActive,
	StatusPastDue,
	StatusCanceled,
	StatusIncomplete,
}

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusTrialing, StatusActive, StatusPastDue, StatusCanceled, StatusIncomplete:
		return true
	}
	return false
}

// providerStatus is the single place provider status strings become local
// statuses. The mapping is exhaustive over the provider's documented
// vocabulary; anything else is an error so new provider statuses cannot
// silently fall through.
var providerStatus = map[string]Status{
	"trialing":   StatusTrialing,
	"active":     StatusActive,
	"past_due":   StatusPastDue,
	"canceled":   StatusCanceled,
	"cancelled":  StatusCanceled,
	"deleted":    StatusCanceled,
	"incomplete": StatusIncomplete,
	"unpaid":     StatusPastDue,
	"paused":     StatusPastDue,
}

// ParseProviderStatus maps a provider status string onto the local enum.
func ParseProviderStatus(s string) (Status, error) {
	status, ok := providerStatus[s]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProviderStatus, s)
	}
	return status, nil
}

// BillingInterval represents the billing frequency.
type BillingInterval string

const (
	IntervalMonthly BillingInterval = "monthly"
	IntervalAnnual  BillingInterval = "annual"
)

// ParseProviderInterval normalizes the provider's interval vocabulary.
// Unknown intervals default to monthly rather than failing; the interval is
// informational and never drives a transition.
func ParseProviderInterval(s string) BillingInterval {
	switch s {
	case "year", "annual", "yearly":
		return IntervalAnnual
	default:
		return IntervalMonthly
	}
}
