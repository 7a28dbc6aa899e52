package entitlement

import (
	"errors"
	"fmt"
)

var (
	ErrPlanNotFound        = errors.New("entitlement plan not found")
	ErrInvalidResource     = errors.New("resource not defined for plan")
	ErrNoCounterRegistered = errors.New("no usage counter registered for resource")
	ErrFailedToCountUsage  = errors.New("failed to count resource usage")
	ErrFailedToLoadPlans   = errors.New("failed to load entitlement plans")
	ErrInvalidPlanConfig   = errors.New("invalid entitlement plan configuration")

	// ErrSubscriptionRequired means the tenant's payment state does not
	// grant access, regardless of what the plan would allow.
	ErrSubscriptionRequired = errors.New("active subscription required")

	ErrFeatureNotAvailable = errors.New("feature not available on current plan")
	ErrLimitExceeded       = errors.New("plan limit exceeded")
)

// LimitError carries the numbers behind an ErrLimitExceeded so API
// responses can tell the user exactly which boundary was hit.
type LimitError struct {
	Resource Resource
	Current  int64
	Limit    int64
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("plan limit exceeded: %s %d/%d", e.Resource, e.Current, e.Limit)
}

func (e *LimitError) Unwrap() error { return ErrLimitExceeded }
