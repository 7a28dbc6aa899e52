package billing

import "time"

// CustomerRef identifies a customer on the provider side.
type CustomerRef struct {
	ID    string
	Email string
	Name  string
}

// SubscriptionSnapshot is the provider's view of a subscription at a point
// in time. The lifecycle engine mirrors these fields into the local record
// after every successful provider call; nothing is written locally from
// request data the provider has not confirmed.
type SubscriptionSnapshot struct {
	ID                 string
	CustomerID         string
	PriceID            string
	Status             string // provider status string, mapped by the engine
	Interval           string // "month" or "year"
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  bool
	CanceledAt         *time.Time
	EndedAt            *time.Time
	TrialStart         *time.Time
	TrialEnd           *time.Time
	LatestInvoiceID    string
	PaymentMethodID    string
}

// Invoice is the provider's invoice resource.
type Invoice struct {
	ID             string
	SubscriptionID string
	CustomerID     string
	Status         string
	AmountDue      int64 // smallest currency unit
	Currency       string
	PaidAt         *time.Time
	CreatedAt      time.Time
	HostedURL      string
}

// CheckoutLink is a hosted checkout session for collecting the initial
// payment out-of-band.
type CheckoutLink struct {
	URL       string
	SessionID string
	ExpiresAt time.Time
}

// PortalLink is a pre-authenticated customer portal session.
type PortalLink struct {
	URL       string
	ExpiresAt time.Time
}

// CreateSubscriptionParams controls subscription creation. TrialDays and
// TrialEndAt are mutually exclusive; TrialEndAt wins when both are set.
type CreateSubscriptionParams struct {
	CustomerID      string
	PriceID         string
	PaymentMethodID string // optional
	TrialDays       int
	TrialEndAt      *time.Time
}

// UpdateSubscriptionParams carries a partial update; nil fields are left
// untouched on the provider side.
type UpdateSubscriptionParams struct {
	PriceID           *string
	PaymentMethodID   *string
	CancelAtPeriodEnd *bool
}

// CheckoutParams contains options for creating a checkout session.
type CheckoutParams struct {
	PriceID    string
	CustomerID string
	Email      string
	SuccessURL string
	CancelURL  string
}
