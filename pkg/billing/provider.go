package billing

import "context"

// Provider wraps the external billing processor. Implementations own all
// provider quirks (auth, pagination, status vocabulary); callers see
// normalized snapshots and the BillingError taxonomy.
//
// Every method is a blocking network call with a bounded timeout. Mutating
// calls carry an idempotency key so a client-side timeout followed by a
// retry cannot create duplicate subscriptions or charges.
type Provider interface {
	// CreateCustomer registers the tenant as a provider customer.
	CreateCustomer(ctx context.Context, email, name string) (*CustomerRef, error)

	// CreateSubscription starts a subscription for an existing customer.
	CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*SubscriptionSnapshot, error)

	// UpdateSubscription applies a partial update (plan change, payment
	// method, cancel-at-period-end flag) and returns the resulting state.
	UpdateSubscription(ctx context.Context, subscriptionID string, params UpdateSubscriptionParams) (*SubscriptionSnapshot, error)

	// CancelSubscription cancels immediately or at period end.
	CancelSubscription(ctx context.Context, subscriptionID string, immediate bool) (*SubscriptionSnapshot, error)

	// ReactivateSubscription undoes a scheduled cancellation. Fails with
	// ErrAlreadyExpired once the paid period has elapsed.
	ReactivateSubscription(ctx context.Context, subscriptionID string) (*SubscriptionSnapshot, error)

	GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionSnapshot, error)
	GetInvoice(ctx context.Context, invoiceID string) (*Invoice, error)
	GetUpcomingInvoice(ctx context.Context, subscriptionID string) (*Invoice, error)
	ListCustomerInvoices(ctx context.Context, customerID string) ([]Invoice, error)

	// CreateCheckoutLink creates a hosted checkout session for the
	// out-of-band initial payment flow.
	CreateCheckoutLink(ctx context.Context, params CheckoutParams) (*CheckoutLink, error)

	// GetCustomerPortalLink returns a temporary customer portal session
	// where payment methods can be updated.
	GetCustomerPortalLink(ctx context.Context, customerID, subscriptionID string) (*PortalLink, error)

	// VerifyAndParseWebhook validates the signature over the raw body and
	// normalizes the payload. Invalid signatures fail with
	// ErrSignatureInvalid and the event must never be processed.
	VerifyAndParseWebhook(ctx context.Context, payload []byte, signature string) (*Event, error)
}
