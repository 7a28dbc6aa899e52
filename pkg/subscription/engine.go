package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agendakit/agendakit/pkg/billing"
	"github.com/agendakit/agendakit/pkg/logger"
	"github.com/agendakit/agendakit/pkg/negocio"
)

// Engine drives the subscription lifecycle: it is the only writer of
// subscription records. Every mutation goes through the provider first and
// mirrors the confirmed snapshot back, so the local store never claims
// state the provider has not acknowledged.
type Engine struct {
	store    Store
	provider billing.Provider
	log      *slog.Logger
	now      func() time.Time

	trialDays int
	graceDays int

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) EngineOption {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithClock overrides the time source, used in tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithTrialDays sets the trial length for new subscriptions.
func WithTrialDays(days int) EngineOption {
	return func(e *Engine) { e.trialDays = days }
}

// WithGraceDays sets the unauthenticated grace window counted from tenant
// registration for tenants that never subscribed.
func WithGraceDays(days int) EngineOption {
	return func(e *Engine) { e.graceDays = days }
}

// NewEngine creates the lifecycle engine. Panics on nil store or provider.
func NewEngine(store Store, provider billing.Provider, opts ...EngineOption) *Engine {
	if store == nil {
		panic("subscription: nil store")
	}
	if provider == nil {
		panic("subscription: nil provider")
	}
	e := &Engine{
		store:     store,
		provider:  provider,
		log:       slog.Default(),
		now:       time.Now,
		trialDays: 14,
		graceDays: 14,
		locks:     make(map[uuid.UUID]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// lock returns the per-tenant mutex, creating it on first use. All record
// mutations for one negocio are serialized through it so concurrent
// webhooks and API calls cannot interleave read-modify-write cycles.
func (e *Engine) lock(negocioID uuid.UUID) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[negocioID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[negocioID] = l
	}
	return l
}

// Subscribe creates a provider subscription for the tenant and stores the
// mirrored record. A tenant with a live subscription cannot subscribe
// again; a canceled or ended one gets a fresh subscription.
func (e *Engine) Subscribe(ctx context.Context, neg *negocio.Negocio, priceID string) (*Record, error) {
	l := e.lock(neg.ID)
	l.Lock()
	defer l.Unlock()

	now := e.now()
	customerID := ""

	existing, err := e.store.GetByNegocio(ctx, neg.ID)
	switch {
	case err == nil:
		if existing.Status != StatusCanceled || existing.CanReactivateAt(now) {
			return nil, ErrSubscriptionAlreadyExists
		}
		customerID = existing.CustomerID
	case errors.Is(err, ErrSubscriptionNotFound):
	default:
		return nil, err
	}

	if customerID == "" {
		cust, err := e.provider.CreateCustomer(ctx, neg.Email, neg.Nombre)
		if err != nil {
			return nil, fmt.Errorf("create customer: %w", err)
		}
		customerID = cust.ID
	}

	snap, err := e.provider.CreateSubscription(ctx, billing.CreateSubscriptionParams{
		CustomerID: customerID,
		PriceID:    priceID,
		TrialDays:  e.trialDays,
	})
	if err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}

	rec := &Record{
		NegocioID:  neg.ID,
		CustomerID: customerID,
		CreatedAt:  now,
	}
	if existing != nil {
		rec.CreatedAt = existing.CreatedAt
	}
	if err := rec.applySnapshot(snap, now); err != nil {
		return nil, err
	}
	if err := e.store.Save(ctx, rec); err != nil {
		return nil, err
	}

	e.log.InfoContext(ctx, "subscription created",
		logger.NegocioID(neg.ID),
		logger.SubscriptionID(rec.SubscriptionID),
		logger.Plan(rec.PriceID))
	return rec, nil
}

// ChangePlan switches the subscription to another price.
func (e *Engine) ChangePlan(ctx context.Context, negocioID uuid.UUID, priceID string) (*Record, error) {
	return e.update(ctx, negocioID, billing.UpdateSubscriptionParams{PriceID: &priceID})
}

// UpdatePaymentMethod points the subscription at a new payment method.
func (e *Engine) UpdatePaymentMethod(ctx context.Context, negocioID uuid.UUID, paymentMethodID string) (*Record, error) {
	return e.update(ctx, negocioID, billing.UpdateSubscriptionParams{PaymentMethodID: &paymentMethodID})
}

func (e *Engine) update(ctx context.Context, negocioID uuid.UUID, params billing.UpdateSubscriptionParams) (*Record, error) {
	l := e.lock(negocioID)
	l.Lock()
	defer l.Unlock()

	rec, err := e.store.GetByNegocio(ctx, negocioID)
	if err != nil {
		return nil, err
	}

	snap, err := e.provider.UpdateSubscription(ctx, rec.SubscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("update subscription: %w", err)
	}
	if err := rec.applySnapshot(snap, e.now()); err != nil {
		return nil, err
	}
	if err := e.store.Save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Cancel cancels the subscription, by default at period end so the tenant
// keeps access through the paid period. immediate ends it right away.
func (e *Engine) Cancel(ctx context.Context, negocioID uuid.UUID, immediate bool) (*Record, error) {
	l := e.lock(negocioID)
	l.Lock()
	defer l.Unlock()

	rec, err := e.store.GetByNegocio(ctx, negocioID)
	if err != nil {
		return nil, err
	}
	if rec.Status == StatusCanceled {
		return rec, nil
	}

	snap, err := e.provider.CancelSubscription(ctx, rec.SubscriptionID, immediate)
	if err != nil {
		if errors.Is(err, billing.ErrAlreadyExpired) {
			return nil, ErrAlreadyEnded
		}
		return nil, fmt.Errorf("cancel subscription: %w", err)
	}
	if err := rec.applySnapshot(snap, e.now()); err != nil {
		return nil, err
	}
	if err := e.store.Save(ctx, rec); err != nil {
		return nil, err
	}

	e.log.InfoContext(ctx, "subscription canceled",
		logger.NegocioID(negocioID),
		logger.SubscriptionID(rec.SubscriptionID),
		slog.Bool("immediate", immediate))
	return rec, nil
}

// Reactivate undoes a scheduled cancellation while the paid period is still
// running. Past the period end it fails with ErrAlreadyEnded and the tenant
// must subscribe again.
func (e *Engine) Reactivate(ctx context.Context, negocioID uuid.UUID) (*Record, error) {
	l := e.lock(negocioID)
	l.Lock()
	defer l.Unlock()

	rec, err := e.store.GetByNegocio(ctx, negocioID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	if !rec.CanReactivateAt(now) {
		return nil, ErrAlreadyEnded
	}

	snap, err := e.provider.ReactivateSubscription(ctx, rec.SubscriptionID)
	if err != nil {
		if errors.Is(err, billing.ErrAlreadyExpired) {
			return nil, ErrAlreadyEnded
		}
		return nil, fmt.Errorf("reactivate subscription: %w", err)
	}
	if err := rec.applySnapshot(snap, now); err != nil {
		return nil, err
	}
	if err := e.store.Save(ctx, rec); err != nil {
		return nil, err
	}

	e.log.InfoContext(ctx, "subscription reactivated",
		logger.NegocioID(negocioID),
		logger.SubscriptionID(rec.SubscriptionID))
	return rec, nil
}

// Sync refetches the subscription from the provider and overwrites the
// local mirror. Used when the record is flagged stale and by the nightly
// reconciliation sweep.
func (e *Engine) Sync(ctx context.Context, negocioID uuid.UUID) (*Record, error) {
	l := e.lock(negocioID)
	l.Lock()
	defer l.Unlock()
	return e.syncLocked(ctx, negocioID)
}

func (e *Engine) syncLocked(ctx context.Context, negocioID uuid.UUID) (*Record, error) {
	rec, err := e.store.GetByNegocio(ctx, negocioID)
	if err != nil {
		return nil, err
	}

	snap, err := e.provider.GetSubscription(ctx, rec.SubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("sync subscription: %w", err)
	}
	if err := rec.applySnapshot(snap, e.now()); err != nil {
		return nil, err
	}
	if err := e.store.Save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// State derives the payment state for the tenant. When the local record is
// stale it resyncs from the provider first; if the provider is unreachable
// the stale-derived state is returned rather than failing the request.
func (e *Engine) State(ctx context.Context, neg *negocio.Negocio) (StateInfo, *Record, error) {
	rec, err := e.store.GetByNegocio(ctx, neg.ID)
	if err != nil && !errors.Is(err, ErrSubscriptionNotFound) {
		return StateInfo{}, nil, err
	}

	now := e.now()
	info := DeriveState(rec, neg.Registrado, e.graceDays, neg.Activo, now)
	if !info.NeedsSync {
		return info, rec, nil
	}

	synced, err := e.Sync(ctx, neg.ID)
	if err != nil {
		e.log.WarnContext(ctx, "stale subscription resync failed",
			logger.NegocioID(neg.ID), logger.Error(err))
		return info, rec, nil
	}
	return DeriveState(synced, neg.Registrado, e.graceDays, neg.Activo, now), synced, nil
}

// Checkout creates a hosted checkout session for the initial payment.
func (e *Engine) Checkout(ctx context.Context, neg *negocio.Negocio, priceID, successURL, cancelURL string) (*billing.CheckoutLink, error) {
	customerID := ""
	if rec, err := e.store.GetByNegocio(ctx, neg.ID); err == nil {
		customerID = rec.CustomerID
	}
	return e.provider.CreateCheckoutLink(ctx, billing.CheckoutParams{
		PriceID:    priceID,
		CustomerID: customerID,
		Email:      neg.Email,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
	})
}

// PortalLink returns a customer portal session for managing payment
// methods. Fails with ErrSubscriptionNotFound for tenants that never
// subscribed.
func (e *Engine) PortalLink(ctx context.Context, negocioID uuid.UUID) (*billing.PortalLink, error) {
	rec, err := e.store.GetByNegocio(ctx, negocioID)
	if err != nil {
		return nil, err
	}
	return e.provider.GetCustomerPortalLink(ctx, rec.CustomerID, rec.SubscriptionID)
}

// Invoices lists the tenant's invoices from the provider.
func (e *Engine) Invoices(ctx context.Context, negocioID uuid.UUID) ([]billing.Invoice, error) {
	rec, err := e.store.GetByNegocio(ctx, negocioID)
	if err != nil {
		return nil, err
	}
	return e.provider.ListCustomerInvoices(ctx, rec.CustomerID)
}

// HandleWebhook verifies a raw webhook delivery and applies it. Signature
// failures surface as billing.ErrSignatureInvalid and must map to a 4xx so
// the provider does not retry forged payloads forever.
func (e *Engine) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	evt, err := e.provider.VerifyAndParseWebhook(ctx, payload, signature)
	if err != nil {
		return err
	}
	return e.ApplyEvent(ctx, evt)
}

// ApplyEvent applies a verified webhook event to the local record. Events
// are idempotent by provider event id; deliveries timestamped at or before
// the newest applied event are dropped. A nil return means the event was
// consumed, including the skip cases: providers must not retry them.
func (e *Engine) ApplyEvent(ctx context.Context, evt *billing.Event) error {
	log := e.log.With(logger.EventID(evt.ID), slog.String("event_type", string(evt.Type)))

	rec, err := e.store.GetBySubscriptionID(ctx, evt.SubscriptionID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		// Events can race the local record (checkout-driven creation) or
		// belong to a subscription managed outside this system.
		log.WarnContext(ctx, "billing event for unknown subscription",
			logger.SubscriptionID(evt.SubscriptionID))
		return nil
	}
	if err != nil {
		return err
	}

	l := e.lock(rec.NegocioID)
	l.Lock()
	defer l.Unlock()

	processed, err := e.store.IsEventProcessed(ctx, evt.ID)
	if err != nil {
		return err
	}
	if processed {
		log.DebugContext(ctx, "billing event already processed, skipping")
		return nil
	}

	// Re-read under the lock: another event may have advanced the record
	// between the lookup and acquiring the tenant mutex.
	rec, err = e.store.GetBySubscriptionID(ctx, evt.SubscriptionID)
	if err != nil {
		return err
	}
	log = log.With(logger.NegocioID(rec.NegocioID))

	if rec.LastEventAt != nil && !evt.OccurredAt.After(*rec.LastEventAt) {
		log.InfoContext(ctx, "out-of-order billing event dropped",
			slog.Time("occurred_at", evt.OccurredAt),
			slog.Time("last_event_at", *rec.LastEventAt))
		return e.store.MarkEventProcessed(ctx, evt.ID)
	}

	now := e.now()
	switch evt.Type {
	case billing.EventInvoicePaid:
		if err := rec.transition(StatusActive, now); err != nil {
			log.WarnContext(ctx, "invoice.paid not applicable, skipping", logger.Error(err))
			return nil
		}
		if evt.InvoiceID != "" {
			rec.LatestInvoiceID = evt.InvoiceID
		}
		// Period boundaries moved with the renewal; pull them from the
		// provider so daysRemaining stays correct.
		if snap, err := e.provider.GetSubscription(ctx, rec.SubscriptionID); err == nil {
			if err := rec.applySnapshot(snap, now); err != nil {
				return err
			}
		} else {
			log.WarnContext(ctx, "post-payment resync failed, period data may lag", logger.Error(err))
		}

	case billing.EventInvoicePaymentFailed:
		if rec.Status == StatusActive && evt.InvoiceID != "" && evt.InvoiceID == rec.LatestInvoiceID {
			log.InfoContext(ctx, "payment failure for settled invoice, skipping")
			return nil
		}
		if err := rec.transition(StatusPastDue, now); err != nil {
			log.WarnContext(ctx, "payment_failed not applicable, skipping", logger.Error(err))
			return nil
		}

	case billing.EventSubscriptionUpdated:
		snap, err := e.provider.GetSubscription(ctx, rec.SubscriptionID)
		if err != nil {
			return fmt.Errorf("resync on subscription update: %w", err)
		}
		if err := rec.applySnapshot(snap, now); err != nil {
			var terr *TransitionError
			if errors.As(err, &terr) || errors.Is(err, ErrAlreadyEnded) {
				log.WarnContext(ctx, "subscription update not applicable, skipping", logger.Error(err))
				return nil
			}
			return err
		}

	case billing.EventSubscriptionDeleted:
		if err := rec.transition(StatusCanceled, now); err != nil {
			log.WarnContext(ctx, "subscription delete not applicable, skipping", logger.Error(err))
			return nil
		}
		if rec.CanceledAt == nil {
			t := evt.OccurredAt
			rec.CanceledAt = &t
		}
		if rec.EndedAt == nil {
			t := evt.OccurredAt
			rec.EndedAt = &t
		}
		rec.CancelAtPeriodEnd = false

	default:
		log.InfoContext(ctx, "unhandled billing event type, ignoring")
		return nil
	}

	t := evt.OccurredAt
	rec.LastEventAt = &t
	rec.UpdatedAt = now
	if err := e.store.Save(ctx, rec); err != nil {
		return err
	}
	// Marked only after the save: a failed application must be retried on
	// redelivery, not skipped as seen.
	if err := e.store.MarkEventProcessed(ctx, evt.ID); err != nil {
		return err
	}

	log.InfoContext(ctx, "billing event applied", slog.String("status", string(rec.Status)))
	return nil
}
