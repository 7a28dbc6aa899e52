package subscription

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is the Postgres-backed Store using a pgx connection pool.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore wraps a connection pool. It panics on a nil pool: a store
// without a database is a programming error, not a runtime condition.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	if pool == nil {
		panic("subscription: nil pgx pool")
	}
	return &PGStore{pool: pool}
}

const recordColumns = `negocio_id, customer_id, subscription_id, price_id, status, billing_interval,
	current_period_start, current_period_end, cancel_at_period_end, canceled_at, ended_at,
	trial_start, trial_end, latest_invoice_id, payment_method_id, last_event_at, created_at, updated_at`

func (s *PGStore) GetByNegocio(ctx context.Context, negocioID uuid.UUID) (*Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM suscripciones WHERE negocio_id = $1`, negocioID)
	return scanRecord(row)
}

func (s *PGStore) GetBySubscriptionID(ctx context.Context, subscriptionID string) (*Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM suscripciones WHERE subscription_id = $1`, subscriptionID)
	return scanRecord(row)
}

func (s *PGStore) Save(ctx context.Context, rec *Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO suscripciones (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (negocio_id) DO UPDATE SET
			customer_id = EXCLUDED.customer_id,
			subscription_id = EXCLUDED.subscription_id,
			price_id = EXCLUDED.price_id,
			status = EXCLUDED.status,
			billing_interval = EXCLUDED.billing_interval,
			current_period_start = EXCLUDED.current_period_start,
			current_period_end = EXCLUDED.current_period_end,
			cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			canceled_at = EXCLUDED.canceled_at,
			ended_at = EXCLUDED.ended_at,
			trial_start = EXCLUDED.trial_start,
			trial_end = EXCLUDED.trial_end,
			latest_invoice_id = EXCLUDED.latest_invoice_id,
			payment_method_id = EXCLUDED.payment_method_id,
			last_event_at = EXCLUDED.last_event_at,
			updated_at = EXCLUDED.updated_at`,
		rec.NegocioID, rec.CustomerID, rec.SubscriptionID, rec.PriceID, rec.Status, rec.Interval,
		rec.CurrentPeriodStart, rec.CurrentPeriodEnd, rec.CancelAtPeriodEnd, rec.CanceledAt, rec.EndedAt,
		rec.TrialStart, rec.TrialEnd, rec.LatestInvoiceID, rec.PaymentMethodID, rec.LastEventAt,
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}
	return nil
}

func (s *PGStore) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var seen bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM billing_events WHERE event_id = $1)`,
		eventID).Scan(&seen)
	if err != nil {
		return false, fmt.Errorf("check event processed: %w", err)
	}
	return seen, nil
}

func (s *PGStore) MarkEventProcessed(ctx context.Context, eventID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO billing_events (event_id) VALUES ($1) ON CONFLICT (event_id) DO NOTHING`,
		eventID)
	if err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	return nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(
		&rec.NegocioID, &rec.CustomerID, &rec.SubscriptionID, &rec.PriceID, &rec.Status, &rec.Interval,
		&rec.CurrentPeriodStart, &rec.CurrentPeriodEnd, &rec.CancelAtPeriodEnd, &rec.CanceledAt, &rec.EndedAt,
		&rec.TrialStart, &rec.TrialEnd, &rec.LatestInvoiceID, &rec.PaymentMethodID, &rec.LastEventAt,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	return &rec, nil
}
