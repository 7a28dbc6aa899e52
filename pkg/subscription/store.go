package subscription

import (
	"context"

	"github.com/google/uuid"
)

// Store persists subscription records and the set of processed billing
// events used for webhook deduplication.
type Store interface {
	// GetByNegocio returns the record for a tenant, or
	// ErrSubscriptionNotFound when the tenant never subscribed.
	GetByNegocio(ctx context.Context, negocioID uuid.UUID) (*Record, error)

	// GetBySubscriptionID looks a record up by the provider subscription id.
	GetBySubscriptionID(ctx context.Context, subscriptionID string) (*Record, error)

	// Save upserts the record keyed by negocio id.
	Save(ctx context.Context, rec *Record) error

	// IsEventProcessed reports whether a provider event id has been
	// applied. A true return means a redelivery that must be skipped.
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)

	// MarkEventProcessed records a provider event id. Called only after
	// the event's effects are saved, so a failed application is retried
	// on redelivery instead of being skipped as seen. Idempotent.
	MarkEventProcessed(ctx context.Context, eventID string) error
}
