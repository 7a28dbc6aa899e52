// Package negocio carries the tenant (business account) model through the
// request lifecycle: resolution from the request, context propagation, and a
// small read-through cache in front of the data source.
package negocio

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Negocio is the minimal tenant view needed for request-scoped decisions.
// The full business profile lives behind the Provider.
type Negocio struct {
	ID         uuid.UUID `json:"id"`
	Nombre     string    `json:"nombre"`
	Email      string    `json:"email"`
	PlanID     string    `json:"plan_id"`
	Activo     bool      `json:"activo"`
	Registrado time.Time `json:"registrado"`
}

// Provider loads tenant information from a data source.
type Provider interface {
	// GetByID retrieves a negocio by its identifier.
	// Returns ErrNegocioNotFound if no negocio matches.
	GetByID(ctx context.Context, id uuid.UUID) (*Negocio, error)
}

// Lister enumerates every tenant; used by the reconciliation sweeps.
type Lister interface {
	// ListIDs returns the ids of all registered negocios.
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
}

// Deactivator flips a tenant inactive when its subscription lapses.
// Only the reconciliation sweep calls this.
type Deactivator interface {
	SetActivo(ctx context.Context, id uuid.UUID, activo bool) error
}
