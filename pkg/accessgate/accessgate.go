// Package accessgate blocks API traffic for tenants whose subscription no
// longer grants access. It sits after tenant resolution and before the
// business handlers; billing and auth surfaces stay reachable so a blocked
// tenant can still pay.
package accessgate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/agendakit/agendakit/core"
	"github.com/agendakit/agendakit/pkg/entitlement"
	"github.com/agendakit/agendakit/pkg/logger"
	"github.com/agendakit/agendakit/pkg/negocio"
	"github.com/agendakit/agendakit/pkg/subscription"
)

// StateFunc resolves the payment state for the tenant in context.
type StateFunc func(ctx context.Context, neg *negocio.Negocio) (subscription.StateInfo, error)

// DefaultExemptPrefixes are always reachable: auth flows, public booking
// pages, billing webhooks, health probes and the subscription surface
// itself, which a blocked tenant needs to fix their payment.
var DefaultExemptPrefixes = []string{
	"/auth",
	"/public",
	"/webhooks",
	"/health",
	"/suscripcion",
}

type config struct {
	exempt []string
	log    *slog.Logger
}

// Option configures the middleware.
type Option func(*config)

// WithExemptPrefixes replaces the default exempt path prefixes.
func WithExemptPrefixes(prefixes ...string) Option {
	return func(c *config) { c.exempt = prefixes }
}

// WithExtraExemptPrefixes adds prefixes on top of the defaults.
func WithExtraExemptPrefixes(prefixes ...string) Option {
	return func(c *config) { c.exempt = append(c.exempt, prefixes...) }
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *config) {
		if log != nil {
			c.log = log
		}
	}
}

// Middleware denies requests with 402 and a machine-readable state when the
// tenant's payment state does not allow access. Requests without a resolved
// tenant pass through; the auth layer owns that failure mode.
func Middleware(state StateFunc, opts ...Option) func(http.Handler) http.Handler {
	if state == nil {
		panic("accessgate: StateFunc is required")
	}

	cfg := &config{
		exempt: DefaultExemptPrefixes,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range cfg.exempt {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			neg, ok := negocio.FromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			info, err := state(r.Context(), neg)
			if err != nil {
				cfg.log.ErrorContext(r.Context(), "payment state resolution failed",
					logger.NegocioID(neg.ID), logger.Error(err))
				core.Render(w, r, core.JSONError(core.ErrInternalServerError))
				return
			}

			if !info.Estado.Allows() {
				core.Render(w, r, core.JSONErrorMessage(
					core.NewHTTPError(http.StatusPaymentRequired, "suscripcion_vencida"),
					info.Mensaje,
					map[string]any{"estado": info.Estado},
				))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// FeatureChecker gates a plan feature for a tenant.
type FeatureChecker interface {
	CheckFeature(ctx context.Context, negocioID uuid.UUID, f Feature) error
}

// Feature aliases the entitlement feature key so route files can gate on
// it without importing the entitlement package themselves.
type Feature = entitlement.Feature

// RequireFeature wraps a route so it is reachable only on plans that
// include the feature. Apply it at route registration, after the tenant
// middleware has resolved the negocio.
func RequireFeature(checker FeatureChecker, feature Feature) func(http.Handler) http.Handler {
	if checker == nil {
		panic("accessgate: FeatureChecker is required")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			neg, ok := negocio.FromContext(r.Context())
			if !ok {
				core.Render(w, r, core.JSONError(core.ErrUnauthorized))
				return
			}

			err := checker.CheckFeature(r.Context(), neg.ID, feature)
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, entitlement.ErrSubscriptionRequired):
				core.Render(w, r, core.JSONErrorMessage(
					core.NewHTTPError(http.StatusPaymentRequired, "suscripcion_vencida"),
					"Tu suscripción no está activa.", nil))
			case errors.Is(err, entitlement.ErrFeatureNotAvailable):
				core.Render(w, r, core.JSONErrorMessage(
					core.NewHTTPError(http.StatusForbidden, "funcion_no_incluida"),
					"Tu plan no incluye esta función.",
					map[string]any{"funcion": feature}))
			default:
				core.Render(w, r, core.JSONError(core.ErrInternalServerError))
			}
		})
	}
}
