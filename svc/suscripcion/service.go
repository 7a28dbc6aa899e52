// Package suscripcion exposes the subscription surface of the API: state
// and usage queries, activation, cancellation and the billing webhook.
package suscripcion

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agendakit/agendakit/core"
	"github.com/agendakit/agendakit/pkg/billing"
	"github.com/agendakit/agendakit/pkg/entitlement"
	"github.com/agendakit/agendakit/pkg/logger"
	"github.com/agendakit/agendakit/pkg/negocio"
	"github.com/agendakit/agendakit/pkg/subscription"
)

// Service wires the lifecycle engine and the entitlement enforcer to HTTP.
type Service struct {
	engine   *subscription.Engine
	enforcer *entitlement.Enforcer
	log      *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// NewService builds the HTTP service. Panics on nil dependencies.
func NewService(engine *subscription.Engine, enforcer *entitlement.Enforcer, opts ...Option) *Service {
	if engine == nil {
		panic("suscripcion: engine is required")
	}
	if enforcer == nil {
		panic("suscripcion: enforcer is required")
	}
	s := &Service{
		engine:   engine,
		enforcer: enforcer,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes mounts the subscription endpoints. The webhook route is mounted
// separately because it lives outside the authenticated surface.
func (s *Service) Routes(r chi.Router) {
	r.Route("/suscripcion", func(r chi.Router) {
		r.Use(negocio.RequireNegocio(nil))
		r.Get("/info", s.handleInfo)
		r.Get("/limites", s.handleLimites)
		r.Get("/facturas", s.handleFacturas)
		r.Get("/portal", s.handlePortal)
		r.Post("/activar", s.handleActivar)
		r.Post("/checkout", s.handleCheckout)
		r.Post("/cancelar", s.handleCancelar)
		r.Post("/reactivar", s.handleReactivar)
	})
}

// WebhookRoutes mounts the unauthenticated billing webhook endpoint.
func (s *Service) WebhookRoutes(r chi.Router) {
	r.Post("/webhooks/billing", s.handleWebhook)
}

// renderError maps domain errors onto the JSON error envelope.
func (s *Service) renderError(w http.ResponseWriter, r *http.Request, err error) {
	var limitErr *entitlement.LimitError
	switch {
	case errors.Is(err, subscription.ErrSubscriptionNotFound):
		core.Render(w, r, core.JSONErrorMessage(core.ErrNotFound,
			"No existe una suscripción para este negocio.", nil))
	case errors.Is(err, subscription.ErrSubscriptionAlreadyExists):
		core.Render(w, r, core.JSONErrorMessage(core.ErrConflict,
			"Ya existe una suscripción activa.", nil))
	case errors.Is(err, subscription.ErrAlreadyEnded):
		core.Render(w, r, core.JSONErrorMessage(
			core.NewHTTPError(http.StatusConflict, "suscripcion_finalizada"),
			"La suscripción ya finalizó. Contrata un nuevo plan para continuar.", nil))
	case errors.Is(err, entitlement.ErrPlanNotFound):
		core.Render(w, r, core.JSONErrorMessage(core.ErrBadRequest,
			"El plan indicado no existe.", nil))
	case errors.As(err, &limitErr):
		core.Render(w, r, core.JSONErrorMessage(
			core.NewHTTPError(http.StatusForbidden, "limite_de_plan"),
			limitErr.Error(),
			map[string]any{
				"recurso": limitErr.Resource,
				"actual":  limitErr.Current,
				"limite":  limitErr.Limit,
			}))
	case billing.IsTransient(err):
		s.log.ErrorContext(r.Context(), "billing provider unavailable", logger.Error(err))
		core.Render(w, r, core.JSONError(core.ErrBadGateway))
	default:
		s.log.ErrorContext(r.Context(), "subscription request failed", logger.Error(err))
		core.Render(w, r, core.JSONError(core.ErrInternalServerError))
	}
}
