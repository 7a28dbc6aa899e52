package suscripcion

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/agendakit/agendakit/core"
	"github.com/agendakit/agendakit/pkg/entitlement"
	"github.com/agendakit/agendakit/pkg/negocio"
	"github.com/agendakit/agendakit/pkg/subscription"
)

// infoResponse is the subscription summary shown in the app header and the
// billing settings page.
type infoResponse struct {
	Estado        subscription.PaymentState `json:"estado"`
	DiasRestantes int                       `json:"dias_restantes"`
	Mensaje       string                    `json:"mensaje"`
	Plan          string                    `json:"plan,omitempty"`
	Intervalo     string                    `json:"intervalo,omitempty"`
	RenuevaEl     *time.Time                `json:"renueva_el,omitempty"`
	FinalizaEl    *time.Time                `json:"finaliza_el,omitempty"`
	Cancelada     bool                      `json:"cancelada,omitempty"`
}

func (s *Service) handleInfo(w http.ResponseWriter, r *http.Request) {
	neg := negocio.MustFromContext(r.Context())

	info, rec, err := s.engine.State(r.Context(), neg)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	resp := infoResponse{
		Estado:        info.Estado,
		DiasRestantes: info.DiasRestantes,
		Mensaje:       info.Mensaje,
		Plan:          neg.PlanID,
	}
	if rec != nil {
		resp.Intervalo = string(rec.Interval)
		resp.Cancelada = rec.IsCanceled()
		if rec.IsCanceled() {
			resp.FinalizaEl = rec.CurrentPeriodEnd
		} else {
			resp.RenuevaEl = rec.CurrentPeriodEnd
		}
		if plan, err := s.enforcer.PlanByPriceID(rec.PriceID); err == nil {
			resp.Plan = plan.ID
		}
	}
	core.Render(w, r, core.JSON(resp))
}

func (s *Service) handleLimites(w http.ResponseWriter, r *http.Request) {
	neg := negocio.MustFromContext(r.Context())

	usage, err := s.enforcer.AllUsage(r.Context(), neg.ID)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	core.Render(w, r, core.JSON(map[string]any{"limites": usage}))
}

func (s *Service) handleFacturas(w http.ResponseWriter, r *http.Request) {
	neg := negocio.MustFromContext(r.Context())

	invoices, err := s.engine.Invoices(r.Context(), neg.ID)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	core.Render(w, r, core.JSON(map[string]any{"facturas": invoices}))
}

func (s *Service) handlePortal(w http.ResponseWriter, r *http.Request) {
	neg := negocio.MustFromContext(r.Context())

	link, err := s.engine.PortalLink(r.Context(), neg.ID)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	core.Render(w, r, core.JSON(map[string]any{"url": link.URL, "expira_el": link.ExpiresAt}))
}

type activarRequest struct {
	Plan      string `json:"plan"`
	Intervalo string `json:"intervalo"` // "monthly" or "annual", default monthly
}

// priceFor maps a tier+interval onto the provider price id.
func (s *Service) priceFor(req activarRequest) (string, error) {
	plan, err := s.enforcer.Plan(req.Plan)
	if err != nil {
		return "", err
	}
	priceID := plan.PriceIDMonthly
	if req.Intervalo == string(subscription.IntervalAnnual) {
		priceID = plan.PriceIDAnnual
	}
	if priceID == "" {
		return "", entitlement.ErrPlanNotFound
	}
	return priceID, nil
}

func (s *Service) handleActivar(w http.ResponseWriter, r *http.Request) {
	neg := negocio.MustFromContext(r.Context())

	var req activarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.Render(w, r, core.JSONErrorMessage(core.ErrBadRequest, "Cuerpo JSON inválido.", nil))
		return
	}
	priceID, err := s.priceFor(req)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	rec, err := s.engine.Subscribe(r.Context(), neg, priceID)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	core.Render(w, r, core.JSONWithStatus(http.StatusCreated, map[string]any{
		"estado":          rec.Status,
		"plan":            req.Plan,
		"intervalo":       rec.Interval,
		"prueba_hasta":    rec.TrialEnd,
		"periodo_hasta":   rec.CurrentPeriodEnd,
		"subscription_id": rec.SubscriptionID,
	}))
}

type checkoutRequest struct {
	Plan       string `json:"plan"`
	Intervalo  string `json:"intervalo"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

func (s *Service) handleCheckout(w http.ResponseWriter, r *http.Request) {
	neg := negocio.MustFromContext(r.Context())

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.Render(w, r, core.JSONErrorMessage(core.ErrBadRequest, "Cuerpo JSON inválido.", nil))
		return
	}
	priceID, err := s.priceFor(activarRequest{Plan: req.Plan, Intervalo: req.Intervalo})
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	link, err := s.engine.Checkout(r.Context(), neg, priceID, req.SuccessURL, req.CancelURL)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	core.Render(w, r, core.JSON(map[string]any{"url": link.URL, "expira_el": link.ExpiresAt}))
}

type cancelarRequest struct {
	Inmediata bool `json:"inmediata"`
}

func (s *Service) handleCancelar(w http.ResponseWriter, r *http.Request) {
	neg := negocio.MustFromContext(r.Context())

	var req cancelarRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			core.Render(w, r, core.JSONErrorMessage(core.ErrBadRequest, "Cuerpo JSON inválido.", nil))
			return
		}
	}

	rec, err := s.engine.Cancel(r.Context(), neg.ID, req.Inmediata)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	core.Render(w, r, core.JSON(map[string]any{
		"estado":      rec.Status,
		"finaliza_el": rec.CurrentPeriodEnd,
	}))
}

func (s *Service) handleReactivar(w http.ResponseWriter, r *http.Request) {
	neg := negocio.MustFromContext(r.Context())

	rec, err := s.engine.Reactivate(r.Context(), neg.ID)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	core.Render(w, r, core.JSON(map[string]any{
		"estado":     rec.Status,
		"renueva_el": rec.CurrentPeriodEnd,
	}))
}
