package suscripcion

import (
	"errors"
	"io"
	"net/http"

	"github.com/agendakit/agendakit/core"
	"github.com/agendakit/agendakit/pkg/billing"
	"github.com/agendakit/agendakit/pkg/logger"
)

// maxWebhookBody bounds webhook payloads; provider events are small and an
// unbounded read would let anyone exhaust memory on the public endpoint.
const maxWebhookBody = 1 << 20

func (s *Service) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		core.Render(w, r, core.JSONError(core.ErrBadRequest))
		return
	}

	signature := r.Header.Get("Paddle-Signature")
	if signature == "" {
		signature = r.Header.Get("Webhook-Signature")
	}

	if err := s.engine.HandleWebhook(r.Context(), payload, signature); err != nil {
		if errors.Is(err, billing.ErrSignatureInvalid) {
			s.log.WarnContext(r.Context(), "webhook signature rejected", logger.Error(err))
			core.Render(w, r, core.JSONError(core.ErrBadRequest))
			return
		}
		// Processing failed after a valid signature: answer 5xx so the
		// provider redelivers.
		s.log.ErrorContext(r.Context(), "webhook processing failed", logger.Error(err))
		core.Render(w, r, core.JSONError(core.ErrInternalServerError))
		return
	}

	w.WriteHeader(http.StatusOK)
}
