package notify

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/agendakit/agendakit/pkg/logger"
)

// NoticeType identifies the lifecycle moment a notice is about.
type NoticeType string

const (
	NoticeTrialPorVencer       NoticeType = "trial_por_vencer"
	NoticeTrialVencido         NoticeType = "trial_vencido"
	NoticePagoFallido          NoticeType = "pago_fallido"
	NoticeSuscripcionCancelada NoticeType = "suscripcion_cancelada"
	NoticeSuscripcionPorVencer NoticeType = "suscripcion_por_vencer"
	NoticeRenovacionProxima    NoticeType = "renovacion_proxima"
	NoticeLimiteCasiAlcanzado  NoticeType = "limite_casi_alcanzado"
)

// Notice is one message to one tenant about their subscription.
type Notice struct {
	NegocioID     uuid.UUID
	Email         string
	Nombre        string
	Tipo          NoticeType
	DiasRestantes int
	Mensaje       string
}

// Sender delivers a notice over one channel.
type Sender interface {
	Send(ctx context.Context, n Notice) error
}

// Fanout delivers each notice over every channel. Delivery is best effort:
// a failing channel is logged and the rest still run, because a down SMS
// gateway must not stop renewal emails.
type Fanout struct {
	senders []Sender
	log     *slog.Logger
}

// NewFanout builds a best-effort multi-channel sender.
func NewFanout(log *slog.Logger, senders ...Sender) *Fanout {
	if log == nil {
		log = slog.Default()
	}
	return &Fanout{senders: senders, log: log}
}

func (f *Fanout) Send(ctx context.Context, n Notice) error {
	for _, s := range f.senders {
		if err := s.Send(ctx, n); err != nil {
			f.log.ErrorContext(ctx, "notice delivery failed",
				logger.NegocioID(n.NegocioID),
				slog.String("notice_type", string(n.Tipo)),
				logger.Error(err))
		}
	}
	return nil
}
