package notify

import (
	"context"
	"log/slog"

	"github.com/agendakit/agendakit/pkg/logger"
)

// DevSender logs notices instead of delivering them. Used in local
// environments where no Postmark tokens are configured.
type DevSender struct {
	log *slog.Logger
}

// NewDevSender creates a log-only channel.
func NewDevSender(log *slog.Logger) *DevSender {
	if log == nil {
		log = slog.Default()
	}
	return &DevSender{log: log}
}

func (s *DevSender) Send(ctx context.Context, n Notice) error {
	s.log.InfoContext(ctx, "notice (dev sender, not delivered)",
		logger.NegocioID(n.NegocioID),
		slog.String("notice_type", string(n.Tipo)),
		slog.String("email", n.Email),
		slog.Int("dias_restantes", n.DiasRestantes),
		slog.String("mensaje", n.Mensaje))
	return nil
}
