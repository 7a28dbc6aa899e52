package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"
)

var (
	ErrFailedToSend  = errors.New("failed to send notice")
	ErrInvalidConfig = errors.New("invalid notify configuration")
)

// Config holds email channel configuration. Tokens are optional so local
// environments can run on the dev sender instead.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL" envDefault:"hola@agendakit.mx"`
	SupportEmail         string `env:"SUPPORT_EMAIL" envDefault:"soporte@agendakit.mx"`
}

// EmailSender delivers notices through Postmark's transactional API.
type EmailSender struct {
	client *postmark.Client
	cfg    Config
}

// NewEmailSender validates the config and builds the Postmark channel.
func NewEmailSender(cfg Config) (*EmailSender, error) {
	if cfg.PostmarkServerToken == "" {
		return nil, fmt.Errorf("%w: PostmarkServerToken is required", ErrInvalidConfig)
	}
	if cfg.PostmarkAccountToken == "" {
		return nil, fmt.Errorf("%w: PostmarkAccountToken is required", ErrInvalidConfig)
	}
	if cfg.SenderEmail == "" {
		return nil, fmt.Errorf("%w: SenderEmail is required", ErrInvalidConfig)
	}
	return &EmailSender{
		client: postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		cfg:    cfg,
	}, nil
}

func (s *EmailSender) Send(ctx context.Context, n Notice) error {
	if n.Email == "" {
		return fmt.Errorf("%w: notice has no recipient email", ErrFailedToSend)
	}

	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:       s.cfg.SenderEmail,
		ReplyTo:    s.cfg.SupportEmail,
		To:         n.Email,
		Subject:    subjectFor(n),
		Tag:        string(n.Tipo),
		HTMLBody:   bodyFor(n),
		TrackOpens: true,
		TrackLinks: "HtmlOnly",
	})
	if err != nil {
		return errors.Join(ErrFailedToSend, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(ErrFailedToSend,
			fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message))
	}
	return nil
}

func subjectFor(n Notice) string {
	switch n.Tipo {
	case NoticeTrialPorVencer:
		if n.DiasRestantes == 1 {
			return "Tu período de prueba termina mañana"
		}
		return fmt.Sprintf("Tu período de prueba termina en %d días", n.DiasRestantes)
	case NoticeTrialVencido:
		return "Tu período de prueba ha terminado"
	case NoticePagoFallido:
		return "No pudimos procesar tu pago"
	case NoticeSuscripcionCancelada:
		return "Tu suscripción ha sido cancelada"
	case NoticeSuscripcionPorVencer:
		return "Tu suscripción está por finalizar"
	case NoticeRenovacionProxima:
		if n.DiasRestantes == 1 {
			return "Tu suscripción se renueva mañana"
		}
		return fmt.Sprintf("Tu suscripción se renueva en %d días", n.DiasRestantes)
	case NoticeLimiteCasiAlcanzado:
		return "Estás por alcanzar el límite de tu plan"
	default:
		return "Novedades de tu cuenta"
	}
}

func bodyFor(n Notice) string {
	nombre := n.Nombre
	if nombre == "" {
		nombre = "Hola"
	}
	return fmt.Sprintf(
		"<html><body><p>Hola %s,</p><p>%s</p><p>— El equipo de AgendaKit</p></body></html>",
		nombre, n.Mensaje)
}
