package notify_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agendakit/agendakit/pkg/notify"
)

type recordingSender struct {
	sent []notify.Notice
	err  error
}

func (s *recordingSender) Send(_ context.Context, n notify.Notice) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, n)
	return nil
}

func TestFanoutBestEffort(t *testing.T) {
	t.Parallel()

	broken := &recordingSender{err: errors.New("gateway down")}
	working := &recordingSender{}
	fanout := notify.NewFanout(nil, broken, working)

	n := notify.Notice{
		NegocioID:     uuid.New(),
		Email:         "dueno@elcorte.mx",
		Tipo:          notify.NoticePagoFallido,
		Mensaje:       "No pudimos procesar tu pago.",
		DiasRestantes: 3,
	}
	require.NoError(t, fanout.Send(context.Background(), n))

	// The failing channel must not stop the working one.
	require.Len(t, working.sent, 1)
	assert.Equal(t, notify.NoticePagoFallido, working.sent[0].Tipo)
}
