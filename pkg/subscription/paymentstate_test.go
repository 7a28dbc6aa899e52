package subscription_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/agendakit/agendakit/pkg/subscription"
)

func timePtr(t time.Time) *time.Time { return &t }

func TestDeriveState(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	negocioID := uuid.New()

	t.Run("suspended account blocks regardless of subscription", func(t *testing.T) {
		t.Parallel()
		rec := &subscription.Record{
			NegocioID:        negocioID,
			Status:           subscription.StatusActive,
			CurrentPeriodEnd: timePtr(now.AddDate(0, 0, 20)),
		}
		info := subscription.DeriveState(rec, now.AddDate(0, -6, 0), 14, false, now)
		assert.Equal(t, subscription.StateSuspendido, info.Estado)
		assert.False(t, info.Estado.Allows())
	})

	t.Run("never subscribed within registration grace", func(t *testing.T) {
		t.Parallel()
		registered := now.AddDate(0, 0, -4)
		info := subscription.DeriveState(nil, registered, 14, true, now)
		assert.Equal(t, subscription.StateTrial, info.Estado)
		assert.Equal(t, 10, info.DiasRestantes)
		assert.True(t, info.Estado.Allows())
	})

	t.Run("never subscribed past registration grace", func(t *testing.T) {
		t.Parallel()
		registered := now.AddDate(0, 0, -30)
		info := subscription.DeriveState(nil, registered, 14, true, now)
		assert.Equal(t, subscription.StatePendientePago, info.Estado)
		assert.False(t, info.Estado.Allows())
	})

	t.Run("trialing with days left", func(t *testing.T) {
		t.Parallel()
		rec := &subscription.Record{
			NegocioID: negocioID,
			Status:    subscription.StatusTrialing,
			TrialEnd:  timePtr(now.AddDate(0, 0, 5)),
		}
		info := subscription.DeriveState(rec, now, 14, true, now)
		assert.Equal(t, subscription.StateTrial, info.Estado)
		assert.Equal(t, 5, info.DiasRestantes)
	})

	t.Run("trial ending tomorrow says manana", func(t *testing.T) {
		t.Parallel()
		rec := &subscription.Record{
			NegocioID: negocioID,
			Status:    subscription.StatusTrialing,
			TrialEnd:  timePtr(now.Add(20 * time.Hour)),
		}
		info := subscription.DeriveState(rec, now, 14, true, now)
		assert.Equal(t, subscription.StateTrial, info.Estado)
		assert.Equal(t, 1, info.DiasRestantes)
		assert.Contains(t, info.Mensaje, "mañana")
	})

	t.Run("trial elapsed without payment is vencido", func(t *testing.T) {
		t.Parallel()
		rec := &subscription.Record{
			NegocioID: negocioID,
			Status:    subscription.StatusTrialing,
			TrialEnd:  timePtr(now.AddDate(0, 0, -2)),
		}
		info := subscription.DeriveState(rec, now, 14, true, now)
		assert.Equal(t, subscription.StateVencido, info.Estado)
		assert.False(t, info.Estado.Allows())
	})

	t.Run("active with future period end", func(t *testing.T) {
		t.Parallel()
		rec := &subscription.Record{
			NegocioID:        negocioID,
			Status:           subscription.StatusActive,
			CurrentPeriodEnd: timePtr(now.AddDate(0, 0, 12)),
		}
		info := subscription.DeriveState(rec, now, 14, true, now)
		assert.Equal(t, subscription.StateActivo, info.Estado)
		assert.Equal(t, 12, info.DiasRestantes)
		assert.False(t, info.NeedsSync)
	})

	t.Run("active past period end flags resync", func(t *testing.T) {
		t.Parallel()
		rec := &subscription.Record{
			NegocioID:        negocioID,
			Status:           subscription.StatusActive,
			CurrentPeriodEnd: timePtr(now.AddDate(0, 0, -1)),
		}
		info := subscription.DeriveState(rec, now, 14, true, now)
		assert.Equal(t, subscription.StateActivo, info.Estado)
		assert.True(t, info.NeedsSync)
	})

	t.Run("past due is vencido", func(t *testing.T) {
		t.Parallel()
		rec := &subscription.Record{NegocioID: negocioID, Status: subscription.StatusPastDue}
		info := subscription.DeriveState(rec, now, 14, true, now)
		assert.Equal(t, subscription.StateVencido, info.Estado)
	})

	t.Run("incomplete is pendiente_pago", func(t *testing.T) {
		t.Parallel()
		rec := &subscription.Record{NegocioID: negocioID, Status: subscription.StatusIncomplete}
		info := subscription.DeriveState(rec, now, 14, true, now)
		assert.Equal(t, subscription.StatePendientePago, info.Estado)
	})

	t.Run("canceled at period end keeps access until it elapses", func(t *testing.T) {
		t.Parallel()
		rec := &subscription.Record{
			NegocioID:         negocioID,
			Status:            subscription.StatusCanceled,
			CancelAtPeriodEnd: true,
			CurrentPeriodEnd:  timePtr(now.AddDate(0, 0, 7)),
		}
		info := subscription.DeriveState(rec, now, 14, true, now)
		assert.Equal(t, subscription.StateActivo, info.Estado)
		assert.Equal(t, 7, info.DiasRestantes)
		assert.Contains(t, info.Mensaje, "finaliza")
	})

	t.Run("canceled after period end is vencido", func(t *testing.T) {
		t.Parallel()
		rec := &subscription.Record{
			NegocioID:         negocioID,
			Status:            subscription.StatusCanceled,
			CancelAtPeriodEnd: true,
			CurrentPeriodEnd:  timePtr(now.AddDate(0, 0, -3)),
		}
		info := subscription.DeriveState(rec, now, 14, true, now)
		assert.Equal(t, subscription.StateVencido, info.Estado)
	})
}
