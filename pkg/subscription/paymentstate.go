package subscription

import (
	"fmt"
	"time"
)

// PaymentState is the user-facing subscription status label consumed by the
// access gate and by notification messaging.
type PaymentState string

const (
	StateTrial         PaymentState = "trial"
	StateActivo        PaymentState = "activo"
	StateVencido       PaymentState = "vencido"
	StateSuspendido    PaymentState = "suspendido"
	StatePendientePago PaymentState = "pendiente_pago"
)

// Allows reports whether the state grants access to the platform.
func (s PaymentState) Allows() bool {
	return s == StateTrial || s == StateActivo
}

// StateInfo is the derived payment state plus everything the API surface
// needs to explain it to the user.
type StateInfo struct {
	Estado        PaymentState `json:"estado"`
	DiasRestantes int          `json:"dias_restantes"`
	Mensaje       string       `json:"mensaje"`

	// NeedsSync flags an ACTIVE record whose period end is already in the
	// past: local state is stale and must be resynced from the provider
	// rather than trusted.
	NeedsSync bool `json:"-"`
}

// DeriveState computes the payment state for a negocio at a given instant.
// rec may be nil (never subscribed): the tenant then lives off the
// registration grace window until it runs out.
func DeriveState(rec *Record, registered time.Time, graceDays int, activo bool, now time.Time) StateInfo {
	if !activo {
		return StateInfo{Estado: StateSuspendido, Mensaje: msgSuspendido}
	}

	if rec == nil {
		graceEnd := registered.AddDate(0, 0, graceDays)
		if now.Before(graceEnd) {
			days := daysUntil(graceEnd, now)
			return StateInfo{
				Estado:        StateTrial,
				DiasRestantes: days,
				Mensaje:       trialMessage(days),
			}
		}
		return StateInfo{Estado: StatePendientePago, Mensaje: msgPendientePago}
	}

	switch rec.Status {
	case StatusTrialing:
		if rec.TrialEnd != nil && !now.After(*rec.TrialEnd) {
			days := rec.TrialDaysRemainingAt(now)
			return StateInfo{
				Estado:        StateTrial,
				DiasRestantes: days,
				Mensaje:       trialMessage(days),
			}
		}
		return StateInfo{Estado: StateVencido, Mensaje: msgVencido}

	case StatusActive:
		days := rec.RenewalDaysRemainingAt(now)
		info := StateInfo{
			Estado:        StateActivo,
			DiasRestantes: days,
			Mensaje:       activeMessage(days, rec.CancelAtPeriodEnd),
		}
		if rec.CurrentPeriodEnd != nil && days == 0 {
			// Period elapsed without a renewal event: do not trust the
			// stale local record, flag for provider resync.
			info.NeedsSync = true
		}
		return info

	case StatusPastDue:
		return StateInfo{Estado: StateVencido, Mensaje: msgVencido}

	case StatusIncomplete:
		return StateInfo{Estado: StatePendientePago, Mensaje: msgPendientePago}

	case StatusCanceled:
		if rec.CancelAtPeriodEnd && rec.CurrentPeriodEnd != nil && now.Before(*rec.CurrentPeriodEnd) {
			days := rec.RenewalDaysRemainingAt(now)
			return StateInfo{
				Estado:        StateActivo,
				DiasRestantes: days,
				Mensaje:       activeMessage(days, true),
			}
		}
		if rec.EndedAt != nil && now.Before(*rec.EndedAt) {
			days := daysUntil(*rec.EndedAt, now)
			return StateInfo{
				Estado:        StateActivo,
				DiasRestantes: days,
				Mensaje:       activeMessage(days, true),
			}
		}
		return StateInfo{Estado: StateVencido, Mensaje: msgVencido}
	}

	// Unreachable while Status.Valid holds; treated as blocked.
	return StateInfo{Estado: StateVencido, Mensaje: msgVencido}
}

const (
	msgVencido       = "Tu suscripción ha vencido. Renueva tu plan para seguir usando la plataforma."
	msgSuspendido    = "Tu cuenta está suspendida. Contacta a soporte para reactivarla."
	msgPendientePago = "Activa tu suscripción para comenzar a usar la plataforma."
)

func trialMessage(days int) string {
	switch days {
	case 0:
		return "Tu período de prueba termina hoy. Activa tu suscripción para no perder acceso."
	case 1:
		return "Tu período de prueba termina mañana. Activa tu suscripción para no perder acceso."
	default:
		return fmt.Sprintf("Te quedan %d días de prueba.", days)
	}
}

func activeMessage(days int, ending bool) string {
	if ending {
		switch days {
		case 0:
			return "Tu suscripción finaliza hoy."
		case 1:
			return "Tu suscripción finaliza mañana."
		default:
			return fmt.Sprintf("Tu suscripción finaliza en %d días.", days)
		}
	}
	switch days {
	case 0:
		return "Suscripción activa."
	case 1:
		return "Suscripción activa. Tu plan se renueva mañana."
	default:
		return fmt.Sprintf("Suscripción activa. Tu plan se renueva en %d días.", days)
	}
}
