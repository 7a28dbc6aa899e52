package subscription

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/agendakit/agendakit/pkg/billing"
)

// Record is the local mirror of a provider subscription plus billing-cycle
// metadata. Exactly one non-deleted record exists per negocio; records are
// never physically deleted, their status moves to canceled instead.
type Record struct {
	NegocioID          uuid.UUID
	CustomerID         string // provider customer id
	SubscriptionID     string // provider subscription id
	PriceID            string
	Status             Status
	Interval           BillingInterval
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  bool
	CanceledAt         *time.Time
	EndedAt            *time.Time
	TrialStart         *time.Time
	TrialEnd           *time.Time
	LatestInvoiceID    string
	PaymentMethodID    string
	LastEventAt        *time.Time // newest provider event applied, orders webhooks
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Validate checks the record invariants before persisting.
func (r *Record) Validate() error {
	if r.NegocioID == (uuid.UUID{}) {
		return ErrInvalidRecord
	}
	if !r.Status.Valid() {
		return ErrInvalidRecord
	}
	if r.CurrentPeriodStart != nil && r.CurrentPeriodEnd != nil &&
		r.CurrentPeriodEnd.Before(*r.CurrentPeriodStart) {
		return ErrInvalidRecord
	}
	return nil
}

func (r *Record) IsTrialing() bool { return r.Status == StatusTrialing }
func (r *Record) IsActive() bool   { return r.Status == StatusActive }
func (r *Record) IsCanceled() bool { return r.Status == StatusCanceled }

// TrialExpiredAt reports whether the trial window has elapsed at now.
func (r *Record) TrialExpiredAt(now time.Time) bool {
	return r.TrialEnd != nil && now.After(*r.TrialEnd)
}

// TrialDaysRemainingAt returns whole days left in the trial, rounded up and
// clamped at zero.
func (r *Record) TrialDaysRemainingAt(now time.Time) int {
	if r.TrialEnd == nil {
		return 0
	}
	return daysUntil(*r.TrialEnd, now)
}

// RenewalDaysRemainingAt returns whole days until the current period ends,
// rounded up and clamped at zero.
func (r *Record) RenewalDaysRemainingAt(now time.Time) int {
	if r.CurrentPeriodEnd == nil {
		return 0
	}
	return daysUntil(*r.CurrentPeriodEnd, now)
}

// CanReactivateAt reports whether a canceled subscription can still be
// brought back: cancellation was scheduled for period end and the paid
// period has not yet elapsed.
func (r *Record) CanReactivateAt(now time.Time) bool {
	if r.Status != StatusCanceled {
		return false
	}
	if !r.CancelAtPeriodEnd {
		return false
	}
	return r.CurrentPeriodEnd != nil && now.Before(*r.CurrentPeriodEnd)
}

// applySnapshot mirrors provider-confirmed state into the record. Only
// fields the provider returned are written; nothing from the original
// request leaks in.
func (r *Record) applySnapshot(snap *billing.SubscriptionSnapshot, now time.Time) error {
	status, err := ParseProviderStatus(snap.Status)
	if err != nil {
		return err
	}
	if r.Status == "" {
		// Fresh record: no prior status to transition from.
		r.Status = status
	} else if err := r.transition(status, now); err != nil {
		return err
	}

	r.SubscriptionID = snap.ID
	if snap.CustomerID != "" {
		r.CustomerID = snap.CustomerID
	}
	if snap.PriceID != "" {
		r.PriceID = snap.PriceID
	}
	r.Interval = ParseProviderInterval(snap.Interval)
	r.CurrentPeriodStart = snap.CurrentPeriodStart
	r.CurrentPeriodEnd = snap.CurrentPeriodEnd
	r.CancelAtPeriodEnd = snap.CancelAtPeriodEnd
	r.CanceledAt = snap.CanceledAt
	r.EndedAt = snap.EndedAt
	r.TrialStart = snap.TrialStart
	r.TrialEnd = snap.TrialEnd
	if snap.LatestInvoiceID != "" {
		r.LatestInvoiceID = snap.LatestInvoiceID
	}
	if snap.PaymentMethodID != "" {
		r.PaymentMethodID = snap.PaymentMethodID
	}
	r.UpdatedAt = now
	return nil
}

// daysUntil is ceil((t-now) in days), clamped at zero.
func daysUntil(t, now time.Time) int {
	remaining := t.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Hours() / 24))
}
