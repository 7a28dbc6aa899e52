package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/agendakit/agendakit/pkg/logger"
	"github.com/agendakit/agendakit/pkg/negocio"
	"github.com/agendakit/agendakit/pkg/notify"
	"github.com/agendakit/agendakit/pkg/subscription"
)

// Config holds sweep tuning loaded from the environment.
type Config struct {
	Hour         int `env:"RECONCILER_HOUR" envDefault:"3"`
	Minute       int `env:"RECONCILER_MINUTE" envDefault:"0"`
	NoticeHour   int `env:"RECONCILER_NOTICE_HOUR" envDefault:"9"`
	NoticeMinute int `env:"RECONCILER_NOTICE_MINUTE" envDefault:"0"`
	WarnDays     int `env:"RECONCILER_WARN_DAYS" envDefault:"3"`
	RenewalDays  int `env:"RECONCILER_RENEWAL_WARN_DAYS" envDefault:"5"`
}

// Scheduler runs the two daily sweeps. The expiry sweep resyncs stale
// subscription records against the provider and flips the negocio activo
// flag when the derived state changes sides; the notice sweep sends expiry
// warnings. One tenant failing never stops a sweep for the rest.
type Scheduler struct {
	lister      negocio.Lister
	provider    negocio.Provider
	deactivator negocio.Deactivator
	engine      *subscription.Engine
	sender      notify.Sender
	marker      SweepMarker
	expiry      Schedule
	notices     Schedule
	warnDays    int
	renewDays   int
	log         *slog.Logger
	now         func() time.Time
}

// SchedulerOption configures the Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedule overrides the default daily 03:00 expiry schedule.
func WithSchedule(s Schedule) SchedulerOption {
	return func(r *Scheduler) {
		if s != nil {
			r.expiry = s
		}
	}
}

// WithNoticeSchedule overrides the default daily 09:00 notice schedule.
func WithNoticeSchedule(s Schedule) SchedulerOption {
	return func(r *Scheduler) {
		if s != nil {
			r.notices = s
		}
	}
}

// WithDeactivator lets the expiry sweep persist the activo flag. Without
// it the sweep only resyncs records.
func WithDeactivator(d negocio.Deactivator) SchedulerOption {
	return func(r *Scheduler) {
		r.deactivator = d
	}
}

// WithWarnDays sets how many days before expiry warnings start (default 3).
func WithWarnDays(days int) SchedulerOption {
	return func(r *Scheduler) {
		if days > 0 {
			r.warnDays = days
		}
	}
}

// WithRenewalWarnDays sets how many days before an upcoming renewal
// reminders start (default 5).
func WithRenewalWarnDays(days int) SchedulerOption {
	return func(r *Scheduler) {
		if days > 0 {
			r.renewDays = days
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) SchedulerOption {
	return func(r *Scheduler) {
		if log != nil {
			r.log = log
		}
	}
}

// WithClock overrides the time source, used in tests.
func WithClock(now func() time.Time) SchedulerOption {
	return func(r *Scheduler) {
		if now != nil {
			r.now = now
		}
	}
}

// NewScheduler builds the sweep scheduler. Panics on nil dependencies.
func NewScheduler(
	lister negocio.Lister,
	provider negocio.Provider,
	engine *subscription.Engine,
	sender notify.Sender,
	marker SweepMarker,
	opts ...SchedulerOption,
) *Scheduler {
	if lister == nil || provider == nil || engine == nil {
		panic("reconciler: lister, provider and engine are required")
	}
	if sender == nil {
		panic("reconciler: notice sender is required")
	}
	if marker == nil {
		marker = NewMemoryMarker()
	}

	r := &Scheduler{
		lister:    lister,
		provider:  provider,
		engine:    engine,
		sender:    sender,
		marker:    marker,
		expiry:    DailyAt(3, 0),
		notices:   DailyAt(9, 0),
		warnDays:  3,
		renewDays: 5,
		log:       slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run blocks until ctx is canceled, firing each sweep per its schedule.
func (r *Scheduler) Run(ctx context.Context) error {
	r.log.InfoContext(ctx, "reconciliation scheduler started",
		slog.String("expiry_schedule", r.expiry.String()),
		slog.String("notice_schedule", r.notices.String()))

	expiryTimer := time.NewTimer(time.Until(r.expiry.Next(r.now())))
	noticeTimer := time.NewTimer(time.Until(r.notices.Next(r.now())))
	defer expiryTimer.Stop()
	defer noticeTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-expiryTimer.C:
			r.SweepExpiry(ctx)
			expiryTimer.Reset(time.Until(r.expiry.Next(r.now())))
		case <-noticeTimer.C:
			r.SweepNotices(ctx)
			noticeTimer.Reset(time.Until(r.notices.Next(r.now())))
		}
	}
}

// Sweep runs both sweeps back to back. Exported so an admin endpoint or a
// one-off job can trigger a full reconciliation outside the schedules.
func (r *Scheduler) Sweep(ctx context.Context) {
	r.SweepExpiry(ctx)
	r.SweepNotices(ctx)
}

// SweepExpiry resyncs every tenant's record and persists the activo flag.
func (r *Scheduler) SweepExpiry(ctx context.Context) {
	r.sweep(ctx, "expiry", r.expireTenant)
}

// SweepNotices sends expiry warnings, one per tenant and type per day.
func (r *Scheduler) SweepNotices(ctx context.Context) {
	r.sweep(ctx, "notices", r.notifyTenant)
}

func (r *Scheduler) sweep(ctx context.Context, name string, visit func(context.Context, uuid.UUID) error) {
	started := r.now()
	ids, err := r.lister.ListIDs(ctx)
	if err != nil {
		r.log.ErrorContext(ctx, "sweep aborted, cannot list tenants",
			slog.String("sweep", name), logger.Error(err))
		return
	}

	var failures int
	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		if err := visit(ctx, id); err != nil {
			failures++
			r.log.ErrorContext(ctx, "tenant sweep failed",
				slog.String("sweep", name),
				logger.NegocioID(id), logger.Error(err))
		}
	}

	r.log.InfoContext(ctx, "sweep finished",
		slog.String("sweep", name),
		slog.Int("tenants", len(ids)),
		slog.Int("failures", failures),
		slog.Duration("took", r.now().Sub(started)))
}

// tenantState derives the billing-driven state with the activo flag forced
// on, so a deactivated tenant whose payment recovered is still visible to
// the sweeps. State resyncs stale records from the provider inline, which
// is the reconciliation half of the expiry sweep.
func (r *Scheduler) tenantState(ctx context.Context, id uuid.UUID) (*negocio.Negocio, subscription.StateInfo, *subscription.Record, error) {
	neg, err := r.provider.GetByID(ctx, id)
	if err != nil {
		return nil, subscription.StateInfo{}, nil, err
	}

	derived := *neg
	derived.Activo = true
	info, rec, err := r.engine.State(ctx, &derived)
	if err != nil {
		return nil, subscription.StateInfo{}, nil, err
	}
	return neg, info, rec, nil
}

func (r *Scheduler) expireTenant(ctx context.Context, id uuid.UUID) error {
	neg, info, _, err := r.tenantState(ctx, id)
	if err != nil {
		return err
	}
	if r.deactivator == nil {
		return nil
	}

	switch {
	case !info.Estado.Allows() && neg.Activo:
		if err := r.deactivator.SetActivo(ctx, id, false); err != nil {
			return err
		}
		r.log.InfoContext(ctx, "negocio deactivated",
			logger.NegocioID(id), slog.String("estado", string(info.Estado)))
	case info.Estado.Allows() && !neg.Activo:
		if err := r.deactivator.SetActivo(ctx, id, true); err != nil {
			return err
		}
		r.log.InfoContext(ctx, "negocio restored",
			logger.NegocioID(id), slog.String("estado", string(info.Estado)))
	}
	return nil
}

func (r *Scheduler) notifyTenant(ctx context.Context, id uuid.UUID) error {
	neg, info, rec, err := r.tenantState(ctx, id)
	if err != nil {
		return err
	}

	notice, ok := r.noticeFor(neg, info, rec)
	if !ok {
		return nil
	}

	key := fmt.Sprintf("notice:%s:%s:%s", neg.ID, notice.Tipo, r.now().Format("2006-01-02"))
	acquired, err := r.marker.TryAcquire(ctx, key, 48*time.Hour)
	if err != nil {
		return err
	}
	if !acquired {
		return nil
	}
	return r.sender.Send(ctx, notice)
}

// noticeFor decides whether the tenant's state warrants a notice today.
func (r *Scheduler) noticeFor(neg *negocio.Negocio, info subscription.StateInfo, rec *subscription.Record) (notify.Notice, bool) {
	base := notify.Notice{
		NegocioID:     neg.ID,
		Email:         neg.Email,
		Nombre:        neg.Nombre,
		DiasRestantes: info.DiasRestantes,
		Mensaje:       info.Mensaje,
	}

	switch info.Estado {
	case subscription.StateTrial:
		if info.DiasRestantes <= r.warnDays {
			base.Tipo = notify.NoticeTrialPorVencer
			return base, true
		}
	case subscription.StateVencido:
		if rec != nil && rec.Status == subscription.StatusPastDue {
			base.Tipo = notify.NoticePagoFallido
			return base, true
		}
		base.Tipo = notify.NoticeTrialVencido
		return base, true
	case subscription.StateActivo:
		if rec == nil {
			break
		}
		if rec.Status == subscription.StatusCanceled && info.DiasRestantes <= r.warnDays {
			base.Tipo = notify.NoticeSuscripcionPorVencer
			return base, true
		}
		if rec.Status == subscription.StatusActive && info.DiasRestantes <= r.renewDays {
			base.Tipo = notify.NoticeRenovacionProxima
			return base, true
		}
	}
	return notify.Notice{}, false
}
