package reconciler_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agendakit/agendakit/pkg/billing"
	"github.com/agendakit/agendakit/pkg/negocio"
	"github.com/agendakit/agendakit/pkg/notify"
	"github.com/agendakit/agendakit/pkg/reconciler"
	"github.com/agendakit/agendakit/pkg/subscription"
)

var sweepNow = time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)

type stubBilling struct{}

func (stubBilling) CreateCustomer(context.Context, string, string) (*billing.CustomerRef, error) {
	return nil, billing.ErrNotFound
}
func (stubBilling) CreateSubscription(context.Context, billing.CreateSubscriptionParams) (*billing.SubscriptionSnapshot, error) {
	return nil, billing.ErrNotFound
}
func (stubBilling) UpdateSubscription(context.Context, string, billing.UpdateSubscriptionParams) (*billing.SubscriptionSnapshot, error) {
	return nil, billing.ErrNotFound
}
func (stubBilling) CancelSubscription(context.Context, string, bool) (*billing.SubscriptionSnapshot, error) {
	return nil, billing.ErrNotFound
}
func (stubBilling) ReactivateSubscription(context.Context, string) (*billing.SubscriptionSnapshot, error) {
	return nil, billing.ErrNotFound
}
func (stubBilling) GetSubscription(context.Context, string) (*billing.SubscriptionSnapshot, error) {
	return nil, billing.ErrNotFound
}
func (stubBilling) GetInvoice(context.Context, string) (*billing.Invoice, error) {
	return nil, billing.ErrNotFound
}
func (stubBilling) GetUpcomingInvoice(context.Context, string) (*billing.Invoice, error) {
	return nil, billing.ErrNotFound
}
func (stubBilling) ListCustomerInvoices(context.Context, string) ([]billing.Invoice, error) {
	return nil, nil
}
func (stubBilling) CreateCheckoutLink(context.Context, billing.CheckoutParams) (*billing.CheckoutLink, error) {
	return nil, billing.ErrNotFound
}
func (stubBilling) GetCustomerPortalLink(context.Context, string, string) (*billing.PortalLink, error) {
	return nil, billing.ErrNotFound
}
func (stubBilling) VerifyAndParseWebhook(context.Context, []byte, string) (*billing.Event, error) {
	return nil, billing.ErrSignatureInvalid
}

type negocioDirectory struct {
	tenants map[uuid.UUID]*negocio.Negocio
}

func (d *negocioDirectory) ListIDs(_ context.Context) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(d.tenants))
	for id := range d.tenants {
		ids = append(ids, id)
	}
	return ids, nil
}

func (d *negocioDirectory) GetByID(_ context.Context, id uuid.UUID) (*negocio.Negocio, error) {
	neg, ok := d.tenants[id]
	if !ok {
		return nil, negocio.ErrNegocioNotFound
	}
	return neg, nil
}

func (d *negocioDirectory) SetActivo(_ context.Context, id uuid.UUID, activo bool) error {
	neg, ok := d.tenants[id]
	if !ok {
		return negocio.ErrNegocioNotFound
	}
	neg.Activo = activo
	return nil
}

type captureSender struct {
	sent []notify.Notice
}

func (s *captureSender) Send(_ context.Context, n notify.Notice) error {
	s.sent = append(s.sent, n)
	return nil
}

func newTenant(registered time.Time) *negocio.Negocio {
	return &negocio.Negocio{
		ID:         uuid.New(),
		Nombre:     "Estética Luna",
		Email:      "luna@example.mx",
		PlanID:     "basico",
		Activo:     true,
		Registrado: registered,
	}
}

func TestSweepSendsTrialWarnings(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// 12 days into a 14 day grace window: 2 days remaining.
	expiring := newTenant(sweepNow.AddDate(0, 0, -12))
	// Fresh tenant, far from expiry: no notice.
	fresh := newTenant(sweepNow.AddDate(0, 0, -1))

	dir := &negocioDirectory{tenants: map[uuid.UUID]*negocio.Negocio{
		expiring.ID: expiring,
		fresh.ID:    fresh,
	}}
	engine := subscription.NewEngine(subscription.NewMemoryStore(), stubBilling{},
		subscription.WithClock(func() time.Time { return sweepNow }))
	sender := &captureSender{}

	sched := reconciler.NewScheduler(dir, dir, engine, sender, reconciler.NewMemoryMarker(),
		reconciler.WithClock(func() time.Time { return sweepNow }))

	sched.Sweep(ctx)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, notify.NoticeTrialPorVencer, sender.sent[0].Tipo)
	assert.Equal(t, expiring.ID, sender.sent[0].NegocioID)
	assert.Equal(t, 2, sender.sent[0].DiasRestantes)

	// A second sweep the same day must not repeat the notice.
	sched.Sweep(ctx)
	assert.Len(t, sender.sent, 1)
}

func TestSweepNotifiesPaymentFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tenant := newTenant(sweepNow.AddDate(0, -3, 0))
	dir := &negocioDirectory{tenants: map[uuid.UUID]*negocio.Negocio{tenant.ID: tenant}}

	store := subscription.NewMemoryStore()
	end := sweepNow.AddDate(0, 0, 15)
	require.NoError(t, store.Save(ctx, &subscription.Record{
		NegocioID:        tenant.ID,
		CustomerID:       "cus_1",
		SubscriptionID:   "sub_1",
		Status:           subscription.StatusPastDue,
		CurrentPeriodEnd: &end,
		CreatedAt:        sweepNow.AddDate(0, -3, 0),
		UpdatedAt:        sweepNow,
	}))

	engine := subscription.NewEngine(store, stubBilling{},
		subscription.WithClock(func() time.Time { return sweepNow }))
	sender := &captureSender{}

	sched := reconciler.NewScheduler(dir, dir, engine, sender, reconciler.NewMemoryMarker(),
		reconciler.WithClock(func() time.Time { return sweepNow }))
	sched.Sweep(ctx)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, notify.NoticePagoFallido, sender.sent[0].Tipo)
}

func TestSweepIsolatesTenantFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	healthy := newTenant(sweepNow.AddDate(0, 0, -13))
	dir := &negocioDirectory{tenants: map[uuid.UUID]*negocio.Negocio{healthy.ID: healthy}}

	// A broken lister entry: id with no backing tenant.
	broken := &brokenLister{inner: dir, extra: uuid.New()}

	engine := subscription.NewEngine(subscription.NewMemoryStore(), stubBilling{},
		subscription.WithClock(func() time.Time { return sweepNow }))
	sender := &captureSender{}

	sched := reconciler.NewScheduler(broken, dir, engine, sender, reconciler.NewMemoryMarker(),
		reconciler.WithClock(func() time.Time { return sweepNow }))
	sched.Sweep(ctx)

	// The unknown tenant fails but the healthy one still gets its warning.
	require.Len(t, sender.sent, 1)
	assert.Equal(t, healthy.ID, sender.sent[0].NegocioID)
}

func TestSweepRemindsUpcomingRenewal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	renewing := newTenant(sweepNow.AddDate(0, -6, 0))
	midCycle := newTenant(sweepNow.AddDate(0, -6, 0))
	dir := &negocioDirectory{tenants: map[uuid.UUID]*negocio.Negocio{
		renewing.ID: renewing,
		midCycle.ID: midCycle,
	}}

	store := subscription.NewMemoryStore()
	save := func(neg *negocio.Negocio, subID string, end time.Time) {
		require.NoError(t, store.Save(ctx, &subscription.Record{
			NegocioID:        neg.ID,
			CustomerID:       "cus_" + subID,
			SubscriptionID:   subID,
			Status:           subscription.StatusActive,
			CurrentPeriodEnd: &end,
			CreatedAt:        sweepNow.AddDate(0, -6, 0),
			UpdatedAt:        sweepNow,
		}))
	}
	save(renewing, "sub_ren", sweepNow.AddDate(0, 0, 4))
	save(midCycle, "sub_mid", sweepNow.AddDate(0, 0, 20))

	engine := subscription.NewEngine(store, stubBilling{},
		subscription.WithClock(func() time.Time { return sweepNow }))
	sender := &captureSender{}

	sched := reconciler.NewScheduler(dir, dir, engine, sender, reconciler.NewMemoryMarker(),
		reconciler.WithClock(func() time.Time { return sweepNow }))
	sched.SweepNotices(ctx)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, notify.NoticeRenovacionProxima, sender.sent[0].Tipo)
	assert.Equal(t, renewing.ID, sender.sent[0].NegocioID)
	assert.Equal(t, 4, sender.sent[0].DiasRestantes)
}

func TestExpirySweepTogglesActivo(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// Grace window long gone, never subscribed: must be deactivated.
	expired := newTenant(sweepNow.AddDate(0, 0, -30))
	// Deactivated earlier but the subscription is healthy again: restored.
	recovered := newTenant(sweepNow.AddDate(0, -2, 0))
	recovered.Activo = false

	dir := &negocioDirectory{tenants: map[uuid.UUID]*negocio.Negocio{
		expired.ID:   expired,
		recovered.ID: recovered,
	}}

	store := subscription.NewMemoryStore()
	end := sweepNow.AddDate(0, 0, 20)
	require.NoError(t, store.Save(ctx, &subscription.Record{
		NegocioID:        recovered.ID,
		CustomerID:       "cus_1",
		SubscriptionID:   "sub_1",
		Status:           subscription.StatusActive,
		CurrentPeriodEnd: &end,
		CreatedAt:        sweepNow.AddDate(0, -2, 0),
		UpdatedAt:        sweepNow,
	}))

	engine := subscription.NewEngine(store, stubBilling{},
		subscription.WithClock(func() time.Time { return sweepNow }))

	sched := reconciler.NewScheduler(dir, dir, engine, &captureSender{}, reconciler.NewMemoryMarker(),
		reconciler.WithDeactivator(dir),
		reconciler.WithClock(func() time.Time { return sweepNow }))

	sched.SweepExpiry(ctx)

	assert.False(t, expired.Activo)
	assert.True(t, recovered.Activo)
}

type brokenLister struct {
	inner *negocioDirectory
	extra uuid.UUID
}

func (l *brokenLister) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	ids, err := l.inner.ListIDs(ctx)
	if err != nil {
		return nil, err
	}
	return append([]uuid.UUID{l.extra}, ids...), nil
}

func TestDailySchedule(t *testing.T) {
	t.Parallel()

	s := reconciler.DailyAt(3, 0)
	from := time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC), s.Next(from))

	afterRun := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 11, 3, 0, 0, 0, time.UTC), s.Next(afterRun))
}
