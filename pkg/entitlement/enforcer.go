package entitlement

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/agendakit/agendakit/pkg/logger"
	"github.com/agendakit/agendakit/pkg/subscription"
)

// CounterFunc returns the current usage of one resource for a tenant. It
// runs on every creation attempt, so implementations should be cheap
// (indexed aggregate or cached value).
type CounterFunc func(ctx context.Context, negocioID uuid.UUID) (int64, error)

// AccessResolver reports the tenant's plan and payment state. The enforcer
// never answers entitlement questions for tenants whose payment state does
// not grant access.
type AccessResolver func(ctx context.Context, negocioID uuid.UUID) (planID string, state subscription.PaymentState, err error)

// Enforcer answers "may this tenant do X" questions against the plan
// catalog, the tenant's payment state and live usage counters.
type Enforcer struct {
	plans    map[string]Plan
	counters map[Resource]CounterFunc
	resolve  AccessResolver
	alertPct int
	log      *slog.Logger
}

// EnforcerOption configures the Enforcer.
type EnforcerOption func(*Enforcer)

// WithCounter registers the usage counter for a resource.
func WithCounter(res Resource, fn CounterFunc) EnforcerOption {
	return func(e *Enforcer) { e.counters[res] = fn }
}

// WithAlertPercent overrides the usage warning threshold (default 80).
func WithAlertPercent(pct int) EnforcerOption {
	return func(e *Enforcer) {
		if pct > 0 && pct <= 100 {
			e.alertPct = pct
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) EnforcerOption {
	return func(e *Enforcer) {
		if log != nil {
			e.log = log
		}
	}
}

// NewEnforcer loads the catalog from src and builds the enforcer. Panics on
// nil src or resolver; fails on an invalid catalog.
func NewEnforcer(ctx context.Context, src Source, resolve AccessResolver, opts ...EnforcerOption) (*Enforcer, error) {
	if src == nil {
		panic("entitlement: Source is required")
	}
	if resolve == nil {
		panic("entitlement: AccessResolver is required")
	}

	plans, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	if err := validatePlans(plans); err != nil {
		return nil, err
	}

	e := &Enforcer{
		plans:    plans,
		counters: make(map[Resource]CounterFunc),
		resolve:  resolve,
		alertPct: 80,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Plan returns the catalog entry for a tier id.
func (e *Enforcer) Plan(planID string) (Plan, error) {
	p, ok := e.plans[planID]
	if !ok {
		return Plan{}, ErrPlanNotFound
	}
	return p, nil
}

// PlanByPriceID maps a provider price id back onto a tier. Used when
// webhook payloads identify the plan only by price.
func (e *Enforcer) PlanByPriceID(priceID string) (Plan, error) {
	if priceID == "" {
		return Plan{}, ErrPlanNotFound
	}
	for _, p := range e.plans {
		if p.PriceIDMonthly == priceID || p.PriceIDAnnual == priceID {
			return p, nil
		}
	}
	return Plan{}, ErrPlanNotFound
}

// VerifyPlan reports whether planID exists in the catalog.
func (e *Enforcer) VerifyPlan(planID string) error {
	_, err := e.Plan(planID)
	return err
}

func (e *Enforcer) tenantPlan(ctx context.Context, negocioID uuid.UUID) (Plan, error) {
	planID, state, err := e.resolve(ctx, negocioID)
	if err != nil {
		return Plan{}, err
	}
	if !state.Allows() {
		return Plan{}, ErrSubscriptionRequired
	}
	plan, ok := e.plans[planID]
	if !ok {
		return Plan{}, ErrPlanNotFound
	}
	return plan, nil
}

// CanCreate checks whether the tenant may create one more instance of a
// resource. Returns a *LimitError (wrapping ErrLimitExceeded) at the
// boundary: a tenant at exactly its limit cannot create.
func (e *Enforcer) CanCreate(ctx context.Context, negocioID uuid.UUID, res Resource) error {
	plan, err := e.tenantPlan(ctx, negocioID)
	if err != nil {
		return err
	}

	limit, ok := plan.Limits[res]
	if !ok {
		return ErrInvalidResource
	}
	if limit == Unlimited {
		return nil
	}

	counter, ok := e.counters[res]
	if !ok {
		return ErrNoCounterRegistered
	}
	current, err := counter(ctx, negocioID)
	if err != nil {
		return errors.Join(ErrFailedToCountUsage, err)
	}

	if current >= limit {
		return &LimitError{Resource: res, Current: current, Limit: limit}
	}
	if pct := usagePercent(current, limit); pct >= e.alertPct {
		e.log.InfoContext(ctx, "resource usage near plan limit",
			logger.NegocioID(negocioID),
			slog.String("resource", string(res)),
			slog.Int64("current", current),
			slog.Int64("limit", limit),
			slog.Int("percent", pct))
	}
	return nil
}

// CheckFeature returns nil when the tenant's plan includes the feature and
// the payment state grants access.
func (e *Enforcer) CheckFeature(ctx context.Context, negocioID uuid.UUID, f Feature) error {
	plan, err := e.tenantPlan(ctx, negocioID)
	if err != nil {
		return err
	}
	if !plan.HasFeature(f) {
		return ErrFeatureNotAvailable
	}
	return nil
}

// HasFeature is CheckFeature collapsed to a boolean for call sites that
// only branch. Access problems read as "no".
func (e *Enforcer) HasFeature(ctx context.Context, negocioID uuid.UUID, f Feature) bool {
	return e.CheckFeature(ctx, negocioID, f) == nil
}

// Usage returns current consumption of one resource.
func (e *Enforcer) Usage(ctx context.Context, negocioID uuid.UUID, res Resource) (UsageInfo, error) {
	plan, err := e.tenantPlan(ctx, negocioID)
	if err != nil {
		return UsageInfo{}, err
	}
	limit, ok := plan.Limits[res]
	if !ok {
		return UsageInfo{}, ErrInvalidResource
	}
	return e.usageInfo(ctx, negocioID, res, limit)
}

// AllUsage returns consumption for every resource the plan constrains.
// Resources without a registered counter are reported with zero usage.
func (e *Enforcer) AllUsage(ctx context.Context, negocioID uuid.UUID) (map[Resource]UsageInfo, error) {
	plan, err := e.tenantPlan(ctx, negocioID)
	if err != nil {
		return nil, err
	}

	out := make(map[Resource]UsageInfo, len(plan.Limits))
	for res, limit := range plan.Limits {
		info, err := e.usageInfo(ctx, negocioID, res, limit)
		if err != nil {
			if errors.Is(err, ErrNoCounterRegistered) {
				out[res] = UsageInfo{Limit: limit}
				continue
			}
			return nil, err
		}
		out[res] = info
	}
	return out, nil
}

func (e *Enforcer) usageInfo(ctx context.Context, negocioID uuid.UUID, res Resource, limit int64) (UsageInfo, error) {
	counter, ok := e.counters[res]
	if !ok {
		return UsageInfo{}, ErrNoCounterRegistered
	}
	current, err := counter(ctx, negocioID)
	if err != nil {
		return UsageInfo{}, errors.Join(ErrFailedToCountUsage, err)
	}

	pct := usagePercent(current, limit)
	return UsageInfo{
		Current: current,
		Limit:   limit,
		Percent: pct,
		Alert:   pct >= e.alertPct,
	}, nil
}

// usagePercent is the integer current*100/limit. Unlimited and zero
// limits read as 0% and never alert.
func usagePercent(current, limit int64) int {
	if limit <= 0 {
		return 0
	}
	pct := int(current * 100 / limit)
	if pct > 100 {
		pct = 100
	}
	return pct
}
