package entitlement

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
)

// Source loads the plan catalog.
type Source interface {
	Load(ctx context.Context) (map[string]Plan, error)
}

// staticSource serves a fixed in-memory catalog.
type staticSource struct {
	plans map[string]Plan
}

// NewStaticSource returns a Source over a deep copy of the given plans.
func NewStaticSource(plans map[string]Plan) Source {
	return &staticSource{plans: clonePlans(plans)}
}

func (s *staticSource) Load(_ context.Context) (map[string]Plan, error) {
	return clonePlans(s.plans), nil
}

func clonePlans(plans map[string]Plan) map[string]Plan {
	out := make(map[string]Plan, len(plans))
	for id, p := range plans {
		p.Limits = maps.Clone(p.Limits)
		p.Features = slices.Clone(p.Features)
		out[id] = p
	}
	return out
}

// validatePlans rejects catalogs that would misbehave at enforcement time.
func validatePlans(plans map[string]Plan) error {
	if len(plans) == 0 {
		return errors.Join(ErrInvalidPlanConfig, errors.New("catalog is empty"))
	}
	seen := make(map[string]string)
	for id, p := range plans {
		if p.ID != "" && p.ID != id {
			return errors.Join(ErrInvalidPlanConfig,
				fmt.Errorf("plan key %q does not match plan id %q", id, p.ID))
		}
		for res, limit := range p.Limits {
			if limit < Unlimited {
				return errors.Join(ErrInvalidPlanConfig,
					fmt.Errorf("plan %q resource %q has invalid limit %d", id, res, limit))
			}
		}
		for _, priceID := range []string{p.PriceIDMonthly, p.PriceIDAnnual} {
			if priceID == "" {
				continue
			}
			if prev, dup := seen[priceID]; dup {
				return errors.Join(ErrInvalidPlanConfig,
					fmt.Errorf("price id %q claimed by both %q and %q", priceID, prev, id))
			}
			seen[priceID] = id
		}
	}
	return nil
}
