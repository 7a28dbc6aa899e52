package entitlement_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agendakit/agendakit/pkg/entitlement"
)

func TestYAMLSource(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	writeCatalog := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "plans.yaml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	t.Run("loads a valid catalog", func(t *testing.T) {
		t.Parallel()
		path := writeCatalog(t, `
plans:
  basico:
    nombre: Básico
    price_id_monthly: pri_basico_m
    limits:
      citas: 100
      profesionales: 1
    features: [reservas_online]
  premium:
    nombre: Premium
    limits:
      citas: -1
    features: [reservas_online, reportes, api]
`)
		plans, err := entitlement.NewYAMLSource(path).Load(ctx)
		require.NoError(t, err)
		require.Len(t, plans, 2)

		basico := plans["basico"]
		assert.Equal(t, "basico", basico.ID)
		assert.Equal(t, int64(100), basico.Limits[entitlement.ResourceCitas])
		assert.True(t, basico.HasFeature(entitlement.FeatureReservasOnline))

		assert.Equal(t, entitlement.Unlimited, plans["premium"].Limits[entitlement.ResourceCitas])
	})

	t.Run("rejects invalid limits", func(t *testing.T) {
		t.Parallel()
		path := writeCatalog(t, `
plans:
  basico:
    limits:
      citas: -5
`)
		_, err := entitlement.NewYAMLSource(path).Load(ctx)
		require.ErrorIs(t, err, entitlement.ErrInvalidPlanConfig)
	})

	t.Run("rejects duplicate price ids", func(t *testing.T) {
		t.Parallel()
		path := writeCatalog(t, `
plans:
  basico:
    price_id_monthly: pri_same
    limits: {citas: 10}
  premium:
    price_id_monthly: pri_same
    limits: {citas: -1}
`)
		_, err := entitlement.NewYAMLSource(path).Load(ctx)
		require.ErrorIs(t, err, entitlement.ErrInvalidPlanConfig)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := entitlement.NewYAMLSource("/nonexistent/plans.yaml").Load(ctx)
		require.ErrorIs(t, err, entitlement.ErrFailedToLoadPlans)
	})
}

func TestStaticSourceIsolation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	plans := entitlement.DefaultPlans()
	src := entitlement.NewStaticSource(plans)

	// Mutating the input after construction must not leak into the source.
	plans[entitlement.TierBasico].Limits[entitlement.ResourceCitas] = 999999

	loaded, err := src.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(100), loaded[entitlement.TierBasico].Limits[entitlement.ResourceCitas])
}
