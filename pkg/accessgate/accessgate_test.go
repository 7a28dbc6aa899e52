package accessgate_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agendakit/agendakit/pkg/accessgate"
	"github.com/agendakit/agendakit/pkg/entitlement"
	"github.com/agendakit/agendakit/pkg/negocio"
	"github.com/agendakit/agendakit/pkg/subscription"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func stateFunc(state subscription.PaymentState, mensaje string) accessgate.StateFunc {
	return func(_ context.Context, _ *negocio.Negocio) (subscription.StateInfo, error) {
		return subscription.StateInfo{Estado: state, Mensaje: mensaje}, nil
	}
}

func requestWithTenant(path string) *http.Request {
	neg := &negocio.Negocio{
		ID:         uuid.New(),
		Nombre:     "Spa Norte",
		Email:      "spa@example.mx",
		Activo:     true,
		Registrado: time.Now().AddDate(0, -2, 0),
	}
	req := httptest.NewRequest(http.MethodGet, path, nil)
	return req.WithContext(negocio.WithNegocio(req.Context(), neg))
}

func TestMiddlewareBlocksExpired(t *testing.T) {
	t.Parallel()

	mw := accessgate.Middleware(stateFunc(subscription.StateVencido,
		"Tu suscripción ha vencido."))
	rec := httptest.NewRecorder()
	mw(okHandler()).ServeHTTP(rec, requestWithTenant("/citas"))

	require.Equal(t, http.StatusPaymentRequired, rec.Code)

	var body struct {
		Error struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "suscripcion_vencida", body.Error.Code)
	assert.Equal(t, "Tu suscripción ha vencido.", body.Error.Message)
	assert.Equal(t, "vencido", body.Error.Details["estado"])
}

func TestMiddlewareAllowsActiveStates(t *testing.T) {
	t.Parallel()

	for _, state := range []subscription.PaymentState{subscription.StateTrial, subscription.StateActivo} {
		mw := accessgate.Middleware(stateFunc(state, ""))
		rec := httptest.NewRecorder()
		mw(okHandler()).ServeHTTP(rec, requestWithTenant("/citas"))
		assert.Equal(t, http.StatusOK, rec.Code, "state %s must pass", state)
	}
}

func TestMiddlewareExemptPaths(t *testing.T) {
	t.Parallel()

	mw := accessgate.Middleware(stateFunc(subscription.StateVencido, "bloqueado"))

	for _, path := range []string{
		"/auth/login",
		"/public/reservar/spa-norte",
		"/webhooks/billing",
		"/health",
		"/suscripcion/activar",
	} {
		rec := httptest.NewRecorder()
		mw(okHandler()).ServeHTTP(rec, requestWithTenant(path))
		assert.Equal(t, http.StatusOK, rec.Code, "path %s must be exempt", path)
	}
}

func TestMiddlewarePassesWithoutTenant(t *testing.T) {
	t.Parallel()

	called := false
	mw := accessgate.Middleware(func(_ context.Context, _ *negocio.Negocio) (subscription.StateInfo, error) {
		called = true
		return subscription.StateInfo{}, nil
	})

	rec := httptest.NewRecorder()
	mw(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/citas", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, called, "state must not be resolved without a tenant")
}

type featureCheckerFunc func(ctx context.Context, negocioID uuid.UUID, f accessgate.Feature) error

func (fn featureCheckerFunc) CheckFeature(ctx context.Context, negocioID uuid.UUID, f accessgate.Feature) error {
	return fn(ctx, negocioID, f)
}

func TestRequireFeature(t *testing.T) {
	t.Parallel()

	checker := featureCheckerFunc(func(_ context.Context, _ uuid.UUID, f accessgate.Feature) error {
		if f == entitlement.FeatureReportes {
			return nil
		}
		return entitlement.ErrFeatureNotAvailable
	})

	t.Run("allows included feature", func(t *testing.T) {
		t.Parallel()
		mw := accessgate.RequireFeature(checker, entitlement.FeatureReportes)
		rec := httptest.NewRecorder()
		mw(okHandler()).ServeHTTP(rec, requestWithTenant("/reportes"))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("denies missing feature with detail", func(t *testing.T) {
		t.Parallel()
		mw := accessgate.RequireFeature(checker, entitlement.FeatureMultiSucursal)
		rec := httptest.NewRecorder()
		mw(okHandler()).ServeHTTP(rec, requestWithTenant("/sucursales"))

		require.Equal(t, http.StatusForbidden, rec.Code)
		var body struct {
			Error struct {
				Code    string         `json:"code"`
				Details map[string]any `json:"details"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "funcion_no_incluida", body.Error.Code)
		assert.Equal(t, "multi_sucursal", body.Error.Details["funcion"])
	})

	t.Run("expired subscription gets 402", func(t *testing.T) {
		t.Parallel()
		expired := featureCheckerFunc(func(_ context.Context, _ uuid.UUID, _ accessgate.Feature) error {
			return entitlement.ErrSubscriptionRequired
		})
		mw := accessgate.RequireFeature(expired, entitlement.FeatureReportes)
		rec := httptest.NewRecorder()
		mw(okHandler()).ServeHTTP(rec, requestWithTenant("/reportes"))
		assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	})

	t.Run("no tenant in context gets 401", func(t *testing.T) {
		t.Parallel()
		mw := accessgate.RequireFeature(checker, entitlement.FeatureReportes)
		rec := httptest.NewRecorder()
		mw(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reportes", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
