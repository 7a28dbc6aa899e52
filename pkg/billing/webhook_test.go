package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignatureRoundTrip(t *testing.T) {
	t.Parallel()

	secret := "whsec_prueba"
	payload := []byte(`{"event_id":"evt_1"}`)
	sig := SignPayload(secret, payload, time.Now())

	require.NoError(t, VerifySignature(secret, payload, sig, 5*time.Minute))
}

func TestVerifySignatureRejections(t *testing.T) {
	t.Parallel()

	secret := "whsec_prueba"
	payload := []byte(`{"event_id":"evt_1"}`)
	now := time.Now()

	tests := []struct {
		name      string
		secret    string
		payload   []byte
		signature string
		maxAge    time.Duration
	}{
		{
			name:      "tampered payload",
			secret:    secret,
			payload:   []byte(`{"event_id":"evt_2"}`),
			signature: SignPayload(secret, payload, now),
			maxAge:    5 * time.Minute,
		},
		{
			name:      "wrong secret",
			secret:    "whsec_otro",
			payload:   payload,
			signature: SignPayload(secret, payload, now),
			maxAge:    5 * time.Minute,
		},
		{
			name:      "stale timestamp",
			secret:    secret,
			payload:   payload,
			signature: SignPayload(secret, payload, now.Add(-time.Hour)),
			maxAge:    5 * time.Minute,
		},
		{
			name:      "timestamp from the future",
			secret:    secret,
			payload:   payload,
			signature: SignPayload(secret, payload, now.Add(time.Hour)),
			maxAge:    5 * time.Minute,
		},
		{
			name:      "malformed header",
			secret:    secret,
			payload:   payload,
			signature: "ts=abc,h1=",
			maxAge:    5 * time.Minute,
		},
		{
			name:      "empty secret",
			secret:    "",
			payload:   payload,
			signature: SignPayload(secret, payload, now),
			maxAge:    5 * time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := VerifySignature(tt.secret, tt.payload, tt.signature, tt.maxAge)
			require.ErrorIs(t, err, ErrSignatureInvalid)
		})
	}
}

func TestParseEventPayload(t *testing.T) {
	t.Parallel()

	t.Run("transaction event with explicit ids", func(t *testing.T) {
		t.Parallel()
		evt, err := parseEventPayload([]byte(`{
			"event_id": "evt_1",
			"event_type": "transaction.completed",
			"occurred_at": "2026-03-10T12:00:00Z",
			"data": {
				"subscription_id": "sub_1",
				"customer_id": "cus_1",
				"invoice_id": "inv_1",
				"status": "active"
			}
		}`))
		require.NoError(t, err)
		assert.Equal(t, "evt_1", evt.ID)
		assert.Equal(t, EventInvoicePaid, evt.Type)
		assert.Equal(t, "transaction.completed", evt.ProviderEvent)
		assert.Equal(t, "sub_1", evt.SubscriptionID)
		assert.Equal(t, "cus_1", evt.CustomerID)
		assert.Equal(t, "inv_1", evt.InvoiceID)
		assert.Equal(t, "active", evt.Status)
		assert.Equal(t, time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC), evt.OccurredAt)
	})

	t.Run("subscription event falls back to data id", func(t *testing.T) {
		t.Parallel()
		evt, err := parseEventPayload([]byte(`{
			"event_id": "evt_2",
			"event_type": "subscription.canceled",
			"occurred_at": "2026-03-10T12:00:00Z",
			"data": {"id": "sub_9", "status": "canceled"}
		}`))
		require.NoError(t, err)
		assert.Equal(t, EventSubscriptionDeleted, evt.Type)
		assert.Equal(t, "sub_9", evt.SubscriptionID)
	})

	t.Run("invoice event falls back to data id", func(t *testing.T) {
		t.Parallel()
		evt, err := parseEventPayload([]byte(`{
			"event_id": "evt_3",
			"event_type": "invoice.payment_failed",
			"occurred_at": "2026-03-10T12:00:00Z",
			"data": {"id": "inv_7", "subscription_id": "sub_1"}
		}`))
		require.NoError(t, err)
		assert.Equal(t, EventInvoicePaymentFailed, evt.Type)
		assert.Equal(t, "inv_7", evt.InvoiceID)
	})

	t.Run("missing event id is rejected", func(t *testing.T) {
		t.Parallel()
		_, err := parseEventPayload([]byte(`{"event_type": "invoice.paid", "data": {}}`))
		require.Error(t, err)
	})

	t.Run("malformed json is rejected", func(t *testing.T) {
		t.Parallel()
		_, err := parseEventPayload([]byte(`{`))
		require.Error(t, err)
	})
}

func TestMapProviderEventType(t *testing.T) {
	t.Parallel()

	tests := map[string]EventType{
		"invoice.paid":                  EventInvoicePaid,
		"transaction.payment_succeeded": EventInvoicePaid,
		"transaction.payment_failed":    EventInvoicePaymentFailed,
		"subscription.activated":        EventSubscriptionUpdated,
		"customer.subscription.updated": EventSubscriptionUpdated,
		"customer.subscription.deleted": EventSubscriptionDeleted,
		// Unknown events pass through for logging.
		"adjustment.created": EventType("adjustment.created"),
	}
	for providerEvent, want := range tests {
		assert.Equal(t, want, mapProviderEventType(providerEvent), providerEvent)
	}
}
