package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EventType is the normalized billing event type. Provider implementations
// map their specific event names onto these.
type EventType string

const (
	EventInvoicePaid          EventType = "invoice.paid"
	EventInvoicePaymentFailed EventType = "invoice.payment_failed"
	EventSubscriptionUpdated  EventType = "subscription.updated"
	EventSubscriptionDeleted  EventType = "subscription.deleted"
)

// Event is a normalized webhook event. ID is the provider-assigned event id
// used for idempotent application; OccurredAt orders events by origination
// time rather than delivery order.
type Event struct {
	ID             string
	Type           EventType
	ProviderEvent  string // original provider event name
	OccurredAt     time.Time
	SubscriptionID string
	CustomerID     string
	InvoiceID      string
	Status         string // provider subscription status, when present
	Raw            map[string]any
}

// SignPayload creates an HMAC-SHA256 signature bound to a timestamp,
// following the scheme used by the major hosted-billing providers:
// HMAC-SHA256(secret, timestamp + "." + payload), transmitted as
// "ts=<unix>,h1=<hex>".
func SignPayload(secret string, payload []byte, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("ts=%d,h1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

// VerifySignature validates a "ts=...,h1=..." signature header over the raw
// payload. Constant-time comparison; maxAge bounds the replay window.
func VerifySignature(secret string, payload []byte, signature string, maxAge time.Duration) error {
	if secret == "" {
		return errors.Join(ErrSignatureInvalid, errors.New("secret is required"))
	}

	var ts int64
	var h1 string
	for part := range strings.SplitSeq(signature, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "ts":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return errors.Join(ErrSignatureInvalid, errors.New("malformed timestamp"))
			}
			ts = parsed
		case "h1":
			h1 = value
		}
	}
	if ts == 0 || h1 == "" {
		return errors.Join(ErrSignatureInvalid, errors.New("missing signature components"))
	}

	if maxAge > 0 {
		age := time.Since(time.Unix(ts, 0))
		if age > maxAge {
			return errors.Join(ErrSignatureInvalid, fmt.Errorf("signature timestamp too old: %v", age))
		}
		if age < -1*time.Minute {
			return errors.Join(ErrSignatureInvalid, errors.New("signature timestamp is in the future"))
		}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(h1)) {
		return errors.Join(ErrSignatureInvalid, errors.New("signature mismatch"))
	}
	return nil
}

// webhookEnvelope is the wire shape shared by provider webhook payloads.
type webhookEnvelope struct {
	EventID    string         `json:"event_id"`
	EventType  string         `json:"event_type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data"`
}

// parseEventPayload decodes a verified webhook body into a normalized Event.
func parseEventPayload(payload []byte) (*Event, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
	}
	if env.EventID == "" {
		return nil, errors.New("webhook payload missing event_id")
	}

	event := &Event{
		ID:            env.EventID,
		Type:          mapProviderEventType(env.EventType),
		ProviderEvent: env.EventType,
		OccurredAt:    env.OccurredAt,
		Raw:           env.Data,
	}

	if id, ok := env.Data["subscription_id"].(string); ok {
		event.SubscriptionID = id
	} else if strings.HasPrefix(env.EventType, "subscription.") || strings.HasPrefix(env.EventType, "customer.subscription.") {
		if id, ok := env.Data["id"].(string); ok {
			event.SubscriptionID = id
		}
	}
	if id, ok := env.Data["customer_id"].(string); ok {
		event.CustomerID = id
	}
	if id, ok := env.Data["invoice_id"].(string); ok {
		event.InvoiceID = id
	} else if strings.HasPrefix(env.EventType, "invoice.") {
		if id, ok := env.Data["id"].(string); ok {
			event.InvoiceID = id
		}
	}
	if status, ok := env.Data["status"].(string); ok {
		event.Status = status
	}

	return event, nil
}

// mapProviderEventType normalizes provider event names. Unknown events pass
// through unmapped so handlers can log them for manual reconciliation.
func mapProviderEventType(providerEvent string) EventType {
	switch providerEvent {
	case "invoice.paid", "transaction.completed", "transaction.payment_succeeded":
		return EventInvoicePaid
	case "invoice.payment_failed", "transaction.payment_failed":
		return EventInvoicePaymentFailed
	case "subscription.updated", "subscription.activated", "subscription.resumed", "customer.subscription.updated":
		return EventSubscriptionUpdated
	case "subscription.canceled", "customer.subscription.deleted":
		return EventSubscriptionDeleted
	default:
		return EventType(providerEvent)
	}
}
