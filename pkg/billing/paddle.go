package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
)

// Config holds configuration for the Paddle billing gateway.
type Config struct {
	APIKey        string        `env:"PADDLE_API_KEY,required"`
	WebhookSecret string        `env:"PADDLE_WEBHOOK_SECRET,required"`
	Environment   string        `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
	BaseURL       string        `env:"PADDLE_API_URL" envDefault:"https://api.paddle.com"`
	Timeout       time.Duration `env:"PADDLE_TIMEOUT" envDefault:"15s"`
	MaxAttempts   int           `env:"PADDLE_MAX_ATTEMPTS" envDefault:"3"`
}

// PaddleGateway implements Provider against Paddle. Hosted checkout and
// webhook verification go through the official SDK; the subscription and
// invoice resources are driven through the REST API directly.
type PaddleGateway struct {
	sdk      *paddle.SDK
	verifier *paddle.WebhookVerifier
	http     *http.Client
	baseURL  string
	apiKey   string
	retry    retryPolicy
}

// NewPaddleGateway creates a new Paddle billing gateway.
func NewPaddleGateway(cfg Config) (*PaddleGateway, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.WebhookSecret == "" {
		return nil, ErrMissingWebhookSecret
	}

	var sdk *paddle.SDK
	var err error
	switch strings.ToLower(cfg.Environment) {
	case "sandbox":
		sdk, err = paddle.NewSandbox(cfg.APIKey)
	case "production", "":
		sdk, err = paddle.New(cfg.APIKey)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidEnvironment, cfg.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle client: %w", err)
	}

	policy := defaultRetryPolicy()
	if cfg.Timeout > 0 {
		policy.timeout = cfg.Timeout
	}
	if cfg.MaxAttempts > 0 {
		policy.maxAttempts = cfg.MaxAttempts
	}

	return &PaddleGateway{
		sdk:      sdk,
		verifier: paddle.NewWebhookVerifier(cfg.WebhookSecret),
		http: &http.Client{
			Timeout: policy.timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		retry:   policy,
	}, nil
}

// wire shapes for the REST resources.

type wireSubscription struct {
	ID                 string     `json:"id"`
	CustomerID         string     `json:"customer_id"`
	PriceID            string     `json:"price_id"`
	Status             string     `json:"status"`
	BillingInterval    string     `json:"billing_interval"`
	CurrentPeriodStart *time.Time `json:"current_period_start"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end"`
	CanceledAt         *time.Time `json:"canceled_at"`
	EndedAt            *time.Time `json:"ended_at"`
	TrialStart         *time.Time `json:"trial_start"`
	TrialEnd           *time.Time `json:"trial_end"`
	LatestInvoiceID    string     `json:"latest_invoice_id"`
	PaymentMethodID    string     `json:"default_payment_method_id"`
}

func (w wireSubscription) snapshot() *SubscriptionSnapshot {
	return &SubscriptionSnapshot{
		ID:                 w.ID,
		CustomerID:         w.CustomerID,
		PriceID:            w.PriceID,
		Status:             w.Status,
		Interval:           w.BillingInterval,
		CurrentPeriodStart: w.CurrentPeriodStart,
		CurrentPeriodEnd:   w.CurrentPeriodEnd,
		CancelAtPeriodEnd:  w.CancelAtPeriodEnd,
		CanceledAt:         w.CanceledAt,
		EndedAt:            w.EndedAt,
		TrialStart:         w.TrialStart,
		TrialEnd:           w.TrialEnd,
		LatestInvoiceID:    w.LatestInvoiceID,
		PaymentMethodID:    w.PaymentMethodID,
	}
}

type wireInvoice struct {
	ID             string     `json:"id"`
	SubscriptionID string     `json:"subscription_id"`
	CustomerID     string     `json:"customer_id"`
	Status         string     `json:"status"`
	AmountDue      int64      `json:"amount_due"`
	Currency       string     `json:"currency"`
	PaidAt         *time.Time `json:"paid_at"`
	CreatedAt      time.Time  `json:"created_at"`
	HostedURL      string     `json:"hosted_url"`
}

func (w wireInvoice) invoice() Invoice {
	return Invoice{
		ID:             w.ID,
		SubscriptionID: w.SubscriptionID,
		CustomerID:     w.CustomerID,
		Status:         w.Status,
		AmountDue:      w.AmountDue,
		Currency:       w.Currency,
		PaidAt:         w.PaidAt,
		CreatedAt:      w.CreatedAt,
		HostedURL:      w.HostedURL,
	}
}

type wireError struct {
	Error struct {
		Code   string `json:"code"`
		Detail string `json:"detail"`
	} `json:"error"`
}

// doJSON performs one authenticated REST call under the retry policy.
// The idempotency key, when set, is identical across retry attempts.
func (p *PaddleGateway) doJSON(ctx context.Context, method, path, idempotencyKey string, reqBody, respBody any) error {
	var payload []byte
	if reqBody != nil {
		var err error
		payload, err = json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	return p.retry.do(ctx, func(ctx context.Context) error {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
		if err != nil {
			return &BillingError{Code: "request_error", Message: err.Error()}
		}
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
		req.Header.Set("Content-Type", "application/json")
		if idempotencyKey != "" {
			req.Header.Set("Idempotency-Key", idempotencyKey)
		}

		resp, err := p.http.Do(req)
		if err != nil {
			return &BillingError{Code: "network_error", Message: err.Error(), Transient: true}
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return &BillingError{Code: "read_error", Message: err.Error(), Transient: true}
		}

		if resp.StatusCode >= 400 {
			return classifyResponse(resp.StatusCode, raw)
		}

		if respBody != nil {
			var envelope struct {
				Data json.RawMessage `json:"data"`
			}
			if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Data == nil {
				// Some endpoints return the resource unwrapped.
				envelope.Data = raw
			}
			if err := json.Unmarshal(envelope.Data, respBody); err != nil {
				return &BillingError{Code: "decode_error", Message: err.Error()}
			}
		}
		return nil
	})
}

// classifyResponse maps a provider HTTP failure onto the error taxonomy.
func classifyResponse(status int, raw []byte) error {
	var we wireError
	_ = json.Unmarshal(raw, &we)

	be := &BillingError{
		Code:      we.Error.Code,
		Message:   we.Error.Detail,
		Transient: status >= 500,
	}
	if be.Code == "" {
		be.Code = fmt.Sprintf("http_%d", status)
	}
	if be.Message == "" {
		be.Message = http.StatusText(status)
	}

	switch {
	case status == http.StatusNotFound:
		return errors.Join(ErrNotFound, be)
	case we.Error.Code == "subscription_ended" || status == http.StatusGone:
		return errors.Join(ErrAlreadyExpired, be)
	default:
		return be
	}
}

func (p *PaddleGateway) CreateCustomer(ctx context.Context, email, name string) (*CustomerRef, error) {
	if email == "" {
		return nil, &BillingError{Code: "invalid_request", Message: "customer email is required"}
	}

	var out struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	req := map[string]string{"email": email, "name": name}
	if err := p.doJSON(ctx, http.MethodPost, "/customers", newIdempotencyKey(), req, &out); err != nil {
		return nil, err
	}
	return &CustomerRef{ID: out.ID, Email: out.Email, Name: out.Name}, nil
}

func (p *PaddleGateway) CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*SubscriptionSnapshot, error) {
	if params.CustomerID == "" || params.PriceID == "" {
		return nil, &BillingError{Code: "invalid_request", Message: "customer id and price id are required"}
	}

	req := map[string]any{
		"customer_id": params.CustomerID,
		"price_id":    params.PriceID,
	}
	if params.PaymentMethodID != "" {
		req["default_payment_method_id"] = params.PaymentMethodID
	}
	if params.TrialEndAt != nil {
		req["trial_end"] = params.TrialEndAt.UTC().Format(time.RFC3339)
	} else if params.TrialDays > 0 {
		req["trial_days"] = params.TrialDays
	}

	var out wireSubscription
	if err := p.doJSON(ctx, http.MethodPost, "/subscriptions", newIdempotencyKey(), req, &out); err != nil {
		return nil, err
	}
	return out.snapshot(), nil
}

func (p *PaddleGateway) UpdateSubscription(ctx context.Context, subscriptionID string, params UpdateSubscriptionParams) (*SubscriptionSnapshot, error) {
	req := map[string]any{}
	if params.PriceID != nil {
		req["price_id"] = *params.PriceID
	}
	if params.PaymentMethodID != nil {
		req["default_payment_method_id"] = *params.PaymentMethodID
	}
	if params.CancelAtPeriodEnd != nil {
		req["cancel_at_period_end"] = *params.CancelAtPeriodEnd
	}
	if len(req) == 0 {
		return p.GetSubscription(ctx, subscriptionID)
	}

	var out wireSubscription
	if err := p.doJSON(ctx, http.MethodPatch, "/subscriptions/"+subscriptionID, newIdempotencyKey(), req, &out); err != nil {
		return nil, err
	}
	return out.snapshot(), nil
}

func (p *PaddleGateway) CancelSubscription(ctx context.Context, subscriptionID string, immediate bool) (*SubscriptionSnapshot, error) {
	effective := "next_billing_period"
	if immediate {
		effective = "immediately"
	}
	req := map[string]string{"effective_from": effective}

	var out wireSubscription
	if err := p.doJSON(ctx, http.MethodPost, "/subscriptions/"+subscriptionID+"/cancel", newIdempotencyKey(), req, &out); err != nil {
		return nil, err
	}
	return out.snapshot(), nil
}

func (p *PaddleGateway) ReactivateSubscription(ctx context.Context, subscriptionID string) (*SubscriptionSnapshot, error) {
	var out wireSubscription
	if err := p.doJSON(ctx, http.MethodPost, "/subscriptions/"+subscriptionID+"/activate", newIdempotencyKey(), nil, &out); err != nil {
		return nil, err
	}
	return out.snapshot(), nil
}

func (p *PaddleGateway) GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionSnapshot, error) {
	var out wireSubscription
	if err := p.doJSON(ctx, http.MethodGet, "/subscriptions/"+subscriptionID, "", nil, &out); err != nil {
		return nil, err
	}
	return out.snapshot(), nil
}

func (p *PaddleGateway) GetInvoice(ctx context.Context, invoiceID string) (*Invoice, error) {
	var out wireInvoice
	if err := p.doJSON(ctx, http.MethodGet, "/invoices/"+invoiceID, "", nil, &out); err != nil {
		return nil, err
	}
	inv := out.invoice()
	return &inv, nil
}

func (p *PaddleGateway) GetUpcomingInvoice(ctx context.Context, subscriptionID string) (*Invoice, error) {
	var out wireInvoice
	if err := p.doJSON(ctx, http.MethodGet, "/subscriptions/"+subscriptionID+"/upcoming-invoice", "", nil, &out); err != nil {
		return nil, err
	}
	inv := out.invoice()
	return &inv, nil
}

func (p *PaddleGateway) ListCustomerInvoices(ctx context.Context, customerID string) ([]Invoice, error) {
	var out []wireInvoice
	if err := p.doJSON(ctx, http.MethodGet, "/invoices?customer_id="+customerID, "", nil, &out); err != nil {
		return nil, err
	}
	invoices := make([]Invoice, 0, len(out))
	for _, w := range out {
		invoices = append(invoices, w.invoice())
	}
	return invoices, nil
}

// CreateCheckoutLink creates a hosted checkout session in Paddle.
func (p *PaddleGateway) CreateCheckoutLink(ctx context.Context, params CheckoutParams) (*CheckoutLink, error) {
	if params.PriceID == "" {
		return nil, &BillingError{Code: "invalid_request", Message: "price id is required"}
	}
	if params.CustomerID == "" {
		return nil, &BillingError{Code: "invalid_request", Message: "customer id is required"}
	}

	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  params.PriceID,
		Quantity: 1,
	})

	transactionReq := &paddle.CreateTransactionRequest{
		Items: []paddle.CreateTransactionItems{*item},
		CustomData: paddle.CustomData{
			"customer_id": params.CustomerID,
		},
	}
	if params.Email != "" {
		transactionReq.CustomData["email"] = params.Email
	}
	if params.SuccessURL != "" {
		transactionReq.Checkout = &paddle.TransactionCheckout{
			URL: paddle.PtrTo(params.SuccessURL),
		}
	}

	transaction, err := p.sdk.TransactionsClient.CreateTransaction(ctx, transactionReq)
	if err != nil {
		return nil, &BillingError{Code: "checkout_error", Message: err.Error()}
	}

	if transaction.Checkout == nil || transaction.Checkout.URL == nil {
		return nil, &BillingError{Code: "checkout_error", Message: "no checkout URL returned"}
	}

	return &CheckoutLink{
		URL:       *transaction.Checkout.URL,
		SessionID: transaction.ID,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}, nil
}

// GetCustomerPortalLink returns a link to Paddle's customer portal.
func (p *PaddleGateway) GetCustomerPortalLink(ctx context.Context, customerID, subscriptionID string) (*PortalLink, error) {
	if customerID == "" {
		return nil, &BillingError{Code: "invalid_request", Message: "customer id is required"}
	}

	req := &paddle.CreateCustomerPortalSessionRequest{
		CustomerID: customerID,
	}
	if subscriptionID != "" {
		req.SubscriptionIDs = []string{subscriptionID}
	}

	session, err := p.sdk.CustomerPortalSessionsClient.CreateCustomerPortalSession(ctx, req)
	if err != nil {
		return nil, &BillingError{Code: "portal_error", Message: err.Error()}
	}

	if session.URLs.General.Overview == "" {
		return nil, &BillingError{Code: "portal_error", Message: "no portal URL returned"}
	}

	return &PortalLink{
		URL:       session.URLs.General.Overview,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}, nil
}

// VerifyAndParseWebhook validates the Paddle signature over the raw body and
// normalizes the payload. Invalid signatures are rejected before any field
// of the payload is trusted.
func (p *PaddleGateway) VerifyAndParseWebhook(ctx context.Context, payload []byte, signature string) (*Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request for verification: %w", err)
	}
	req.Header.Set("Paddle-Signature", signature)

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return nil, errors.Join(ErrSignatureInvalid, err)
	}
	if !valid {
		return nil, ErrSignatureInvalid
	}

	return parseEventPayload(payload)
}
