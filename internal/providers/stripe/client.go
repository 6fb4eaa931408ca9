// Package stripe is a thin client for the payment processor's HTTP API:
// checkout sessions, subscriptions, refunds and webhook signature checks.
package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/oakline/storefront/internal/config"
)

var (
	ErrNotConfigured    = errors.New("stripe_not_configured")
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrRequestFailed    = errors.New("stripe_request_failed")
)

type Client struct {
	apiKey        string
	webhookSecret string
	baseURL       string
	client        *http.Client
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		apiKey:        strings.TrimSpace(cfg.StripeAPIKey),
		webhookSecret: strings.TrimSpace(cfg.StripeWebhookSecret),
		baseURL:       "https://api.stripe.com",
		client:        &http.Client{Timeout: 12 * time.Second},
	}
}

// NewClientForTest points the client at a stub server.
func NewClientForTest(baseURL, apiKey, webhookSecret string) *Client {
	return &Client{
		apiKey:        apiKey,
		webhookSecret: webhookSecret,
		baseURL:       strings.TrimRight(baseURL, "/"),
		client:        &http.Client{Timeout: 5 * time.Second},
	}
}

// VerifySignature validates the processor's t=...,v1=... HMAC-SHA256 header
// against the raw request body.
func (c *Client) VerifySignature(payload []byte, sigHeader string) error {
	if c.webhookSecret == "" {
		return ErrNotConfigured
	}
	sigHeader = strings.TrimSpace(sigHeader)
	if sigHeader == "" {
		return ErrInvalidSignature
	}

	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return ErrInvalidSignature
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}

	return ErrInvalidSignature
}

func parseSignatureHeader(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			timestamp = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, ErrInvalidSignature
	}
	return timestamp, signatures, nil
}

type CheckoutSessionParams struct {
	Mode        string // "payment" or "subscription"
	AmountMinor int64
	Currency    string
	ProductName string
	Interval    string // "month" or "year", subscription mode only
	SuccessURL  string
	CancelURL   string
	Metadata    map[string]string
}

type CheckoutSession struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentIntent string `json:"payment_intent"`
	Subscription  string `json:"subscription"`
}

func (c *Client) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (CheckoutSession, error) {
	values := url.Values{}
	values.Set("mode", params.Mode)
	values.Set("success_url", params.SuccessURL)
	values.Set("cancel_url", params.CancelURL)
	values.Set("line_items[0][quantity]", "1")
	values.Set("line_items[0][price_data][currency]", strings.ToLower(params.Currency))
	values.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(params.AmountMinor, 10))
	values.Set("line_items[0][price_data][product_data][name]", params.ProductName)
	if params.Mode == "subscription" {
		values.Set("line_items[0][price_data][recurring][interval]", params.Interval)
		values.Set("line_items[0][price_data][recurring][interval_count]", "1")
	}
	for key, value := range params.Metadata {
		values.Set("metadata["+key+"]", value)
	}

	var session CheckoutSession
	idempotencyKey := params.Metadata["purchase_id"]
	if err := c.doRequest(ctx, http.MethodPost, "/v1/checkout/sessions", values, idempotencyKey, &session); err != nil {
		return CheckoutSession{}, err
	}
	if session.ID == "" || session.URL == "" {
		return CheckoutSession{}, ErrRequestFailed
	}
	return session, nil
}

type Subscription struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
	CurrentPeriodEnd  int64  `json:"current_period_end"`
	LatestInvoice     string `json:"latest_invoice"`
}

func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (Subscription, error) {
	var sub Subscription
	if err := c.doRequest(ctx, http.MethodGet, "/v1/subscriptions/"+url.PathEscape(subscriptionID), nil, "", &sub); err != nil {
		return Subscription{}, err
	}
	if sub.ID == "" {
		return Subscription{}, ErrRequestFailed
	}
	return sub, nil
}

// CancelSubscription ends the subscription immediately. The softer
// cancel-at-period-end path is SetCancelAtPeriodEnd.
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) error {
	var sub Subscription
	return c.doRequest(ctx, http.MethodDelete, "/v1/subscriptions/"+url.PathEscape(subscriptionID), nil, "", &sub)
}

func (c *Client) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) error {
	values := url.Values{}
	values.Set("cancel_at_period_end", strconv.FormatBool(cancel))
	var sub Subscription
	return c.doRequest(ctx, http.MethodPost, "/v1/subscriptions/"+url.PathEscape(subscriptionID), values, "", &sub)
}

type Invoice struct {
	ID            string `json:"id"`
	PaymentIntent string `json:"payment_intent"`
}

func (c *Client) GetInvoice(ctx context.Context, invoiceID string) (Invoice, error) {
	var invoice Invoice
	if err := c.doRequest(ctx, http.MethodGet, "/v1/invoices/"+url.PathEscape(invoiceID), nil, "", &invoice); err != nil {
		return Invoice{}, err
	}
	if invoice.ID == "" {
		return Invoice{}, ErrRequestFailed
	}
	return invoice, nil
}

type Refund struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (c *Client) RefundPaymentIntent(ctx context.Context, paymentIntentID string, idempotencyKey string) (Refund, error) {
	values := url.Values{}
	values.Set("payment_intent", paymentIntentID)

	var refund Refund
	if err := c.doRequest(ctx, http.MethodPost, "/v1/refunds", values, idempotencyKey, &refund); err != nil {
		return Refund{}, err
	}
	if refund.ID == "" {
		return Refund{}, ErrRequestFailed
	}
	return refund, nil
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) doRequest(ctx context.Context, method, path string, values url.Values, idempotencyKey string, out any) error {
	if c.apiKey == "" {
		return ErrNotConfigured
	}

	var bodyReader *strings.Reader
	if values != nil {
		bodyReader = strings.NewReader(values.Encode())
	} else {
		bodyReader = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if values != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
			return ErrRequestFailed
		}
		message := strings.TrimSpace(apiErr.Error.Message)
		if message == "" {
			return ErrRequestFailed
		}
		return fmt.Errorf("%w: %s", ErrRequestFailed, message)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
