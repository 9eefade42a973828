package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"seatbook/internal/shared/config"
)

// Gateway is the external card processor
type Gateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (string, error)
	VerifySignature(ctx context.Context, orderID, paymentID, signature string) (bool, error)
	// Refund returns money for a captured payment. Repeating a key repeats nothing.
	Refund(ctx context.Context, paymentID string, amount int64, idempotencyKey string) (string, error)
}

// GatewayError is a non-2xx reply from the gateway
type GatewayError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway returned %d %s: %s", e.StatusCode, e.Code, e.Description)
}

// HTTPGateway talks to a Razorpay-style REST API with basic auth.
// Checkout signatures are HMAC-SHA256 of "order_id|payment_id" keyed by the key secret.
type HTTPGateway struct {
	baseURL   string
	keyID     string
	keySecret string
	client    *http.Client
}

func NewHTTPGateway(cfg config.GatewayConfig) *HTTPGateway {
	return &HTTPGateway{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		client:    &http.Client{Timeout: cfg.Timeout},
	}
}

type orderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt,omitempty"`
}

type refundRequest struct {
	Amount int64 `json:"amount"`
}

type entityResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type errorEnvelope struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (g *HTTPGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (string, error) {
	var order entityResponse
	if err := g.post(ctx, "/orders", "", orderRequest{Amount: amount, Currency: currency, Receipt: receipt}, &order); err != nil {
		return "", fmt.Errorf("failed to create order: %w", err)
	}
	if order.ID == "" {
		return "", errors.New("gateway returned an order without id")
	}
	return order.ID, nil
}

func (g *HTTPGateway) VerifySignature(_ context.Context, orderID, paymentID, signature string) (bool, error) {
	if g.keySecret == "" {
		return false, errors.New("gateway key secret is not configured")
	}
	expected := Sign(g.keySecret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature)), nil
}

func (g *HTTPGateway) Refund(ctx context.Context, paymentID string, amount int64, idempotencyKey string) (string, error) {
	var refund entityResponse
	if err := g.post(ctx, "/payments/"+paymentID+"/refund", idempotencyKey, refundRequest{Amount: amount}, &refund); err != nil {
		return "", fmt.Errorf("failed to refund payment %s: %w", paymentID, err)
	}
	return refund.ID, nil
}

func (g *HTTPGateway) post(ctx context.Context, path, idempotencyKey string, body, dest interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.SetBasicAuth(g.keyID, g.keySecret)
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed after %s: %w", time.Since(start), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		gwErr := &GatewayError{StatusCode: resp.StatusCode}
		var envelope errorEnvelope
		if json.Unmarshal(raw, &envelope) == nil {
			gwErr.Code = envelope.Error.Code
			gwErr.Description = envelope.Error.Description
		}
		return gwErr
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return nil
}

// Sign computes the checkout signature the gateway attaches to a successful payment
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}
