package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/servilink/service-booking/internal/domain"
)

// HTTPGatewayAdapter talks to the gateway's REST API. All calls carry a
// bounded timeout through the shared http.Client; network errors and 5xx
// responses surface as ErrGatewayUnavailable (retryable), 4xx as permanent
// rejections.
type HTTPGatewayAdapter struct {
	baseURL   string
	keyID     string
	keySecret string
	client    *http.Client
	logger    *zap.Logger
}

// NewHTTPGatewayAdapter creates a gateway adapter against baseURL,
// authenticating with the key id/secret pair. The secret also keys callback
// signature verification.
func NewHTTPGatewayAdapter(baseURL, keyID, keySecret string, timeout time.Duration, logger *zap.Logger) *HTTPGatewayAdapter {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPGatewayAdapter{
		baseURL:   baseURL,
		keyID:     keyID,
		keySecret: keySecret,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

type orderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type orderResponse struct {
	ID string `json:"id"`
}

type refundRequest struct {
	Amount int64             `json:"amount"`
	Notes  map[string]string `json:"notes,omitempty"`
}

type refundResponse struct {
	ID string `json:"id"`
}

type gatewayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateOrder registers an order with the gateway.
func (g *HTTPGatewayAdapter) CreateOrder(ctx context.Context, amountMinorUnits int64, currency, receiptRef string) (string, error) {
	body, err := g.post(ctx, "/v1/orders", orderRequest{
		Amount:   amountMinorUnits,
		Currency: currency,
		Receipt:  receiptRef,
	}, "create order")
	if err != nil {
		return "", err
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", domain.NewGatewayUnavailableError("create order", err)
	}

	g.logger.Info("gateway order created",
		zap.String("gateway_order_id", resp.ID),
		zap.Int64("amount_minor_units", amountMinorUnits),
	)
	return resp.ID, nil
}

// VerifySignature checks the callback signature locally against the key secret.
func (g *HTTPGatewayAdapter) VerifySignature(orderID, paymentID, providedSignature string) bool {
	return verify(orderID, paymentID, providedSignature, g.keySecret)
}

// Refund issues a full refund for a captured gateway payment.
func (g *HTTPGatewayAdapter) Refund(ctx context.Context, gatewayPaymentID string, amountMinorUnits int64, reason string) (string, error) {
	path := fmt.Sprintf("/v1/payments/%s/refund", gatewayPaymentID)
	req := refundRequest{Amount: amountMinorUnits}
	if reason != "" {
		req.Notes = map[string]string{"reason": reason}
	}

	body, err := g.post(ctx, path, req, "refund")
	if err != nil {
		// Refund-specific 4xx denials get the refund sentinel.
		if derr, ok := err.(*domain.DomainError); ok && derr.Err == domain.ErrGatewayRejected {
			return "", domain.NewRefundRejectedError(derr.Message)
		}
		return "", err
	}

	var resp refundResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", domain.NewGatewayUnavailableError("refund", err)
	}

	g.logger.Info("gateway refund created",
		zap.String("gateway_payment_id", gatewayPaymentID),
		zap.String("refund_id", resp.ID),
	)
	return resp.ID, nil
}

// post sends an authenticated JSON request and classifies the response.
func (g *HTTPGatewayAdapter) post(ctx context.Context, path string, payload any, op string) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, domain.NewGatewayUnavailableError(op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, domain.NewGatewayUnavailableError(op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(g.keyID, g.keySecret)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, domain.NewGatewayUnavailableError(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewGatewayUnavailableError(op, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode >= 500:
		return nil, domain.NewGatewayUnavailableError(op, fmt.Errorf("gateway returned %d", resp.StatusCode))
	default:
		var ge gatewayError
		detail := fmt.Sprintf("status %d", resp.StatusCode)
		if json.Unmarshal(body, &ge) == nil && ge.Error.Description != "" {
			detail = ge.Error.Description
		}
		return nil, domain.NewGatewayRejectedError(op, detail)
	}
}
