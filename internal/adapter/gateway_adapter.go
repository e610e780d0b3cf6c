package adapter

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// GatewayAdapter is the Anti-Corruption Layer interface for the external
// payment gateway. It decouples the domain from the gateway's wire API.
type GatewayAdapter interface {
	// CreateOrder registers a payable order with the gateway and returns its id.
	CreateOrder(ctx context.Context, amountMinorUnits int64, currency, receiptRef string) (gatewayOrderID string, err error)

	// VerifySignature checks that a payment callback genuinely originated
	// from the gateway. Computed locally, no network round-trip.
	VerifySignature(orderID, paymentID, providedSignature string) bool

	// Refund issues a full refund of a captured payment and returns the refund id.
	Refund(ctx context.Context, gatewayPaymentID string, amountMinorUnits int64, reason string) (refundID string, err error)
}

// Sign computes the gateway callback signature: hex HMAC-SHA256 over
// "orderID|paymentID" keyed with the gateway secret.
func Sign(orderID, paymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func verify(orderID, paymentID, providedSignature, secret string) bool {
	if providedSignature == "" || secret == "" {
		return false
	}
	expected := Sign(orderID, paymentID, secret)
	return hmac.Equal([]byte(expected), []byte(providedSignature))
}

// MockGatewayAdapter is a development/testing implementation. It fabricates
// gateway ids and signs with the same secret the verifier uses, so full
// payment flows work without a gateway account.
type MockGatewayAdapter struct {
	secret string
	logger *zap.Logger
}

// NewMockGatewayAdapter creates a mock gateway for development.
func NewMockGatewayAdapter(secret string, logger *zap.Logger) *MockGatewayAdapter {
	return &MockGatewayAdapter{secret: secret, logger: logger}
}

// CreateOrder fabricates a gateway order id.
func (m *MockGatewayAdapter) CreateOrder(ctx context.Context, amountMinorUnits int64, currency, receiptRef string) (string, error) {
	orderID := fmt.Sprintf("order_mock_%d", time.Now().UnixNano())
	m.logger.Info("[MOCK GATEWAY] order created",
		zap.String("gateway_order_id", orderID),
		zap.Int64("amount_minor_units", amountMinorUnits),
		zap.String("currency", currency),
		zap.String("receipt", receiptRef),
	)
	return orderID, nil
}

// VerifySignature verifies against the mock's own secret.
func (m *MockGatewayAdapter) VerifySignature(orderID, paymentID, providedSignature string) bool {
	return verify(orderID, paymentID, providedSignature, m.secret)
}

// Refund fabricates a refund id.
func (m *MockGatewayAdapter) Refund(ctx context.Context, gatewayPaymentID string, amountMinorUnits int64, reason string) (string, error) {
	refundID := fmt.Sprintf("rfnd_mock_%d", time.Now().UnixNano())
	m.logger.Info("[MOCK GATEWAY] refund created",
		zap.String("gateway_payment_id", gatewayPaymentID),
		zap.String("refund_id", refundID),
		zap.Int64("amount_minor_units", amountMinorUnits),
	)
	return refundID, nil
}

// SignatureFor returns a valid callback signature, for tests and local tools.
func (m *MockGatewayAdapter) SignatureFor(orderID, paymentID string) string {
	return Sign(orderID, paymentID, m.secret)
}
