package checkout

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// Gateway charges and refunds payments. Charge is treated as a trust-boundary
// crossing: a declined charge comes back as a failed PaymentResult with a nil
// error, while the error return is reserved for hard faults. Callers must not
// blindly retry Charge; without an idempotency key a retry risks a double
// charge.
type Gateway interface {
	Charge(ctx context.Context, orderID, userID string, amount float64) (PaymentResult, error)
	Refund(ctx context.Context, transactionID string, amount float64) (RefundResult, error)
}

// Outcome is a gateway decision for a single charge attempt.
type Outcome struct {
	Approved bool
	Reason   string
}

// OutcomeDecider decides whether a charge is approved. A real gateway
// integration replaces this without touching the orchestrator.
type OutcomeDecider interface {
	Decide(orderID string, amount float64) Outcome
}

var paymentFailureReasons = []string{
	"Insufficient funds",
	"Card declined",
	"Payment gateway timeout",
	"Invalid card details",
	"Bank authorization failed",
}

// RandomDecider approves charges with a fixed probability and picks decline
// reasons from the gateway's enumerated set.
type RandomDecider struct {
	mu          sync.Mutex
	successRate float64
	rng         *rand.Rand
}

// NewRandomDecider constructs a decider approving with the given probability.
func NewRandomDecider(successRate float64) *RandomDecider {
	return &RandomDecider{
		successRate: successRate,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (d *RandomDecider) Decide(orderID string, amount float64) Outcome {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rng.Float64() < d.successRate {
		return Outcome{Approved: true}
	}
	return Outcome{Reason: paymentFailureReasons[d.rng.Intn(len(paymentFailureReasons))]}
}

// TransactionID derives a charge id from the order, user, and a
// millisecond-resolution timestamp. Two calls for the same order at different
// instants never collide.
func TransactionID(orderID, userID string, at time.Time) string {
	data := fmt.Sprintf("%s-%s-%d", orderID, userID, at.UnixMilli())
	sum := sha256.Sum256([]byte(data))
	return "txn-" + hex.EncodeToString(sum[:])[:16]
}

// RefundID derives the refund id for a charge: same suffix, different tag, so
// a refund is traceable to its charge without a lookup.
func RefundID(transactionID string) string {
	return "ref-" + strings.TrimPrefix(transactionID, "txn-")
}

const mockProvider = "mock-payment-gateway"

// MockGatewayConfig configures the mock gateway.
type MockGatewayConfig struct {
	Decider       OutcomeDecider
	Currency      string
	ChargeLatency time.Duration
	RefundLatency time.Duration
	Now           func() time.Time
	Sleep         func(context.Context, time.Duration) error
}

// MockGateway simulates an external payment gateway: realistic latency,
// hashed transaction ids, and probabilistic declines.
type MockGateway struct {
	decider       OutcomeDecider
	currency      string
	chargeLatency time.Duration
	refundLatency time.Duration
	now           func() time.Time
	sleep         func(context.Context, time.Duration) error
}

// NewMockGateway constructs a mock gateway with gateway-like defaults:
// 90% approval, USD, 200ms charges, 100ms refunds.
func NewMockGateway(cfg MockGatewayConfig) *MockGateway {
	decider := cfg.Decider
	if decider == nil {
		decider = NewRandomDecider(0.90)
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "USD"
	}
	chargeLatency := cfg.ChargeLatency
	if chargeLatency <= 0 {
		chargeLatency = 200 * time.Millisecond
	}
	refundLatency := cfg.RefundLatency
	if refundLatency <= 0 {
		refundLatency = 100 * time.Millisecond
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepWithContext
	}
	return &MockGateway{
		decider:       decider,
		currency:      currency,
		chargeLatency: chargeLatency,
		refundLatency: refundLatency,
		now:           now,
		sleep:         sleep,
	}
}

func (g *MockGateway) Charge(ctx context.Context, orderID, userID string, amount float64) (PaymentResult, error) {
	if err := g.sleep(ctx, g.chargeLatency); err != nil {
		return PaymentResult{}, err
	}

	transactionID := TransactionID(orderID, userID, g.now())
	processedAt := g.now().UTC()

	outcome := g.decider.Decide(orderID, amount)
	if outcome.Approved {
		return PaymentResult{
			Status:        PaymentStatusSucceeded,
			TransactionID: transactionID,
			ProcessedAt:   processedAt,
			Provider:      mockProvider,
			Message:       fmt.Sprintf("Payment of $%.2f processed successfully", amount),
			Amount:        amount,
			Currency:      g.currency,
		}, nil
	}

	return PaymentResult{
		Status:        PaymentStatusFailed,
		TransactionID: transactionID,
		ProcessedAt:   processedAt,
		Provider:      mockProvider,
		Message:       "Payment failed: " + outcome.Reason,
		Amount:        amount,
		Currency:      g.currency,
		FailureReason: outcome.Reason,
	}, nil
}

// Refund reverses a prior charge. The mock never declines, but the signature
// stays fallible so the orchestrator cannot assume compensation is infallible.
func (g *MockGateway) Refund(ctx context.Context, transactionID string, amount float64) (RefundResult, error) {
	if err := g.sleep(ctx, g.refundLatency); err != nil {
		return RefundResult{}, err
	}

	return RefundResult{
		Status:                RefundStatusRefunded,
		RefundID:              RefundID(transactionID),
		OriginalTransactionID: transactionID,
		RefundedAt:            g.now().UTC(),
		Amount:                amount,
		Message:               "Payment refunded successfully",
	}, nil
}
