package checkout

import (
	"context"
	"log"
)

// Ledger records charges and refunds for reconciliation.
type Ledger interface {
	RecordCharge(ctx context.Context, transactionID, orderID string, amount float64) error
	RecordRefund(ctx context.Context, refundID, transactionID string, amount float64) error
}

// LedgerGateway wraps a Gateway and records every settled charge and refund.
// Ledger writes are audit trail, not control flow: a write failure is logged
// and the gateway outcome stands.
type LedgerGateway struct {
	base   Gateway
	ledger Ledger
	logf   func(format string, args ...any)
}

// NewLedgerGateway constructs a ledger-recording gateway.
func NewLedgerGateway(base Gateway, ledger Ledger, logf func(format string, args ...any)) *LedgerGateway {
	if logf == nil {
		logf = log.Printf
	}
	return &LedgerGateway{
		base:   base,
		ledger: ledger,
		logf:   logf,
	}
}

func (g *LedgerGateway) Charge(ctx context.Context, orderID, userID string, amount float64) (PaymentResult, error) {
	res, err := g.base.Charge(ctx, orderID, userID, amount)
	if err != nil {
		return res, err
	}
	if res.Status == PaymentStatusSucceeded {
		if recErr := g.ledger.RecordCharge(ctx, res.TransactionID, orderID, amount); recErr != nil {
			g.logf("ledger charge %s for order %s: %v", res.TransactionID, orderID, recErr)
		}
	}
	return res, nil
}

func (g *LedgerGateway) Refund(ctx context.Context, transactionID string, amount float64) (RefundResult, error) {
	res, err := g.base.Refund(ctx, transactionID, amount)
	if err != nil {
		return res, err
	}
	if recErr := g.ledger.RecordRefund(ctx, res.RefundID, transactionID, amount); recErr != nil {
		g.logf("ledger refund %s for transaction %s: %v", res.RefundID, transactionID, recErr)
	}
	return res, nil
}
