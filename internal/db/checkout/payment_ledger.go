package checkoutdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrAlreadyCharged signals a transaction id that already has a charge row.
var ErrAlreadyCharged = errors.New("transaction already charged")

// ErrNotCharged signals a transaction id with no recorded charge.
var ErrNotCharged = errors.New("transaction not charged")

// ErrAlreadyRefunded signals a transaction that has already been refunded.
var ErrAlreadyRefunded = errors.New("transaction already refunded")

// PaymentLedger persists charges and refunds in Postgres, keyed by the
// gateway transaction id so refunds reconcile against their charge.
type PaymentLedger struct {
	db *sql.DB
}

// NewPaymentLedger constructs a PaymentLedger backed by Postgres.
func NewPaymentLedger(db *sql.DB) *PaymentLedger {
	return &PaymentLedger{db: db}
}

// NewPaymentLedgerWithSchema initializes the schema then returns the ledger.
func NewPaymentLedgerWithSchema(ctx context.Context, db *sql.DB) (*PaymentLedger, error) {
	ledger := NewPaymentLedger(db)
	if err := ledger.InitSchema(ctx); err != nil {
		return nil, err
	}
	return ledger, nil
}

// InitSchema creates the ledger table if it does not exist.
func (l *PaymentLedger) InitSchema(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS payment_transactions (
			transaction_id TEXT PRIMARY KEY,
			order_id TEXT NOT NULL,
			amount DOUBLE PRECISION NOT NULL,
			charged_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			refund_id TEXT,
			refund_amount DOUBLE PRECISION,
			refunded_at TIMESTAMPTZ
		)
	`)
	return err
}

// RecordCharge inserts a charge row. Transaction ids are unique per charge
// attempt, so a duplicate insert means the same charge was delivered twice.
func (l *PaymentLedger) RecordCharge(ctx context.Context, transactionID, orderID string, amount float64) error {
	if transactionID == "" {
		return fmt.Errorf("transaction id required")
	}

	res, err := l.db.ExecContext(ctx, `
		INSERT INTO payment_transactions (transaction_id, order_id, amount)
		VALUES ($1, $2, $3)
		ON CONFLICT (transaction_id) DO NOTHING`,
		transactionID, orderID, amount,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAlreadyCharged
	}

	return nil
}

// RecordRefund marks a charge refunded. At most one refund per transaction.
func (l *PaymentLedger) RecordRefund(ctx context.Context, refundID, transactionID string, amount float64) error {
	if transactionID == "" {
		return fmt.Errorf("transaction id required")
	}

	res, err := l.db.ExecContext(ctx, `
		UPDATE payment_transactions
		SET refund_id = $2, refund_amount = $3, refunded_at = NOW()
		WHERE transaction_id = $1 AND refunded_at IS NULL`,
		transactionID, refundID, amount,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	var refunded bool
	row := l.db.QueryRowContext(ctx, `SELECT refunded_at IS NOT NULL FROM payment_transactions WHERE transaction_id = $1`, transactionID)
	switch scanErr := row.Scan(&refunded); scanErr {
	case nil:
		if refunded {
			return ErrAlreadyRefunded
		}
		return ErrNotCharged
	case sql.ErrNoRows:
		return ErrNotCharged
	default:
		return scanErr
	}
}
