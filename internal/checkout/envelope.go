package checkout

import (
	"errors"
	"time"
)

// AmountTolerance is the maximum difference, in currency units, under which
// two amounts are considered equal. Larger differences are hard mismatches.
const AmountTolerance = 0.01

// State is the saga state derived from which results an envelope carries.
type State string

const (
	StateIntake        State = "INTAKE"
	StateValidating    State = "VALIDATING"
	StateRejected      State = "REJECTED"
	StateValidated     State = "VALIDATED"
	StatePaying        State = "PAYING"
	StatePaid          State = "PAID"
	StatePaymentFailed State = "PAYMENT_FAILED"
	StateCompensating  State = "COMPENSATING"
	StateCompensated   State = "COMPENSATED"
)

// PaymentStatus enumerates payment outcomes.
type PaymentStatus string

const (
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// RefundStatusRefunded is the single status a refund result carries.
const RefundStatusRefunded = "refunded"

// ShippingAddress is where the order ships. Carried through the envelope
// untouched; the saga never reads it.
type ShippingAddress struct {
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

// Item is one line of an order. Price is the unit price the caller claims;
// nil when the caller did not claim one.
type Item struct {
	ProductID string   `json:"productId"`
	Quantity  int      `json:"quantity"`
	Price     *float64 `json:"price,omitempty"`
}

// ValidationResult is appended exactly once by the validator.
type ValidationResult struct {
	IsValid     bool      `json:"isValid"`
	Errors      []string  `json:"errors"`
	ValidatedAt time.Time `json:"validatedAt"`
}

// PaymentResult is appended exactly once by the payment processor.
type PaymentResult struct {
	Status        PaymentStatus `json:"status"`
	TransactionID string        `json:"transactionId"`
	ProcessedAt   time.Time     `json:"processedAt"`
	Provider      string        `json:"provider,omitempty"`
	Message       string        `json:"message,omitempty"`
	Amount        float64       `json:"amount"`
	Currency      string        `json:"currency"`
	FailureReason string        `json:"failureReason,omitempty"`
}

// RefundResult is appended only when compensation runs.
type RefundResult struct {
	Status                string    `json:"status"`
	RefundID              string    `json:"refundId"`
	OriginalTransactionID string    `json:"originalTransactionId"`
	RefundedAt            time.Time `json:"refundedAt"`
	Amount                float64   `json:"amount"`
	Message               string    `json:"message,omitempty"`
}

// Envelope is the unit of work threaded through every saga stage. The order
// input fields are immutable after intake; each stage appends its result field
// exactly once via the With* methods.
type Envelope struct {
	OrderID     string   `json:"orderId"`
	UserID      string   `json:"userId"`
	Items       []Item   `json:"items"`
	TotalAmount *float64 `json:"totalAmount"`

	ShippingAddress *ShippingAddress `json:"shippingAddress,omitempty"`
	Status          string           `json:"status,omitempty"`
	CreatedAt       *time.Time       `json:"createdAt,omitempty"`
	UpdatedAt       *time.Time       `json:"updatedAt,omitempty"`

	ValidationResult *ValidationResult `json:"validationResult,omitempty"`
	PaymentResult    *PaymentResult    `json:"paymentResult,omitempty"`
	RefundResult     *RefundResult     `json:"refundResult,omitempty"`
}

var (
	// ErrValidationAlreadySet signals an attempt to overwrite validationResult.
	ErrValidationAlreadySet = errors.New("validationResult already set")
	// ErrPaymentAlreadySet signals an attempt to overwrite paymentResult.
	ErrPaymentAlreadySet = errors.New("paymentResult already set")
	// ErrRefundAlreadySet signals an attempt to overwrite refundResult.
	ErrRefundAlreadySet = errors.New("refundResult already set")
	// ErrOrderNotValidated signals a payment write on an unvalidated envelope.
	ErrOrderNotValidated = errors.New("paymentResult requires a valid validationResult")
	// ErrChargeNotSucceeded signals a refund write without a succeeded charge.
	ErrChargeNotSucceeded = errors.New("refundResult requires a succeeded paymentResult")
)

// WithValidation returns a copy of the envelope carrying the validation
// result. The write happens at most once.
func (e Envelope) WithValidation(res ValidationResult) (Envelope, error) {
	if e.ValidationResult != nil {
		return e, ErrValidationAlreadySet
	}
	e.ValidationResult = &res
	return e, nil
}

// WithPayment returns a copy of the envelope carrying the payment result.
// It refuses the write unless validation passed.
func (e Envelope) WithPayment(res PaymentResult) (Envelope, error) {
	if e.PaymentResult != nil {
		return e, ErrPaymentAlreadySet
	}
	if e.ValidationResult == nil || !e.ValidationResult.IsValid {
		return e, ErrOrderNotValidated
	}
	e.PaymentResult = &res
	return e, nil
}

// WithRefund returns a copy of the envelope carrying the refund result.
// It refuses the write unless the charge succeeded.
func (e Envelope) WithRefund(res RefundResult) (Envelope, error) {
	if e.RefundResult != nil {
		return e, ErrRefundAlreadySet
	}
	if e.PaymentResult == nil || e.PaymentResult.Status != PaymentStatusSucceeded {
		return e, ErrChargeNotSucceeded
	}
	e.RefundResult = &res
	return e, nil
}

// State derives the saga state from the results present on the envelope.
func (e Envelope) State() State {
	switch {
	case e.RefundResult != nil:
		return StateCompensated
	case e.PaymentResult != nil && e.PaymentResult.Status == PaymentStatusSucceeded:
		return StatePaid
	case e.PaymentResult != nil:
		return StatePaymentFailed
	case e.ValidationResult != nil && e.ValidationResult.IsValid:
		return StateValidated
	case e.ValidationResult != nil:
		return StateRejected
	default:
		return StateIntake
	}
}

// AmountsEqual reports whether two amounts agree within AmountTolerance.
func AmountsEqual(a, b float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= AmountTolerance
}
