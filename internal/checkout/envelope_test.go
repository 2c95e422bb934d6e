package checkout

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func validatedEnvelope() Envelope {
	total := 50.0
	env := Envelope{
		OrderID:     "order-1",
		UserID:      "user-1",
		Items:       []Item{{ProductID: "p2", Quantity: 2}},
		TotalAmount: &total,
	}
	env, err := env.WithValidation(ValidationResult{IsValid: true, ValidatedAt: time.Now()})
	if err != nil {
		panic(err)
	}
	return env
}

func TestEnvelope_WithValidation_WriteOnce(t *testing.T) {
	env := Envelope{OrderID: "order-1"}

	env, err := env.WithValidation(ValidationResult{IsValid: true})
	if err != nil {
		t.Fatalf("first write: %v", err)
	}

	_, err = env.WithValidation(ValidationResult{IsValid: false})
	if !errors.Is(err, ErrValidationAlreadySet) {
		t.Fatalf("expected ErrValidationAlreadySet, got %v", err)
	}
	if !env.ValidationResult.IsValid {
		t.Fatalf("rejected write must not change the envelope")
	}
}

func TestEnvelope_WithPayment_RequiresValidOrder(t *testing.T) {
	env := Envelope{OrderID: "order-1"}

	_, err := env.WithPayment(PaymentResult{Status: PaymentStatusSucceeded})
	if !errors.Is(err, ErrOrderNotValidated) {
		t.Fatalf("expected ErrOrderNotValidated, got %v", err)
	}

	env, err = env.WithValidation(ValidationResult{IsValid: false, Errors: []string{"bad"}})
	if err != nil {
		t.Fatalf("WithValidation: %v", err)
	}
	_, err = env.WithPayment(PaymentResult{Status: PaymentStatusSucceeded})
	if !errors.Is(err, ErrOrderNotValidated) {
		t.Fatalf("expected ErrOrderNotValidated on rejected order, got %v", err)
	}
}

func TestEnvelope_WithPayment_WriteOnce(t *testing.T) {
	env := validatedEnvelope()

	env, err := env.WithPayment(PaymentResult{Status: PaymentStatusFailed, FailureReason: "Card declined"})
	if err != nil {
		t.Fatalf("first write: %v", err)
	}

	_, err = env.WithPayment(PaymentResult{Status: PaymentStatusSucceeded})
	if !errors.Is(err, ErrPaymentAlreadySet) {
		t.Fatalf("expected ErrPaymentAlreadySet, got %v", err)
	}
}

func TestEnvelope_WithRefund_RequiresSucceededCharge(t *testing.T) {
	env := validatedEnvelope()

	_, err := env.WithRefund(RefundResult{Status: RefundStatusRefunded})
	if !errors.Is(err, ErrChargeNotSucceeded) {
		t.Fatalf("expected ErrChargeNotSucceeded without payment, got %v", err)
	}

	failed, err := env.WithPayment(PaymentResult{Status: PaymentStatusFailed})
	if err != nil {
		t.Fatalf("WithPayment: %v", err)
	}
	_, err = failed.WithRefund(RefundResult{Status: RefundStatusRefunded})
	if !errors.Is(err, ErrChargeNotSucceeded) {
		t.Fatalf("expected ErrChargeNotSucceeded on failed payment, got %v", err)
	}

	paid, err := env.WithPayment(PaymentResult{Status: PaymentStatusSucceeded, TransactionID: "txn-abc"})
	if err != nil {
		t.Fatalf("WithPayment: %v", err)
	}
	paid, err = paid.WithRefund(RefundResult{Status: RefundStatusRefunded, RefundID: "ref-abc"})
	if err != nil {
		t.Fatalf("WithRefund: %v", err)
	}
	_, err = paid.WithRefund(RefundResult{Status: RefundStatusRefunded})
	if !errors.Is(err, ErrRefundAlreadySet) {
		t.Fatalf("expected ErrRefundAlreadySet, got %v", err)
	}
}

func TestEnvelope_State(t *testing.T) {
	env := Envelope{OrderID: "order-1"}
	if got := env.State(); got != StateIntake {
		t.Fatalf("fresh envelope state = %s", got)
	}

	rejected, _ := env.WithValidation(ValidationResult{IsValid: false, Errors: []string{"bad"}})
	if got := rejected.State(); got != StateRejected {
		t.Fatalf("rejected state = %s", got)
	}

	valid := validatedEnvelope()
	if got := valid.State(); got != StateValidated {
		t.Fatalf("validated state = %s", got)
	}

	paid, _ := valid.WithPayment(PaymentResult{Status: PaymentStatusSucceeded, TransactionID: "txn-abc"})
	if got := paid.State(); got != StatePaid {
		t.Fatalf("paid state = %s", got)
	}

	declined, _ := valid.WithPayment(PaymentResult{Status: PaymentStatusFailed})
	if got := declined.State(); got != StatePaymentFailed {
		t.Fatalf("declined state = %s", got)
	}

	refunded, _ := paid.WithRefund(RefundResult{Status: RefundStatusRefunded})
	if got := refunded.State(); got != StateCompensated {
		t.Fatalf("refunded state = %s", got)
	}
}

func TestEnvelope_JSONKeys(t *testing.T) {
	env := validatedEnvelope()
	env, err := env.WithPayment(PaymentResult{
		Status:        PaymentStatusSucceeded,
		TransactionID: "txn-abc",
		Amount:        50,
		Currency:      "USD",
	})
	if err != nil {
		t.Fatalf("WithPayment: %v", err)
	}
	env, err = env.WithRefund(RefundResult{
		Status:                RefundStatusRefunded,
		RefundID:              "ref-abc",
		OriginalTransactionID: "txn-abc",
		Amount:                50,
	})
	if err != nil {
		t.Fatalf("WithRefund: %v", err)
	}

	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	payload := string(data)

	for _, key := range []string{
		`"orderId"`, `"userId"`, `"items"`, `"totalAmount"`,
		`"validationResult"`, `"paymentResult"`, `"refundResult"`,
		`"isValid"`, `"transactionId"`, `"refundId"`, `"originalTransactionId"`,
	} {
		if !strings.Contains(payload, key) {
			t.Fatalf("marshaled envelope missing %s: %s", key, payload)
		}
	}

	var decoded Envelope
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.PaymentResult == nil || decoded.PaymentResult.TransactionID != "txn-abc" {
		t.Fatalf("round trip lost payment result: %+v", decoded.PaymentResult)
	}
}

func TestAmountsEqual(t *testing.T) {
	if !AmountsEqual(0, 0.01) {
		t.Fatalf("difference at tolerance must be equal")
	}
	if !AmountsEqual(0.01, 0) {
		t.Fatalf("tolerance must be symmetric")
	}
	if !AmountsEqual(2.0, 2.005) {
		t.Fatalf("difference under tolerance must be equal")
	}
	if AmountsEqual(100.00, 100.02) {
		t.Fatalf("difference beyond tolerance must differ")
	}
	if AmountsEqual(59.98, 60.10) {
		t.Fatalf("cent-level mismatch must differ")
	}
}
