package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/EsraaMosaad/Serverless-E-Commerce-Backend-Platform-AWS/internal/checkout/saga"
)

// ErrOrderRejected matches any RejectionError via errors.Is.
var ErrOrderRejected = errors.New("order validation failed")

// ErrPaymentDeclined matches any PaymentDeclinedError via errors.Is.
var ErrPaymentDeclined = errors.New("payment failed")

// RejectionError is the structured terminal rejection surfaced to the caller
// when validation finds errors. It is a domain outcome, not a fault.
type RejectionError struct {
	OrderID string
	Errors  []string
}

func (e *RejectionError) Error() string {
	return "Order validation failed: " + strings.Join(e.Errors, ", ")
}

func (e *RejectionError) Is(target error) bool { return target == ErrOrderRejected }

// PaymentDeclinedError is the structured terminal failure surfaced when the
// gateway declines the charge. The order was never charged.
type PaymentDeclinedError struct {
	OrderID       string
	TransactionID string
	Reason        string
}

func (e *PaymentDeclinedError) Error() string {
	return "Payment failed: " + e.Reason
}

func (e *PaymentDeclinedError) Is(target error) bool { return target == ErrPaymentDeclined }

// SagaLog persists saga creation, steps, and status transitions. Recording is
// best-effort audit: a log write failure never changes the saga outcome.
type SagaLog interface {
	Start(ctx context.Context, idempotencyKey, orderID, userID string, amount float64) (saga.SagaRecord, bool, error)
	AddStep(ctx context.Context, orderID, step, status, detail string) error
	UpdateStatus(ctx context.Context, orderID string, status saga.SagaStatus) error
}

// Orchestrator drives an envelope through validation and payment, and exposes
// the compensation hook for downstream failures. Stages are idempotent at
// this layer: a stage whose result the envelope already carries is skipped.
type Orchestrator struct {
	validator *Validator
	gateway   Gateway
	sagaLog   SagaLog
	logf      func(format string, args ...any)
}

// NewOrchestrator constructs an Orchestrator. sagaLog may be nil.
func NewOrchestrator(validator *Validator, gateway Gateway, sagaLog SagaLog, logf func(format string, args ...any)) *Orchestrator {
	if logf == nil {
		logf = log.Printf
	}
	return &Orchestrator{
		validator: validator,
		gateway:   gateway,
		sagaLog:   sagaLog,
		logf:      logf,
	}
}

// Process runs the envelope through the pipeline. Domain rejections come back
// as *RejectionError or *PaymentDeclinedError alongside the updated envelope;
// any other error is a hard fault and the envelope is returned unchanged past
// the last completed stage.
func (o *Orchestrator) Process(ctx context.Context, env Envelope) (Envelope, error) {
	if env.RefundResult != nil {
		// Already compensated; terminal.
		return env, nil
	}

	o.start(ctx, env)

	if env.ValidationResult == nil {
		o.step(ctx, env.OrderID, "validate", "started", "")
		res, err := o.validator.Validate(ctx, env)
		if err != nil {
			o.step(ctx, env.OrderID, "validate", "failed", err.Error())
			return env, fmt.Errorf("validate order %s: %w", env.OrderID, err)
		}
		env, err = env.WithValidation(res)
		if err != nil {
			return env, err
		}
		if res.IsValid {
			o.step(ctx, env.OrderID, "validate", "succeeded", "")
		} else {
			o.step(ctx, env.OrderID, "validate", "failed", strings.Join(res.Errors, ", "))
			o.status(ctx, env.OrderID, saga.SagaStatusRejected)
		}
	}

	if !env.ValidationResult.IsValid {
		return env, &RejectionError{OrderID: env.OrderID, Errors: env.ValidationResult.Errors}
	}

	if env.PaymentResult == nil {
		var amount float64
		if env.TotalAmount != nil {
			amount = *env.TotalAmount
		}
		o.step(ctx, env.OrderID, "charge", "started", "")
		res, err := o.gateway.Charge(ctx, env.OrderID, env.UserID, amount)
		if err != nil {
			o.step(ctx, env.OrderID, "charge", "failed", err.Error())
			return env, fmt.Errorf("charge order %s: %w", env.OrderID, err)
		}
		env, err = env.WithPayment(res)
		if err != nil {
			return env, err
		}
		if res.Status == PaymentStatusSucceeded {
			o.step(ctx, env.OrderID, "charge", "succeeded", res.TransactionID)
			o.status(ctx, env.OrderID, saga.SagaStatusPaid)
		} else {
			// A declined charge is terminal: retrying without an
			// idempotency key risks a double charge.
			o.step(ctx, env.OrderID, "charge", "failed", res.FailureReason)
			o.status(ctx, env.OrderID, saga.SagaStatusPaymentFailed)
		}
	}

	if env.PaymentResult.Status != PaymentStatusSucceeded {
		return env, &PaymentDeclinedError{
			OrderID:       env.OrderID,
			TransactionID: env.PaymentResult.TransactionID,
			Reason:        env.PaymentResult.FailureReason,
		}
	}

	return env, nil
}

// Compensate reverses a successful charge after a downstream stage signals
// failure. It is idempotent: an already-refunded envelope is returned as is.
func (o *Orchestrator) Compensate(ctx context.Context, env Envelope, reason string) (Envelope, error) {
	if env.RefundResult != nil {
		return env, nil
	}
	if env.PaymentResult == nil || env.PaymentResult.Status != PaymentStatusSucceeded {
		return env, ErrChargeNotSucceeded
	}

	o.start(ctx, env)
	o.step(ctx, env.OrderID, "refund", "started", reason)
	res, err := o.gateway.Refund(ctx, env.PaymentResult.TransactionID, env.PaymentResult.Amount)
	if err != nil {
		o.step(ctx, env.OrderID, "refund", "failed", err.Error())
		return env, fmt.Errorf("refund transaction %s: %w", env.PaymentResult.TransactionID, err)
	}
	env, err = env.WithRefund(res)
	if err != nil {
		return env, err
	}
	o.step(ctx, env.OrderID, "refund", "succeeded", res.RefundID)
	o.status(ctx, env.OrderID, saga.SagaStatusRefunded)
	return env, nil
}

// start makes sure the saga row exists before any step references it. The
// order id doubles as the idempotency key, so redelivered envelopes land on
// the same row.
func (o *Orchestrator) start(ctx context.Context, env Envelope) {
	if o.sagaLog == nil {
		return
	}
	var amount float64
	if env.TotalAmount != nil {
		amount = *env.TotalAmount
	}
	if _, _, err := o.sagaLog.Start(ctx, env.OrderID, env.OrderID, env.UserID, amount); err != nil {
		o.logf("saga start for order %s: %v", env.OrderID, err)
	}
}

func (o *Orchestrator) step(ctx context.Context, orderID, step, status, detail string) {
	if o.sagaLog == nil {
		return
	}
	if err := o.sagaLog.AddStep(ctx, orderID, step, status, detail); err != nil {
		o.logf("saga step %s/%s for order %s: %v", step, status, orderID, err)
	}
}

func (o *Orchestrator) status(ctx context.Context, orderID string, status saga.SagaStatus) {
	if o.sagaLog == nil {
		return
	}
	if err := o.sagaLog.UpdateStatus(ctx, orderID, status); err != nil {
		o.logf("saga status %s for order %s: %v", status, orderID, err)
	}
}
