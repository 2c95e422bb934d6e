package intake

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/EsraaMosaad/Serverless-E-Commerce-Backend-Platform-AWS/internal/checkout"
)

// OrderQueue is the queue surface the consumer reads from.
type OrderQueue interface {
	EnsureGroup(ctx context.Context, group string) error
	Receive(ctx context.Context, group, consumer string, count int64, block time.Duration) ([]Message, error)
	Ack(ctx context.Context, group string, ids ...string) error
}

// EnvelopeProcessor runs an envelope through the saga pipeline.
type EnvelopeProcessor interface {
	Process(ctx context.Context, env checkout.Envelope) (checkout.Envelope, error)
}

// ConsumerConfig configures a queue consumer.
type ConsumerConfig struct {
	Group      string
	Name       string
	BatchSize  int64
	Block      time.Duration
	RetryDelay time.Duration
	// OnResult observes every terminal envelope (paid, rejected, or
	// payment-failed) after it is acknowledged.
	OnResult func(env checkout.Envelope)
	Logf     func(format string, args ...any)
}

// Consumer reads envelopes from the order queue and drives each one through
// the processor. Domain-terminal outcomes are acknowledged; hard faults leave
// the message pending for redelivery.
type Consumer struct {
	queue      OrderQueue
	processor  EnvelopeProcessor
	group      string
	name       string
	batchSize  int64
	block      time.Duration
	retryDelay time.Duration
	onResult   func(env checkout.Envelope)
	logf       func(format string, args ...any)
}

// NewConsumer constructs a Consumer.
func NewConsumer(queue OrderQueue, processor EnvelopeProcessor, cfg ConsumerConfig) *Consumer {
	group := cfg.Group
	if group == "" {
		group = "order_processors"
	}
	name := cfg.Name
	if name == "" {
		name = "worker-1"
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 10
	}
	block := cfg.Block
	if block <= 0 {
		block = 5 * time.Second
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	logf := cfg.Logf
	if logf == nil {
		logf = log.Printf
	}
	return &Consumer{
		queue:      queue,
		processor:  processor,
		group:      group,
		name:       name,
		batchSize:  batch,
		block:      block,
		retryDelay: retryDelay,
		onResult:   cfg.OnResult,
		logf:       logf,
	}
}

// Run consumes until the context ends.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.queue.EnsureGroup(ctx, c.group); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msgs, err := c.queue.Receive(ctx, c.group, c.name, c.batchSize, c.block)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logf("receive orders: %v", err)
			if err := sleepWithContext(ctx, c.retryDelay); err != nil {
				return err
			}
			continue
		}

		for _, msg := range msgs {
			if err := c.handle(ctx, msg); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.logf("process message %s: %v", msg.ID, err)
			}
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg Message) error {
	if msg.Err != nil {
		// Undecodable entries would poison the group forever; ack them away.
		c.logf("drop malformed message %s: %v", msg.ID, msg.Err)
		return c.queue.Ack(ctx, c.group, msg.ID)
	}

	env, err := c.processor.Process(ctx, msg.Envelope)
	switch {
	case err == nil:
		if env.PaymentResult != nil {
			c.logf("order %s paid (%s)", env.OrderID, env.PaymentResult.TransactionID)
		} else {
			c.logf("order %s processed", env.OrderID)
		}
	case errors.Is(err, checkout.ErrOrderRejected):
		c.logf("order %s rejected: %v", env.OrderID, err)
	case errors.Is(err, checkout.ErrPaymentDeclined):
		c.logf("order %s payment failed: %v", env.OrderID, err)
	default:
		// Hard fault: leave the message pending for redelivery.
		return err
	}

	if err := c.queue.Ack(ctx, c.group, msg.ID); err != nil {
		return err
	}
	if c.onResult != nil {
		c.onResult(env)
	}
	return nil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
