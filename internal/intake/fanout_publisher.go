package intake

import (
	"context"
	"encoding/json"
	"time"

	"github.com/EsraaMosaad/Serverless-E-Commerce-Backend-Platform-AWS/internal/checkout"
)

// Broadcaster pushes messages to connected clients.
type Broadcaster interface {
	Broadcast(msg []byte)
}

// FanoutPublisher forwards envelopes to the queue and broadcasts the intake
// event. A broadcast is best-effort; only the queue write can fail the call.
type FanoutPublisher struct {
	queue       OrderPublisher
	broadcaster Broadcaster
}

// NewFanoutPublisher constructs a publisher that fans out to the queue and broadcaster.
func NewFanoutPublisher(queue OrderPublisher, broadcaster Broadcaster) *FanoutPublisher {
	return &FanoutPublisher{queue: queue, broadcaster: broadcaster}
}

// Publish writes to the queue then broadcasts the order's current state.
func (p *FanoutPublisher) Publish(ctx context.Context, env checkout.Envelope) error {
	if err := p.queue.Publish(ctx, env); err != nil {
		return err
	}

	if p.broadcaster == nil {
		return nil
	}

	payload := struct {
		Type        string    `json:"type"`
		OrderID     string    `json:"orderId"`
		UserID      string    `json:"userId"`
		State       string    `json:"state"`
		TotalAmount float64   `json:"totalAmount"`
		Timestamp   time.Time `json:"timestamp"`
	}{
		Type:      "order",
		OrderID:   env.OrderID,
		UserID:    env.UserID,
		State:     string(env.State()),
		Timestamp: time.Now().UTC(),
	}
	if env.TotalAmount != nil {
		payload.TotalAmount = *env.TotalAmount
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	p.broadcaster.Broadcast(data)

	return nil
}
