package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/EsraaMosaad/Serverless-E-Commerce-Backend-Platform-AWS/internal/checkout"
)

// RedisQueueClient is the minimal client surface used by RedisQueue.
type RedisQueueClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
}

// Message is a queued envelope plus its stream id for acknowledgement.
// Err is set when the stream entry could not be decoded; such messages carry
// no envelope and should be acknowledged away rather than redelivered.
type Message struct {
	ID       string
	Envelope checkout.Envelope
	Err      error
}

// RedisQueue is the order queue on a Redis stream. Envelopes are appended as
// JSON with orderId/userId attributes alongside, and consumed through a
// consumer group so a message stays pending until acknowledged.
type RedisQueue struct {
	client RedisQueueClient
	stream string
	maxLen int64
}

// NewRedisQueue constructs a queue on the given stream.
func NewRedisQueue(client RedisQueueClient, stream string, maxLen int64) *RedisQueue {
	if stream == "" {
		stream = "order_events"
	}
	return &RedisQueue{
		client: client,
		stream: stream,
		maxLen: maxLen,
	}
}

// Publish appends the envelope to the stream.
func (q *RedisQueue) Publish(ctx context.Context, env checkout.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]any{
			"orderId": env.OrderID,
			"userId":  env.UserID,
			"payload": string(payload),
		},
	}
	if q.maxLen > 0 {
		args.MaxLen = q.maxLen
		args.Approx = true
	}

	return q.client.XAdd(ctx, args).Err()
}

// EnsureGroup creates the consumer group if it does not exist yet.
func (q *RedisQueue) EnsureGroup(ctx context.Context, group string) error {
	err := q.client.XGroupCreateMkStream(ctx, q.stream, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// Receive reads up to count new messages for the consumer, blocking up to
// block. It returns an empty slice when the read times out.
func (q *RedisQueue) Receive(ctx context.Context, group, consumer string, count int64, block time.Duration) ([]Message, error) {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{q.stream, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var msgs []Message
	for _, stream := range streams {
		for _, raw := range stream.Messages {
			payload, ok := raw.Values["payload"].(string)
			if !ok {
				msgs = append(msgs, Message{ID: raw.ID, Err: fmt.Errorf("missing payload")})
				continue
			}
			var env checkout.Envelope
			if err := json.Unmarshal([]byte(payload), &env); err != nil {
				msgs = append(msgs, Message{ID: raw.ID, Err: err})
				continue
			}
			msgs = append(msgs, Message{ID: raw.ID, Envelope: env})
		}
	}
	return msgs, nil
}

// Ack acknowledges processed messages.
func (q *RedisQueue) Ack(ctx context.Context, group string, ids ...string) error {
	return q.client.XAck(ctx, q.stream, group, ids...).Err()
}
