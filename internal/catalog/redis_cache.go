package catalog

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCacheClient is the minimal client surface used by RedisCache.
type RedisCacheClient interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RedisCache is a read-through product cache in front of another Lookup.
// Cache write failures are logged and never fail the read path.
type RedisCache struct {
	client    RedisCacheClient
	inner     Lookup
	keyPrefix string
	ttl       time.Duration
	logf      func(format string, args ...any)
}

// NewRedisCache constructs a read-through cache over the inner lookup.
func NewRedisCache(client RedisCacheClient, inner Lookup, ttl time.Duration, logf func(format string, args ...any)) *RedisCache {
	if logf == nil {
		logf = log.Printf
	}
	return &RedisCache{
		client:    client,
		inner:     inner,
		keyPrefix: "product:",
		ttl:       ttl,
		logf:      logf,
	}
}

func (c *RedisCache) Get(ctx context.Context, productID string) (Product, error) {
	if err := ctx.Err(); err != nil {
		return Product{}, err
	}

	key := c.keyPrefix + productID
	fields, err := c.client.HGetAll(ctx, key).Result()
	if err == nil && len(fields) > 0 {
		if p, ok := decodeProduct(productID, fields); ok {
			return p, nil
		}
	}
	if err != nil {
		c.logf("catalog cache read %s: %v", key, err)
	}

	p, err := c.inner.Get(ctx, productID)
	if err != nil {
		return Product{}, err
	}
	c.store(ctx, key, p)
	return p, nil
}

func (c *RedisCache) store(ctx context.Context, key string, p Product) {
	values := map[string]any{
		"productId":   p.ProductID,
		"name":        p.Name,
		"description": p.Description,
		"price":       strconv.FormatFloat(p.Price, 'f', -1, 64),
	}
	if p.Stock != nil {
		values["stock"] = strconv.Itoa(*p.Stock)
	}
	if err := c.client.HSet(ctx, key, values).Err(); err != nil {
		c.logf("catalog cache write %s: %v", key, err)
		return
	}
	if c.ttl > 0 {
		if err := c.client.Expire(ctx, key, c.ttl).Err(); err != nil {
			c.logf("catalog cache expire %s: %v", key, err)
		}
	}
}

func decodeProduct(productID string, fields map[string]string) (Product, bool) {
	price, err := strconv.ParseFloat(fields["price"], 64)
	if err != nil {
		return Product{}, false
	}
	p := Product{
		ProductID:   productID,
		Name:        fields["name"],
		Description: fields["description"],
		Price:       price,
	}
	if raw, ok := fields["stock"]; ok {
		stock, err := strconv.Atoi(raw)
		if err != nil {
			return Product{}, false
		}
		p.Stock = &stock
	}
	return p, true
}
