package intake

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/EsraaMosaad/Serverless-E-Commerce-Backend-Platform-AWS/internal/catalog"
	"github.com/EsraaMosaad/Serverless-E-Commerce-Backend-Platform-AWS/internal/checkout"
)

var (
	ErrUserIDRequired          = errors.New("user id is required")
	ErrNoItems                 = errors.New("order must contain at least one item")
	ErrShippingAddressRequired = errors.New("shipping address is required")
	ErrInvalidItem             = errors.New("invalid item in order")
)

// OrderRequest is an incoming order before it becomes an envelope.
type OrderRequest struct {
	UserID          string                    `json:"userId"`
	Items           []checkout.Item           `json:"items"`
	ShippingAddress *checkout.ShippingAddress `json:"shippingAddress"`
}

// OrderPublisher hands a freshly built envelope to the processing queue.
type OrderPublisher interface {
	Publish(ctx context.Context, env checkout.Envelope) error
}

// Service turns order requests into envelopes and queues them. The total is
// computed from catalog prices at intake; a catalog fault here fails the
// request rather than queueing an order with a partial total.
type Service struct {
	catalog   catalog.Lookup
	publisher OrderPublisher
	newID     func() string
	now       func() time.Time
	logf      func(format string, args ...any)
}

// NewService constructs an intake Service.
func NewService(lookup catalog.Lookup, publisher OrderPublisher, newID func() string, now func() time.Time, logf func(format string, args ...any)) *Service {
	if now == nil {
		now = time.Now
	}
	if logf == nil {
		logf = log.Printf
	}
	return &Service{
		catalog:   lookup,
		publisher: publisher,
		newID:     newID,
		now:       now,
		logf:      logf,
	}
}

// CreateOrder validates the request, prices it against the catalog, mints the
// order id, and publishes the envelope with status PENDING.
func (s *Service) CreateOrder(ctx context.Context, req OrderRequest) (checkout.Envelope, error) {
	if req.UserID == "" {
		return checkout.Envelope{}, ErrUserIDRequired
	}
	if len(req.Items) == 0 {
		return checkout.Envelope{}, ErrNoItems
	}
	if req.ShippingAddress == nil || *req.ShippingAddress == (checkout.ShippingAddress{}) {
		return checkout.Envelope{}, ErrShippingAddressRequired
	}

	items := make([]checkout.Item, len(req.Items))
	var total float64
	for i, item := range req.Items {
		if item.ProductID == "" || item.Quantity <= 0 {
			return checkout.Envelope{}, fmt.Errorf("item %d: %w", i+1, ErrInvalidItem)
		}

		product, err := s.catalog.Get(ctx, item.ProductID)
		if errors.Is(err, catalog.ErrProductNotFound) {
			return checkout.Envelope{}, fmt.Errorf("product %s: %w", item.ProductID, err)
		}
		if err != nil {
			return checkout.Envelope{}, fmt.Errorf("price product %s: %w", item.ProductID, err)
		}

		if item.Price == nil {
			price := product.Price
			item.Price = &price
		}
		total += *item.Price * float64(item.Quantity)
		items[i] = item
	}

	now := s.now().UTC()
	env := checkout.Envelope{
		OrderID:         s.newID(),
		UserID:          req.UserID,
		Items:           items,
		TotalAmount:     &total,
		ShippingAddress: req.ShippingAddress,
		Status:          "PENDING",
		CreatedAt:       &now,
		UpdatedAt:       &now,
	}

	if err := s.publisher.Publish(ctx, env); err != nil {
		return checkout.Envelope{}, fmt.Errorf("queue order %s: %w", env.OrderID, err)
	}
	s.logf("order %s queued for user %s (total %.2f)", env.OrderID, env.UserID, total)

	return env, nil
}
