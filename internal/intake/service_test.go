package intake

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/EsraaMosaad/Serverless-E-Commerce-Backend-Platform-AWS/internal/catalog"
	"github.com/EsraaMosaad/Serverless-E-Commerce-Backend-Platform-AWS/internal/checkout"
)

type spyPublisher struct {
	published []checkout.Envelope
	err       error
}

func (p *spyPublisher) Publish(ctx context.Context, env checkout.Envelope) error {
	p.published = append(p.published, env)
	return p.err
}

type faultyLookup struct {
	inner catalog.Lookup
	errs  map[string]error
}

func (f *faultyLookup) Get(ctx context.Context, productID string) (catalog.Product, error) {
	if err, ok := f.errs[productID]; ok {
		return catalog.Product{}, err
	}
	return f.inner.Get(ctx, productID)
}

func floatPtr(v float64) *float64 { return &v }

func newTestService(publisher *spyPublisher) *Service {
	lookup := catalog.NewInMemoryCatalog(catalog.SeedProducts()...)
	return NewService(lookup, publisher, func() string { return "order-fixed" }, func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	}, func(string, ...any) {})
}

func validRequest() OrderRequest {
	return OrderRequest{
		UserID: "user-1",
		Items: []checkout.Item{
			{ProductID: "p2", Quantity: 2},
			{ProductID: "p3", Quantity: 1, Price: floatPtr(75)},
		},
		ShippingAddress: &checkout.ShippingAddress{
			Street: "1 Main St",
			City:   "Springfield",
			State:  "IL",
			Zip:    "62701",
		},
	}
}

func TestService_CreateOrder(t *testing.T) {
	publisher := &spyPublisher{}
	svc := newTestService(publisher)

	env, err := svc.CreateOrder(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if env.OrderID != "order-fixed" {
		t.Fatalf("order id = %s", env.OrderID)
	}
	if env.Status != "PENDING" {
		t.Fatalf("status = %s", env.Status)
	}
	if env.TotalAmount == nil || *env.TotalAmount != 125 {
		t.Fatalf("total = %v", env.TotalAmount)
	}
	// Unpriced items get the catalog price filled in.
	if env.Items[0].Price == nil || *env.Items[0].Price != 25 {
		t.Fatalf("item price = %v", env.Items[0].Price)
	}
	if env.CreatedAt == nil || env.UpdatedAt == nil {
		t.Fatalf("timestamps missing")
	}
	if len(publisher.published) != 1 {
		t.Fatalf("published = %d", len(publisher.published))
	}
	if publisher.published[0].OrderID != "order-fixed" {
		t.Fatalf("published wrong envelope")
	}
}

func TestService_CreateOrder_RequestErrors(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*OrderRequest)
		wantErr error
	}{
		{
			name:    "missing user",
			mutate:  func(r *OrderRequest) { r.UserID = "" },
			wantErr: ErrUserIDRequired,
		},
		{
			name:    "no items",
			mutate:  func(r *OrderRequest) { r.Items = nil },
			wantErr: ErrNoItems,
		},
		{
			name:    "missing shipping address",
			mutate:  func(r *OrderRequest) { r.ShippingAddress = nil },
			wantErr: ErrShippingAddressRequired,
		},
		{
			name:    "empty shipping address",
			mutate:  func(r *OrderRequest) { r.ShippingAddress = &checkout.ShippingAddress{} },
			wantErr: ErrShippingAddressRequired,
		},
		{
			name:    "item without product id",
			mutate:  func(r *OrderRequest) { r.Items[0].ProductID = "" },
			wantErr: ErrInvalidItem,
		},
		{
			name:    "item with zero quantity",
			mutate:  func(r *OrderRequest) { r.Items[0].Quantity = 0 },
			wantErr: ErrInvalidItem,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			publisher := &spyPublisher{}
			svc := newTestService(publisher)

			req := validRequest()
			tc.mutate(&req)

			_, err := svc.CreateOrder(context.Background(), req)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if len(publisher.published) != 0 {
				t.Fatalf("invalid request must not be queued")
			}
		})
	}
}

func TestService_CreateOrder_UnknownProduct(t *testing.T) {
	publisher := &spyPublisher{}
	svc := newTestService(publisher)

	req := validRequest()
	req.Items[0].ProductID = "p9"

	_, err := svc.CreateOrder(context.Background(), req)
	if !errors.Is(err, catalog.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
	if len(publisher.published) != 0 {
		t.Fatalf("unpriceable order must not be queued")
	}
}

func TestService_CreateOrder_CatalogFaultFailsRequest(t *testing.T) {
	publisher := &spyPublisher{}
	lookup := &faultyLookup{
		inner: catalog.NewInMemoryCatalog(catalog.SeedProducts()...),
		errs:  map[string]error{"p2": errors.New("connection refused")},
	}
	svc := NewService(lookup, publisher, func() string { return "order-fixed" }, nil, func(string, ...any) {})

	_, err := svc.CreateOrder(context.Background(), validRequest())
	if err == nil {
		t.Fatalf("expected catalog fault to fail the request")
	}
	if len(publisher.published) != 0 {
		t.Fatalf("faulted order must not be queued")
	}
}

func TestService_CreateOrder_PublishFailure(t *testing.T) {
	publisher := &spyPublisher{err: errors.New("stream unavailable")}
	svc := newTestService(publisher)

	_, err := svc.CreateOrder(context.Background(), validRequest())
	if err == nil {
		t.Fatalf("expected publish failure to surface")
	}
}

func TestService_CreateOrder_KeepsClaimedPrice(t *testing.T) {
	publisher := &spyPublisher{}
	svc := newTestService(publisher)

	req := validRequest()
	req.Items = []checkout.Item{{ProductID: "p2", Quantity: 1, Price: floatPtr(20)}}

	env, err := svc.CreateOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	// Intake totals what the caller claims; the validator decides whether the
	// claim holds.
	if *env.TotalAmount != 20 {
		t.Fatalf("total = %v", *env.TotalAmount)
	}
	if *env.Items[0].Price != 20 {
		t.Fatalf("claimed price overwritten: %v", *env.Items[0].Price)
	}
}
