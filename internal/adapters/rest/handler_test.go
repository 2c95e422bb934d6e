package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/EsraaMosaad/Serverless-E-Commerce-Backend-Platform-AWS/internal/catalog"
	"github.com/EsraaMosaad/Serverless-E-Commerce-Backend-Platform-AWS/internal/checkout"
	"github.com/EsraaMosaad/Serverless-E-Commerce-Backend-Platform-AWS/internal/intake"
	"github.com/EsraaMosaad/Serverless-E-Commerce-Backend-Platform-AWS/internal/observability"
)

type stubIntake struct {
	env checkout.Envelope
	err error
}

func (s *stubIntake) CreateOrder(ctx context.Context, req intake.OrderRequest) (checkout.Envelope, error) {
	return s.env, s.err
}

type failingLister struct{ err error }

func (l failingLister) List(ctx context.Context) ([]catalog.Product, error) {
	return nil, l.err
}

type blockedLimiter struct{}

func (blockedLimiter) Wait(ctx context.Context) error { return errors.New("rate limited") }

func pendingEnvelope() checkout.Envelope {
	total := 125.0
	return checkout.Envelope{
		OrderID:     "order-1",
		UserID:      "user-1",
		Items:       []checkout.Item{{ProductID: "p2", Quantity: 2}},
		TotalAmount: &total,
		Status:      "PENDING",
	}
}

func newTestHandler(svc OrderIntake) *Handler {
	products := catalog.NewInMemoryCatalog(catalog.SeedProducts()...)
	return NewHandler(svc, products, nil, observability.NewMetrics(), nil, func(string, ...any) {})
}

func postOrder(t *testing.T, handler *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)
	return rec
}

func TestHandler_CreateOrder(t *testing.T) {
	handler := newTestHandler(&stubIntake{env: pendingEnvelope()})

	rec := postOrder(t, handler, `{
		"userId": "user-1",
		"items": [{"productId": "p2", "quantity": 2}],
		"shippingAddress": {"street": "1 Main St", "city": "Springfield", "state": "IL", "zip": "62701"}
	}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Message     string  `json:"message"`
		OrderID     string  `json:"orderId"`
		Status      string  `json:"status"`
		TotalAmount float64 `json:"totalAmount"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Message != "Order created successfully" {
		t.Fatalf("message = %s", body.Message)
	}
	if body.OrderID != "order-1" || body.Status != "PENDING" || body.TotalAmount != 125 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestHandler_CreateOrder_InvalidBody(t *testing.T) {
	handler := newTestHandler(&stubIntake{env: pendingEnvelope()})

	rec := postOrder(t, handler, `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandler_CreateOrder_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"missing user", intake.ErrUserIDRequired, http.StatusBadRequest},
		{"no items", intake.ErrNoItems, http.StatusBadRequest},
		{"unknown product", catalog.ErrProductNotFound, http.StatusNotFound},
		{"canceled", context.Canceled, http.StatusServiceUnavailable},
		{"internal", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := newTestHandler(&stubIntake{err: tc.err})

			rec := postOrder(t, handler, `{"userId":"user-1"}`)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}

			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if _, ok := body["error"]; !ok {
				t.Fatalf("error body missing error field: %v", body)
			}
		})
	}
}

func TestHandler_ListProducts(t *testing.T) {
	handler := newTestHandler(&stubIntake{})

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Products []catalog.Product `json:"products"`
		Count    int               `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Count != 3 || len(body.Products) != 3 {
		t.Fatalf("unexpected body: %+v", body)
	}
	if body.Products[0].ProductID != "p1" {
		t.Fatalf("products out of order: %+v", body.Products)
	}
}

func TestHandler_ListProducts_StoreFailure(t *testing.T) {
	handler := NewHandler(&stubIntake{}, failingLister{err: errors.New("db down")}, nil, nil, nil, func(string, ...any) {})

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandler_Healthz(t *testing.T) {
	handler := newTestHandler(&stubIntake{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandler_RateLimited(t *testing.T) {
	products := catalog.NewInMemoryCatalog(catalog.SeedProducts()...)
	handler := NewHandler(&stubIntake{env: pendingEnvelope()}, products, nil, nil, blockedLimiter{}, func(string, ...any) {})

	rec := postOrder(t, handler, `{"userId":"user-1"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandler_Metrics(t *testing.T) {
	metrics := observability.NewMetrics()
	products := catalog.NewInMemoryCatalog(catalog.SeedProducts()...)
	handler := NewHandler(&stubIntake{env: pendingEnvelope()}, products, nil, metrics, nil, func(string, ...any) {})

	postOrder(t, handler, `{"userId":"user-1"}`)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var snap observability.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if snap.TotalRequests != 1 {
		t.Fatalf("total requests = %d", snap.TotalRequests)
	}
	if _, ok := snap.Stages["POST /orders"]; !ok {
		t.Fatalf("missing POST /orders stage: %v", snap.Stages)
	}
}

func TestHandler_WebsocketDisabled(t *testing.T) {
	handler := newTestHandler(&stubIntake{})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}
