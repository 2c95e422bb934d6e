package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/EsraaMosaad/Serverless-E-Commerce-Backend-Platform-AWS/internal/catalog"
	"github.com/EsraaMosaad/Serverless-E-Commerce-Backend-Platform-AWS/internal/checkout"
	"github.com/EsraaMosaad/Serverless-E-Commerce-Backend-Platform-AWS/internal/intake"
	"github.com/EsraaMosaad/Serverless-E-Commerce-Backend-Platform-AWS/internal/observability"
	"github.com/EsraaMosaad/Serverless-E-Commerce-Backend-Platform-AWS/internal/realtime"
)

// OrderIntake defines the behavior needed by the HTTP adapter.
type OrderIntake interface {
	CreateOrder(ctx context.Context, req intake.OrderRequest) (checkout.Envelope, error)
}

type rateLimiter interface {
	Wait(ctx context.Context) error
}

// Handler adapts the intake service and catalog to HTTP JSON endpoints.
type Handler struct {
	intake   OrderIntake
	products catalog.Lister
	hub      *realtime.Hub
	metrics  *observability.Metrics
	limiter  rateLimiter
	upgrader websocket.Upgrader
	logf     func(format string, args ...any)
}

// NewHandler constructs a Handler. hub, metrics, and limiter may be nil.
func NewHandler(svc OrderIntake, products catalog.Lister, hub *realtime.Hub, metrics *observability.Metrics, limiter rateLimiter, logf func(format string, args ...any)) *Handler {
	if logf == nil {
		logf = log.Printf
	}
	return &Handler{
		intake:   svc,
		products: products,
		hub:      hub,
		metrics:  metrics,
		limiter:  limiter,
		logf:     logf,
	}
}

// Routes returns the HTTP mux for the intake API.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /orders", h.wrap("POST /orders", h.createOrder))
	mux.HandleFunc("GET /products", h.wrap("GET /products", h.listProducts))
	mux.HandleFunc("GET /healthz", h.healthz)
	mux.HandleFunc("GET /ws", h.serveWS)
	mux.Handle("GET /metrics", observability.Handler(h.metrics))
	return mux
}

// wrap applies rate limiting and per-route metrics.
func (h *Handler) wrap(route string, next func(w http.ResponseWriter, r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		span := h.metrics.Start(route)
		if h.limiter != nil {
			if err := h.limiter.Wait(r.Context()); err != nil {
				span.End(err)
				writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "rate limited"})
				return
			}
		}
		span.End(next(w, r))
	}
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) error {
	var req intake.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return err
	}

	env, err := h.intake.CreateOrder(r.Context(), req)
	if err != nil {
		status, body := mapIntakeError(err)
		writeJSON(w, status, body)
		return err
	}

	var total float64
	if env.TotalAmount != nil {
		total = *env.TotalAmount
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":     "Order created successfully",
		"orderId":     env.OrderID,
		"status":      env.Status,
		"totalAmount": total,
	})
	return nil
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) error {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "Database error",
			"message": err.Error(),
		})
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"products": products,
		"count":    len(products),
	})
	return nil
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		http.Error(w, "websocket not enabled", http.StatusNotFound)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logf("websocket upgrade: %v", err)
		return
	}
	h.hub.Register(conn)
	go func() {
		// Drain client frames; unregister on disconnect.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.hub.Unregister(conn)
				return
			}
		}
	}()
}

func mapIntakeError(err error) (int, map[string]any) {
	switch {
	case errors.Is(err, intake.ErrUserIDRequired),
		errors.Is(err, intake.ErrNoItems),
		errors.Is(err, intake.ErrShippingAddressRequired),
		errors.Is(err, intake.ErrInvalidItem):
		return http.StatusBadRequest, map[string]any{"error": err.Error()}
	case errors.Is(err, catalog.ErrProductNotFound):
		return http.StatusNotFound, map[string]any{"error": err.Error()}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, map[string]any{"error": err.Error()}
	default:
		return http.StatusInternalServerError, map[string]any{
			"error":   "Internal server error",
			"message": err.Error(),
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
