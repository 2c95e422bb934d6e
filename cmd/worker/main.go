package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/EsraaMosaad/Serverless-E-Commerce-Backend-Platform-AWS/cmd/server/config"
	"github.com/EsraaMosaad/Serverless-E-Commerce-Backend-Platform-AWS/internal/catalog"
	"github.com/EsraaMosaad/Serverless-E-Commerce-Backend-Platform-AWS/internal/checkout"
	catalogdb "github.com/EsraaMosaad/Serverless-E-Commerce-Backend-Platform-AWS/internal/db/catalog"
	"github.com/EsraaMosaad/Serverless-E-Commerce-Backend-Platform-AWS/internal/intake"
	"github.com/EsraaMosaad/Serverless-E-Commerce-Backend-Platform-AWS/internal/observability"
	"github.com/EsraaMosaad/Serverless-E-Commerce-Backend-Platform-AWS/internal/realtime"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("worker error: %v", err)
	}
}

func run(ctx context.Context) error {
	redisCfg, err := config.LoadRedis()
	if err != nil {
		return err
	}
	client, err := config.NewRedisClient(ctx, redisCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Printf("close redis: %v", err)
		}
	}()

	lookup, cleanupCatalog := buildCatalogLookup(ctx, client, redisCfg.ProductCacheTTL)
	defer cleanupCatalog()

	// Lookups are read-only, so the catalog gets the full reliability stack.
	reliableLookup := checkout.NewReliableCatalog(
		lookup,
		checkout.NewRateLimiter(10*time.Millisecond, 20),
		checkout.NewCircuitBreaker(checkout.CircuitBreakerConfig{MaxFailures: 5, ResetTimeout: 2 * time.Second}),
		checkout.RetryPolicy{MaxAttempts: 3, BaseDelay: 50 * time.Millisecond, MaxDelay: 500 * time.Millisecond},
	)

	paymentCfg, err := config.LoadPayment()
	if err != nil {
		return err
	}
	gateway := checkout.NewMockGateway(checkout.MockGatewayConfig{
		Decider:       checkout.NewRandomDecider(paymentCfg.SuccessRate),
		Currency:      paymentCfg.Currency,
		ChargeLatency: paymentCfg.ChargeLatency,
		RefundLatency: paymentCfg.RefundLatency,
	})

	orchestrator, cleanupOrch, err := checkout.BuildOrchestrator(ctx, strings.TrimSpace(os.Getenv("DATABASE_URL")), reliableLookup, gateway, log.Printf)
	if err != nil {
		return err
	}
	defer cleanupOrch()

	hub := realtime.NewHub()
	go hub.Run(ctx)

	metrics := observability.NewMetrics()
	obsSrv, err := startObservabilityServer(metrics, hub)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = obsSrv.Shutdown(shutdownCtx)
	}()

	workerCfg := config.LoadWorker()
	queue := intake.NewRedisQueue(client, redisCfg.Stream, redisCfg.StreamMaxLen)
	consumer := intake.NewConsumer(queue, orchestrator, intake.ConsumerConfig{
		Group: workerCfg.Group,
		Name:  workerCfg.Consumer,
		OnResult: func(env checkout.Envelope) {
			state := string(env.State())
			metrics.CountOutcome(state)
			hub.BroadcastStatus(env.OrderID, state)
		},
		Logf: log.Printf,
	})

	log.Printf("worker consuming stream %q", redisCfg.Stream)
	return consumer.Run(ctx)
}

func buildCatalogLookup(ctx context.Context, cacheClient catalog.RedisCacheClient, cacheTTL time.Duration) (catalog.Lookup, func()) {
	cleanup := func() {}

	var db *sql.DB
	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		opened, err := sql.Open("pgx", dsn)
		if err != nil {
			log.Printf("postgres open failed, using in-memory catalog: %v", err)
		} else {
			db = opened
			cleanup = func() {
				if err := db.Close(); err != nil {
					log.Printf("close products db: %v", err)
				}
			}
		}
	}

	lookup, _ := catalog.Build(ctx, db, func(ctx context.Context, db *sql.DB) (catalog.Store, error) {
		return catalogdb.NewProductStoreWithSchema(ctx, db)
	}, cacheClient, cacheTTL, log.Printf)
	return lookup, cleanup
}

func startObservabilityServer(metrics *observability.Metrics, hub *realtime.Hub) (*http.Server, error) {
	cfg, err := config.LoadObservability()
	if err != nil {
		return nil, err
	}

	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler(metrics))
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("websocket upgrade: %v", err)
			return
		}
		hub.Register(conn)
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					hub.Unregister(conn)
					return
				}
			}
		}()
	})

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("observability server error: %v", err)
		}
	}()

	return srv, nil
}
