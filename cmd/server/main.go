package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/EsraaMosaad/Serverless-E-Commerce-Backend-Platform-AWS/cmd/server/config"
	"github.com/EsraaMosaad/Serverless-E-Commerce-Backend-Platform-AWS/internal/adapters/rest"
	"github.com/EsraaMosaad/Serverless-E-Commerce-Backend-Platform-AWS/internal/intake"
	"github.com/EsraaMosaad/Serverless-E-Commerce-Backend-Platform-AWS/internal/observability"
	"github.com/EsraaMosaad/Serverless-E-Commerce-Backend-Platform-AWS/internal/realtime"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	grpcpkg "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const intakeServiceName = "orders.OrderIntake"

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
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

	lookup, lister, cleanupCatalog := buildCatalog(ctx, client, redisCfg.ProductCacheTTL)
	defer cleanupCatalog()

	hub := realtime.NewHub()
	go hub.Run(ctx)

	queue := intake.NewRedisQueue(client, redisCfg.Stream, redisCfg.StreamMaxLen)
	publisher := intake.NewFanoutPublisher(queue, hub)
	intakeService := intake.NewService(lookup, publisher, uuid.NewString, nil, log.Printf)

	httpCfg, err := config.LoadHTTP()
	if err != nil {
		return err
	}
	metrics := observability.NewMetrics()
	limiter := newHTTPRateLimiter(httpCfg.RateLimitInterval, httpCfg.RateLimitBurst, metrics.AddRateLimitWait)

	handler := rest.NewHandler(intakeService, lister, hub, metrics, limiter, log.Printf)
	httpSrv := &http.Server{
		Addr:    httpCfg.Addr,
		Handler: handler.Routes(),
	}

	lis, err := net.Listen("tcp", ":50051")
	if err != nil {
		return err
	}
	grpcSrv := grpcpkg.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, healthServer)
	healthServer.SetServingStatus(intakeServiceName, healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	if env := os.Getenv("APP_ENV"); env != "production" {
		reflection.Register(grpcSrv)
		log.Println("gRPC reflection enabled (APP_ENV=", env, ")")
	}

	errCh := make(chan error, 2)
	go func() {
		log.Printf("intake API listening on %s", httpCfg.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	go func() {
		log.Println("health server running on :50051...")
		if err := grpcSrv.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		healthServer.SetServingStatus(intakeServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		grpcSrv.GracefulStop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
