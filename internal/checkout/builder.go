package checkout

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/EsraaMosaad/Serverless-E-Commerce-Backend-Platform-AWS/internal/catalog"
	checkoutdb "github.com/EsraaMosaad/Serverless-E-Commerce-Backend-Platform-AWS/internal/db/checkout"
)

// BuildOrchestrator wires an Orchestrator from config (Postgres DSN, catalog
// lookup, gateway). With a DSN, saga state and the payment ledger persist in
// Postgres; if the DSN is empty or initialization fails, the saga log and
// ledger are skipped and the pipeline runs stateless. The returned cleanup
// closes any external resources.
func BuildOrchestrator(ctx context.Context, dsn string, lookup catalog.Lookup, gateway Gateway, logf func(format string, args ...any)) (*Orchestrator, func(), error) {
	if logf == nil {
		logf = log.Printf
	}

	cleanup := func() {}
	var sagaLog SagaLog

	if dsn != "" {
		sqlDB, err := sql.Open("pgx", dsn)
		if err != nil {
			logf("postgres open failed, running without saga persistence: %v", err)
		} else {
			setupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			store, err := checkoutdb.NewSagaStoreWithSchema(setupCtx, sqlDB)
			if err != nil {
				logf("saga store init failed, running without saga persistence: %v", err)
				_ = sqlDB.Close()
			} else {
				ledger, err := checkoutdb.NewPaymentLedgerWithSchema(setupCtx, sqlDB)
				if err != nil {
					logf("payment ledger init failed, running without saga persistence: %v", err)
					_ = sqlDB.Close()
				} else {
					logf("postgres saga persistence enabled")
					sagaLog = store
					gateway = NewLedgerGateway(gateway, ledger, logf)
					cleanup = func() {
						if err := sqlDB.Close(); err != nil {
							logf("close postgres: %v", err)
						}
					}
				}
			}
		}
	}

	return NewOrchestrator(NewValidator(lookup), gateway, sagaLog, logf), cleanup, nil
}
