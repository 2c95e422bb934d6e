package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"strings"
	"time"

	"github.com/EsraaMosaad/Serverless-E-Commerce-Backend-Platform-AWS/internal/catalog"
	catalogdb "github.com/EsraaMosaad/Serverless-E-Commerce-Backend-Platform-AWS/internal/db/catalog"
)

var openProductDB = func(driver, dsn string) (*sql.DB, error) {
	return sql.Open(driver, dsn)
}

// buildCatalog wires the product catalog: Postgres when DATABASE_URL is set,
// seeded in-memory otherwise, with a Redis read-through cache on lookups.
func buildCatalog(ctx context.Context, cacheClient catalog.RedisCacheClient, cacheTTL time.Duration) (catalog.Lookup, catalog.Lister, func()) {
	cleanup := func() {}

	var db *sql.DB
	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		opened, err := openProductDB("pgx", dsn)
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

	lookup, lister := catalog.Build(ctx, db, newProductStore, cacheClient, cacheTTL, log.Printf)
	return lookup, lister, cleanup
}

func newProductStore(ctx context.Context, db *sql.DB) (catalog.Store, error) {
	return catalogdb.NewProductStoreWithSchema(ctx, db)
}
