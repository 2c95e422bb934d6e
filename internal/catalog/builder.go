package catalog

import (
	"context"
	"database/sql"
	"log"
	"time"
)

// Store is a catalog that serves both single lookups and listings.
type Store interface {
	Lookup
	Lister
}

// PGStoreFactory builds a Postgres-backed catalog store, initializing its
// schema. It matches catalogdb.NewProductStoreWithSchema.
type PGStoreFactory func(ctx context.Context, db *sql.DB) (Store, error)

// Build wires the product catalog. With a database handle and factory the
// catalog is Postgres-backed; otherwise, or when initialization fails, it
// falls back to a seeded in-memory catalog. A non-nil cache client adds a
// read-through Redis cache on the lookup path.
func Build(ctx context.Context, db *sql.DB, newPGStore PGStoreFactory, cacheClient RedisCacheClient, cacheTTL time.Duration, logf func(format string, args ...any)) (Lookup, Lister) {
	if logf == nil {
		logf = log.Printf
	}

	var store Store
	if db != nil && newPGStore != nil {
		pgStore, err := newPGStore(ctx, db)
		if err != nil {
			logf("product store init failed, using in-memory catalog: %v", err)
		} else {
			logf("postgres product catalog enabled")
			store = pgStore
		}
	}
	if store == nil {
		mem := NewInMemoryCatalog()
		for _, p := range SeedProducts() {
			mem.Put(p)
		}
		store = mem
	}

	var lookup Lookup = store
	if cacheClient != nil {
		lookup = NewRedisCache(cacheClient, store, cacheTTL, logf)
	}
	return lookup, store
}
