package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/EsraaMosaad/Serverless-E-Commerce-Backend-Platform-AWS/internal/catalog"
	catalogdb "github.com/EsraaMosaad/Serverless-E-Commerce-Backend-Platform-AWS/internal/db/catalog"

	"github.com/joho/godotenv"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Seeds the product catalog into Postgres. Safe to re-run: existing products
// are updated in place.
func main() {
	_ = godotenv.Load()

	if err := run(context.Background()); err != nil {
		log.Fatalf("seed error: %v", err)
	}
}

func run(ctx context.Context) error {
	dsn := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dsn == "" {
		return errors.New("DATABASE_URL is required")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	store, err := catalogdb.NewProductStoreWithSchema(ctx, db)
	if err != nil {
		return err
	}

	products := catalog.SeedProducts()
	if err := store.Seed(ctx, products); err != nil {
		return err
	}
	for _, p := range products {
		log.Printf("seeded %s (%s, $%.2f)", p.ProductID, p.Name, p.Price)
	}
	return nil
}
