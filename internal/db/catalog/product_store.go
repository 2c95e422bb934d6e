package catalogdb

import (
	"context"
	"database/sql"
	"errors"

	"github.com/EsraaMosaad/Serverless-E-Commerce-Backend-Platform-AWS/internal/catalog"
)

// ProductStore persists the product catalog in Postgres.
type ProductStore struct {
	db *sql.DB
}

// NewProductStore constructs a ProductStore backed by Postgres.
func NewProductStore(db *sql.DB) *ProductStore {
	return &ProductStore{db: db}
}

// NewProductStoreWithSchema initializes the schema then returns the store.
func NewProductStoreWithSchema(ctx context.Context, db *sql.DB) (*ProductStore, error) {
	store := NewProductStore(db)
	if err := store.InitSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// InitSchema creates the products table if it does not exist.
func (s *ProductStore) InitSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS products (
			product_id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			price DOUBLE PRECISION NOT NULL,
			stock INTEGER
		)
	`)
	return err
}

// Seed upserts the given products.
func (s *ProductStore) Seed(ctx context.Context, products []catalog.Product) error {
	for _, p := range products {
		var stock any
		if p.Stock != nil {
			stock = *p.Stock
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO products (product_id, name, description, price, stock)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (product_id) DO UPDATE
			SET name = EXCLUDED.name, description = EXCLUDED.description,
				price = EXCLUDED.price, stock = EXCLUDED.stock`,
			p.ProductID, p.Name, p.Description, p.Price, stock,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// Get returns the product for a product id, or catalog.ErrProductNotFound.
func (s *ProductStore) Get(ctx context.Context, productID string) (catalog.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT product_id, name, description, price, stock
		FROM products
		WHERE product_id = $1`,
		productID,
	)
	p, err := scanProduct(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return p, err
}

// List returns every product, ordered by product id.
func (s *ProductStore) List(ctx context.Context) ([]catalog.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, name, description, price, stock
		FROM products
		ORDER BY product_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []catalog.Product
	for rows.Next() {
		p, err := scanProduct(rows.Scan)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func scanProduct(scan func(dest ...any) error) (catalog.Product, error) {
	var p catalog.Product
	var stock sql.NullInt64
	if err := scan(&p.ProductID, &p.Name, &p.Description, &p.Price, &stock); err != nil {
		return catalog.Product{}, err
	}
	if stock.Valid {
		v := int(stock.Int64)
		p.Stock = &v
	}
	return p, nil
}
