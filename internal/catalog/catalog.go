package catalog

import (
	"context"
	"errors"
)

// ErrProductNotFound signals the product id has no catalog record.
var ErrProductNotFound = errors.New("product not found")

// Product is a catalog record. Stock is nil when the product does not
// track inventory.
type Product struct {
	ProductID   string  `json:"productId"`
	Name        string  `json:"name,omitempty"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	Stock       *int    `json:"stock,omitempty"`
}

// Lookup resolves a product id to its current catalog record. Implementations
// return ErrProductNotFound for unknown products; any other error is a
// transient collaborator fault.
type Lookup interface {
	Get(ctx context.Context, productID string) (Product, error)
}

// Lister enumerates the catalog.
type Lister interface {
	List(ctx context.Context) ([]Product, error)
}

// IntPtr is a convenience for building products with tracked stock.
func IntPtr(v int) *int {
	return &v
}
