package catalog

import (
	"context"
	"sort"
	"sync"
)

// NewInMemoryCatalog constructs a catalog holding the given products.
func NewInMemoryCatalog(products ...Product) *InMemoryCatalog {
	c := &InMemoryCatalog{
		products: make(map[string]Product, len(products)),
	}
	for _, p := range products {
		c.products[p.ProductID] = p
	}
	return c
}

// InMemoryCatalog keeps products in memory. It is the default store for local
// runs and tests.
type InMemoryCatalog struct {
	mu       sync.RWMutex
	products map[string]Product
}

func (c *InMemoryCatalog) Get(ctx context.Context, productID string) (Product, error) {
	if err := ctx.Err(); err != nil {
		return Product{}, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[productID]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (c *InMemoryCatalog) List(ctx context.Context) ([]Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

// Put inserts or replaces a product.
func (c *InMemoryCatalog) Put(p Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ProductID] = p
}

// SeedProducts returns the demo catalog used by local runs.
func SeedProducts() []Product {
	return []Product{
		{ProductID: "p1", Name: "High-End Laptop", Description: "Powerful laptop for developers and creators.", Price: 1200, Stock: IntPtr(10)},
		{ProductID: "p2", Name: "Wireless Mouse", Description: "Ergonomic wireless mouse with long battery life.", Price: 25, Stock: IntPtr(50)},
		{ProductID: "p3", Name: "Mechanical Keyboard", Description: "RGB backlit mechanical keyboard with blue switches.", Price: 75, Stock: IntPtr(20)},
	}
}
