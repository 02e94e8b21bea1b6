package domain

import "sync"

// DefaultProducts is the set of nail products the marketplace trades in.
var DefaultProducts = []string{
	`Common Nail 3.5"`,
	`Common Nail 2.5"`,
	`Finishing Nail 2"`,
	`Roofing Nail 1.25"`,
	`Framing Nail 3.25"`,
	`Brad Nail 1"`,
}

// ProductCatalog holds the tradable nail products in a thread-safe manner.
// Orders may only be submitted for products in the catalog.
type ProductCatalog struct {
	mu       sync.RWMutex
	products map[string]bool
	ordered  []string
}

// NewProductCatalog creates a catalog seeded with the given products.
func NewProductCatalog(products ...string) *ProductCatalog {
	c := &ProductCatalog{
		products: make(map[string]bool, len(products)),
	}
	for _, p := range products {
		c.Register(p)
	}
	return c
}

// Register adds a product to the catalog. Duplicate registrations are
// no-ops. Safe for concurrent use.
func (c *ProductCatalog) Register(product string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.products[product] {
		return
	}
	c.products[product] = true
	c.ordered = append(c.ordered, product)
}

// Exists returns true if the product is in the catalog. Safe for concurrent use.
func (c *ProductCatalog) Exists(product string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.products[product]
}

// List returns the products in registration order.
func (c *ProductCatalog) List() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.ordered))
	copy(out, c.ordered)
	return out
}
