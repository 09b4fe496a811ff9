// Package adapter defines the collaborators the bridge talks to: the store's
// catalog and its live carts. Each platform provides its own implementation.
package adapter

import (
	"context"
	"net/http"

	"ligvideo-bridge/internal/model"
)

// ProductQuery selects catalog records. At most one of IDs, SKU or Search is set;
// an empty query lists the catalog. Only published records are returned.
type ProductQuery struct {
	IDs      []int64
	SKU      string
	Search   string
	Page     int
	PageSize int
}

// CatalogProvider exposes product and variant lookup.
type CatalogProvider interface {
	// ListProducts returns records matching the query in the platform's natural order.
	ListProducts(ctx context.Context, q ProductQuery) ([]model.Product, error)

	// ListVariants returns the purchasable variants of a variable product.
	// parent is the record returned by ListProducts; its name and SKU fill gaps in the variants.
	ListVariants(ctx context.Context, parent model.Product) ([]model.Product, error)

	// LookupItem resolves a wire id to a model.SimpleItem or model.VariantItem.
	// Returns an error wrapping model.ErrNotFound when the id is unknown.
	LookupItem(ctx context.Context, id int64) (model.Item, error)
}

// CartService owns one live cart. Implementations serialize mutations per session.
type CartService interface {
	// Clear removes every line from the cart.
	Clear(ctx context.Context) error

	// Add adds one line. Returns an error wrapping model.ErrRejected when the
	// store declines it (out of stock, invalid attribute combination, ...).
	Add(ctx context.Context, item model.CartAdd) error

	// RecalculateTotals asks the store to recompute cart totals.
	RecalculateTotals(ctx context.Context) error

	// Items returns the current cart lines.
	Items(ctx context.Context) ([]model.CartItem, error)
}

// SessionPersister is implemented by carts that can hand the shopper a
// continuation of the session, typically a cookie to set before redirecting.
type SessionPersister interface {
	PersistSession(ctx context.Context) (*http.Cookie, error)
}

// LineReader is implemented by carts that can report their contents as wire
// lines without resolving variation parents.
type LineReader interface {
	Lines(ctx context.Context) ([]model.CartLine, error)
}

// Handoff is implemented by carts that can be transferred to the shopper's
// browser through a storefront URL that rebuilds the same contents there.
type Handoff interface {
	// HandoffURL returns the URL, or false when the cart is empty or its state unknown.
	HandoffURL() (string, bool)
}

// CartOpener binds a CartService to the session identified by token.
// An empty token starts a fresh session.
type CartOpener interface {
	OpenCart(ctx context.Context, token string) (CartService, error)
}

// Store is the full set of collaborators a platform provides.
type Store interface {
	CatalogProvider
	CartOpener
}
