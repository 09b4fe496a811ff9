package adapter

import (
	"context"
	"net/http"

	"ligvideo-bridge/internal/model"
)

// MockCatalog implements CatalogProvider for testing.
// Each method can be configured via function fields.
type MockCatalog struct {
	ListProductsFunc func(ctx context.Context, q ProductQuery) ([]model.Product, error)
	ListVariantsFunc func(ctx context.Context, parent model.Product) ([]model.Product, error)
	LookupItemFunc   func(ctx context.Context, id int64) (model.Item, error)
}

// ListProducts calls the configured ListProductsFunc or returns an empty list.
func (m *MockCatalog) ListProducts(ctx context.Context, q ProductQuery) ([]model.Product, error) {
	if m.ListProductsFunc != nil {
		return m.ListProductsFunc(ctx, q)
	}
	return nil, nil
}

// ListVariants calls the configured ListVariantsFunc or returns an empty list.
func (m *MockCatalog) ListVariants(ctx context.Context, parent model.Product) ([]model.Product, error) {
	if m.ListVariantsFunc != nil {
		return m.ListVariantsFunc(ctx, parent)
	}
	return nil, nil
}

// LookupItem calls the configured LookupItemFunc or reports the id as not found.
func (m *MockCatalog) LookupItem(ctx context.Context, id int64) (model.Item, error) {
	if m.LookupItemFunc != nil {
		return m.LookupItemFunc(ctx, id)
	}
	return nil, model.NewNotFoundError("product")
}

// MockCart implements CartService, SessionPersister and LineReader for testing.
// Unconfigured methods succeed and record nothing.
type MockCart struct {
	ClearFunc             func(ctx context.Context) error
	AddFunc               func(ctx context.Context, item model.CartAdd) error
	RecalculateTotalsFunc func(ctx context.Context) error
	ItemsFunc             func(ctx context.Context) ([]model.CartItem, error)
	PersistSessionFunc    func(ctx context.Context) (*http.Cookie, error)
	LinesFunc             func(ctx context.Context) ([]model.CartLine, error)
}

// Clear calls the configured ClearFunc.
func (m *MockCart) Clear(ctx context.Context) error {
	if m.ClearFunc != nil {
		return m.ClearFunc(ctx)
	}
	return nil
}

// Add calls the configured AddFunc.
func (m *MockCart) Add(ctx context.Context, item model.CartAdd) error {
	if m.AddFunc != nil {
		return m.AddFunc(ctx, item)
	}
	return nil
}

// RecalculateTotals calls the configured RecalculateTotalsFunc.
func (m *MockCart) RecalculateTotals(ctx context.Context) error {
	if m.RecalculateTotalsFunc != nil {
		return m.RecalculateTotalsFunc(ctx)
	}
	return nil
}

// Items calls the configured ItemsFunc or returns an empty cart.
func (m *MockCart) Items(ctx context.Context) ([]model.CartItem, error) {
	if m.ItemsFunc != nil {
		return m.ItemsFunc(ctx)
	}
	return nil, nil
}

// PersistSession calls the configured PersistSessionFunc or returns no cookie.
func (m *MockCart) PersistSession(ctx context.Context) (*http.Cookie, error) {
	if m.PersistSessionFunc != nil {
		return m.PersistSessionFunc(ctx)
	}
	return nil, nil
}

// Lines calls the configured LinesFunc, or derives wire lines from Items.
func (m *MockCart) Lines(ctx context.Context) ([]model.CartLine, error) {
	if m.LinesFunc != nil {
		return m.LinesFunc(ctx)
	}
	items, err := m.Items(ctx)
	if err != nil {
		return nil, err
	}
	lines := make([]model.CartLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, model.CartLine{ItemID: it.WireID(), Quantity: it.Quantity})
	}
	return lines, nil
}

// MockStore combines a MockCatalog with a fixed cart for testing.
type MockStore struct {
	MockCatalog
	OpenCartFunc func(ctx context.Context, token string) (CartService, error)
}

// OpenCart calls the configured OpenCartFunc or returns an empty MockCart.
func (m *MockStore) OpenCart(ctx context.Context, token string) (CartService, error) {
	if m.OpenCartFunc != nil {
		return m.OpenCartFunc(ctx, token)
	}
	return &MockCart{}, nil
}

// Verify mocks implement the interfaces at compile time.
var (
	_ CatalogProvider  = (*MockCatalog)(nil)
	_ CartService      = (*MockCart)(nil)
	_ SessionPersister = (*MockCart)(nil)
	_ LineReader       = (*MockCart)(nil)
	_ Store            = (*MockStore)(nil)
)
