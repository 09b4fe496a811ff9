// Package catalog resolves terminal catalog queries into exportable entries
// and seals them for transport.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"ligvideo-bridge/internal/adapter"
	"ligvideo-bridge/internal/model"
	"ligvideo-bridge/internal/seal"
)

// Resolver turns a Filter into catalog entries using a CatalogProvider.
// Output order follows the provider and is not part of the contract.
type Resolver struct {
	catalog adapter.CatalogProvider
	logger  *slog.Logger
}

// NewResolver creates a Resolver backed by the given provider.
func NewResolver(catalog adapter.CatalogProvider, logger *slog.Logger) *Resolver {
	return &Resolver{catalog: catalog, logger: logger}
}

// Resolve returns the entries selected by f.
//
//   - ByIDs returns the matching products as the provider reports them.
//   - BySKU returns products with that SKU; variable products are replaced by their variants.
//   - ByName looks digit-only text up as a SKU, otherwise searches by title and
//     expands variable products the same way.
//   - All lists the catalog page, expanding variable products.
func (r *Resolver) Resolve(ctx context.Context, f Filter) ([]model.CatalogEntry, error) {
	f = f.normalized()

	q := adapter.ProductQuery{Page: f.Page, PageSize: f.PageSize}
	expand := true

	switch f.Kind {
	case KindIDs:
		if len(f.IDs) == 0 {
			return []model.CatalogEntry{}, nil
		}
		q.IDs = f.IDs
		expand = false
	case KindSKU:
		q.SKU = f.SKU
	case KindName:
		if looksLikeSKU(f.Name) {
			q.SKU = f.Name
		} else {
			q.Search = f.Name
		}
	case KindAll:
	default:
		return nil, fmt.Errorf("unknown filter kind %d", f.Kind)
	}

	products, err := r.catalog.ListProducts(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}

	entries := make([]model.CatalogEntry, 0, len(products))
	for _, p := range products {
		if !expand || p.Kind != model.KindVariable {
			entries = append(entries, model.EntryFromProduct(p))
			continue
		}

		variants, err := r.catalog.ListVariants(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("listing variants of %d: %w", p.ID, err)
		}
		r.logger.DebugContext(ctx, "expanded variable product",
			slog.Int64("product_id", p.ID),
			slog.Int("variants", len(variants)),
		)
		for _, v := range variants {
			if v.ImageURL == "" {
				v.ImageURL = p.ImageURL
			}
			entries = append(entries, model.EntryFromProduct(v))
		}
	}

	return entries, nil
}

// Exporter resolves a query and seals the result for the terminal.
type Exporter struct {
	resolver *Resolver
	sealer   *seal.Sealer
}

// NewExporter creates an Exporter.
func NewExporter(resolver *Resolver, sealer *seal.Sealer) *Exporter {
	return &Exporter{resolver: resolver, sealer: sealer}
}

// Export returns the sealed, base64 encoded {"dados": [...]} payload and the
// number of entries in it. The key check happens after resolution, so a store
// without a key still pays for the lookup but never returns plaintext.
func (e *Exporter) Export(ctx context.Context, f Filter) (string, int, error) {
	entries, err := e.resolver.Resolve(ctx, f)
	if err != nil {
		return "", 0, err
	}

	if !e.sealer.Configured() {
		return "", 0, model.NewNoKeyError()
	}

	plaintext, err := json.Marshal(model.CatalogPayload{Data: entries})
	if err != nil {
		return "", 0, fmt.Errorf("marshaling catalog: %w", err)
	}

	sealed, err := e.sealer.SealBase64(plaintext)
	if err != nil {
		return "", 0, err
	}
	return sealed, len(entries), nil
}
