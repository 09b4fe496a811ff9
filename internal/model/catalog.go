// Package model defines the data exchanged between the store, the bridge and the video-call terminal.
package model

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// ProductKind classifies a catalog record.
type ProductKind string

const (
	KindSimple    ProductKind = "simple"
	KindVariable  ProductKind = "variable"  // parent of variants, never purchasable itself
	KindVariation ProductKind = "variation" // purchasable configuration of a variable product
)

// Product is a catalog record as reported by the Catalog Provider.
type Product struct {
	ID            int64
	ParentID      int64 // set for variations
	Kind          ProductKind
	Name          string
	SKU           string
	Price         decimal.Decimal
	StockQuantity int // negative means backorder
	ImageURL      string
	Attributes    map[string]string // variation attributes, name -> selected value
}

// CatalogEntry is one element of the exported catalog.
// Field names are the terminal's wire format.
type CatalogEntry struct {
	ProductID     int64           `json:"produto_id"`
	Name          string          `json:"produto_nome"`
	Price         decimal.Decimal `json:"-"`
	StockQuantity int             `json:"produto_total"`
	PhotoURLs     []string        `json:"produto_fotos"`
	SKU           string          `json:"codigo_barras,omitempty"`
}

// MarshalJSON renders the price as a JSON number, the way the terminal expects it.
func (e CatalogEntry) MarshalJSON() ([]byte, error) {
	type entry CatalogEntry
	photos := e.PhotoURLs
	if photos == nil {
		photos = []string{}
	}
	e.PhotoURLs = photos
	return json.Marshal(struct {
		entry
		Price json.Number `json:"produto_preco"`
	}{
		entry: entry(e),
		Price: json.Number(e.Price.String()),
	})
}

// UnmarshalJSON reads an entry back, mainly for the terminal CLI and tests.
func (e *CatalogEntry) UnmarshalJSON(data []byte) error {
	type entry CatalogEntry
	var aux struct {
		entry
		Price json.Number `json:"produto_preco"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*e = CatalogEntry(aux.entry)
	if aux.Price != "" {
		price, err := decimal.NewFromString(aux.Price.String())
		if err != nil {
			return err
		}
		e.Price = price
	}
	return nil
}

// EntryFromProduct converts a catalog record into its exported form.
func EntryFromProduct(p Product) CatalogEntry {
	var photos []string
	if p.ImageURL != "" {
		photos = []string{p.ImageURL}
	}
	price := p.Price
	if price.IsNegative() {
		price = decimal.Zero
	}
	return CatalogEntry{
		ProductID:     p.ID,
		Name:          p.Name,
		Price:         price,
		StockQuantity: p.StockQuantity,
		PhotoURLs:     photos,
		SKU:           p.SKU,
	}
}

// CatalogPayload is the plaintext that gets sealed for the terminal.
type CatalogPayload struct {
	Data []CatalogEntry `json:"dados"`
}

// Item is the result of looking up a wire id: a SimpleItem or a VariantItem.
type Item interface {
	isItem()
}

// SimpleItem is a directly purchasable product.
type SimpleItem struct {
	ProductID int64
}

// VariantItem is a variation; adding it to a cart requires its parent and attributes.
type VariantItem struct {
	VariantID  int64
	ParentID   int64
	Attributes map[string]string
}

func (SimpleItem) isItem()  {}
func (VariantItem) isItem() {}
