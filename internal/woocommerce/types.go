// Package woocommerce implements the catalog and cart adapters for WooCommerce stores.
// The catalog is read through REST API v3 (consumer key/secret), the cart is mutated
// through the Store API (Cart-Token session, Nonce on mutations).
package woocommerce

// === REST API v3 Types ===

// WooProduct is a product from GET /wc/v3/products.
// Variations fetched by id through the same endpoint use this shape too.
type WooProduct struct {
	ID            int64                 `json:"id"`
	ParentID      int64                 `json:"parent_id"`
	Name          string                `json:"name"`
	Type          string                `json:"type"` // simple, variable, variation, grouped, external
	Status        string                `json:"status"`
	SKU           string                `json:"sku"`
	Price         string                `json:"price"` // "99.90" - string decimal, may be empty
	StockQuantity *int                  `json:"stock_quantity"`
	Images        []WooImage            `json:"images,omitempty"`
	Attributes    []WooProductAttribute `json:"attributes,omitempty"`
	Variations    []int64               `json:"variations,omitempty"`
}

// WooVariation is a variation from GET /wc/v3/products/{id}/variations.
type WooVariation struct {
	ID            int64                 `json:"id"`
	Name          string                `json:"name"` // only reported by recent WooCommerce versions
	Status        string                `json:"status"`
	SKU           string                `json:"sku"`
	Price         string                `json:"price"`
	StockQuantity *int                  `json:"stock_quantity"`
	Image         *WooImage             `json:"image"`
	Attributes    []WooProductAttribute `json:"attributes,omitempty"`
}

// WooProductAttribute is an attribute on a product or variation.
// Variations carry the selected value in Option; parents list Options.
type WooProductAttribute struct {
	ID      int64    `json:"id"`
	Name    string   `json:"name"`
	Option  string   `json:"option,omitempty"`
	Options []string `json:"options,omitempty"`
}

// WooImage represents a product image.
type WooImage struct {
	ID   int64  `json:"id"`
	Src  string `json:"src"`
	Name string `json:"name"`
	Alt  string `json:"alt"`
}

// === Store API Types ===

// WooCartResponse represents WooCommerce Store API cart response.
type WooCartResponse struct {
	Items      []WooCartItem  `json:"items"`
	ItemsCount int            `json:"items_count"`
	Totals     WooTotals      `json:"totals"`
	Errors     []WooCartError `json:"errors,omitempty"`
}

// WooCartError represents an error in cart state.
type WooCartError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WooCartItem represents an item in cart response.
// For variations ID is the variation id; the parent is not reported.
type WooCartItem struct {
	Key       string            `json:"key"` // Cart item key (not numeric ID)
	ID        int64             `json:"id"`
	Type      string            `json:"type"`
	Name      string            `json:"name"`
	Quantity  int               `json:"quantity"`
	Prices    WooCartItemPrices `json:"prices"`
	Variation []WooVariant      `json:"variation,omitempty"`
}

// WooCartItemPrices contains price info for a cart item.
type WooCartItemPrices struct {
	Price             string `json:"price"` // Current unit price in minor units
	CurrencyMinorUnit int    `json:"currency_minor_unit"`
}

// WooTotals contains the cart totals. Amounts are in minor units.
type WooTotals struct {
	CurrencyCode      string `json:"currency_code"`
	CurrencyMinorUnit int    `json:"currency_minor_unit"`
	TotalItems        string `json:"total_items"`
	TotalPrice        string `json:"total_price"`
}

// WooVariant represents a product variation attribute.
type WooVariant struct {
	Attribute string `json:"attribute"`
	Value     string `json:"value"`
}

// WooCartAddRequest adds an item to cart.
// ID is the variation id for variations, with the selected attributes in Variation.
type WooCartAddRequest struct {
	ID        int64        `json:"id"`
	Quantity  int          `json:"quantity"`
	Variation []WooVariant `json:"variation,omitempty"`
}

// WooErrorResponse represents a WooCommerce API error.
type WooErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Status int `json:"status"`
	} `json:"data"`
}
