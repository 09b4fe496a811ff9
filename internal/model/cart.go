package model

// CartLine is the wire-level unit exchanged with the terminal: an item id and a quantity.
// ItemID is either a simple product id or a variant id.
type CartLine struct {
	ItemID   int64 `json:"id"`
	Quantity int   `json:"qnt"`
}

// CartAdd is a single add-to-cart request sent to the Cart Service.
// VariantID and Attributes are only set for variations.
type CartAdd struct {
	ProductID  int64
	Quantity   int
	VariantID  int64
	Attributes map[string]string
}

// CartItem is a line of the live cart as reported by the Cart Service.
type CartItem struct {
	ProductID int64 // parent product for variations
	VariantID int64 // zero for simple products
	Quantity  int
}

// WireID returns the id the terminal knows this line by.
func (c CartItem) WireID() int64 {
	if c.VariantID > 0 {
		return c.VariantID
	}
	return c.ProductID
}
