package woocommerce

import (
	"sort"
	"strings"

	"ligvideo-bridge/internal/model"
)

// productKinds maps WooCommerce product types onto catalog kinds.
// Grouped and external products cannot be added to a cart by id and are reported as simple;
// the cart rejects them at add time.
var productKinds = map[string]model.ProductKind{
	"simple":    model.KindSimple,
	"variable":  model.KindVariable,
	"variation": model.KindVariation,
}

// MapProductKind converts a WooCommerce product type to a catalog kind.
// Returns KindSimple for unknown types.
func MapProductKind(wooType string) model.ProductKind {
	if kind, ok := productKinds[wooType]; ok {
		return kind
	}
	return model.KindSimple
}

// ProductToModel transforms a REST product into a catalog record.
// A missing stock quantity (stock not managed) is reported as zero.
func ProductToModel(p *WooProduct) model.Product {
	out := model.Product{
		ID:            p.ID,
		ParentID:      p.ParentID,
		Kind:          MapProductKind(p.Type),
		Name:          p.Name,
		SKU:           p.SKU,
		Price:         model.ParsePrice(p.Price),
		StockQuantity: stockOrZero(p.StockQuantity),
	}
	if len(p.Images) > 0 {
		out.ImageURL = p.Images[0].Src
	}
	if out.Kind == model.KindVariation {
		out.Attributes = selectedAttributes(p.Attributes)
	}
	return out
}

// VariationToModel transforms a REST variation into a catalog record.
// Variations without a name are named after the parent and their attribute values,
// the way WooCommerce titles them on the storefront.
func VariationToModel(parent model.Product, v *WooVariation) model.Product {
	out := model.Product{
		ID:            v.ID,
		ParentID:      parent.ID,
		Kind:          model.KindVariation,
		Name:          v.Name,
		SKU:           v.SKU,
		Price:         model.ParsePrice(v.Price),
		StockQuantity: stockOrZero(v.StockQuantity),
		Attributes:    selectedAttributes(v.Attributes),
	}
	if out.Name == "" {
		out.Name = variationTitle(parent.Name, v.Attributes)
	}
	if out.SKU == "" {
		out.SKU = parent.SKU
	}
	if v.Image != nil {
		out.ImageURL = v.Image.Src
	}
	return out
}

// ItemFromProduct classifies a product looked up by id.
func ItemFromProduct(p *WooProduct) model.Item {
	if p.Type == "variation" && p.ParentID > 0 {
		return model.VariantItem{
			VariantID:  p.ID,
			ParentID:   p.ParentID,
			Attributes: selectedAttributes(p.Attributes),
		}
	}
	return model.SimpleItem{ProductID: p.ID}
}

// VariationToCart converts selected attributes into the Store API add-item format.
// Output is sorted by attribute name so requests are stable.
func VariationToCart(attrs map[string]string) []WooVariant {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]WooVariant, 0, len(attrs))
	for name, value := range attrs {
		out = append(out, WooVariant{Attribute: name, Value: value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Attribute < out[j].Attribute })
	return out
}

// CartItemToModel converts a Store API cart item. parentID is zero for simple products.
func CartItemToModel(item *WooCartItem, parentID int64) model.CartItem {
	if parentID > 0 {
		return model.CartItem{ProductID: parentID, VariantID: item.ID, Quantity: item.Quantity}
	}
	return model.CartItem{ProductID: item.ID, Quantity: item.Quantity}
}

// isVariationItem reports whether a cart item is a variation.
func isVariationItem(item *WooCartItem) bool {
	return item.Type == "variation" || len(item.Variation) > 0
}

func selectedAttributes(attrs []WooProductAttribute) map[string]string {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]string, len(attrs))
	for _, a := range attrs {
		if a.Option == "" {
			continue
		}
		out[a.Name] = a.Option
	}
	return out
}

func variationTitle(parentName string, attrs []WooProductAttribute) string {
	var values []string
	for _, a := range attrs {
		if a.Option != "" {
			values = append(values, a.Option)
		}
	}
	if len(values) == 0 {
		return parentName
	}
	return parentName + " - " + strings.Join(values, ", ")
}

func stockOrZero(q *int) int {
	if q == nil {
		return 0
	}
	return *q
}
