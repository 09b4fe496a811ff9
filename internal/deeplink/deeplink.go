// Package deeplink builds the URL that hands a shopper's cart over to the video-call terminal.
// The prod parameter uses the same encoding /retorno accepts, so a link can round-trip.
package deeplink

import (
	"encoding/json"
	"net/url"
	"strings"

	"ligvideo-bridge/internal/cartline"
	"ligvideo-bridge/internal/model"
)

// DefaultBaseURL is the terminal's public entry point. It carries a fragment,
// so query parameters are appended as text rather than through url.URL.
const DefaultBaseURL = "https://cliente.ligvideo.com.br/#/home"

// VariantHint pairs a variant with its parent so the terminal can correct a stale selection.
type VariantHint struct {
	Parent  int64 `json:"pai"`
	Variant int64 `json:"filho"`
}

// Builder assembles terminal deep links.
type Builder struct {
	BaseURL string
}

// NewBuilder returns a Builder for baseURL, or DefaultBaseURL when empty.
func NewBuilder(baseURL string) *Builder {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Builder{BaseURL: baseURL}
}

// Build returns <base>?id=<storeID>[&prod=<lines>][&var=<hints>].
// prod is present only when some line has a positive quantity. var lists, in line
// order, one hint per emitted line whose id appears in parents (variant id -> parent id),
// so a variant in two lines gets two hints.
func (b *Builder) Build(storeID string, lines []model.CartLine, parents map[int64]int64) string {
	var sb strings.Builder
	sb.WriteString(b.BaseURL)
	if strings.Contains(b.BaseURL, "?") {
		sb.WriteString("&id=")
	} else {
		sb.WriteString("?id=")
	}
	sb.WriteString(url.QueryEscape(storeID))

	emitted := cartline.Emittable(lines)
	if len(emitted) == 0 {
		return sb.String()
	}
	sb.WriteString("&prod=")
	sb.WriteString(cartline.Encode(emitted))

	var hints []VariantHint
	for _, l := range emitted {
		parent, ok := parents[l.ItemID]
		if !ok || parent <= 0 {
			continue
		}
		hints = append(hints, VariantHint{Parent: parent, Variant: l.ItemID})
	}
	if len(hints) > 0 {
		data, _ := json.Marshal(hints)
		sb.WriteString("&var=")
		sb.WriteString(url.QueryEscape(string(data)))
	}
	return sb.String()
}

// FromCart converts live cart items into wire lines and the variant parent map Build expects.
func FromCart(items []model.CartItem) ([]model.CartLine, map[int64]int64) {
	lines := make([]model.CartLine, 0, len(items))
	parents := make(map[int64]int64)
	for _, it := range items {
		lines = append(lines, model.CartLine{ItemID: it.WireID(), Quantity: it.Quantity})
		if it.VariantID > 0 && it.ProductID > 0 {
			parents[it.VariantID] = it.ProductID
		}
	}
	return lines, parents
}

// ParseHints decodes a var parameter value back into hints. Used by the terminal CLI.
func ParseHints(raw string) ([]VariantHint, error) {
	if raw == "" {
		return nil, nil
	}
	var hints []VariantHint
	if err := json.Unmarshal([]byte(raw), &hints); err != nil {
		return nil, err
	}
	return hints, nil
}
