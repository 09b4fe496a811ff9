package woocommerce

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ligvideo-bridge/internal/adapter"
	"ligvideo-bridge/internal/model"
)

// sessionLifetime matches WooCommerce's default cart session expiry.
const sessionLifetime = 48 * time.Hour

// Cart is one Store API cart session. It is request-scoped and not safe for concurrent use.
type Cart struct {
	client *Client
	token  string
	nonce  string
	last   *WooCartResponse // cart state from the latest mutation
}

// Verify Cart implements the cart interfaces at compile time.
var (
	_ adapter.CartService      = (*Cart)(nil)
	_ adapter.SessionPersister = (*Cart)(nil)
	_ adapter.LineReader       = (*Cart)(nil)
	_ adapter.Handoff          = (*Cart)(nil)
)

// Token returns the cart session token.
func (c *Cart) Token() string {
	return c.token
}

// Clear removes every item from the cart.
func (c *Cart) Clear(ctx context.Context) error {
	if _, err := c.mutate(ctx, http.MethodDelete, "/cart/items", nil); err != nil {
		return fmt.Errorf("clearing cart: %w", err)
	}
	c.last = nil
	return nil
}

// Add adds one line. Variations are added by variation id with their attributes.
func (c *Cart) Add(ctx context.Context, item model.CartAdd) error {
	req := WooCartAddRequest{ID: item.ProductID, Quantity: item.Quantity}
	if item.VariantID > 0 {
		req.ID = item.VariantID
		req.Variation = VariationToCart(item.Attributes)
	}
	_, err := c.mutate(ctx, http.MethodPost, "/cart/add-item", req)
	return err
}

// RecalculateTotals re-reads the cart through POST /cart/update-customer.
// GET /cart may return stale totals for a Cart-Token session; the mutation always recalculates.
func (c *Cart) RecalculateTotals(ctx context.Context) error {
	resp, err := c.mutate(ctx, http.MethodPost, "/cart/update-customer", map[string]any{})
	if err != nil {
		return fmt.Errorf("recalculating totals: %w", err)
	}
	if resp.cart == nil {
		return model.NewUpstreamError("WooCommerce", errors.New("update-customer returned no cart"))
	}
	return nil
}

// Items returns the live cart lines. Variation parents are resolved through the REST API
// because the Store API only reports the variation id.
func (c *Cart) Items(ctx context.Context) ([]model.CartItem, error) {
	cart, err := c.current(ctx)
	if err != nil || cart == nil {
		return nil, err
	}

	items := make([]model.CartItem, 0, len(cart.Items))
	for i := range cart.Items {
		wi := &cart.Items[i]
		var parentID int64
		if isVariationItem(wi) {
			item, err := c.client.LookupItem(ctx, wi.ID)
			if err != nil {
				return nil, fmt.Errorf("resolving parent of %d: %w", wi.ID, err)
			}
			if v, ok := item.(model.VariantItem); ok {
				parentID = v.ParentID
			}
		}
		items = append(items, CartItemToModel(wi, parentID))
	}
	return items, nil
}

// Lines returns the live cart as wire lines. Unlike Items it makes no REST calls.
func (c *Cart) Lines(ctx context.Context) ([]model.CartLine, error) {
	cart, err := c.current(ctx)
	if err != nil || cart == nil {
		return nil, err
	}
	lines := make([]model.CartLine, 0, len(cart.Items))
	for _, wi := range cart.Items {
		lines = append(lines, model.CartLine{ItemID: wi.ID, Quantity: wi.Quantity})
	}
	return lines, nil
}

// current returns the cart state from the latest mutation, reading it when none is held.
func (c *Cart) current(ctx context.Context) (*WooCartResponse, error) {
	if c.last != nil {
		return c.last, nil
	}
	resp, err := c.client.doStoreRequest(ctx, http.MethodGet, "/cart", nil, c.token, "")
	if err != nil {
		return nil, err
	}
	c.chain(resp)
	return resp.cart, nil
}

// Totals returns the total price of the cart as of the latest mutation, in major units.
func (c *Cart) Totals() (currency string, total string, ok bool) {
	if c.last == nil {
		return "", "", false
	}
	t := c.last.Totals
	return t.CurrencyCode, model.ParseMinorUnits(t.TotalPrice, t.CurrencyMinorUnit).StringFixed(int32(t.CurrencyMinorUnit)), true
}

// PersistSession returns the cookie that lets the browser continue this cart session.
func (c *Cart) PersistSession(ctx context.Context) (*http.Cookie, error) {
	if c.token == "" {
		return nil, errors.New("cart has no session token")
	}
	return &http.Cookie{
		Name:     c.client.cookieName,
		Value:    c.token,
		Path:     "/",
		Domain:   c.client.cookieDomain,
		MaxAge:   int(sessionLifetime.Seconds()),
		Secure:   c.client.secureCookie,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// HandoffURL returns the store's shareable checkout link for the cart as of the latest
// mutation: /checkout-link/?products=ID:QTY,ID:QTY. The storefront never reads a Cart-Token
// session; visiting the link replaces the browser's own cart with these lines.
func (c *Cart) HandoffURL() (string, bool) {
	if c.last == nil || len(c.last.Items) == 0 {
		return "", false
	}
	products := make([]string, 0, len(c.last.Items))
	for _, item := range c.last.Items {
		products = append(products, fmt.Sprintf("%d:%d", item.ID, item.Quantity))
	}
	return fmt.Sprintf("%s/checkout-link/?products=%s", c.client.storeURL, strings.Join(products, ",")), true
}

// mutate runs a Store API mutation, fetching a nonce first when none is held.
func (c *Cart) mutate(ctx context.Context, method, path string, body any) (*storeResponse, error) {
	if c.nonce == "" {
		info, err := c.client.fetchNonce(ctx, c.token)
		if err != nil {
			return nil, fmt.Errorf("fetching nonce: %w", err)
		}
		c.nonce = info.nonce
		c.token = info.cartToken
	}

	resp, err := c.client.doStoreRequest(ctx, method, path, body, c.token, c.nonce)
	if err != nil {
		return nil, err
	}
	c.chain(resp)
	if resp.cart != nil {
		c.last = resp.cart
	}
	return resp, nil
}

// chain keeps the nonce from the latest response. The token we sent stays authoritative.
func (c *Cart) chain(resp *storeResponse) {
	if resp.nonce != "" {
		c.nonce = resp.nonce
	}
	if c.token == "" && resp.cartToken != "" {
		c.token = resp.cartToken
	}
}
