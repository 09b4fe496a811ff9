package woocommerce

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ligvideo-bridge/internal/adapter"
	"ligvideo-bridge/internal/model"
	"ligvideo-bridge/internal/transport"
)

// =============================================================================
// NONCE AUTHENTICATION STRATEGY
// =============================================================================
//
// The WooCommerce Store API requires a "nonce" for all mutation operations
// (POST, PUT, DELETE). This is a security measure designed for browser-based
// storefront usage, not server-to-server API calls.
//
// CURRENT STRATEGY: Preflight Once, Then Chain
//
// The first mutation on a Cart makes a GET /cart request to obtain a nonce.
// Every Store API response carries a fresh Nonce header, which is kept for the
// next mutation. A cart restore therefore costs one extra call:
//
//   GET /cart → DELETE /cart/items → POST /cart/add-item (×N) → POST /cart/update-customer
//
// The Cart is request-scoped, so the nonce never outlives the request.
// =============================================================================

const (
	// storeAPIPath is the base path for WooCommerce Store API endpoints.
	// Must include /wp-json prefix for proper routing.
	storeAPIPath = "/wp-json/wc/store/v1"

	// restAPIPath is the base path for the authenticated REST API.
	restAPIPath = "/wp-json/wc/v3"

	// maxPerPage is the largest page size the REST API accepts.
	maxPerPage = 100

	// maxResponseSize bounds a single upstream body. A full page of products
	// with descriptions stays well below it.
	maxResponseSize = 8 << 20
)

// userAgent identifies this client to upstream servers.
// Required: WooCommerce CDN/WAF rate-limits requests without User-Agent.
const userAgent = "LigVideo-Bridge/1.0"

// Config holds WooCommerce-specific adapter configuration.
type Config struct {
	StoreURL     string
	APIKey       string
	APISecret    string
	CookieName   string       // cookie carrying the cart token to the browser
	CookieDomain string       // optional cookie domain
	HTTPClient   *http.Client // optional, defaults to the Chrome fingerprint transport
}

// Client implements adapter.Store for a WooCommerce store.
// Requires WooCommerce Blocks plugin (included in WC 6.9+) for Store API endpoints.
type Client struct {
	httpClient   *http.Client
	storeURL     string
	apiKey       string
	apiSecret    string
	cookieName   string
	cookieDomain string
	secureCookie bool
}

// Verify Client implements the store interface at compile time.
var _ adapter.Store = (*Client)(nil)

// generateCartToken creates a random cart token for a new session.
// WooCommerce Store API binds cart sessions to tokens. Without providing one,
// WooCommerce may reuse sessions based on API credentials, causing cart pollution.
func generateCartToken() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// New creates a WooCommerce client with the given configuration.
func New(cfg Config) (*Client, error) {
	if cfg.StoreURL == "" {
		return nil, fmt.Errorf("store URL is required")
	}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("API credentials are required")
	}
	if cfg.CookieName == "" {
		return nil, fmt.Errorf("cart cookie name is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// Use Chrome TLS fingerprint transport to avoid JA3-based rate limiting.
		// See internal/transport for rationale.
		httpClient = &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport.NewChromeTransport(30 * time.Second),
		}
	}

	storeURL := strings.TrimSuffix(cfg.StoreURL, "/")
	return &Client{
		httpClient:   httpClient,
		storeURL:     storeURL,
		apiKey:       cfg.APIKey,
		apiSecret:    cfg.APISecret,
		cookieName:   cfg.CookieName,
		cookieDomain: cfg.CookieDomain,
		secureCookie: strings.HasPrefix(storeURL, "https://"),
	}, nil
}

// OpenCart binds a Cart to the session identified by token.
// An empty token starts a new session with a generated token.
func (c *Client) OpenCart(ctx context.Context, token string) (adapter.CartService, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		token = generateCartToken()
	}
	return &Cart{client: c, token: token}, nil
}

// === REST API v3 ===

// doRESTRequest performs an authenticated GET against the REST API and decodes the body into out.
// resource names what was requested, for not-found errors.
func (c *Client) doRESTRequest(ctx context.Context, path string, query url.Values, resource string, out any) error {
	u := c.storeURL + restAPIPath + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(c.apiKey, c.apiSecret)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, body, err := c.send(req)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return c.parseErrorResponse(resp.StatusCode, body, resource)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return model.NewUpstreamError("WooCommerce", fmt.Errorf("parsing %s response: %w", resource, err))
	}
	return nil
}

// send executes req and reads at most maxResponseSize bytes of the body.
// Transport and read failures are upstream errors.
func (c *Client) send(req *http.Request) (*http.Response, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, model.NewUpstreamError("WooCommerce", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, nil, model.NewUpstreamError("WooCommerce", fmt.Errorf("reading response: %w", err))
	}
	return resp, body, nil
}

// === Store API ===

// nonceInfo holds nonce and cart token from a preflight request.
type nonceInfo struct {
	nonce     string
	cartToken string
}

// fetchNonce makes a preflight GET /cart request to obtain a nonce.
// Required before any Store API mutation.
func (c *Client) fetchNonce(ctx context.Context, cartToken string) (*nonceInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.storeURL+storeAPIPath+"/cart", nil)
	if err != nil {
		return nil, fmt.Errorf("creating nonce request: %w", err)
	}

	c.setStoreAPIHeaders(req, cartToken, "")

	resp, _, err := c.send(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, model.NewUpstreamError("WooCommerce",
			fmt.Errorf("nonce preflight failed with status %d", resp.StatusCode))
	}

	nonce := resp.Header.Get("Nonce")
	if nonce == "" {
		return nil, model.NewUpstreamError("WooCommerce",
			fmt.Errorf("no nonce returned from Store API"))
	}

	// Use our provided token if we have one (ensures fresh cart sessions).
	// Only fall back to WooCommerce's returned token if we didn't provide one.
	returnedToken := resp.Header.Get("Cart-Token")
	if cartToken != "" {
		returnedToken = cartToken
	}

	return &nonceInfo{
		nonce:     nonce,
		cartToken: returnedToken,
	}, nil
}

// storeResponse is a decoded Store API cart response plus the headers used for chaining.
type storeResponse struct {
	cart      *WooCartResponse
	nonce     string
	cartToken string
}

// doStoreRequest executes one Store API cart request.
// Every cart endpoint answers with the full cart, which is decoded when present.
func (c *Client) doStoreRequest(ctx context.Context, method, path string, body any, cartToken, nonce string) (*storeResponse, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.storeURL+storeAPIPath+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	c.setStoreAPIHeaders(req, cartToken, nonce)

	resp, respBody, err := c.send(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, c.parseErrorResponse(resp.StatusCode, respBody, "cart item")
	}

	out := &storeResponse{
		nonce:     resp.Header.Get("Nonce"),
		cartToken: resp.Header.Get("Cart-Token"),
	}

	// DELETE /cart/items answers with the (empty) item list, not the cart.
	trimmed := bytes.TrimSpace(respBody)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var cart WooCartResponse
		if err := json.Unmarshal(trimmed, &cart); err != nil {
			return nil, model.NewUpstreamError("WooCommerce", fmt.Errorf("parsing cart response: %w", err))
		}
		out.cart = &cart
	}
	return out, nil
}

// setStoreAPIHeaders sets headers for WooCommerce Store API requests.
// Store API uses Cart-Token for session and Nonce for mutation auth.
// Unlike REST API v3, Store API does NOT use Basic Auth.
func (c *Client) setStoreAPIHeaders(req *http.Request, cartToken, nonce string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	if cartToken != "" {
		req.Header.Set("Cart-Token", cartToken)
	}
	if nonce != "" {
		req.Header.Set("Nonce", nonce)
	}
}

// parseErrorResponse converts WooCommerce error to APIError.
// Store API add-item failures (stock, invalid variation) come back as 400 or 409
// with a woocommerce_rest_* code and are reported as rejections.
func (c *Client) parseErrorResponse(statusCode int, body []byte, resource string) error {
	var wcErr WooErrorResponse
	json.Unmarshal(body, &wcErr) // Best effort parse

	switch statusCode {
	case http.StatusNotFound:
		return model.NewNotFoundError(resource)
	case http.StatusBadRequest, http.StatusConflict:
		if wcErr.Code == "woocommerce_rest_product_invalid_id" || wcErr.Code == "woocommerce_rest_cart_invalid_product" {
			return model.NewNotFoundError(resource)
		}
		msg := wcErr.Message
		if msg == "" {
			msg = "request rejected"
		}
		return model.NewRejectedError(msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return model.NewUpstreamError("WooCommerce",
			fmt.Errorf("authentication failed: %s", wcErr.Code))
	case http.StatusTooManyRequests:
		return model.NewUpstreamError("WooCommerce", fmt.Errorf("rate limited"))
	default:
		return model.NewUpstreamError("WooCommerce",
			fmt.Errorf("status %d: %s - %s", statusCode, wcErr.Code, wcErr.Message))
	}
}
