package handler

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"

	"ligvideo-bridge/internal/adapter"
	"ligvideo-bridge/internal/cartline"
	"ligvideo-bridge/internal/deeplink"
	"ligvideo-bridge/internal/metrics"
	"ligvideo-bridge/internal/model"
	"ligvideo-bridge/internal/seal"
)

const (
	testStoreID    = "loja-1"
	testCartURL    = "https://loja.example/carrinho/"
	testCookieName = "ligvideo_cart_token"
)

var testOptions = Options{
	StoreID:       testStoreID,
	CartURL:       testCartURL,
	CookieName:    testCookieName,
	ButtonEnabled: true,
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testHandlerWith(store adapter.Store, publicKey string, opts Options) (*Handler, *http.ServeMux) {
	h := New(store, seal.NewSealer(publicKey), deeplink.NewBuilder(""), metrics.New(prometheus.NewRegistry()), opts, testLogger())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return h, mux
}

func testHandler(store adapter.Store) (*Handler, *http.ServeMux) {
	return testHandlerWith(store, "", testOptions)
}

func testKeys(t *testing.T) (publicKey string, privateKey *[seal.KeySize]byte) {
	t.Helper()
	pub, priv, err := seal.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return seal.EncodeKey(pub), priv
}

// decodeErrorBody parses the WordPress-shaped error body.
func decodeErrorBody(t *testing.T, body io.Reader) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	return resp
}

// recordingCart is a MockCart that records the adds it receives.
type recordingCart struct {
	adapter.MockCart
	cleared bool
	adds    []model.CartAdd
}

func newRecordingCart(token string) *recordingCart {
	c := &recordingCart{}
	c.ClearFunc = func(ctx context.Context) error {
		c.cleared = true
		return nil
	}
	c.AddFunc = func(ctx context.Context, item model.CartAdd) error {
		c.adds = append(c.adds, item)
		return nil
	}
	c.PersistSessionFunc = func(ctx context.Context) (*http.Cookie, error) {
		return &http.Cookie{Name: testCookieName, Value: token, Path: "/", HttpOnly: true}, nil
	}
	return c
}

// handoffCart is a recordingCart whose contents the storefront can pick up by URL.
type handoffCart struct {
	*recordingCart
	url string
}

func (c handoffCart) HandoffURL() (string, bool) {
	return c.url, c.url != ""
}

// exportCount reads ligvideo_catalog_exports_total for one result label.
func exportCount(t *testing.T, reg *prometheus.Registry, result string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "ligvideo_catalog_exports_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			if hasLabel(m.GetLabel(), "result", result) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func hasLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, l := range labels {
		if l.GetName() == name && l.GetValue() == value {
			return true
		}
	}
	return false
}

func simpleLookup(ids ...int64) func(ctx context.Context, id int64) (model.Item, error) {
	known := make(map[int64]bool)
	for _, id := range ids {
		known[id] = true
	}
	return func(ctx context.Context, id int64) (model.Item, error) {
		if known[id] {
			return model.SimpleItem{ProductID: id}, nil
		}
		return nil, model.NewNotFoundError("product")
	}
}

func TestHandleHealth(t *testing.T) {
	_, mux := testHandler(&adapter.MockStore{})

	for _, path := range []string{"/health", "/healthz"} {
		req := httptest.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()

		mux.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("%s: Status = %d, want %d", path, w.Code, http.StatusOK)
		}

		var resp healthResponse
		json.NewDecoder(w.Body).Decode(&resp)
		if resp.Status != "ok" {
			t.Errorf("%s: Status = %s, want ok", path, resp.Status)
		}
	}
}

func TestHandleProducts(t *testing.T) {
	publicKey, privateKey := testKeys(t)

	var gotQuery adapter.ProductQuery
	store := &adapter.MockStore{
		MockCatalog: adapter.MockCatalog{
			ListProductsFunc: func(ctx context.Context, q adapter.ProductQuery) ([]model.Product, error) {
				gotQuery = q
				return []model.Product{{
					ID: 42, Kind: model.KindSimple, Name: "Caneca",
					Price: decimal.RequireFromString("25.50"), StockQuantity: 3,
					ImageURL: "https://loja.example/caneca.jpg",
				}}, nil
			},
		},
	}
	_, mux := testHandlerWith(store, publicKey, testOptions)

	req := httptest.NewRequest("GET", "/produtos?id=42&nome=ignored", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d\nBody: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if len(gotQuery.IDs) != 1 || gotQuery.IDs[0] != 42 || gotQuery.Search != "" {
		t.Errorf("query = %+v, want ids [42] and no search", gotQuery)
	}

	var sealed string
	if err := json.NewDecoder(w.Body).Decode(&sealed); err != nil {
		t.Fatalf("body is not a JSON string: %v", err)
	}
	plaintext, err := seal.OpenBase64(sealed, privateKey)
	if err != nil {
		t.Fatalf("OpenBase64: %v", err)
	}

	var payload model.CatalogPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if len(payload.Data) != 1 {
		t.Fatalf("got %d entries, want 1", len(payload.Data))
	}
	e := payload.Data[0]
	if e.ProductID != 42 || e.Name != "Caneca" || !e.Price.Equal(decimal.RequireFromString("25.5")) || e.StockQuantity != 3 {
		t.Errorf("entry = %+v", e)
	}
	if len(e.PhotoURLs) != 1 || e.PhotoURLs[0] != "https://loja.example/caneca.jpg" {
		t.Errorf("PhotoURLs = %v", e.PhotoURLs)
	}
}

func TestHandleProductsNoKey(t *testing.T) {
	store := &adapter.MockStore{
		MockCatalog: adapter.MockCatalog{
			ListProductsFunc: func(ctx context.Context, q adapter.ProductQuery) ([]model.Product, error) {
				return []model.Product{{ID: 1, Kind: model.KindSimple, Name: "Segredo"}}, nil
			},
		},
	}
	_, mux := testHandler(store)

	req := httptest.NewRequest("GET", "/produtos?id=1,2,3", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if strings.Contains(w.Body.String(), "Segredo") {
		t.Error("catalog data leaked in error response")
	}
	resp := decodeErrorBody(t, w.Body)
	if resp.Code != model.CodeNoKey {
		t.Errorf("Code = %s, want %s", resp.Code, model.CodeNoKey)
	}
	if resp.Data.Status != http.StatusInternalServerError {
		t.Errorf("data.status = %d, want 500", resp.Data.Status)
	}
}

func TestHandleProductsUpstreamError(t *testing.T) {
	publicKey, _ := testKeys(t)
	store := &adapter.MockStore{
		MockCatalog: adapter.MockCatalog{
			ListProductsFunc: func(ctx context.Context, q adapter.ProductQuery) ([]model.Product, error) {
				return nil, model.NewUpstreamError("WooCommerce", io.ErrUnexpectedEOF)
			},
		},
	}
	_, mux := testHandlerWith(store, publicKey, testOptions)

	req := httptest.NewRequest("GET", "/produtos", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusBadGateway)
	}
	if resp := decodeErrorBody(t, w.Body); resp.Code != model.CodeUpstream {
		t.Errorf("Code = %s, want %s", resp.Code, model.CodeUpstream)
	}
}

func TestHandleRestore(t *testing.T) {
	cart := newRecordingCart("tok-123")
	var gotToken string
	store := &adapter.MockStore{
		MockCatalog: adapter.MockCatalog{LookupItemFunc: simpleLookup(42)},
		OpenCartFunc: func(ctx context.Context, token string) (adapter.CartService, error) {
			gotToken = token
			return cart, nil
		},
	}
	_, mux := testHandler(store)

	req := httptest.NewRequest("GET", "/retorno?prod=%5B%7B%22id%22%3A42%2C%22qnt%22%3A2%7D%5D", nil)
	req.AddCookie(&http.Cookie{Name: testCookieName, Value: "tok-123"})
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("Status = %d, want %d\nBody: %s", w.Code, http.StatusFound, w.Body.String())
	}
	if loc := w.Header().Get("Location"); loc != testCartURL {
		t.Errorf("Location = %q, want %q", loc, testCartURL)
	}
	if gotToken != "tok-123" {
		t.Errorf("OpenCart token = %q, want tok-123", gotToken)
	}
	if !cart.cleared {
		t.Error("cart was not cleared")
	}
	if len(cart.adds) != 1 || cart.adds[0].ProductID != 42 || cart.adds[0].Quantity != 2 {
		t.Errorf("adds = %+v, want one add of product 42 x2", cart.adds)
	}

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != testCookieName || cookies[0].Value != "tok-123" {
		t.Errorf("cookies = %+v", cookies)
	}
}

func TestHandleRestoreHandsOffToStorefront(t *testing.T) {
	const handoff = "https://loja.example/checkout-link/?products=42:2"
	cart := handoffCart{recordingCart: newRecordingCart("tok-9"), url: handoff}
	store := &adapter.MockStore{
		MockCatalog: adapter.MockCatalog{LookupItemFunc: simpleLookup(42)},
		OpenCartFunc: func(ctx context.Context, token string) (adapter.CartService, error) {
			return cart, nil
		},
	}
	_, mux := testHandler(store)

	req := httptest.NewRequest("GET", "/retorno?prod=%5B%7B%22id%22%3A42%2C%22qnt%22%3A2%7D%5D", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusFound)
	}
	if loc := w.Header().Get("Location"); loc != handoff {
		t.Errorf("Location = %q, want %q", loc, handoff)
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value != "tok-9" {
		t.Errorf("cookies = %+v, want the cart session cookie", cookies)
	}

	// Nothing to hand off: the cart page is the fallback.
	cart.url = ""
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/retorno?prod=%5B%7B%22id%22%3A404%2C%22qnt%22%3A1%7D%5D", nil))
	if loc := w.Header().Get("Location"); loc != testCartURL {
		t.Errorf("Location = %q, want %q", loc, testCartURL)
	}
}

func TestHandleRestorePartialFailureStillRedirects(t *testing.T) {
	cart := newRecordingCart("tok")
	store := &adapter.MockStore{
		MockCatalog: adapter.MockCatalog{LookupItemFunc: simpleLookup(7)},
		OpenCartFunc: func(ctx context.Context, token string) (adapter.CartService, error) {
			return cart, nil
		},
	}
	_, mux := testHandler(store)

	prod := url.QueryEscape(`[{"id":999,"qnt":1},{"id":7,"qnt":3},{"id":8,"qnt":0}]`)
	req := httptest.NewRequest("GET", "/retorno?prod="+prod, nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusFound)
	}
	if len(cart.adds) != 1 || cart.adds[0].ProductID != 7 {
		t.Errorf("adds = %+v, want only product 7", cart.adds)
	}
}

func TestHandleRestoreSlashEscaped(t *testing.T) {
	cart := newRecordingCart("tok")
	store := &adapter.MockStore{
		MockCatalog: adapter.MockCatalog{LookupItemFunc: simpleLookup(5)},
		OpenCartFunc: func(ctx context.Context, token string) (adapter.CartService, error) {
			return cart, nil
		},
	}
	_, mux := testHandler(store)

	prod := url.QueryEscape(`[{\"id\":5,\"qnt\":1}]`)
	req := httptest.NewRequest("GET", "/retorno?prod="+prod, nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("Status = %d, want %d\nBody: %s", w.Code, http.StatusFound, w.Body.String())
	}
	if len(cart.adds) != 1 || cart.adds[0].ProductID != 5 {
		t.Errorf("adds = %+v, want product 5", cart.adds)
	}
}

func TestHandleRestoreClientErrors(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantCode string
	}{
		{"missing prod", "", model.CodeNoProducts},
		{"empty prod", "?prod=", model.CodeNoProducts},
		{"object instead of array", "?prod=" + url.QueryEscape(`{"id":1,"qnt":1}`), model.CodeInvalidFormat},
		{"not json", "?prod=abc", model.CodeInvalidFormat},
		{"empty array", "?prod=" + url.QueryEscape(`[]`), model.CodeNoProducts},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cart := newRecordingCart("tok")
			store := &adapter.MockStore{
				OpenCartFunc: func(ctx context.Context, token string) (adapter.CartService, error) {
					return cart, nil
				},
			}
			_, mux := testHandler(store)

			req := httptest.NewRequest("GET", "/retorno"+tt.query, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			resp := decodeErrorBody(t, w.Body)
			if resp.Code != tt.wantCode {
				t.Errorf("Code = %s, want %s", resp.Code, tt.wantCode)
			}
			if resp.Data.Status != http.StatusBadRequest {
				t.Errorf("data.status = %d, want 400", resp.Data.Status)
			}
			if cart.cleared || len(cart.adds) > 0 {
				t.Error("cart was mutated on a client error")
			}
		})
	}
}

func TestHandleRestoreClearFailure(t *testing.T) {
	cart := newRecordingCart("tok")
	cart.ClearFunc = func(ctx context.Context) error {
		return model.NewUpstreamError("WooCommerce", io.ErrUnexpectedEOF)
	}
	store := &adapter.MockStore{
		MockCatalog: adapter.MockCatalog{LookupItemFunc: simpleLookup(1)},
		OpenCartFunc: func(ctx context.Context, token string) (adapter.CartService, error) {
			return cart, nil
		},
	}
	_, mux := testHandler(store)

	req := httptest.NewRequest("GET", "/retorno?prod="+url.QueryEscape(`[{"id":1,"qnt":1}]`), nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusBadGateway)
	}
	if len(cart.adds) != 0 {
		t.Errorf("adds = %+v, want none after a failed clear", cart.adds)
	}
}

func TestHandleLinkDisabled(t *testing.T) {
	opts := testOptions
	opts.ButtonEnabled = false
	_, mux := testHandlerWith(&adapter.MockStore{}, "", opts)

	req := httptest.NewRequest("GET", "/link", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if resp := decodeErrorBody(t, w.Body); resp.Code != model.CodeNotFound {
		t.Errorf("Code = %s, want %s", resp.Code, model.CodeNotFound)
	}
}

func TestHandleLinkWithoutSession(t *testing.T) {
	store := &adapter.MockStore{
		OpenCartFunc: func(ctx context.Context, token string) (adapter.CartService, error) {
			t.Error("OpenCart called without a session cookie")
			return &adapter.MockCart{}, nil
		},
	}
	_, mux := testHandler(store)

	req := httptest.NewRequest("GET", "/link", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp linkResponse
	json.NewDecoder(w.Body).Decode(&resp)
	want := deeplink.DefaultBaseURL + "?id=" + testStoreID
	if resp.URL != want {
		t.Errorf("URL = %q, want %q", resp.URL, want)
	}
}

func TestHandleLinkFromCart(t *testing.T) {
	store := &adapter.MockStore{
		OpenCartFunc: func(ctx context.Context, token string) (adapter.CartService, error) {
			if token != "tok-9" {
				t.Errorf("token = %q, want tok-9", token)
			}
			return &adapter.MockCart{
				ItemsFunc: func(ctx context.Context) ([]model.CartItem, error) {
					return []model.CartItem{
						{ProductID: 100, VariantID: 101, Quantity: 1},
						{ProductID: 200, Quantity: 2},
					}, nil
				},
			}, nil
		},
	}
	_, mux := testHandler(store)

	req := httptest.NewRequest("GET", "/link", nil)
	req.AddCookie(&http.Cookie{Name: testCookieName, Value: "tok-9"})
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp linkResponse
	json.NewDecoder(w.Body).Decode(&resp)

	wantProd := "&prod=" + cartline.Encode([]model.CartLine{{ItemID: 101, Quantity: 1}, {ItemID: 200, Quantity: 2}})
	wantVar := "&var=" + url.QueryEscape(`[{"pai":100,"filho":101}]`)
	if !strings.HasPrefix(resp.URL, deeplink.DefaultBaseURL+"?id="+testStoreID) {
		t.Errorf("URL = %q, missing base and store id", resp.URL)
	}
	if !strings.Contains(resp.URL, wantProd) {
		t.Errorf("URL = %q, missing %q", resp.URL, wantProd)
	}
	if !strings.HasSuffix(resp.URL, wantVar) {
		t.Errorf("URL = %q, missing %q", resp.URL, wantVar)
	}
}

func TestHandleUnknownMethod(t *testing.T) {
	_, mux := testHandler(&adapter.MockStore{})

	req := httptest.NewRequest("POST", "/produtos", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}
