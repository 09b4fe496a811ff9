package woocommerce

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

const (
	testKey    = "ck_test"
	testSecret = "cs_test"
)

func intPtr(n int) *int { return &n }

// fakeStore is an in-memory WooCommerce store serving the REST and Store API routes the client uses.
type fakeStore struct {
	mu         sync.Mutex
	products   map[int64]WooProduct
	variations map[int64][]WooVariation // parent id -> variations
	stock      map[int64]int            // ids that reject adds above this quantity
	carts      map[string][]WooCartItem // cart token -> items
	nonceSeq   int
	preflights int
	gets       int // single product reads
	lastQuery  map[string]string
	lastAdd    WooCartAddRequest
}

func newFakeStore() *fakeStore {
	shirt := WooProduct{
		ID: 10, Name: "Camisa", Type: "variable", Status: "publish", SKU: "CAM", Price: "59.90",
		Images:     []WooImage{{Src: "https://loja.example/camisa.jpg"}},
		Variations: []int64{77, 78},
	}
	return &fakeStore{
		products: map[int64]WooProduct{
			42: {ID: 42, Name: "Caneca", Type: "simple", Status: "publish", SKU: "7891234567890",
				Price: "25.00", StockQuantity: intPtr(10), Images: []WooImage{{Src: "https://loja.example/caneca.jpg"}}},
			6:  {ID: 6, Name: "Chaveiro", Type: "simple", Status: "publish", Price: ""},
			10: shirt,
			77: {ID: 77, ParentID: 10, Name: "Camisa - Vermelho", Type: "variation", Status: "publish", Price: "64.90",
				Attributes: []WooProductAttribute{{ID: 1, Name: "color", Option: "red"}}},
		},
		variations: map[int64][]WooVariation{
			10: {
				{ID: 77, Status: "publish", Price: "64.90", StockQuantity: intPtr(1),
					Image:      &WooImage{Src: "https://loja.example/camisa-vermelha.jpg"},
					Attributes: []WooProductAttribute{{ID: 1, Name: "color", Option: "red"}}},
				{ID: 78, Name: "Camisa - Azul", Status: "publish", Price: "59.90", StockQuantity: intPtr(4),
					Attributes: []WooProductAttribute{{ID: 1, Name: "color", Option: "blue"}}},
			},
		},
		stock: map[int64]int{77: 1},
		carts: map[string][]WooCartItem{},
	}
}

func (f *fakeStore) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("GET /wp-json/wc/v3/products", f.restAuth(f.handleListProducts))
	mux.HandleFunc("GET /wp-json/wc/v3/products/{id}", f.restAuth(f.handleGetProduct))
	mux.HandleFunc("GET /wp-json/wc/v3/products/{id}/variations", f.restAuth(f.handleVariations))

	mux.HandleFunc("GET /wp-json/wc/store/v1/cart", f.handleGetCart)
	mux.HandleFunc("DELETE /wp-json/wc/store/v1/cart/items", f.storeMutation(f.handleClear))
	mux.HandleFunc("POST /wp-json/wc/store/v1/cart/add-item", f.storeMutation(f.handleAddItem))
	mux.HandleFunc("POST /wp-json/wc/store/v1/cart/update-customer", f.storeMutation(f.handleUpdateCustomer))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func (f *fakeStore) restAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != testKey || pass != testSecret {
			writeWooError(w, http.StatusUnauthorized, "woocommerce_rest_cannot_view", "Sem permissão.")
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		next(w, r)
	}
}

func (f *fakeStore) storeMutation(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Nonce") == "" {
			writeWooError(w, http.StatusUnauthorized, "woocommerce_rest_missing_nonce", "Missing nonce.")
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		f.nextNonce(w, r)
		next(w, r)
	}
}

func (f *fakeStore) nextNonce(w http.ResponseWriter, r *http.Request) {
	f.nonceSeq++
	w.Header().Set("Nonce", fmt.Sprintf("nonce-%d", f.nonceSeq))
	if tok := r.Header.Get("Cart-Token"); tok != "" {
		w.Header().Set("Cart-Token", tok)
	}
}

func (f *fakeStore) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f.lastQuery = map[string]string{}
	for k := range q {
		f.lastQuery[k] = q.Get(k)
	}

	include := map[int64]bool{}
	for _, s := range strings.Split(q.Get("include"), ",") {
		if id, err := strconv.ParseInt(s, 10, 64); err == nil {
			include[id] = true
		}
	}

	var out []WooProduct
	for _, id := range []int64{6, 10, 42} {
		p := f.products[id]
		switch {
		case len(include) > 0 && !include[p.ID]:
			continue
		case q.Get("sku") != "" && p.SKU != q.Get("sku"):
			continue
		case q.Get("search") != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(q.Get("search"))):
			continue
		}
		out = append(out, p)
	}
	writeJSON(w, http.StatusOK, out)
}

func (f *fakeStore) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	f.gets++
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	p, ok := f.products[id]
	if !ok {
		writeWooError(w, http.StatusNotFound, "woocommerce_rest_product_invalid_id", "ID inválido.")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (f *fakeStore) handleVariations(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	vs, ok := f.variations[id]
	if !ok {
		writeJSON(w, http.StatusOK, []WooVariation{})
		return
	}
	writeJSON(w, http.StatusOK, vs)
}

func (f *fakeStore) handleGetCart(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.preflights++
	f.nextNonce(w, r)
	writeJSON(w, http.StatusOK, f.cartResponse(r.Header.Get("Cart-Token")))
}

func (f *fakeStore) handleClear(w http.ResponseWriter, r *http.Request) {
	f.carts[r.Header.Get("Cart-Token")] = nil
	writeJSON(w, http.StatusOK, []WooCartItem{})
}

func (f *fakeStore) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req WooCartAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeWooError(w, http.StatusBadRequest, "woocommerce_rest_invalid_json", "JSON inválido.")
		return
	}
	f.lastAdd = req

	p, ok := f.products[req.ID]
	if !ok {
		writeWooError(w, http.StatusBadRequest, "woocommerce_rest_cart_invalid_product", "Produto inválido.")
		return
	}
	if p.Type == "variable" {
		writeWooError(w, http.StatusBadRequest, "woocommerce_rest_invalid_variation_data", "Escolha uma variação.")
		return
	}

	token := r.Header.Get("Cart-Token")
	items := f.carts[token]
	idx := -1
	for i := range items {
		if items[i].ID == req.ID {
			idx = i
		}
	}
	have := 0
	if idx >= 0 {
		have = items[idx].Quantity
	}
	if limit, limited := f.stock[req.ID]; limited && have+req.Quantity > limit {
		writeWooError(w, http.StatusBadRequest, "woocommerce_rest_product_partially_out_of_stock", "Estoque insuficiente.")
		return
	}

	if idx >= 0 {
		items[idx].Quantity += req.Quantity
	} else {
		item := WooCartItem{Key: fmt.Sprintf("key-%d", req.ID), ID: req.ID, Type: p.Type, Name: p.Name, Quantity: req.Quantity}
		item.Variation = req.Variation
		items = append(items, item)
	}
	f.carts[token] = items
	writeJSON(w, http.StatusCreated, f.cartResponse(token))
}

func (f *fakeStore) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, f.cartResponse(r.Header.Get("Cart-Token")))
}

func (f *fakeStore) cartResponse(token string) WooCartResponse {
	items := f.carts[token]
	total := 0
	for _, it := range items {
		p := f.products[it.ID]
		total += int(parseCents(p.Price)) * it.Quantity
	}
	return WooCartResponse{
		Items:      append([]WooCartItem{}, items...),
		ItemsCount: len(items),
		Totals: WooTotals{
			CurrencyCode:      "BRL",
			CurrencyMinorUnit: 2,
			TotalPrice:        strconv.Itoa(total),
		},
	}
}

func parseCents(price string) int64 {
	s := strings.Replace(price, ".", "", 1)
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeWooError(w http.ResponseWriter, status int, code, msg string) {
	body := WooErrorResponse{Code: code, Message: msg}
	body.Data.Status = status
	writeJSON(w, status, body)
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := New(Config{
		StoreURL:   srv.URL + "/",
		APIKey:     testKey,
		APISecret:  testSecret,
		CookieName: "ligvideo_cart_token",
		HTTPClient: srv.Client(),
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c
}
