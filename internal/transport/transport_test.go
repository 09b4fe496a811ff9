package transport

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func okResponse(req *http.Request) *http.Response {
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: req}
}

func TestPlainHTTPUsesHTTP1(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := &http.Client{Transport: NewChromeTransport(5 * time.Second)}
	resp, err := client.Post(srv.URL+"/wp-json/wc/store/v1/cart/add-item", "application/json", strings.NewReader(`{"id":42}`))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if gotBody != `{"id":42}` {
		t.Errorf("body = %q", gotBody)
	}
}

func TestFallbackReplaysBodyAndRemembersHost(t *testing.T) {
	h2Calls := 0
	var h1Bodies []string
	tr := &storeTransport{
		h2: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			h2Calls++
			io.ReadAll(req.Body)
			return nil, errors.New("http2: unsupported")
		}),
		h1: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			b, _ := io.ReadAll(req.Body)
			h1Bodies = append(h1Bodies, string(b))
			return okResponse(req), nil
		}),
	}

	for i := 0; i < 2; i++ {
		req, _ := http.NewRequest(http.MethodPost, "https://loja.example/wp-json/wc/store/v1/cart/add-item", strings.NewReader(`{"id":7}`))
		if _, err := tr.RoundTrip(req); err != nil {
			t.Fatalf("RoundTrip %d: %v", i, err)
		}
	}

	if h2Calls != 1 {
		t.Errorf("h2 calls = %d, want 1", h2Calls)
	}
	if len(h1Bodies) != 2 || h1Bodies[0] != `{"id":7}` || h1Bodies[1] != `{"id":7}` {
		t.Errorf("h1 bodies = %q", h1Bodies)
	}
}

func TestFallbackWithoutGetBodyFails(t *testing.T) {
	tr := &storeTransport{
		h2: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return nil, errors.New("http2: unsupported")
		}),
		h1: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			t.Error("h1 called with an unreplayable body")
			return okResponse(req), nil
		}),
	}

	req, _ := http.NewRequest(http.MethodPost, "https://loja.example/cart", io.NopCloser(strings.NewReader("x")))
	req.GetBody = nil
	if _, err := tr.RoundTrip(req); err == nil {
		t.Fatal("expected error")
	}
}

func TestH2SuccessSkipsHTTP1(t *testing.T) {
	tr := &storeTransport{
		h2: roundTripFunc(func(req *http.Request) (*http.Response, error) { return okResponse(req), nil }),
		h1: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			t.Error("h1 called after h2 success")
			return okResponse(req), nil
		}),
	}

	req, _ := http.NewRequest(http.MethodGet, "https://loja.example/wp-json/wc/v3/products", nil)
	if _, err := tr.RoundTrip(req); err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	if _, ok := tr.h1Only.Load("loja.example"); ok {
		t.Error("host marked h1-only after h2 success")
	}
}
