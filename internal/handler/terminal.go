package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"ligvideo-bridge/internal/adapter"
	"ligvideo-bridge/internal/catalog"
	"ligvideo-bridge/internal/deeplink"
	"ligvideo-bridge/internal/model"
)

// Export results reported to metrics.
const (
	exportSealed = "sealed"
	exportNoKey  = "no_key"
	exportError  = "error"
)

// totaler is implemented by carts that report their totals after a mutation.
type totaler interface {
	Totals() (currency, total string, ok bool)
}

// handleProducts answers GET /produtos with the sealed catalog as a JSON string.
func (h *Handler) handleProducts(w http.ResponseWriter, r *http.Request) {
	filter := catalog.ParseQuery(r.URL.Query())

	sealed, n, err := h.exporter.Export(r.Context(), filter)
	if err != nil {
		h.recordExportFailure(err)
		h.writeError(w, r, err)
		return
	}

	h.metrics.RecordExport(exportSealed, n)
	h.logger.DebugContext(r.Context(), "catalog exported",
		slog.String("kind", filter.Kind.String()),
		slog.Int("entries", n),
	)
	h.writeJSON(w, http.StatusOK, sealed)
}

func (h *Handler) recordExportFailure(err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Code == model.CodeNoKey {
		h.metrics.RecordExport(exportNoKey, 0)
		return
	}
	h.metrics.RecordExport(exportError, 0)
}

// handleRestore answers GET /retorno: rebuilds the visitor's cart from prod and
// redirects the browser to where the storefront picks it up. Per-line failures
// only reach logs and metrics.
func (h *Handler) handleRestore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	raw := r.URL.Query().Get("prod")
	if raw == "" {
		h.writeError(w, r, model.NewNoProductsError())
		return
	}

	cart, err := h.store.OpenCart(ctx, h.cartToken(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	report, err := h.reconciler.ReconcileRaw(ctx, cart, raw)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if report.Cookie != nil {
		http.SetCookie(w, report.Cookie)
	}
	if t, ok := cart.(totaler); ok {
		if currency, total, ok := t.Totals(); ok {
			h.logger.InfoContext(ctx, "cart restored",
				slog.String("currency", currency),
				slog.String("total", total),
				slog.Int("lines", len(report.Lines)),
			)
		}
	}

	http.Redirect(w, r, h.restoreTarget(cart), http.StatusFound)
}

// restoreTarget is the storefront URL that carries a restored cart into the
// browser's own session. Carts without a handoff, or left empty, go to the cart page.
func (h *Handler) restoreTarget(cart adapter.CartService) string {
	if hf, ok := cart.(adapter.Handoff); ok {
		if link, ok := hf.HandoffURL(); ok {
			return link
		}
	}
	return h.opts.CartURL
}

type linkResponse struct {
	URL string `json:"url"`
}

// handleLink answers GET /link with the terminal deep link for the visitor's cart.
func (h *Handler) handleLink(w http.ResponseWriter, r *http.Request) {
	if !h.opts.ButtonEnabled {
		h.writeError(w, r, model.NewNotFoundError("link"))
		return
	}

	link, err := h.cartLink(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, linkResponse{URL: link})
}

// cartLink builds the deep link from the cart bound to the request's session cookie.
// A visitor without a session gets a link with no products.
func (h *Handler) cartLink(r *http.Request) (string, error) {
	token := h.cartToken(r)
	if token == "" {
		return h.links.Build(h.opts.StoreID, nil, nil), nil
	}
	items, err := h.cartItems(r, token)
	if err != nil {
		return "", err
	}
	lines, parents := deeplink.FromCart(items)
	return h.links.Build(h.opts.StoreID, lines, parents), nil
}

func (h *Handler) cartItems(r *http.Request, token string) ([]model.CartItem, error) {
	cart, err := h.store.OpenCart(r.Context(), token)
	if err != nil {
		return nil, err
	}
	return cart.Items(r.Context())
}

func (h *Handler) cartToken(r *http.Request) string {
	if h.opts.CookieName == "" {
		return ""
	}
	c, err := r.Cookie(h.opts.CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
