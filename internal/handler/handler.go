// Package handler provides the HTTP and MCP surface of the bridge.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"ligvideo-bridge/internal/adapter"
	"ligvideo-bridge/internal/catalog"
	"ligvideo-bridge/internal/deeplink"
	"ligvideo-bridge/internal/metrics"
	"ligvideo-bridge/internal/model"
	"ligvideo-bridge/internal/reconcile"
	"ligvideo-bridge/internal/seal"
)

// Options carries the per-store settings the handlers need.
type Options struct {
	StoreID       string
	CartURL       string // redirect target after a restore
	CookieName    string // cart session cookie read by /retorno and /link
	ButtonEnabled bool
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	store      adapter.Store
	exporter   *catalog.Exporter
	reconciler *reconcile.Reconciler
	links      *deeplink.Builder
	metrics    *metrics.Metrics
	opts       Options
	logger     *slog.Logger
}

// New creates a Handler. m may be nil to disable metrics.
func New(store adapter.Store, sealer *seal.Sealer, links *deeplink.Builder, m *metrics.Metrics, opts Options, logger *slog.Logger) *Handler {
	var rec []reconcile.Option
	if m != nil {
		rec = append(rec, reconcile.WithRecorder(m))
	}
	return &Handler{
		store:      store,
		exporter:   catalog.NewExporter(catalog.NewResolver(store, logger), sealer),
		reconciler: reconcile.New(store, logger, rec...),
		links:      links,
		metrics:    m,
		opts:       opts,
		logger:     logger,
	}
}

// RegisterRoutes registers all HTTP routes with the given ServeMux.
// Uses Go 1.22+ method routing patterns.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Terminal endpoints
	mux.HandleFunc("GET /produtos", h.handleProducts)
	mux.HandleFunc("GET /retorno", h.handleRestore)
	mux.HandleFunc("GET /link", h.handleLink)

	// MCP transport - JSON-RPC endpoint using official MCP SDK
	mux.Handle("/mcp", h.NewMCPHandler())

	// Health check
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

type healthResponse struct {
	Status string `json:"status"`
}

// === Response Helpers ===

// writeJSON sends a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError sends an error response, extracting status/code from APIError if present.
// Uses errors.As() to unwrap error chains (e.g., fmt.Errorf wrapping).
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		apiErr = model.NewInternalError(err)
	}
	if apiErr.StatusCode >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("code", apiErr.Code),
			slog.String("error", err.Error()),
		)
	}

	h.writeJSON(w, apiErr.StatusCode, errorResponse{
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Data:    errorData{Status: apiErr.StatusCode},
	})
}

// errorResponse is the WordPress REST error shape the terminal parses.
type errorResponse struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Data    errorData `json:"data"`
}

type errorData struct {
	Status int `json:"status"`
}
