// MCP transport handler for the bridge using the official MCP Go SDK.
// Exposes catalog export, cart restore and deep link building as MCP tools.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"ligvideo-bridge/internal/catalog"
	"ligvideo-bridge/internal/deeplink"
	"ligvideo-bridge/internal/model"
)

// === MCP Tool Input/Output Types ===

// QueryCatalogInput is the input schema for query_catalog.
// At most one of IDs, SKU and Name is honored, in that order.
type QueryCatalogInput struct {
	IDs      []int64 `json:"id,omitempty" jsonschema:"product ids"`
	SKU      string  `json:"codigo_barras,omitempty" jsonschema:"exact SKU"`
	Name     string  `json:"nome,omitempty" jsonschema:"free text name search"`
	Page     int     `json:"pagina_atual,omitempty" jsonschema:"page number, defaults to 1"`
	PageSize int     `json:"total_item,omitempty" jsonschema:"page size, defaults to 100"`
}

// QueryCatalogOutput carries the sealed catalog, never plaintext.
type QueryCatalogOutput struct {
	Payload string `json:"payload" jsonschema:"base64 sealed catalog payload"`
	Count   int    `json:"count" jsonschema:"number of catalog entries sealed"`
}

// LineInput is one cart line in the terminal's wire shape.
type LineInput struct {
	ID       int64 `json:"id" jsonschema:"product or variant id,required"`
	Quantity int   `json:"qnt" jsonschema:"quantity, lines <= 0 are ignored,required"`
}

// RestoreCartInput is the input schema for restore_cart.
type RestoreCartInput struct {
	CartToken string      `json:"cart_token,omitempty" jsonschema:"existing cart session token"`
	Lines     []LineInput `json:"lines" jsonschema:"lines that replace the cart contents,required"`
}

// LineOutcome reports what happened to one restored line.
type LineOutcome struct {
	ID       int64  `json:"id"`
	Quantity int    `json:"qnt"`
	Outcome  string `json:"outcome"`
}

// RestoreCartOutput is the result of restore_cart.
type RestoreCartOutput struct {
	CartToken string        `json:"cart_token,omitempty"`
	CartURL   string        `json:"cart_url" jsonschema:"storefront URL that opens the restored cart"`
	Lines     []LineOutcome `json:"lines"`
}

// TerminalLinkInput is the input schema for terminal_link.
// Lines take precedence over the cart bound to CartToken.
type TerminalLinkInput struct {
	CartToken string      `json:"cart_token,omitempty" jsonschema:"cart session token to read lines from"`
	Lines     []LineInput `json:"lines,omitempty" jsonschema:"explicit lines to encode"`
}

// TerminalLinkOutput is the result of terminal_link.
type TerminalLinkOutput struct {
	URL string `json:"url"`
}

// NewMCPServer creates an MCP server with the bridge tools registered.
func (h *Handler) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "ligvideo-bridge",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "LigVideo bridge for a WooCommerce store. " +
				"Export the sealed catalog, rebuild a cart from terminal lines, or build a terminal link.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "query_catalog",
		Description: "Query the store catalog. The result is sealed for the terminal's public key.",
	}, h.mcpQueryCatalog)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "restore_cart",
		Description: "Replace the contents of a cart with the given lines and report each line's outcome.",
	}, h.mcpRestoreCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "terminal_link",
		Description: "Build the LigVideo terminal link for a cart or an explicit list of lines.",
	}, h.mcpTerminalLink)

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (h *Handler) NewMCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// === Tool Handlers ===

func (h *Handler) mcpQueryCatalog(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input QueryCatalogInput,
) (*mcp.CallToolResult, *QueryCatalogOutput, error) {
	var f catalog.Filter
	switch {
	case len(input.IDs) > 0:
		f = catalog.ByIDs(input.IDs...)
	case input.SKU != "":
		f = catalog.BySKU(input.SKU)
	case input.Name != "":
		f = catalog.ByName(input.Name)
	default:
		f = catalog.All()
	}
	f = f.WithPage(input.Page, input.PageSize)

	sealed, n, err := h.exporter.Export(ctx, f)
	if err != nil {
		h.recordExportFailure(err)
		return nil, nil, h.mcpError(err)
	}
	h.metrics.RecordExport(exportSealed, n)
	return nil, &QueryCatalogOutput{Payload: sealed, Count: n}, nil
}

func (h *Handler) mcpRestoreCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input RestoreCartInput,
) (*mcp.CallToolResult, *RestoreCartOutput, error) {
	cart, err := h.store.OpenCart(ctx, input.CartToken)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}

	report, err := h.reconciler.Reconcile(ctx, cart, toLines(input.Lines))
	if err != nil {
		return nil, nil, h.mcpError(err)
	}

	out := &RestoreCartOutput{
		CartURL: h.restoreTarget(cart),
		Lines:   make([]LineOutcome, 0, len(report.Lines)),
	}
	if report.Cookie != nil {
		out.CartToken = report.Cookie.Value
	}
	for _, l := range report.Lines {
		out.Lines = append(out.Lines, LineOutcome{ID: l.ItemID, Quantity: l.Quantity, Outcome: string(l.Outcome)})
	}
	return nil, out, nil
}

func (h *Handler) mcpTerminalLink(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input TerminalLinkInput,
) (*mcp.CallToolResult, *TerminalLinkOutput, error) {
	if len(input.Lines) > 0 {
		return nil, &TerminalLinkOutput{URL: h.links.Build(h.opts.StoreID, toLines(input.Lines), nil)}, nil
	}
	if input.CartToken == "" {
		return nil, &TerminalLinkOutput{URL: h.links.Build(h.opts.StoreID, nil, nil)}, nil
	}

	cart, err := h.store.OpenCart(ctx, input.CartToken)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	items, err := cart.Items(ctx)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	lines, parents := deeplink.FromCart(items)
	return nil, &TerminalLinkOutput{URL: h.links.Build(h.opts.StoreID, lines, parents)}, nil
}

func toLines(in []LineInput) []model.CartLine {
	lines := make([]model.CartLine, 0, len(in))
	for _, l := range in {
		lines = append(lines, model.CartLine{ItemID: l.ID, Quantity: l.Quantity})
	}
	return lines
}

// mcpError converts adapter errors to MCP-friendly errors.
func (h *Handler) mcpError(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}
	// Don't leak internal error details
	h.logger.Error("mcp internal error", "error", err.Error())
	return fmt.Errorf("internal error")
}
