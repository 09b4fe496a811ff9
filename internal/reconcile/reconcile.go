// Package reconcile rebuilds a live cart from the line list sent back by the terminal.
// Reconciliation is full replace: the cart is cleared first and every line is added
// again, so running it twice with the same input leaves the same cart.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"ligvideo-bridge/internal/adapter"
	"ligvideo-bridge/internal/cartline"
	"ligvideo-bridge/internal/model"
)

// Outcome is the per-line result of a reconciliation.
type Outcome string

const (
	OutcomeAdded           Outcome = "added"
	OutcomeProductNotFound Outcome = "product_not_found"
	OutcomeLookupFailed    Outcome = "lookup_failed"
	OutcomeAddFailed       Outcome = "add_failed"
)

// LineResult records what happened to one input line with a positive quantity.
type LineResult struct {
	Index     int // position in the input
	ItemID    int64
	Quantity  int
	ProductID int64 // product sent to the cart, the parent for variants
	VariantID int64 // zero for simple products
	Outcome   Outcome
	Err       error
}

// Report is the ordered list of line outcomes plus session state for the response.
// Lines with quantity <= 0 have no entry.
type Report struct {
	Lines  []LineResult
	Cookie *http.Cookie // cart continuation cookie, nil when the cart does not persist sessions
	Drift  *LineDiff    // difference between the requested lines and the cart afterwards, nil if unread
}

// Count returns how many lines ended with the given outcome.
func (r *Report) Count(o Outcome) int {
	n := 0
	for _, l := range r.Lines {
		if l.Outcome == o {
			n++
		}
	}
	return n
}

// Recorder receives every line outcome. metrics.Metrics implements it.
type Recorder interface {
	RecordLine(outcome string)
}

// Reconciler replaces cart contents using the catalog to resolve variants.
type Reconciler struct {
	catalog  adapter.CatalogProvider
	logger   *slog.Logger
	recorder Recorder
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithRecorder reports line outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(rc *Reconciler) {
		rc.recorder = r
	}
}

// New creates a Reconciler.
func New(catalog adapter.CatalogProvider, logger *slog.Logger, opts ...Option) *Reconciler {
	r := &Reconciler{catalog: catalog, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReconcileRaw decodes the terminal's prod parameter and reconciles it.
// A missing parameter fails with no_products and a non-array with invalid_format,
// both before the cart is touched.
func (r *Reconciler) ReconcileRaw(ctx context.Context, cart adapter.CartService, raw string) (*Report, error) {
	if raw == "" {
		return nil, model.NewNoProductsError()
	}
	results, err := cartline.Decode(raw)
	if err != nil {
		return nil, err
	}
	for _, res := range results {
		if res.Skipped {
			r.logger.WarnContext(ctx, "skipping malformed cart line", slog.String("reason", res.Reason))
		}
	}
	return r.Reconcile(ctx, cart, cartline.Lines(results))
}

// Reconcile clears cart and adds every line with a positive quantity, in input order.
// Per-line failures are recorded in the report and never abort the run. Only an empty
// input or a failure to clear the cart returns an error.
func (r *Reconciler) Reconcile(ctx context.Context, cart adapter.CartService, lines []model.CartLine) (*Report, error) {
	if len(lines) == 0 {
		return nil, model.NewNoProductsError()
	}

	if err := cart.Clear(ctx); err != nil {
		return nil, fmt.Errorf("clearing cart: %w", err)
	}
	r.logger.DebugContext(ctx, "cart cleared", slog.Int("lines", len(lines)))

	report := &Report{Lines: make([]LineResult, 0, len(lines))}
	for i, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		res := r.addLine(ctx, cart, i, line)
		if r.recorder != nil {
			r.recorder.RecordLine(string(res.Outcome))
		}
		report.Lines = append(report.Lines, res)
	}

	if err := cart.RecalculateTotals(ctx); err != nil {
		r.logger.WarnContext(ctx, "recalculating cart totals failed", slog.String("error", err.Error()))
	}

	if p, ok := cart.(adapter.SessionPersister); ok {
		cookie, err := p.PersistSession(ctx)
		if err != nil {
			r.logger.WarnContext(ctx, "persisting cart session failed", slog.String("error", err.Error()))
		} else {
			report.Cookie = cookie
		}
	}

	if current, err := cartLines(ctx, cart); err != nil {
		r.logger.WarnContext(ctx, "reading cart after reconcile failed", slog.String("error", err.Error()))
	} else {
		report.Drift = DiffLines(current, lines)
		if !report.Drift.IsEmpty() {
			r.logger.InfoContext(ctx, "cart differs from requested lines",
				slog.Int("missing", len(report.Drift.Missing)),
				slog.Int("changed", len(report.Drift.Changed)),
				slog.Int("unexpected", len(report.Drift.Unexpected)),
			)
		}
	}

	r.logger.InfoContext(ctx, "cart reconciled",
		slog.Int("added", report.Count(OutcomeAdded)),
		slog.Int("not_found", report.Count(OutcomeProductNotFound)),
		slog.Int("failed", report.Count(OutcomeAddFailed)+report.Count(OutcomeLookupFailed)),
	)
	return report, nil
}

// addLine resolves one line and issues a single cart add for it.
func (r *Reconciler) addLine(ctx context.Context, cart adapter.CartService, index int, line model.CartLine) LineResult {
	res := LineResult{Index: index, ItemID: line.ItemID, Quantity: line.Quantity}
	log := r.logger.With(slog.Int64("item_id", line.ItemID), slog.Int("quantity", line.Quantity))

	item, err := r.catalog.LookupItem(ctx, line.ItemID)
	if err != nil {
		res.Err = err
		if errors.Is(err, model.ErrNotFound) {
			res.Outcome = OutcomeProductNotFound
			log.WarnContext(ctx, "product not found")
		} else {
			res.Outcome = OutcomeLookupFailed
			log.ErrorContext(ctx, "product lookup failed", slog.String("error", err.Error()))
		}
		return res
	}

	var add model.CartAdd
	switch it := item.(type) {
	case model.VariantItem:
		add = model.CartAdd{
			ProductID:  it.ParentID,
			Quantity:   line.Quantity,
			VariantID:  it.VariantID,
			Attributes: it.Attributes,
		}
	case model.SimpleItem:
		add = model.CartAdd{ProductID: it.ProductID, Quantity: line.Quantity}
	default:
		res.Outcome = OutcomeLookupFailed
		res.Err = fmt.Errorf("unsupported item type %T", item)
		log.ErrorContext(ctx, "product lookup failed", slog.String("error", res.Err.Error()))
		return res
	}
	res.ProductID = add.ProductID
	res.VariantID = add.VariantID

	if err := cart.Add(ctx, add); err != nil {
		res.Outcome = OutcomeAddFailed
		res.Err = err
		log.WarnContext(ctx, "cart add failed",
			slog.Int64("product_id", add.ProductID),
			slog.Int64("variant_id", add.VariantID),
			slog.String("error", err.Error()),
		)
		return res
	}

	res.Outcome = OutcomeAdded
	log.DebugContext(ctx, "cart line added",
		slog.Int64("product_id", add.ProductID),
		slog.Int64("variant_id", add.VariantID),
	)
	return res
}

// cartLines reads the cart as wire lines, preferring a LineReader since the
// diff never needs variation parents.
func cartLines(ctx context.Context, cart adapter.CartService) ([]model.CartLine, error) {
	if lr, ok := cart.(adapter.LineReader); ok {
		return lr.Lines(ctx)
	}
	items, err := cart.Items(ctx)
	if err != nil {
		return nil, err
	}
	lines := make([]model.CartLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, model.CartLine{ItemID: it.WireID(), Quantity: it.Quantity})
	}
	return lines, nil
}
