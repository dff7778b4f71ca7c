/*
Package workflow runs one customer request end to end.

PURPOSE:
  Ties extraction, quoting, fulfillment, restocking and reporting into a
  single sequential pass per request. Nothing here does bookkeeping of its
  own; every figure comes from the inventory and generic packages.

STATE MACHINE:
  Received -> Extracted -> Quoted -> Fulfilled | QuoteOnly | Rejected
  Received -> Extracted -> NoItems            (nothing recognised)

  After any of those, the reorder scan runs for the request date, then a
  financial snapshot is taken. A failed scan is recorded on the result,
  it does not fail the request.

SERIALIZATION:
  Every method that reads and then writes the ledger holds the
  orchestrator's mutex and runs inside Ledger.WithLock, so one request's
  quote/fulfill/reorder sequence never interleaves with another's, even
  across processes sharing a Redis locker.

SEE ALSO:
  - response.go: Customer-facing text
  - inventory/: Quoting, fulfillment, reorder and reporting
  - extract/: Request text to items
*/
package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/paper-supply/extract"
	"github.com/warp/paper-supply/generic"
	"github.com/warp/paper-supply/inventory"
	"go.uber.org/zap"
)

// =============================================================================
// TYPES
// =============================================================================

type State string

const (
	StateReceived  State = "received"
	StateExtracted State = "extracted"
	StateQuoted    State = "quoted"
	StateFulfilled State = "fulfilled"
	StateQuoteOnly State = "quote_only"
	StateRejected  State = "rejected"
	StateNoItems   State = "no_items"
)

// Request is one customer request. JobType and EventType, when set,
// override whatever extraction finds.
type Request struct {
	Text      string            `json:"text"`
	Date      generic.TimePoint `json:"date"`
	JobType   string            `json:"job_type,omitempty"`
	EventType string            `json:"event_type,omitempty"`
}

// Snapshot is the company position after a request.
type Snapshot struct {
	Date           generic.TimePoint `json:"date"`
	Cash           inventory.Measure `json:"cash_balance"`
	InventoryValue inventory.Measure `json:"inventory_value"`
	TotalAssets    inventory.Measure `json:"total_assets"`
}

// Result records everything that happened for one request.
type Result struct {
	ID           string                     `json:"id"`
	Request      Request                    `json:"request"`
	State        State                      `json:"state"`
	Items        []inventory.RequestedItem  `json:"items"`
	Context      map[string]string          `json:"context"`
	Quote        *inventory.Quote           `json:"quote,omitempty"`
	Order        *inventory.Order           `json:"order,omitempty"`
	Similar      []inventory.QuoteRecord    `json:"similar_quotes"`
	Reorders     []inventory.ReorderOutcome `json:"reorders"`
	ReorderError string                     `json:"reorder_error,omitempty"`
	Reason       string                     `json:"reason,omitempty"`
	Financial    Snapshot                   `json:"financial"`
	Response     string                     `json:"response"`
	ProcessedAt  time.Time                  `json:"processed_at"`
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

type Orchestrator struct {
	Catalog   *inventory.Catalog
	Ledger    generic.Ledger
	Extractor extract.Extractor
	History   inventory.QuoteHistory
	Quoter    *inventory.Quoter
	Fulfiller *inventory.Fulfiller
	Restocker *inventory.Restocker
	Reporter  *inventory.Reporter
	Logger    *zap.Logger

	mu sync.Mutex

	resultsMu sync.RWMutex
	results   []*Result
}

// New wires the inventory components over one ledger. A nil history keeps
// quotes in memory; a nil extractor uses the rule-based one.
func New(catalog *inventory.Catalog, ledger generic.Ledger, history inventory.QuoteHistory, extractor extract.Extractor, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if history == nil {
		history = inventory.NewMemoryHistory()
	}
	if extractor == nil {
		extractor = extract.NewRuleBased()
	}
	projection := generic.NewProjection(ledger)
	return &Orchestrator{
		Catalog:   catalog,
		Ledger:    ledger,
		Extractor: extractor,
		History:   history,
		Quoter:    inventory.NewQuoter(catalog, projection, logger),
		Fulfiller: inventory.NewFulfiller(ledger, logger),
		Restocker: inventory.NewRestocker(catalog, projection, ledger, logger),
		Reporter:  inventory.NewReporter(catalog, projection, logger),
		Logger:    logger,
	}
}

// Process handles one request. Errors are returned for invalid input and
// for store faults while quoting; every other outcome is a Result.
func (o *Orchestrator) Process(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, &generic.ValidationError{Field: "text", Message: "request text is required"}
	}
	if req.Date.IsZero() {
		return nil, &generic.ValidationError{Field: "date", Message: "date is required"}
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	var res *Result
	err := o.Ledger.WithLock(ctx, func(ctx context.Context) error {
		var err error
		res, err = o.process(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	o.resultsMu.Lock()
	o.results = append(o.results, res)
	o.resultsMu.Unlock()
	return res, nil
}

func (o *Orchestrator) process(ctx context.Context, req Request) (*Result, error) {
	res := &Result{
		ID:      uuid.NewString(),
		Request: req,
		State:   StateReceived,
		Items:   []inventory.RequestedItem{},
		Similar: []inventory.QuoteRecord{},
	}
	log := o.Logger.With(zap.String("request_id", res.ID), zap.String("date", req.Date.String()))

	res.Items = o.extractItems(ctx, req.Text, log)
	res.Context = o.extractContext(ctx, req, log)
	res.State = StateExtracted

	if len(res.Items) == 0 {
		res.State = StateNoItems
		res.Reason = "no catalog items recognised"
	} else if err := o.quoteAndFulfill(ctx, res, log); err != nil {
		return nil, err
	}

	o.reorder(ctx, res, log)
	res.Financial = o.snapshot(ctx, req.Date)
	res.Response = RenderResponse(res)
	res.ProcessedAt = time.Now().UTC()

	log.Info("request processed",
		zap.String("state", string(res.State)),
		zap.Int("items", len(res.Items)),
		zap.Int("reorders", len(res.Reorders)))
	return res, nil
}

func (o *Orchestrator) extractItems(ctx context.Context, text string, log *zap.Logger) []inventory.RequestedItem {
	items, err := o.Extractor.ExtractItems(ctx, text, o.Catalog.Names())
	if err != nil {
		log.Warn("item extraction failed", zap.Error(err))
		return []inventory.RequestedItem{}
	}
	// Anything an extractor returns still passes the boundary check.
	raw := make([]map[string]any, len(items))
	for i, it := range items {
		raw[i] = map[string]any{"item_name": it.ItemName, "quantity": it.Quantity}
	}
	valid, rejected := extract.Validate(raw, o.Catalog.Names())
	for _, r := range rejected {
		log.Debug("extracted item dropped", zap.Int("index", r.Index), zap.String("reason", r.Reason))
	}
	if valid == nil {
		valid = []inventory.RequestedItem{}
	}
	return valid
}

func (o *Orchestrator) extractContext(ctx context.Context, req Request, log *zap.Logger) map[string]string {
	hints, err := o.Extractor.ExtractContext(ctx, req.Text)
	if err != nil {
		log.Warn("context extraction failed", zap.Error(err))
	}
	if hints == nil {
		hints = make(map[string]string)
	}
	if req.JobType != "" {
		hints[extract.KeyJobType] = req.JobType
	}
	if req.EventType != "" {
		hints[extract.KeyEventType] = req.EventType
	}
	return hints
}

func (o *Orchestrator) quoteAndFulfill(ctx context.Context, res *Result, log *zap.Logger) error {
	quote, err := o.Quoter.Quote(ctx, res.Items, res.Request.Date)
	if err != nil {
		return err
	}
	res.Quote = quote
	res.State = StateQuoted

	similar, err := o.History.SearchQuotes(ctx, SearchTerms(res.Context, res.Items), inventory.DefaultSearchLimit)
	if err != nil {
		log.Warn("quote history search failed", zap.Error(err))
	} else if similar != nil {
		res.Similar = similar
	}

	if !quote.AllItemsAvailable {
		res.State = StateQuoteOnly
		res.Reason = "Not all requested items are available"
	} else {
		order, err := o.Fulfiller.Fulfill(ctx, quote, res.Request.Date)
		res.Order = order
		if err != nil {
			res.State = StateRejected
			res.Reason = err.Error()
			log.Warn("fulfillment failed", zap.String("quote_id", quote.ID), zap.Error(err))
		} else {
			res.State = StateFulfilled
		}
	}

	rec := inventory.QuoteRecord{
		Request:     res.Request.Text,
		TotalAmount: quote.TotalAmount,
		Explanation: quote.Explanation,
		JobType:     res.Context[extract.KeyJobType],
		OrderSize:   res.Context[extract.KeyOrderSize],
		EventType:   res.Context[extract.KeyEventType],
		OrderDate:   res.Request.Date.Time,
	}
	if _, err := o.History.SaveQuote(ctx, rec); err != nil {
		log.Warn("quote history save failed", zap.Error(err))
	}
	return nil
}

func (o *Orchestrator) reorder(ctx context.Context, res *Result, log *zap.Logger) {
	outcomes, err := o.Restocker.Scan(ctx, res.Request.Date)
	if outcomes == nil {
		outcomes = []inventory.ReorderOutcome{}
	}
	res.Reorders = outcomes
	if err != nil {
		res.ReorderError = err.Error()
		log.Error("reorder scan failed", zap.Error(err))
	}
}

func (o *Orchestrator) snapshot(ctx context.Context, date generic.TimePoint) Snapshot {
	rep := o.Reporter.Report(ctx, date)
	return Snapshot{
		Date:           date,
		Cash:           rep.Cash,
		InventoryValue: rep.InventoryValue,
		TotalAssets:    rep.TotalAssets,
	}
}

// SearchTerms builds history search terms from request context and items:
// job and event type, item names, then organization, industry and purpose.
// Empty and repeated terms (case-insensitive) are dropped.
func SearchTerms(hints map[string]string, items []inventory.RequestedItem) []string {
	var terms []string
	seen := make(map[string]bool)
	add := func(t string) {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			return
		}
		seen[key] = true
		terms = append(terms, t)
	}

	add(hints[extract.KeyJobType])
	add(hints[extract.KeyEventType])
	for _, it := range items {
		add(it.ItemName)
	}
	for _, k := range []string{extract.KeyOrganization, extract.KeyIndustry, extract.KeyPurpose} {
		add(hints[k])
	}
	return terms
}

// =============================================================================
// DIRECT OPERATIONS
// =============================================================================

// QuoteItems prices structured items without writing anything.
func (o *Orchestrator) QuoteItems(ctx context.Context, items []inventory.RequestedItem, date generic.TimePoint) (*inventory.Quote, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.Quoter.Quote(ctx, items, date)
}

// PlaceOrder quotes structured items and fulfills the quote. The quote is
// returned even when fulfillment fails.
func (o *Orchestrator) PlaceOrder(ctx context.Context, items []inventory.RequestedItem, date generic.TimePoint) (*inventory.Quote, *inventory.Order, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var (
		quote *inventory.Quote
		order *inventory.Order
	)
	err := o.Ledger.WithLock(ctx, func(ctx context.Context) error {
		var err error
		quote, err = o.Quoter.Quote(ctx, items, date)
		if err != nil {
			return err
		}
		order, err = o.Fulfiller.Fulfill(ctx, quote, date)
		return err
	})
	return quote, order, err
}

func (o *Orchestrator) PlaceStockOrder(ctx context.Context, itemName string, quantity int, date generic.TimePoint) (*inventory.StockOrder, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.Restocker.PlaceStockOrder(ctx, itemName, quantity, date)
}

func (o *Orchestrator) Reorder(ctx context.Context, date generic.TimePoint) ([]inventory.ReorderOutcome, error) {
	if date.IsZero() {
		return nil, &generic.ValidationError{Field: "date", Message: "date is required"}
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.Restocker.Scan(ctx, date)
}

// Report is not serialized; projections read a consistent ledger prefix.
func (o *Orchestrator) Report(ctx context.Context, asOf generic.TimePoint) *inventory.FinancialReport {
	return o.Reporter.Report(ctx, asOf)
}

// Results returns processed requests, oldest first.
func (o *Orchestrator) Results() []*Result {
	o.resultsMu.RLock()
	defer o.resultsMu.RUnlock()
	out := make([]*Result, len(o.results))
	copy(out, o.results)
	return out
}

// Result looks up a processed request by id.
func (o *Orchestrator) Result(id string) (*Result, error) {
	o.resultsMu.RLock()
	defer o.resultsMu.RUnlock()
	for _, r := range o.results {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, errResultNotFound
}

var errResultNotFound = errors.New("result not found")

// IsResultNotFound reports whether err came from Result.
func IsResultNotFound(err error) bool { return errors.Is(err, errResultNotFound) }
