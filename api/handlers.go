/*
handlers.go - HTTP API handlers for the paper-supply engine

PURPOSE:
  Exposes the ledger engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the workflow and inventory packages.

ENDPOINTS:
  Requests:
    POST   /api/requests                 Process a free-text request
    GET    /api/requests                 Processed requests, oldest first
    GET    /api/requests/{id}            One processed request

  Quotes and orders:
    POST   /api/quotes                   Quote structured items
    GET    /api/quotes/search?q=&limit=  Search quote history
    POST   /api/orders                   Quote + fulfill structured items

  Inventory:
    GET    /api/inventory?date=          Positive-only stock snapshot
    GET    /api/inventory/{item}?date=   Signed stock of one item
    POST   /api/stock-orders             Buy stock from the supplier
    POST   /api/reorder?date=            Run the reorder scan

  Ledger and reports:
    GET    /api/transactions?item=&kind=&date=
    GET    /api/reports/financial?date=
    GET    /api/reports/financial.xlsx?date=
    GET    /api/catalog

DATES:
  Query dates are YYYY-MM-DD and default to today. Body dates are required.

ERROR HANDLING:
  Errors are returned as JSON {error, details, fields} with status:
  - 400: Validation errors, invalid input
  - 404: Unknown item or request
  - 409: Order rejected (unavailable items)
  - 422: Insufficient funds
  - 503: Ledger lock busy
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/warp/paper-supply/export"
	"github.com/warp/paper-supply/generic"
	"github.com/warp/paper-supply/inventory"
	"github.com/warp/paper-supply/workflow"
	"go.uber.org/zap"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Workflow   *workflow.Orchestrator
	Projection *generic.Projection
	Logger     *zap.Logger

	validate *validator.Validate
	today    func() generic.TimePoint
}

// NewHandler creates a handler over an orchestrator. The catalog, ledger
// and quote history are the orchestrator's own.
func NewHandler(o *workflow.Orchestrator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Workflow:   o,
		Projection: generic.NewProjection(o.Ledger),
		Logger:     logger,
		validate:   validator.New(),
		today:      generic.Today,
	}
}

// =============================================================================
// REQUEST HANDLERS
// =============================================================================

// ProcessRequest runs the full workflow for a free-text request.
func (h *Handler) ProcessRequest(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, err := generic.ParseDate(req.Date)
	if err != nil {
		h.fail(w, err)
		return
	}

	res, err := h.Workflow.Process(r.Context(), workflow.Request{
		Text:      req.Text,
		Date:      date,
		JobType:   req.JobType,
		EventType: req.EventType,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) ListResults(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Workflow.Results())
}

func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	res, err := h.Workflow.Result(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Request not found", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// =============================================================================
// QUOTE AND ORDER HANDLERS
// =============================================================================

func (h *Handler) CreateQuote(w http.ResponseWriter, r *http.Request) {
	var req ItemsRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, err := generic.ParseDate(req.Date)
	if err != nil {
		h.fail(w, err)
		return
	}

	quote, err := h.Workflow.QuoteItems(r.Context(), req.requested(), date)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// CreateOrder quotes and fulfills in one call. A rejected or failed order
// still returns the quote and order alongside the error status.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req ItemsRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, err := generic.ParseDate(req.Date)
	if err != nil {
		h.fail(w, err)
		return
	}

	quote, order, err := h.Workflow.PlaceOrder(r.Context(), req.requested(), date)
	if err != nil && quote == nil {
		h.fail(w, err)
		return
	}
	status := http.StatusCreated
	if err != nil {
		status = statusFor(err)
		h.Logger.Warn("order not fulfilled", zap.String("quote_id", quote.ID), zap.Error(err))
	}
	writeJSON(w, status, OrderResponse{Quote: quote, Order: order})
}

func (h *Handler) SearchQuotes(w http.ResponseWriter, r *http.Request) {
	var terms []string
	for _, q := range r.URL.Query()["q"] {
		for _, t := range strings.Split(q, ",") {
			if t = strings.TrimSpace(t); t != "" {
				terms = append(terms, t)
			}
		}
	}
	limit := inventory.DefaultSearchLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	records, err := h.Workflow.History.SearchQuotes(r.Context(), terms, limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	dtos := make([]QuoteRecordDTO, len(records))
	for i, rec := range records {
		dtos[i] = toQuoteRecordDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// INVENTORY HANDLERS
// =============================================================================

// GetInventory returns every item with positive stock on date.
func (h *Handler) GetInventory(w http.ResponseWriter, r *http.Request) {
	date, ok := h.dateParam(w, r)
	if !ok {
		return
	}
	stock, err := h.Projection.AllStock(r.Context(), date)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, InventoryDTO{Date: date.String(), Stock: stock})
}

func (h *Handler) GetStockLevel(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "item"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid item name", err)
		return
	}
	if _, ok := h.Workflow.Catalog.Lookup(name); !ok {
		h.fail(w, &generic.NotFoundError{ItemName: name})
		return
	}
	date, ok := h.dateParam(w, r)
	if !ok {
		return
	}

	stock, err := h.Projection.StockOf(r.Context(), name, date)
	if err != nil {
		h.fail(w, err)
		return
	}
	dto := StockLevelDTO{ItemName: name, Date: date.String(), Stock: stock, Available: max(stock, 0)}
	if rec, ok := h.Workflow.Catalog.Record(name); ok {
		level := rec.MinStockLevel
		dto.MinStockLevel = &level
	}
	writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) CreateStockOrder(w http.ResponseWriter, r *http.Request) {
	var req StockOrderRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, err := generic.ParseDate(req.Date)
	if err != nil {
		h.fail(w, err)
		return
	}

	order, err := h.Workflow.PlaceStockOrder(r.Context(), req.ItemName, req.Quantity, date)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) RunReorder(w http.ResponseWriter, r *http.Request) {
	date, ok := h.dateParam(w, r)
	if !ok {
		return
	}
	outcomes, err := h.Workflow.Reorder(r.Context(), date)
	if err != nil {
		h.fail(w, err)
		return
	}
	if outcomes == nil {
		outcomes = []inventory.ReorderOutcome{}
	}
	writeJSON(w, http.StatusOK, outcomes)
}

// =============================================================================
// LEDGER AND REPORT HANDLERS
// =============================================================================

// ListTransactions queries the ledger. Without a date every row is returned.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter generic.Filter
	if s := q.Get("date"); s != "" {
		date, err := generic.ParseDate(s)
		if err != nil {
			h.fail(w, err)
			return
		}
		filter.AsOf = date
	}
	if item := q.Get("item"); item != "" {
		filter = filter.ForItem(item)
	}
	if s := q.Get("kind"); s != "" {
		kind, err := generic.ParseKind(s)
		if err != nil {
			h.fail(w, err)
			return
		}
		filter = filter.OfKind(kind)
	}

	txs, err := h.Workflow.Ledger.Query(r.Context(), filter)
	if err != nil {
		h.fail(w, err)
		return
	}
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetFinancialReport never fails; unavailable figures are marked in the body.
func (h *Handler) GetFinancialReport(w http.ResponseWriter, r *http.Request) {
	date, ok := h.dateParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.Workflow.Report(r.Context(), date))
}

// ExportFinancialReport streams the report and the ledger up to date as XLSX.
func (h *Handler) ExportFinancialReport(w http.ResponseWriter, r *http.Request) {
	date, ok := h.dateParam(w, r)
	if !ok {
		return
	}
	rep := h.Workflow.Report(r.Context(), date)
	txs, err := h.Workflow.Ledger.Query(r.Context(), generic.Filter{AsOf: date})
	if err != nil {
		h.Logger.Warn("ledger sheet omitted from export", zap.Error(err))
		txs = nil
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=financial-report-%s.xlsx", date))
	if err := export.WriteReport(w, rep, txs); err != nil {
		h.Logger.Error("export failed", zap.Error(err))
	}
}

func (h *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	items := h.Workflow.Catalog.Items()
	dtos := make([]CatalogItemDTO, len(items))
	for i, it := range items {
		dtos[i] = CatalogItemDTO{ItemName: it.Name, Category: it.Category, UnitPrice: it.UnitPrice.StringFixed(2)}
		if rec, ok := h.Workflow.Catalog.Record(it.Name); ok {
			level := rec.MinStockLevel
			dtos[i].Tracked = true
			dtos[i].MinStockLevel = &level
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// decode reads a JSON body into dst and validates it. On failure the
// response has been written and false is returned.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Namespace()] = fe.Tag()
			}
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Fields: fields})
			return false
		}
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

func (h *Handler) dateParam(w http.ResponseWriter, r *http.Request) (generic.TimePoint, bool) {
	s := r.URL.Query().Get("date")
	if s == "" {
		return h.today(), true
	}
	date, err := generic.ParseDate(s)
	if err != nil {
		h.fail(w, err)
		return generic.TimePoint{}, false
	}
	return date, true
}

// fail maps a domain error onto a status code and writes it.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("request failed", zap.Error(err))
	}
	writeError(w, status, http.StatusText(status), err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, generic.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, generic.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, generic.ErrOrderRejected):
		return http.StatusConflict
	case errors.Is(err, generic.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case generic.IsRetryable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
