package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/paper-supply/generic"
	"go.uber.org/zap"
)

// =============================================================================
// QUOTING ENGINE
// =============================================================================

const (
	// BulkThreshold is the total unit count a request must exceed for a discount.
	BulkThreshold = 1000

	ReasonNotInCatalog   = "not in catalog"
	ReasonVolumeDiscount = "Volume discount for orders over 1000 units"
)

// BulkDiscountRate is applied to every line when a request qualifies.
var BulkDiscountRate = decimal.RequireFromString("0.15")

// RequestedItem is one line of a customer request after extraction.
type RequestedItem struct {
	ItemName string `json:"item_name"`
	Quantity int    `json:"quantity"`
}

// QuoteLine is the priced outcome for one RequestedItem.
type QuoteLine struct {
	ItemName        string          `json:"item_name"`
	Quantity        int             `json:"quantity"`
	Available       bool            `json:"available"`
	AvailableStock  int             `json:"available_stock"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	ItemTotal       decimal.Decimal `json:"item_total"`
	DiscountedTotal decimal.Decimal `json:"discounted_total"`
	Reason          string          `json:"reason,omitempty"`
}

type Discount struct {
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

// Quote is ephemeral: it lives for one request and is never written to the ledger.
type Quote struct {
	ID                string            `json:"id"`
	Date              generic.TimePoint `json:"date"`
	Lines             []QuoteLine       `json:"lines"`
	TotalUnits        int               `json:"total_units"`
	Subtotal          decimal.Decimal   `json:"subtotal"`
	TotalAmount       decimal.Decimal   `json:"total_amount"`
	AllItemsAvailable bool              `json:"all_items_available"`
	Discount          *Discount         `json:"discount,omitempty"`
	Explanation       string            `json:"explanation"`
}

// UnavailableLines returns the lines that blocked the quote.
func (q *Quote) UnavailableLines() []QuoteLine {
	var out []QuoteLine
	for _, l := range q.Lines {
		if !l.Available {
			out = append(out, l)
		}
	}
	return out
}

type Quoter struct {
	Catalog    *Catalog
	Projection *generic.Projection
	Logger     *zap.Logger
}

func NewQuoter(catalog *Catalog, projection *generic.Projection, logger *zap.Logger) *Quoter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Quoter{Catalog: catalog, Projection: projection, Logger: logger}
}

// Quote prices items against stock on date.
//
// Availability uses max(StockOf, 0), so an item with negative stock quotes
// exactly like an empty shelf. When the request's total units exceed
// BulkThreshold every line is discounted individually and rounded to cents;
// TotalAmount is the sum of those lines, so it always equals what
// fulfillment records.
func (q *Quoter) Quote(ctx context.Context, items []RequestedItem, date generic.TimePoint) (*Quote, error) {
	if date.IsZero() {
		return nil, &generic.ValidationError{Field: "date", Message: "date is required"}
	}
	for _, it := range items {
		if it.Quantity < 0 {
			return nil, &generic.ValidationError{Field: "quantity", Message: fmt.Sprintf("%q: quantity must not be negative", it.ItemName)}
		}
	}

	quote := &Quote{
		ID:                uuid.NewString(),
		Date:              date,
		Lines:             make([]QuoteLine, 0, len(items)),
		Subtotal:          decimal.Zero,
		TotalAmount:       decimal.Zero,
		AllItemsAvailable: true,
	}

	for _, it := range items {
		line, err := q.priceLine(ctx, it, date)
		if err != nil {
			return nil, err
		}
		quote.TotalUnits += it.Quantity
		if line.Available {
			quote.Subtotal = quote.Subtotal.Add(line.ItemTotal)
		} else {
			quote.AllItemsAvailable = false
		}
		quote.Lines = append(quote.Lines, line)
	}

	rate := decimal.Zero
	if quote.TotalUnits > BulkThreshold {
		rate = BulkDiscountRate
	}
	keep := decimal.NewFromInt(1).Sub(rate)
	for i := range quote.Lines {
		line := &quote.Lines[i]
		if !line.Available {
			continue
		}
		line.DiscountedTotal = generic.Cents(line.ItemTotal.Mul(keep))
		quote.TotalAmount = quote.TotalAmount.Add(line.DiscountedTotal)
	}
	if rate.IsPositive() {
		quote.Discount = &Discount{
			Rate:   rate,
			Amount: quote.Subtotal.Sub(quote.TotalAmount),
			Reason: ReasonVolumeDiscount,
		}
	}
	quote.Explanation = explainQuote(quote)

	q.Logger.Debug("quote priced",
		zap.String("quote_id", quote.ID),
		zap.String("date", date.String()),
		zap.Int("lines", len(quote.Lines)),
		zap.Int("total_units", quote.TotalUnits),
		zap.String("total", quote.TotalAmount.StringFixed(2)),
		zap.Bool("all_available", quote.AllItemsAvailable))
	return quote, nil
}

func (q *Quoter) priceLine(ctx context.Context, it RequestedItem, date generic.TimePoint) (QuoteLine, error) {
	line := QuoteLine{
		ItemName:        it.ItemName,
		Quantity:        it.Quantity,
		UnitPrice:       decimal.Zero,
		ItemTotal:       decimal.Zero,
		DiscountedTotal: decimal.Zero,
	}
	item, ok := q.Catalog.Lookup(it.ItemName)
	if !ok {
		line.Reason = ReasonNotInCatalog
		return line, nil
	}
	line.UnitPrice = item.UnitPrice

	available, err := q.Projection.Available(ctx, it.ItemName, date)
	if err != nil {
		return QuoteLine{}, fmt.Errorf("quote %q: %w", it.ItemName, err)
	}
	line.AvailableStock = available
	if it.Quantity > available {
		line.Reason = fmt.Sprintf("Insufficient stock. Only %d units available.", available)
		return line, nil
	}
	line.Available = true
	line.ItemTotal = item.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
	return line, nil
}

func explainQuote(q *Quote) string {
	if !q.AllItemsAvailable {
		return "Some items are not available in the requested quantities. See item details for more information."
	}
	text := "All requested items are available."
	if q.Discount != nil {
		text += fmt.Sprintf(" A %s%% discount was applied due to the large order size.",
			q.Discount.Rate.Mul(decimal.NewFromInt(100)).String())
	}
	return text
}
