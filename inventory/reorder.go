package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/paper-supply/generic"
	"go.uber.org/zap"
)

// =============================================================================
// REORDER POLICY
// =============================================================================

// MinReorderQuantity is the smallest stock order the restocker places.
const MinReorderQuantity = 500

// LeadTimeDays is the supplier delivery estimate for a quantity.
//
//	<= 10    same day
//	<= 100   1 day
//	<= 1000  4 days
//	>  1000  7 days
func LeadTimeDays(quantity int) int {
	switch {
	case quantity <= 10:
		return 0
	case quantity <= 100:
		return 1
	case quantity <= 1000:
		return 4
	default:
		return 7
	}
}

func DeliveryDate(orderDate generic.TimePoint, quantity int) generic.TimePoint {
	return orderDate.AddDays(LeadTimeDays(quantity))
}

// ReorderQuantity brings a low item back to twice its threshold, never
// ordering fewer than MinReorderQuantity.
func ReorderQuantity(minStockLevel, currentLevel int) int {
	q := 2*minStockLevel - currentLevel
	if q < MinReorderQuantity {
		return MinReorderQuantity
	}
	return q
}

// StockOrder is a placed supplier order.
type StockOrder struct {
	ItemName      string                `json:"item_name"`
	Quantity      int                   `json:"quantity"`
	UnitPrice     decimal.Decimal       `json:"unit_price"`
	TotalCost     decimal.Decimal       `json:"total_cost"`
	OrderDate     generic.TimePoint     `json:"order_date"`
	DeliveryDate  generic.TimePoint     `json:"delivery_date"`
	LeadTimeDays  int                   `json:"lead_time_days"`
	TransactionID generic.TransactionID `json:"transaction_id"`
}

type ReorderStatus string

const (
	ReorderOrdered ReorderStatus = "ordered"
	ReorderSkipped ReorderStatus = "skipped"
)

// ReorderOutcome is the scan result for one item at or below its threshold.
type ReorderOutcome struct {
	ItemName      string        `json:"item_name"`
	CurrentLevel  int           `json:"current_level"`
	MinStockLevel int           `json:"min_stock_level"`
	Quantity      int           `json:"quantity"`
	Status        ReorderStatus `json:"status"`
	Order         *StockOrder   `json:"order,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Err           error         `json:"-"`
}

type Restocker struct {
	Catalog    *Catalog
	Projection *generic.Projection
	Ledger     generic.Ledger
	Logger     *zap.Logger
}

func NewRestocker(catalog *Catalog, projection *generic.Projection, ledger generic.Ledger, logger *zap.Logger) *Restocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Restocker{Catalog: catalog, Projection: projection, Ledger: ledger, Logger: logger}
}

// PlaceStockOrder buys quantity units of an item on date.
//
// Returns *generic.NotFoundError when the item is not in the catalog and
// *generic.InsufficientFundsError when cash on date does not cover the
// cost. In both cases nothing is written. The StockReceipt is dated the
// order date; the delivery date is informational only. The cash check and
// the append run under the ledger lock.
func (r *Restocker) PlaceStockOrder(ctx context.Context, itemName string, quantity int, date generic.TimePoint) (*StockOrder, error) {
	if quantity <= 0 {
		return nil, &generic.ValidationError{Field: "quantity", Message: "stock order quantity must be > 0"}
	}
	if date.IsZero() {
		return nil, &generic.ValidationError{Field: "date", Message: "date is required"}
	}
	item, ok := r.Catalog.Lookup(itemName)
	if !ok {
		return nil, &generic.NotFoundError{ItemName: itemName}
	}

	cost := generic.Cents(item.UnitPrice.Mul(decimal.NewFromInt(int64(quantity))))
	var order *StockOrder
	err := r.Ledger.WithLock(ctx, func(ctx context.Context) error {
		var err error
		order, err = r.placeLocked(ctx, item, quantity, cost, date)
		return err
	})
	if err != nil {
		return nil, err
	}

	r.Logger.Info("stock order placed",
		zap.String("item", itemName),
		zap.Int("quantity", quantity),
		zap.String("cost", cost.StringFixed(2)),
		zap.String("delivery_date", order.DeliveryDate.String()))
	return order, nil
}

func (r *Restocker) placeLocked(ctx context.Context, item CatalogItem, quantity int, cost decimal.Decimal, date generic.TimePoint) (*StockOrder, error) {
	itemName := item.Name
	cash, err := r.Projection.CashBalance(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("stock order %q: %w", itemName, err)
	}
	if cash.LessThan(cost) {
		return nil, &generic.InsufficientFundsError{
			ItemName:  itemName,
			Quantity:  quantity,
			Required:  cost,
			Available: cash,
			Shortfall: cost.Sub(cash),
		}
	}

	order := &StockOrder{
		ItemName:     itemName,
		Quantity:     quantity,
		UnitPrice:    item.UnitPrice,
		TotalCost:    cost,
		OrderDate:    date,
		DeliveryDate: DeliveryDate(date, quantity),
		LeadTimeDays: LeadTimeDays(quantity),
	}
	id, err := r.Ledger.Append(ctx, generic.Transaction{
		ItemName:   itemName,
		Kind:       generic.KindStockReceipt,
		Units:      generic.UnitsPtr(quantity),
		Amount:     cost,
		OccurredOn: date,
		Reference:  "delivery:" + order.DeliveryDate.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("stock order %q: %w", itemName, err)
	}
	order.TransactionID = id
	return order, nil
}

// Scan checks every tracked item against its threshold on date and places
// stock orders for those at or below it, in catalog seed order. Each order
// sees the cash left by the ones before it.
//
// Funding and lookup failures are recorded as skipped outcomes. Only store
// faults abort the scan; the outcomes gathered so far are still returned.
// The whole scan holds the ledger lock.
func (r *Restocker) Scan(ctx context.Context, date generic.TimePoint) ([]ReorderOutcome, error) {
	var outcomes []ReorderOutcome
	err := r.Ledger.WithLock(ctx, func(ctx context.Context) error {
		var err error
		outcomes, err = r.scanLocked(ctx, date)
		return err
	})
	return outcomes, err
}

func (r *Restocker) scanLocked(ctx context.Context, date generic.TimePoint) ([]ReorderOutcome, error) {
	var outcomes []ReorderOutcome
	for _, rec := range r.Catalog.Records() {
		level, err := r.Projection.Available(ctx, rec.Item.Name, date)
		if err != nil {
			return outcomes, fmt.Errorf("reorder scan: %w", err)
		}
		if level > rec.MinStockLevel {
			continue
		}

		out := ReorderOutcome{
			ItemName:      rec.Item.Name,
			CurrentLevel:  level,
			MinStockLevel: rec.MinStockLevel,
			Quantity:      ReorderQuantity(rec.MinStockLevel, level),
		}
		order, err := r.PlaceStockOrder(ctx, rec.Item.Name, out.Quantity, date)
		switch {
		case err == nil:
			out.Status = ReorderOrdered
			out.Order = order
		case errors.Is(err, generic.ErrInsufficientFunds), errors.Is(err, generic.ErrNotFound):
			out.Status = ReorderSkipped
			out.Reason = err.Error()
			out.Err = err
			r.Logger.Warn("reorder skipped",
				zap.String("item", rec.Item.Name),
				zap.Int("quantity", out.Quantity),
				zap.Error(err))
		default:
			return outcomes, fmt.Errorf("reorder scan: %w", err)
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}
