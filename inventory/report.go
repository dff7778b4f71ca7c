package inventory

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/paper-supply/generic"
	"go.uber.org/zap"
)

// =============================================================================
// FINANCIAL REPORT
// =============================================================================

// TopSellingLimit is how many best sellers a report lists.
const TopSellingLimit = 5

// Measure is a figure that may not have been computable. When Available is
// false, Value is zero and Error says why.
type Measure struct {
	Value     decimal.Decimal `json:"value"`
	Available bool            `json:"available"`
	Error     string          `json:"error,omitempty"`
}

func measureOf(v decimal.Decimal, err error) Measure {
	if err != nil {
		return Measure{Value: decimal.Zero, Error: err.Error()}
	}
	return Measure{Value: v, Available: true}
}

type ItemSummary struct {
	ItemName      string          `json:"item_name"`
	Category      string          `json:"category"`
	Stock         int             `json:"stock"`
	MinStockLevel int             `json:"min_stock_level"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Value         decimal.Decimal `json:"value"`
}

type TopSeller struct {
	ItemName     string          `json:"item_name"`
	TotalUnits   int             `json:"total_units"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
}

type FinancialReport struct {
	AsOf             generic.TimePoint `json:"as_of_date"`
	Cash             Measure           `json:"cash_balance"`
	InventoryValue   Measure           `json:"inventory_value"`
	TotalAssets      Measure           `json:"total_assets"`
	InventorySummary []ItemSummary     `json:"inventory_summary"`
	TopSelling       []TopSeller       `json:"top_selling_products"`
}

type Reporter struct {
	Catalog    *Catalog
	Projection *generic.Projection
	Logger     *zap.Logger
}

func NewReporter(catalog *Catalog, projection *generic.Projection, logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{Catalog: catalog, Projection: projection, Logger: logger}
}

// Report builds the books as of asOf. It never fails: a figure that could
// not be computed comes back with Available=false, and sections that could
// not be computed come back empty.
func (r *Reporter) Report(ctx context.Context, asOf generic.TimePoint) *FinancialReport {
	rep := &FinancialReport{AsOf: asOf}

	cash, err := r.Projection.CashBalance(ctx, asOf)
	if err != nil {
		r.Logger.Warn("cash balance unavailable", zap.String("as_of", asOf.String()), zap.Error(err))
	}
	rep.Cash = measureOf(cash, err)

	value, err := r.Projection.InventoryValuation(ctx, r.Catalog.PricedItems(), asOf)
	if err != nil {
		r.Logger.Warn("inventory value unavailable", zap.String("as_of", asOf.String()), zap.Error(err))
	}
	rep.InventoryValue = measureOf(value, err)

	if rep.Cash.Available && rep.InventoryValue.Available {
		rep.TotalAssets = Measure{Value: rep.Cash.Value.Add(rep.InventoryValue.Value), Available: true}
	} else {
		rep.TotalAssets = Measure{Value: decimal.Zero, Error: "depends on an unavailable figure"}
	}

	rep.InventorySummary = r.summary(ctx, asOf)
	rep.TopSelling = r.topSelling(ctx, asOf)
	return rep
}

// summary lists tracked items with signed stock, matching the valuation.
func (r *Reporter) summary(ctx context.Context, asOf generic.TimePoint) []ItemSummary {
	records := r.Catalog.Records()
	out := make([]ItemSummary, 0, len(records))
	for _, rec := range records {
		stock, err := r.Projection.StockOf(ctx, rec.Item.Name, asOf)
		if err != nil {
			r.Logger.Warn("inventory summary unavailable", zap.Error(err))
			return []ItemSummary{}
		}
		out = append(out, ItemSummary{
			ItemName:      rec.Item.Name,
			Category:      rec.Item.Category,
			Stock:         stock,
			MinStockLevel: rec.MinStockLevel,
			UnitPrice:     rec.Item.UnitPrice,
			Value:         rec.Item.UnitPrice.Mul(decimal.NewFromInt(int64(stock))),
		})
	}
	return out
}

// topSelling sorts by revenue descending; ties keep first-sale order.
func (r *Reporter) topSelling(ctx context.Context, asOf generic.TimePoint) []TopSeller {
	sales, err := r.Projection.SalesByItem(ctx, asOf)
	if err != nil {
		r.Logger.Warn("top sellers unavailable", zap.Error(err))
		return []TopSeller{}
	}
	sort.SliceStable(sales, func(i, j int) bool {
		return sales[i].Revenue.GreaterThan(sales[j].Revenue)
	})
	if len(sales) > TopSellingLimit {
		sales = sales[:TopSellingLimit]
	}
	out := make([]TopSeller, len(sales))
	for i, s := range sales {
		out[i] = TopSeller{ItemName: s.ItemName, TotalUnits: s.Units, TotalRevenue: s.Revenue}
	}
	return out
}
