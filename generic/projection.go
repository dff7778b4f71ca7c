/*
projection.go - Point-in-time views folded out of the ledger

PURPOSE:
  Every number the business looks at (stock on hand, cash, inventory
  value, best sellers) is a projection: a left fold over ledger rows
  with OccurredOn <= asOf. Nothing here writes.

KEY INSIGHT:
  There is ONE canonical stock function, StockOf, and it is signed. A
  sale larger than tracked receipts legally drives it negative. Callers
  that need a floor apply it themselves (see Available); AllStock is the
  positive-only snapshot and simply omits items at or below zero.

VIEWS:
  StockOf:            receipts - sales for one item (signed, 0 if unseen)
  Available:          max(StockOf, 0)
  AllStock:           item -> net, only items with net > 0
  CashBalance:        sum(sales.amount) - sum(receipts.amount)
  InventoryValuation: sum(StockOf * unit price), signed stock
  SalesByItem:        cumulative units and revenue per item

BOUNDARY:
  The as-of date is inclusive. A row dated exactly asOf is counted.

EXAMPLE:
  p := generic.NewProjection(ledger)
  stock, _ := p.StockOf(ctx, "A4 paper", generic.MustParseDate("2025-01-02"))
  cash, _ := p.CashBalance(ctx, generic.MustParseDate("2025-01-02"))

SEE ALSO:
  - ledger.go: Source of rows
  - inventory/report.go: Builds the financial report from these views
*/
package generic

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PROJECTION ENGINE
// =============================================================================

type Projection struct {
	Ledger Ledger
}

func NewProjection(ledger Ledger) *Projection {
	return &Projection{Ledger: ledger}
}

// PricedItem is the minimum a valuation needs to know about an item.
type PricedItem struct {
	Name      string
	UnitPrice decimal.Decimal
}

// ItemSales is the cumulative sales of one item.
type ItemSales struct {
	ItemName string
	Units    int
	Revenue  decimal.Decimal
}

// StockOf returns receipts minus sales for one item, inclusive of asOf.
func (p *Projection) StockOf(ctx context.Context, itemName string, asOf TimePoint) (int, error) {
	txs, err := p.Ledger.Query(ctx, Filter{AsOf: asOf}.ForItem(itemName))
	if err != nil {
		return 0, fmt.Errorf("stock of %q: %w", itemName, err)
	}
	stock := 0
	for _, tx := range txs {
		stock += signedUnits(tx)
	}
	return stock, nil
}

// Available is StockOf floored at zero. Quoting and the reorder scan use it
// so negative stock is treated exactly like an empty shelf.
func (p *Projection) Available(ctx context.Context, itemName string, asOf TimePoint) (int, error) {
	stock, err := p.StockOf(ctx, itemName, asOf)
	if err != nil {
		return 0, err
	}
	if stock < 0 {
		return 0, nil
	}
	return stock, nil
}

// AllStock returns the positive-only snapshot. Items at zero or below are
// omitted even though StockOf would report their true value.
func (p *Projection) AllStock(ctx context.Context, asOf TimePoint) (map[string]int, error) {
	txs, err := p.Ledger.Query(ctx, Filter{AsOf: asOf})
	if err != nil {
		return nil, fmt.Errorf("all stock: %w", err)
	}
	net := make(map[string]int)
	for _, tx := range txs {
		if !tx.HasItem() {
			continue
		}
		net[tx.ItemName] += signedUnits(tx)
	}
	for name, n := range net {
		if n <= 0 {
			delete(net, name)
		}
	}
	return net, nil
}

// CashBalance returns sales revenue minus stock cost up to asOf.
// On a store fault the value is zero and the error is returned alongside;
// the report layer turns that into an explicit "unavailable" figure.
func (p *Projection) CashBalance(ctx context.Context, asOf TimePoint) (decimal.Decimal, error) {
	txs, err := p.Ledger.Query(ctx, Filter{AsOf: asOf})
	if err != nil {
		return decimal.Zero, fmt.Errorf("cash balance: %w", err)
	}
	cash := decimal.Zero
	for _, tx := range txs {
		switch tx.Kind {
		case KindSale:
			cash = cash.Add(tx.Amount)
		case KindStockReceipt:
			cash = cash.Sub(tx.Amount)
		}
	}
	return cash, nil
}

// InventoryValuation sums signed stock times unit price. Negative stock
// subtracts value.
func (p *Projection) InventoryValuation(ctx context.Context, items []PricedItem, asOf TimePoint) (decimal.Decimal, error) {
	txs, err := p.Ledger.Query(ctx, Filter{AsOf: asOf})
	if err != nil {
		return decimal.Zero, fmt.Errorf("inventory valuation: %w", err)
	}
	net := make(map[string]int)
	for _, tx := range txs {
		if tx.HasItem() {
			net[tx.ItemName] += signedUnits(tx)
		}
	}
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(net[item.Name]))))
	}
	return total, nil
}

// SalesByItem aggregates sales with an item name, in first-seen order.
func (p *Projection) SalesByItem(ctx context.Context, asOf TimePoint) ([]ItemSales, error) {
	txs, err := p.Ledger.Query(ctx, Filter{AsOf: asOf}.OfKind(KindSale))
	if err != nil {
		return nil, fmt.Errorf("sales by item: %w", err)
	}
	index := make(map[string]int)
	var out []ItemSales
	for _, tx := range txs {
		if !tx.HasItem() {
			continue
		}
		i, ok := index[tx.ItemName]
		if !ok {
			i = len(out)
			index[tx.ItemName] = i
			out = append(out, ItemSales{ItemName: tx.ItemName, Revenue: decimal.Zero})
		}
		out[i].Units += tx.UnitCount()
		out[i].Revenue = out[i].Revenue.Add(tx.Amount)
	}
	return out, nil
}

func signedUnits(tx Transaction) int {
	switch tx.Kind {
	case KindStockReceipt:
		return tx.UnitCount()
	case KindSale:
		return -tx.UnitCount()
	}
	return 0
}
