/*
Package inventory layers the paper-supply business rules on the ledger.

PURPOSE:
  The generic package knows how to fold transactions into stock and cash.
  This package knows what the company sells (Catalog), how it prices a
  request (Quoter), how an accepted quote hits the ledger (Fulfiller),
  when and how much to restock (Restocker), and what the books look like
  on a given day (Reporter).

STOCK VIEWS:
  All callers use the one signed generic.Projection.StockOf and floor it
  themselves where the business rule calls for "what can we ship":
    - Quoter:    max(stock, 0)
    - Restocker: max(stock, 0)
    - Reporter:  signed stock (negative stock subtracts value)

SEE ALSO:
  - generic/projection.go: The views used here
  - workflow/: Runs these components per customer request
*/
package inventory

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/paper-supply/generic"
)

// =============================================================================
// CATALOG - Static reference data
// =============================================================================

// CatalogItem is something the company can sell.
type CatalogItem struct {
	Name      string          `json:"item_name"`
	Category  string          `json:"category"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// InventoryRecord marks a catalog item as tracked, with its reorder threshold.
type InventoryRecord struct {
	Item          CatalogItem `json:"item"`
	MinStockLevel int         `json:"min_stock_level"`
}

// Catalog is read-only after construction. Lookups are exact: no case
// folding, no fuzzy matching. Free-text matching belongs to extraction.
type Catalog struct {
	items   []CatalogItem
	byName  map[string]int
	records []InventoryRecord
	tracked map[string]int
}

// NewCatalog validates and indexes items and the tracked subset.
func NewCatalog(items []CatalogItem, records []InventoryRecord) (*Catalog, error) {
	c := &Catalog{
		byName:  make(map[string]int, len(items)),
		tracked: make(map[string]int, len(records)),
	}
	for _, item := range items {
		if item.Name == "" {
			return nil, &generic.ValidationError{Field: "item_name", Message: "catalog item without a name"}
		}
		if !item.UnitPrice.IsPositive() {
			return nil, &generic.ValidationError{Field: "unit_price", Message: fmt.Sprintf("%q: unit price must be > 0", item.Name)}
		}
		if _, dup := c.byName[item.Name]; dup {
			return nil, &generic.ValidationError{Field: "item_name", Message: fmt.Sprintf("duplicate catalog item %q", item.Name)}
		}
		c.byName[item.Name] = len(c.items)
		c.items = append(c.items, item)
	}
	for _, rec := range records {
		i, ok := c.byName[rec.Item.Name]
		if !ok {
			return nil, &generic.NotFoundError{ItemName: rec.Item.Name}
		}
		if rec.MinStockLevel < 0 {
			return nil, &generic.ValidationError{Field: "min_stock_level", Message: fmt.Sprintf("%q: must be >= 0", rec.Item.Name)}
		}
		if _, dup := c.tracked[rec.Item.Name]; dup {
			return nil, &generic.ValidationError{Field: "item_name", Message: fmt.Sprintf("duplicate inventory record %q", rec.Item.Name)}
		}
		// Records always carry the catalog's own copy of the item
		rec.Item = c.items[i]
		c.tracked[rec.Item.Name] = len(c.records)
		c.records = append(c.records, rec)
	}
	return c, nil
}

// Lookup finds a catalog item by exact name.
func (c *Catalog) Lookup(name string) (CatalogItem, bool) {
	i, ok := c.byName[name]
	if !ok {
		return CatalogItem{}, false
	}
	return c.items[i], true
}

// Record finds the inventory record of a tracked item.
func (c *Catalog) Record(name string) (InventoryRecord, bool) {
	i, ok := c.tracked[name]
	if !ok {
		return InventoryRecord{}, false
	}
	return c.records[i], true
}

func (c *Catalog) Items() []CatalogItem {
	return append([]CatalogItem(nil), c.items...)
}

// Records returns tracked items in seed order.
func (c *Catalog) Records() []InventoryRecord {
	return append([]InventoryRecord(nil), c.records...)
}

func (c *Catalog) Names() []string {
	names := make([]string, len(c.items))
	for i, item := range c.items {
		names[i] = item.Name
	}
	return names
}

// TrackedNames lists tracked item names in seed order.
func (c *Catalog) TrackedNames() []string {
	names := make([]string, len(c.records))
	for i, rec := range c.records {
		names[i] = rec.Item.Name
	}
	return names
}

// PricedItems adapts the catalog for generic.Projection valuation.
func (c *Catalog) PricedItems() []generic.PricedItem {
	out := make([]generic.PricedItem, len(c.items))
	for i, item := range c.items {
		out[i] = generic.PricedItem{Name: item.Name, UnitPrice: item.UnitPrice}
	}
	return out
}

// CatalogStore persists the catalog next to the ledger.
type CatalogStore interface {
	SaveCatalog(ctx context.Context, c *Catalog) error
	// LoadCatalog returns nil, nil when nothing has been saved yet.
	LoadCatalog(ctx context.Context) (*Catalog, error)
}
