/*
Package factory provides JSON to Go seed conversion.

PURPOSE:
  Converts a JSON catalog definition into inventory.Catalog values and
  the opening ledger rows. This lets the product list and starting
  position change without code changes.

JSON SCHEMA:
  {
    "initial_cash": "50000.00",
    "start_date": "2025-01-01",
    "items": [
      {"item_name": "A4 paper", "category": "paper", "unit_price": "0.05"}
    ],
    "inventory": [
      {"item_name": "A4 paper", "current_stock": 500, "min_stock_level": 100}
    ]
  }

  "inventory" is optional. When absent, a reproducible sample is drawn
  from "items" by SampleInventory.

OPENING LEDGER:
  1. One Sale with no item for initial_cash (the company's capital)
  2. One StockReceipt per tracked item: current_stock units, priced at
     current_stock * unit_price
  All dated start_date and written in one batch.

USAGE:
  f := factory.NewSeedFactory()
  src, err := f.Parse(factory.DefaultCatalogJSON)
  seed, err := src.Resolve(factory.DefaultCoverage, factory.DefaultRandomSeed)
  catalog, err := f.Seed(ctx, ledger, seed)

SEE ALSO:
  - catalog.json: Default paper-supply catalog
  - csv.go: Request and quote history loaders
*/
package factory

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/warp/paper-supply/generic"
	"github.com/warp/paper-supply/inventory"
)

// DefaultCatalogJSON is the paper-supply catalog shipped with the binary.
//
//go:embed catalog.json
var DefaultCatalogJSON []byte

const (
	DefaultCoverage   = 0.4
	DefaultRandomSeed = 137

	// Sample stock and thresholds are drawn from [min, max).
	sampleStockMin = 200
	sampleStockMax = 800
	sampleLevelMin = 50
	sampleLevelMax = 150
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

type ItemJSON struct {
	ItemName  string          `json:"item_name" validate:"required"`
	Category  string          `json:"category" validate:"required"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type InventoryJSON struct {
	ItemName      string `json:"item_name" validate:"required"`
	CurrentStock  int    `json:"current_stock" validate:"gte=0"`
	MinStockLevel int    `json:"min_stock_level" validate:"gte=0"`
}

// SeedJSON is the JSON representation of a starting position.
type SeedJSON struct {
	InitialCash decimal.Decimal `json:"initial_cash"`
	StartDate   string          `json:"start_date" validate:"required"`
	Items       []ItemJSON      `json:"items" validate:"required,min=1,dive"`
	Inventory   []InventoryJSON `json:"inventory,omitempty" validate:"omitempty,dive"`
}

// StockedItem is a tracked item with its opening stock.
type StockedItem struct {
	Item          inventory.CatalogItem
	CurrentStock  int
	MinStockLevel int
}

// Seed is a validated starting position ready to be written.
type Seed struct {
	Items       []inventory.CatalogItem
	Stocked     []StockedItem
	InitialCash decimal.Decimal
	StartDate   generic.TimePoint
}

// =============================================================================
// SEED FACTORY
// =============================================================================

type SeedFactory struct {
	validate *validator.Validate
}

func NewSeedFactory() *SeedFactory {
	return &SeedFactory{validate: validator.New()}
}

// SeedSource is a parsed SeedJSON whose inventory may still need sampling.
type SeedSource struct {
	json  SeedJSON
	items []inventory.CatalogItem
	start generic.TimePoint
}

func (f *SeedFactory) Parse(data []byte) (*SeedSource, error) {
	var sj SeedJSON
	if err := json.Unmarshal(data, &sj); err != nil {
		return nil, fmt.Errorf("invalid seed JSON: %w", err)
	}
	return f.FromJSON(sj)
}

func (f *SeedFactory) FromJSON(sj SeedJSON) (*SeedSource, error) {
	if err := f.validate.Struct(sj); err != nil {
		return nil, &generic.ValidationError{Field: "seed", Message: err.Error()}
	}
	if sj.InitialCash.IsNegative() {
		return nil, &generic.ValidationError{Field: "initial_cash", Message: "must not be negative"}
	}
	start, err := generic.ParseDate(sj.StartDate)
	if err != nil {
		return nil, err
	}
	items := make([]inventory.CatalogItem, len(sj.Items))
	for i, ij := range sj.Items {
		items[i] = inventory.CatalogItem{Name: ij.ItemName, Category: ij.Category, UnitPrice: ij.UnitPrice}
	}
	// Let the catalog enforce uniqueness and positive prices
	if _, err := inventory.NewCatalog(items, nil); err != nil {
		return nil, err
	}
	return &SeedSource{json: sj, items: items, start: start}, nil
}

// Items returns the catalog items of the source.
func (s *SeedSource) Items() []inventory.CatalogItem {
	return append([]inventory.CatalogItem(nil), s.items...)
}

// Resolve fixes the tracked inventory: the explicit "inventory" section if
// present, otherwise a sample drawn with coverage and randomSeed.
func (s *SeedSource) Resolve(coverage float64, randomSeed int64) (*Seed, error) {
	seed := &Seed{
		Items:       s.Items(),
		InitialCash: s.json.InitialCash,
		StartDate:   s.start,
	}
	if len(s.json.Inventory) == 0 {
		seed.Stocked = SampleInventory(s.items, coverage, randomSeed)
		return seed, nil
	}
	byName := make(map[string]inventory.CatalogItem, len(s.items))
	for _, it := range s.items {
		byName[it.Name] = it
	}
	for _, inv := range s.json.Inventory {
		item, ok := byName[inv.ItemName]
		if !ok {
			return nil, &generic.NotFoundError{ItemName: inv.ItemName}
		}
		seed.Stocked = append(seed.Stocked, StockedItem{Item: item, CurrentStock: inv.CurrentStock, MinStockLevel: inv.MinStockLevel})
	}
	return seed, nil
}

// SampleInventory picks int(len(items)*coverage) distinct items at random
// and gives each a stock in [200, 800) and a threshold in [50, 150).
// The same randomSeed always yields the same inventory.
func SampleInventory(items []inventory.CatalogItem, coverage float64, randomSeed int64) []StockedItem {
	if coverage <= 0 {
		return nil
	}
	if coverage > 1 {
		coverage = 1
	}
	r := rand.New(rand.NewSource(randomSeed))
	n := int(float64(len(items)) * coverage)

	picked := r.Perm(len(items))[:n]
	out := make([]StockedItem, 0, n)
	for _, idx := range picked {
		out = append(out, StockedItem{
			Item:          items[idx],
			CurrentStock:  sampleStockMin + r.Intn(sampleStockMax-sampleStockMin),
			MinStockLevel: sampleLevelMin + r.Intn(sampleLevelMax-sampleLevelMin),
		})
	}
	return out
}

// Catalog builds the inventory catalog for a seed.
func (s *Seed) Catalog() (*inventory.Catalog, error) {
	records := make([]inventory.InventoryRecord, len(s.Stocked))
	for i, st := range s.Stocked {
		records[i] = inventory.InventoryRecord{Item: st.Item, MinStockLevel: st.MinStockLevel}
	}
	return inventory.NewCatalog(s.Items, records)
}

// Transactions returns the opening ledger rows.
func (s *Seed) Transactions() []generic.Transaction {
	txs := make([]generic.Transaction, 0, len(s.Stocked)+1)
	txs = append(txs, generic.Transaction{
		Kind:       generic.KindSale,
		Amount:     s.InitialCash,
		OccurredOn: s.StartDate,
		Reference:  "opening-capital",
	})
	for _, st := range s.Stocked {
		txs = append(txs, generic.Transaction{
			ItemName:   st.Item.Name,
			Kind:       generic.KindStockReceipt,
			Units:      generic.UnitsPtr(st.CurrentStock),
			Amount:     st.Item.UnitPrice.Mul(decimal.NewFromInt(int64(st.CurrentStock))),
			OccurredOn: s.StartDate,
			Reference:  "opening-stock",
		})
	}
	return txs
}

// Seed writes the opening rows in one batch and returns the catalog.
// Call it on an empty ledger only; it does not check for earlier rows.
func (f *SeedFactory) Seed(ctx context.Context, ledger generic.Ledger, seed *Seed) (*inventory.Catalog, error) {
	catalog, err := seed.Catalog()
	if err != nil {
		return nil, err
	}
	if _, err := ledger.AppendBatch(ctx, seed.Transactions()); err != nil {
		return nil, fmt.Errorf("seed ledger: %w", err)
	}
	return catalog, nil
}

// SeedOptions selects a seed file and overrides parts of it. Empty strings
// keep the file's values.
type SeedOptions struct {
	Path        string
	Coverage    float64
	RandomSeed  int64
	InitialCash string
	StartDate   string
}

// Load reads the seed named by opts (the embedded catalog when Path is
// empty), resolves its inventory and applies the overrides.
func (f *SeedFactory) Load(opts SeedOptions) (*Seed, error) {
	data := DefaultCatalogJSON
	if opts.Path != "" {
		b, err := os.ReadFile(opts.Path)
		if err != nil {
			return nil, fmt.Errorf("read seed: %w", err)
		}
		data = b
	}
	src, err := f.Parse(data)
	if err != nil {
		return nil, err
	}
	seed, err := src.Resolve(opts.Coverage, opts.RandomSeed)
	if err != nil {
		return nil, err
	}
	if opts.InitialCash != "" {
		cash, err := decimal.NewFromString(opts.InitialCash)
		if err != nil || cash.IsNegative() {
			return nil, &generic.ValidationError{Field: "initial_cash", Message: fmt.Sprintf("invalid amount %q", opts.InitialCash)}
		}
		seed.InitialCash = cash
	}
	if opts.StartDate != "" {
		start, err := generic.ParseDate(opts.StartDate)
		if err != nil {
			return nil, err
		}
		seed.StartDate = start
	}
	return seed, nil
}

// Bootstrap returns the saved catalog, or seeds the ledger and saves the
// catalog when the store is empty. seeded reports which happened.
//
// The opening rows are written only when the ledger has no rows at all, so
// a start that seeded but failed to save the catalog only saves it next
// time. The check and the seed run under the ledger lock.
func (f *SeedFactory) Bootstrap(ctx context.Context, cs inventory.CatalogStore, ledger generic.Ledger, seed *Seed) (catalog *inventory.Catalog, seeded bool, err error) {
	catalog, err = cs.LoadCatalog(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("load catalog: %w", err)
	}
	if catalog != nil {
		return catalog, false, nil
	}

	err = ledger.WithLock(ctx, func(ctx context.Context) error {
		existing, err := ledger.Query(ctx, generic.Filter{})
		if err != nil {
			return fmt.Errorf("check ledger: %w", err)
		}
		if len(existing) == 0 {
			catalog, err = f.Seed(ctx, ledger, seed)
			seeded = err == nil
		} else {
			catalog, err = seed.Catalog()
		}
		if err != nil {
			return err
		}
		if err := cs.SaveCatalog(ctx, catalog); err != nil {
			return fmt.Errorf("save catalog: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, seeded, err
	}
	return catalog, seeded, nil
}
