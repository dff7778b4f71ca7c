package inventory_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/warp/paper-supply/generic"
	"github.com/warp/paper-supply/generic/store"
	"github.com/warp/paper-supply/inventory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type fixture struct {
	ledger     *generic.DefaultLedger
	mem        *store.Memory
	projection *generic.Projection
	catalog    *inventory.Catalog
}

func day(s string) generic.TimePoint { return generic.MustParseDate(s) }

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// newFixture builds the small two-item shop used across these tests:
// A4 paper at $0.05 (min 150) and Cardstock at $0.15 (min 100).
func newFixture(t *testing.T) *fixture {
	t.Helper()
	a4 := inventory.CatalogItem{Name: "A4 paper", Category: "paper", UnitPrice: money("0.05")}
	card := inventory.CatalogItem{Name: "Cardstock", Category: "paper", UnitPrice: money("0.15")}
	catalog, err := inventory.NewCatalog(
		[]inventory.CatalogItem{a4, card},
		[]inventory.InventoryRecord{
			{Item: a4, MinStockLevel: 150},
			{Item: card, MinStockLevel: 100},
		},
	)
	require.NoError(t, err)

	mem := store.NewMemory()
	ledger := generic.NewLedger(mem, nil)
	return &fixture{
		ledger:     ledger,
		mem:        mem,
		projection: generic.NewProjection(ledger),
		catalog:    catalog,
	}
}

func (f *fixture) capital(t *testing.T, amount, on string) {
	t.Helper()
	_, err := f.ledger.Append(context.Background(), generic.Transaction{
		Kind:       generic.KindSale,
		Amount:     money(amount),
		OccurredOn: day(on),
	})
	require.NoError(t, err)
}

func (f *fixture) receive(t *testing.T, item string, units int, amount, on string) {
	t.Helper()
	_, err := f.ledger.Append(context.Background(), generic.Transaction{
		ItemName:   item,
		Kind:       generic.KindStockReceipt,
		Units:      generic.UnitsPtr(units),
		Amount:     money(amount),
		OccurredOn: day(on),
	})
	require.NoError(t, err)
}

func (f *fixture) sell(t *testing.T, item string, units int, amount, on string) {
	t.Helper()
	_, err := f.ledger.Append(context.Background(), generic.Transaction{
		ItemName:   item,
		Kind:       generic.KindSale,
		Units:      generic.UnitsPtr(units),
		Amount:     money(amount),
		OccurredOn: day(on),
	})
	require.NoError(t, err)
}

func (f *fixture) quoter() *inventory.Quoter {
	return inventory.NewQuoter(f.catalog, f.projection, nil)
}

func (f *fixture) fulfiller() *inventory.Fulfiller {
	return inventory.NewFulfiller(f.ledger, nil)
}

func (f *fixture) restocker() *inventory.Restocker {
	return inventory.NewRestocker(f.catalog, f.projection, f.ledger, nil)
}

func (f *fixture) reporter() *inventory.Reporter {
	return inventory.NewReporter(f.catalog, f.projection, nil)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	require.Truef(t, money(want).Equal(got), "want %s, got %s %v", want, got.String(), msgAndArgs)
}
