package inventory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/paper-supply/generic"
	"github.com/warp/paper-supply/inventory"
)

// =============================================================================
// CATALOG
// =============================================================================

func TestCatalog_LookupIsExact(t *testing.T) {
	f := newFixture(t)

	_, ok := f.catalog.Lookup("A4 paper")
	assert.True(t, ok)
	_, ok = f.catalog.Lookup("a4 paper")
	assert.False(t, ok, "no case folding")
	_, ok = f.catalog.Lookup("A4")
	assert.False(t, ok, "no partial matches")
}

func TestNewCatalog_RejectsBadInput(t *testing.T) {
	good := inventory.CatalogItem{Name: "A4 paper", Category: "paper", UnitPrice: money("0.05")}

	_, err := inventory.NewCatalog([]inventory.CatalogItem{good, good}, nil)
	assert.ErrorIs(t, err, generic.ErrValidation, "duplicate names")

	free := inventory.CatalogItem{Name: "Free paper", Category: "paper", UnitPrice: money("0")}
	_, err = inventory.NewCatalog([]inventory.CatalogItem{free}, nil)
	assert.ErrorIs(t, err, generic.ErrValidation, "price must be positive")

	_, err = inventory.NewCatalog([]inventory.CatalogItem{good}, []inventory.InventoryRecord{
		{Item: inventory.CatalogItem{Name: "Ghost paper"}, MinStockLevel: 10},
	})
	assert.ErrorIs(t, err, generic.ErrNotFound, "record for unknown item")

	_, err = inventory.NewCatalog([]inventory.CatalogItem{good}, []inventory.InventoryRecord{
		{Item: good, MinStockLevel: -1},
	})
	assert.ErrorIs(t, err, generic.ErrValidation, "negative threshold")
}

func TestCatalog_RecordsKeepSeedOrder(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, []string{"A4 paper", "Cardstock"}, f.catalog.TrackedNames())

	rec, ok := f.catalog.Record("Cardstock")
	require.True(t, ok)
	assert.Equal(t, 100, rec.MinStockLevel)
	assertMoney(t, "0.15", rec.Item.UnitPrice)
}

// =============================================================================
// QUOTING
// =============================================================================

func TestQuote_A4Scenario(t *testing.T) {
	// GIVEN: $50,000 opening cash and 1000 A4 sheets bought on 2025-01-01 for $50
	// WHEN: Quoting 500 sheets on 2025-01-02 and fulfilling the quote
	// THEN: Quote is $25.00, cash becomes 49,975.00 and stock 500

	f := newFixture(t)
	ctx := context.Background()
	f.capital(t, "50000", "2025-01-01")
	f.receive(t, "A4 paper", 1000, "50", "2025-01-01")

	quote, err := f.quoter().Quote(ctx, []inventory.RequestedItem{{ItemName: "A4 paper", Quantity: 500}}, day("2025-01-02"))
	require.NoError(t, err)
	assert.True(t, quote.AllItemsAvailable)
	assert.Nil(t, quote.Discount)
	assertMoney(t, "25.00", quote.TotalAmount)

	order, err := f.fulfiller().Fulfill(ctx, quote, day("2025-01-02"))
	require.NoError(t, err)
	assert.Equal(t, inventory.OrderCompleted, order.Status)
	assert.Len(t, order.TransactionIDs, 1)

	cash, err := f.projection.CashBalance(ctx, day("2025-01-02"))
	require.NoError(t, err)
	assertMoney(t, "49975.00", cash)

	stock, err := f.projection.StockOf(ctx, "A4 paper", day("2025-01-02"))
	require.NoError(t, err)
	assert.Equal(t, 500, stock)
}

func TestQuote_ZeroQuantity_IsFreeAndAvailable(t *testing.T) {
	f := newFixture(t)

	quote, err := f.quoter().Quote(context.Background(), []inventory.RequestedItem{{ItemName: "Cardstock", Quantity: 0}}, day("2025-01-02"))
	require.NoError(t, err)
	assert.True(t, quote.AllItemsAvailable)
	assertMoney(t, "0", quote.TotalAmount)
}

func TestQuote_NegativeQuantity_IsValidationError(t *testing.T) {
	f := newFixture(t)

	_, err := f.quoter().Quote(context.Background(), []inventory.RequestedItem{{ItemName: "Cardstock", Quantity: -3}}, day("2025-01-02"))
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestQuote_UnknownItem_IsUnavailable(t *testing.T) {
	f := newFixture(t)

	quote, err := f.quoter().Quote(context.Background(), []inventory.RequestedItem{{ItemName: "Glitter paper", Quantity: 10}}, day("2025-01-02"))
	require.NoError(t, err)
	assert.False(t, quote.AllItemsAvailable)
	require.Len(t, quote.Lines, 1)
	assert.Equal(t, inventory.ReasonNotInCatalog, quote.Lines[0].Reason)
}

func TestQuote_InsufficientStock_ReportsAvailableCount(t *testing.T) {
	f := newFixture(t)
	f.receive(t, "Cardstock", 40, "6", "2025-01-01")

	quote, err := f.quoter().Quote(context.Background(), []inventory.RequestedItem{
		{ItemName: "Cardstock", Quantity: 50},
	}, day("2025-01-02"))
	require.NoError(t, err)

	line := quote.Lines[0]
	assert.False(t, line.Available)
	assert.Equal(t, 40, line.AvailableStock)
	assert.Equal(t, "Insufficient stock. Only 40 units available.", line.Reason)
	assert.Equal(t, "Some items are not available in the requested quantities. See item details for more information.", quote.Explanation)
	assert.Len(t, quote.UnavailableLines(), 1)
}

func TestQuote_NegativeStock_QuotesAsEmpty(t *testing.T) {
	f := newFixture(t)
	f.receive(t, "Cardstock", 10, "1.5", "2025-01-01")
	f.sell(t, "Cardstock", 30, "4.5", "2025-01-01")

	quote, err := f.quoter().Quote(context.Background(), []inventory.RequestedItem{
		{ItemName: "Cardstock", Quantity: 1},
	}, day("2025-01-02"))
	require.NoError(t, err)
	assert.False(t, quote.AllItemsAvailable)
	assert.Equal(t, 0, quote.Lines[0].AvailableStock)
}

func TestQuote_DiscountBoundary(t *testing.T) {
	// GIVEN: Plenty of A4 stock
	// WHEN: Requesting exactly 1000 and then 1001 units
	// THEN: Only 1001 earns the 15% discount

	f := newFixture(t)
	f.receive(t, "A4 paper", 5000, "250", "2025-01-01")
	q := f.quoter()
	ctx := context.Background()

	at, err := q.Quote(ctx, []inventory.RequestedItem{{ItemName: "A4 paper", Quantity: 1000}}, day("2025-01-02"))
	require.NoError(t, err)
	assert.Nil(t, at.Discount)
	assertMoney(t, "50.00", at.TotalAmount)

	over, err := q.Quote(ctx, []inventory.RequestedItem{{ItemName: "A4 paper", Quantity: 1001}}, day("2025-01-02"))
	require.NoError(t, err)
	require.NotNil(t, over.Discount)
	assertMoney(t, "0.15", over.Discount.Rate)
	assertMoney(t, "50.05", over.Subtotal)
	// 50.05 * 0.85 = 42.5425 -> 42.54
	assertMoney(t, "42.54", over.TotalAmount)
	assertMoney(t, "7.51", over.Discount.Amount)
	assert.Equal(t, inventory.ReasonVolumeDiscount, over.Discount.Reason)
	assert.Contains(t, over.Explanation, "A 15% discount was applied")
}

func TestQuote_DiscountCountsUnavailableUnits(t *testing.T) {
	f := newFixture(t)
	f.receive(t, "A4 paper", 600, "30", "2025-01-01")

	quote, err := f.quoter().Quote(context.Background(), []inventory.RequestedItem{
		{ItemName: "A4 paper", Quantity: 600},
		{ItemName: "Cardstock", Quantity: 401},
	}, day("2025-01-02"))
	require.NoError(t, err)

	assert.Equal(t, 1001, quote.TotalUnits)
	assert.False(t, quote.AllItemsAvailable)
	require.NotNil(t, quote.Discount)
	// Only the available line is priced: 600 * 0.05 * 0.85
	assertMoney(t, "25.50", quote.TotalAmount)
}

func TestQuote_TotalEqualsSumOfDiscountedLines(t *testing.T) {
	// GIVEN: A discounted two-line quote whose lines both round
	// WHEN: Fulfilling it
	// THEN: The recorded sales add up to exactly the quoted total

	f := newFixture(t)
	ctx := context.Background()
	f.capital(t, "50000", "2025-01-01")
	f.receive(t, "A4 paper", 2000, "100", "2025-01-01")
	f.receive(t, "Cardstock", 1000, "150", "2025-01-01")

	quote, err := f.quoter().Quote(ctx, []inventory.RequestedItem{
		{ItemName: "A4 paper", Quantity: 1003},
		{ItemName: "Cardstock", Quantity: 7},
	}, day("2025-01-02"))
	require.NoError(t, err)
	require.NotNil(t, quote.Discount)

	order, err := f.fulfiller().Fulfill(ctx, quote, day("2025-01-02"))
	require.NoError(t, err)

	sales, err := f.ledger.Query(ctx, generic.Filter{}.OfKind(generic.KindSale))
	require.NoError(t, err)
	recorded := money("0")
	for _, tx := range sales {
		if tx.HasItem() {
			recorded = recorded.Add(tx.Amount)
		}
	}
	assertMoney(t, quote.TotalAmount.String(), recorded)
	assertMoney(t, quote.TotalAmount.String(), order.TotalAmount)
}
