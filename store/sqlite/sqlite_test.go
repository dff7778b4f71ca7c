package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/paper-supply/generic"
	"github.com/warp/paper-supply/inventory"
	"github.com/warp/paper-supply/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func day(s string) generic.TimePoint { return generic.MustParseDate(s) }

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// =============================================================================
// LEDGER
// =============================================================================

func TestStore_AppendAndQuery_RoundTripsNullableColumns(t *testing.T) {
	// GIVEN: An opening capital row (no item, no units) and a receipt
	// WHEN: Reading them back
	// THEN: Absent columns stay absent and amounts keep full precision

	store := newStore(t)
	ctx := context.Background()

	capID, err := store.Append(ctx, generic.Transaction{
		Kind: generic.KindSale, Amount: money("50000"), OccurredOn: day("2025-01-01"),
	})
	require.NoError(t, err)
	_, err = store.Append(ctx, generic.Transaction{
		ItemName: "A4 paper", Kind: generic.KindStockReceipt, Units: generic.UnitsPtr(1000),
		Amount: money("50.125"), OccurredOn: day("2025-01-01"), Reference: "seed",
	})
	require.NoError(t, err)

	txs, err := store.Query(ctx, generic.Filter{})
	require.NoError(t, err)
	require.Len(t, txs, 2)

	assert.Equal(t, capID, txs[0].ID)
	assert.False(t, txs[0].HasItem())
	assert.Nil(t, txs[0].Units)

	assert.Equal(t, "A4 paper", txs[1].ItemName)
	require.NotNil(t, txs[1].Units)
	assert.Equal(t, 1000, *txs[1].Units)
	assert.True(t, money("50.125").Equal(txs[1].Amount))
	assert.Equal(t, "seed", txs[1].Reference)
	assert.False(t, txs[1].CreatedAt.IsZero())
}

func TestStore_Query_FilterAndInclusiveDate(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	for _, tx := range []generic.Transaction{
		{ItemName: "A4 paper", Kind: generic.KindStockReceipt, Units: generic.UnitsPtr(100), Amount: money("5"), OccurredOn: day("2025-01-01")},
		{ItemName: "A4 paper", Kind: generic.KindSale, Units: generic.UnitsPtr(10), Amount: money("1"), OccurredOn: day("2025-01-05")},
		{ItemName: "A4 paper", Kind: generic.KindSale, Units: generic.UnitsPtr(20), Amount: money("2"), OccurredOn: day("2025-01-06")},
		{ItemName: "Cardstock", Kind: generic.KindSale, Units: generic.UnitsPtr(5), Amount: money("1"), OccurredOn: day("2025-01-05")},
	} {
		_, err := store.Append(ctx, tx)
		require.NoError(t, err)
	}

	txs, err := store.Query(ctx, generic.Filter{AsOf: day("2025-01-05")}.ForItem("A4 paper"))
	require.NoError(t, err)
	assert.Len(t, txs, 2)

	txs, err = store.Query(ctx, generic.Filter{}.OfKind(generic.KindSale))
	require.NoError(t, err)
	assert.Len(t, txs, 3)
}

func TestStore_Query_EqualDates_KeepInsertionOrder(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	names := []string{"Kraft paper", "A4 paper", "Cardstock", "Envelopes"}
	for _, n := range names {
		_, err := store.Append(ctx, generic.Transaction{
			ItemName: n, Kind: generic.KindStockReceipt, Units: generic.UnitsPtr(1),
			Amount: money("1"), OccurredOn: day("2025-02-01"),
		})
		require.NoError(t, err)
	}

	txs, err := store.Query(ctx, generic.Filter{})
	require.NoError(t, err)
	for i, n := range names {
		assert.Equal(t, n, txs[i].ItemName)
	}
}

func TestStore_RejectsUnknownKindAtSchemaLevel(t *testing.T) {
	store := newStore(t)

	_, err := store.Append(context.Background(), generic.Transaction{
		Kind: "refunds", Amount: money("1"), OccurredOn: day("2025-01-01"),
	})
	assert.Error(t, err)
}

func TestStore_AppendBatch_IsAtomic(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	_, err := store.AppendBatch(ctx, []generic.Transaction{
		{ItemName: "A4 paper", Kind: generic.KindSale, Units: generic.UnitsPtr(1), Amount: money("0.05"), OccurredOn: day("2025-01-02")},
		{ItemName: "A4 paper", Kind: "bogus", Units: generic.UnitsPtr(1), Amount: money("0.05"), OccurredOn: day("2025-01-02")},
	})
	require.Error(t, err)

	txs, err := store.Query(ctx, generic.Filter{})
	require.NoError(t, err)
	assert.Empty(t, txs, "first row must be rolled back")
}

func TestStore_Get(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	id, err := store.Append(ctx, generic.Transaction{Kind: generic.KindSale, Amount: money("10"), OccurredOn: day("2025-01-01")})
	require.NoError(t, err)

	tx, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, id, tx.ID)

	missing, err := store.Get(ctx, id+100)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_WithTx_RollsBackOnError(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(s generic.Store) error {
		_, err := s.Append(ctx, generic.Transaction{Kind: generic.KindSale, Amount: money("10"), OccurredOn: day("2025-01-01")})
		require.NoError(t, err)
		return errors.New("changed my mind")
	})
	require.Error(t, err)

	txs, err := store.Query(ctx, generic.Filter{})
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestStore_WorksWithProjection(t *testing.T) {
	store := newStore(t)
	ledger := generic.NewLedger(store, nil)
	p := generic.NewProjection(ledger)
	ctx := context.Background()

	_, err := ledger.AppendBatch(ctx, []generic.Transaction{
		{Kind: generic.KindSale, Amount: money("50000"), OccurredOn: day("2025-01-01")},
		{ItemName: "A4 paper", Kind: generic.KindStockReceipt, Units: generic.UnitsPtr(1000), Amount: money("50"), OccurredOn: day("2025-01-01")},
		{ItemName: "A4 paper", Kind: generic.KindSale, Units: generic.UnitsPtr(500), Amount: money("25"), OccurredOn: day("2025-01-02")},
	})
	require.NoError(t, err)

	cash, err := p.CashBalance(ctx, day("2025-01-02"))
	require.NoError(t, err)
	assert.True(t, money("49975").Equal(cash), "got %s", cash)

	stock, err := p.StockOf(ctx, "A4 paper", day("2025-01-01"))
	require.NoError(t, err)
	assert.Equal(t, 1000, stock)
}

func TestStore_FileDatabase_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paper.db")
	ctx := context.Background()

	store, err := sqlite.New(path)
	require.NoError(t, err)
	_, err = store.Append(ctx, generic.Transaction{Kind: generic.KindSale, Amount: money("10"), OccurredOn: day("2025-01-01")})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := sqlite.New(path)
	require.NoError(t, err)
	defer reopened.Close()

	txs, err := reopened.Query(ctx, generic.Filter{})
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

// =============================================================================
// CATALOG
// =============================================================================

func TestStore_Catalog_RoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	empty, err := store.LoadCatalog(ctx)
	require.NoError(t, err)
	assert.Nil(t, empty)

	a4 := inventory.CatalogItem{Name: "A4 paper", Category: "paper", UnitPrice: money("0.05")}
	card := inventory.CatalogItem{Name: "Cardstock", Category: "paper", UnitPrice: money("0.15")}
	plates := inventory.CatalogItem{Name: "Paper plates", Category: "product", UnitPrice: money("0.10")}
	catalog, err := inventory.NewCatalog(
		[]inventory.CatalogItem{a4, card, plates},
		[]inventory.InventoryRecord{{Item: card, MinStockLevel: 75}, {Item: a4, MinStockLevel: 120}},
	)
	require.NoError(t, err)
	require.NoError(t, store.SaveCatalog(ctx, catalog))

	loaded, err := store.LoadCatalog(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, catalog.Names(), loaded.Names())
	assert.Equal(t, []string{"Cardstock", "A4 paper"}, loaded.TrackedNames())

	rec, ok := loaded.Record("A4 paper")
	require.True(t, ok)
	assert.Equal(t, 120, rec.MinStockLevel)
	assert.True(t, money("0.05").Equal(rec.Item.UnitPrice))
}

// =============================================================================
// QUOTE HISTORY
// =============================================================================

func TestStore_SearchQuotes_AllTermsNewestFirst(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	for _, rec := range []inventory.QuoteRecord{
		{Request: "Cardstock for a school concert", Explanation: "bulk pricing", TotalAmount: money("12.5"),
			JobType: "teacher", OrderSize: "small", EventType: "concert", OrderDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		{Request: "Glossy paper for a CONCERT", Explanation: "school event pricing", TotalAmount: money("99"),
			OrderDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
		{Request: "A4 paper, 100% recycled", Explanation: "office restock", TotalAmount: money("7"),
			OrderDate: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)},
	} {
		_, err := store.SaveQuote(ctx, rec)
		require.NoError(t, err)
	}

	got, err := store.SearchQuotes(ctx, []string{"concert", "School"}, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Contains(t, got[0].Request, "Glossy")
	assert.True(t, money("99").Equal(got[0].TotalAmount))
	assert.Equal(t, "teacher", got[1].JobType)
	assert.Equal(t, "concert", got[1].EventType)

	got, err = store.SearchQuotes(ctx, []string{"100%"}, 5)
	require.NoError(t, err)
	require.Len(t, got, 1, "percent sign is literal")

	got, err = store.SearchQuotes(ctx, nil, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestStore_SearchQuotes_FoldsNonASCIILikeMemoryHistory(t *testing.T) {
	// GIVEN: A quote whose text has accented capitals
	// WHEN: Searching with lower-case accented terms
	// THEN: SQLite and the in-memory history agree on the match

	store := newStore(t)
	mem := inventory.NewMemoryHistory()
	ctx := context.Background()
	rec := inventory.QuoteRecord{
		Request:     "PAPIER DÉCORÉ pour la FÊTE",
		Explanation: "Prix spécial",
		TotalAmount: money("15"),
		OrderDate:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	_, err := store.SaveQuote(ctx, rec)
	require.NoError(t, err)
	_, err = mem.SaveQuote(ctx, rec)
	require.NoError(t, err)

	for _, terms := range [][]string{{"décoré", "fête"}, {"SPÉCIAL"}, {"ÉTÉ"}} {
		fromSQL, err := store.SearchQuotes(ctx, terms, 5)
		require.NoError(t, err)
		fromMem, err := mem.SearchQuotes(ctx, terms, 5)
		require.NoError(t, err)
		assert.Equal(t, len(fromMem), len(fromSQL), "terms %v", terms)
	}

	got, err := store.SearchQuotes(ctx, []string{"décoré", "fête"}, 5)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
