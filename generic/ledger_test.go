package generic_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/paper-supply/generic"
	"github.com/warp/paper-supply/generic/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestLedger() (*generic.DefaultLedger, *store.Memory) {
	mem := store.NewMemory()
	return generic.NewLedger(mem, nil), mem
}

func day(s string) generic.TimePoint { return generic.MustParseDate(s) }

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func receipt(item string, units int, amount string, on string) generic.Transaction {
	return generic.Transaction{
		ItemName:   item,
		Kind:       generic.KindStockReceipt,
		Units:      generic.UnitsPtr(units),
		Amount:     money(amount),
		OccurredOn: day(on),
	}
}

func sale(item string, units int, amount string, on string) generic.Transaction {
	return generic.Transaction{
		ItemName:   item,
		Kind:       generic.KindSale,
		Units:      generic.UnitsPtr(units),
		Amount:     money(amount),
		OccurredOn: day(on),
	}
}

func capital(amount string, on string) generic.Transaction {
	return generic.Transaction{
		Kind:       generic.KindSale,
		Amount:     money(amount),
		OccurredOn: day(on),
	}
}

// =============================================================================
// APPEND
// =============================================================================

func TestLedger_Append_AssignsMonotonicIDs(t *testing.T) {
	ledger, _ := newTestLedger()
	ctx := context.Background()

	id1, err := ledger.Append(ctx, capital("50000", "2025-01-01"))
	require.NoError(t, err)
	id2, err := ledger.Append(ctx, receipt("A4 paper", 1000, "50", "2025-01-01"))
	require.NoError(t, err)
	id3, err := ledger.Append(ctx, sale("A4 paper", 10, "0.5", "2025-01-01"))
	require.NoError(t, err)

	assert.Less(t, id1, id2)
	assert.Less(t, id2, id3)
}

func TestLedger_Append_UnknownKind_Rejected(t *testing.T) {
	ledger, mem := newTestLedger()

	tx := receipt("A4 paper", 10, "1", "2025-01-01")
	tx.Kind = "refund"

	_, err := ledger.Append(context.Background(), tx)

	var vErr *generic.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "kind", vErr.Field)
	assert.True(t, errors.Is(err, generic.ErrValidation))
	assert.Equal(t, 0, mem.Len(), "nothing may be written")
}

func TestLedger_Append_MissingDate_Rejected(t *testing.T) {
	ledger, mem := newTestLedger()

	tx := receipt("A4 paper", 10, "1", "2025-01-01")
	tx.OccurredOn = generic.TimePoint{}

	_, err := ledger.Append(context.Background(), tx)
	assert.ErrorIs(t, err, generic.ErrValidation)
	assert.Equal(t, 0, mem.Len())
}

func TestLedger_Append_NegativeAmount_Rejected(t *testing.T) {
	ledger, _ := newTestLedger()

	_, err := ledger.Append(context.Background(), sale("A4 paper", 1, "-5", "2025-01-01"))
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestLedger_AppendBatch_BadRow_WritesNothing(t *testing.T) {
	ledger, mem := newTestLedger()

	bad := sale("Cardstock", 1, "0.15", "2025-01-02")
	bad.Units = generic.UnitsPtr(-1)

	_, err := ledger.AppendBatch(context.Background(), []generic.Transaction{
		sale("A4 paper", 1, "0.05", "2025-01-02"),
		bad,
	})

	assert.ErrorIs(t, err, generic.ErrValidation)
	assert.Equal(t, 0, mem.Len())
}

func TestLedger_AppendBatch_ReturnsIDsInOrder(t *testing.T) {
	ledger, _ := newTestLedger()
	ctx := context.Background()

	ids, err := ledger.AppendBatch(ctx, []generic.Transaction{
		sale("A4 paper", 1, "0.05", "2025-01-02"),
		sale("Cardstock", 2, "0.30", "2025-01-02"),
	})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	first, err := ledger.Get(ctx, ids[0])
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "A4 paper", first.ItemName)

	second, err := ledger.Get(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, "Cardstock", second.ItemName)
}

func TestLedger_Get_Missing_ReturnsNil(t *testing.T) {
	ledger, _ := newTestLedger()

	tx, err := ledger.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, tx)
}

// =============================================================================
// QUERY
// =============================================================================

func TestLedger_Query_EqualDates_KeepInsertionOrder(t *testing.T) {
	// GIVEN: Three rows on the same day, written in a known order
	// WHEN: Querying them back
	// THEN: They come back in the order they were written

	ledger, _ := newTestLedger()
	ctx := context.Background()

	names := []string{"Cardstock", "A4 paper", "Envelopes"}
	for _, n := range names {
		_, err := ledger.Append(ctx, receipt(n, 1, "1", "2025-03-01"))
		require.NoError(t, err)
	}

	txs, err := ledger.Query(ctx, generic.Filter{})
	require.NoError(t, err)
	require.Len(t, txs, 3)
	for i, n := range names {
		assert.Equal(t, n, txs[i].ItemName)
	}
}

func TestLedger_Query_FiltersByItemKindAndDate(t *testing.T) {
	ledger, _ := newTestLedger()
	ctx := context.Background()

	for _, tx := range []generic.Transaction{
		receipt("A4 paper", 100, "5", "2025-01-01"),
		sale("A4 paper", 10, "0.5", "2025-01-05"),
		sale("A4 paper", 20, "1", "2025-01-10"),
		sale("Cardstock", 5, "0.75", "2025-01-05"),
	} {
		_, err := ledger.Append(ctx, tx)
		require.NoError(t, err)
	}

	txs, err := ledger.Query(ctx, generic.Filter{AsOf: day("2025-01-05")}.ForItem("A4 paper").OfKind(generic.KindSale))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, 10, txs[0].UnitCount())
}

// =============================================================================
// TIME
// =============================================================================

func TestParseDate_AcceptsISODateAndDateTime(t *testing.T) {
	d, err := generic.ParseDate("2025-04-07")
	require.NoError(t, err)
	assert.Equal(t, generic.NewTimePoint(2025, time.April, 7), d)

	d, err = generic.ParseDate("2025-04-07T13:45:00")
	require.NoError(t, err)
	assert.Equal(t, "2025-04-07", d.String())
}

func TestParseDate_Malformed_IsValidationError(t *testing.T) {
	_, err := generic.ParseDate("04/07/2025")
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestParseKind(t *testing.T) {
	k, err := generic.ParseKind("sales")
	require.NoError(t, err)
	assert.Equal(t, generic.KindSale, k)

	_, err = generic.ParseKind("returns")
	assert.ErrorIs(t, err, generic.ErrValidation)
}

// =============================================================================
// WITH LOCK
// =============================================================================

// countingLocker counts acquisitions.
type countingLocker struct {
	generic.MutexLocker
	n int
}

func (c *countingLocker) Lock(ctx context.Context) (func(), error) {
	c.n++
	return c.MutexLocker.Lock(ctx)
}

func TestWithLock_AppendsReuseHeldLock(t *testing.T) {
	// GIVEN: A ledger over a counting locker
	// WHEN: Appending inside WithLock, including a nested WithLock
	// THEN: The lock is taken once and every row lands

	locker := &countingLocker{}
	mem := store.NewMemory()
	ledger := generic.NewLedger(mem, locker)

	err := ledger.WithLock(context.Background(), func(ctx context.Context) error {
		if _, err := ledger.Append(ctx, capital("100", "2025-01-01")); err != nil {
			return err
		}
		return ledger.WithLock(ctx, func(ctx context.Context) error {
			_, err := ledger.AppendBatch(ctx, []generic.Transaction{receipt("A4 paper", 10, "1", "2025-01-01")})
			return err
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, locker.n)
	assert.Equal(t, 2, mem.Len())

	_, err = ledger.Append(context.Background(), sale("A4 paper", 1, "0.10", "2025-01-02"))
	require.NoError(t, err)
	assert.Equal(t, 2, locker.n, "appends outside WithLock lock on their own")
}

func TestWithLock_LockFailure(t *testing.T) {
	ledger := generic.NewLedger(store.NewMemory(), lockerFunc(func(context.Context) (func(), error) {
		return nil, generic.ErrLockNotAcquired
	}))

	called := false
	err := ledger.WithLock(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, generic.ErrLockNotAcquired)
	assert.False(t, called)
}

type lockerFunc func(context.Context) (func(), error)

func (f lockerFunc) Lock(ctx context.Context) (func(), error) { return f(ctx) }
