package inventory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/paper-supply/generic"
	"github.com/warp/paper-supply/inventory"
)

func TestFulfill_UnavailableLine_WritesNothing(t *testing.T) {
	// GIVEN: A quote where one of two lines is short
	// WHEN: Fulfilling it
	// THEN: ErrOrderRejected, status rejected, ledger untouched

	f := newFixture(t)
	ctx := context.Background()
	f.receive(t, "A4 paper", 1000, "50", "2025-01-01")
	before := f.mem.Len()

	quote, err := f.quoter().Quote(ctx, []inventory.RequestedItem{
		{ItemName: "A4 paper", Quantity: 10},
		{ItemName: "Cardstock", Quantity: 10},
	}, day("2025-01-02"))
	require.NoError(t, err)

	order, err := f.fulfiller().Fulfill(ctx, quote, day("2025-01-02"))
	assert.ErrorIs(t, err, generic.ErrOrderRejected)
	require.NotNil(t, order)
	assert.Equal(t, inventory.OrderRejected, order.Status)
	assert.Empty(t, order.TransactionIDs)
	assert.Equal(t, before, f.mem.Len())
}

func TestFulfill_WritesOneSalePerLine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.receive(t, "A4 paper", 1000, "50", "2025-01-01")
	f.receive(t, "Cardstock", 500, "75", "2025-01-01")

	quote, err := f.quoter().Quote(ctx, []inventory.RequestedItem{
		{ItemName: "A4 paper", Quantity: 200},
		{ItemName: "Cardstock", Quantity: 0},
		{ItemName: "Cardstock", Quantity: 100},
	}, day("2025-01-03"))
	require.NoError(t, err)

	order, err := f.fulfiller().Fulfill(ctx, quote, day("2025-01-03"))
	require.NoError(t, err)
	require.Len(t, order.Lines, 2, "zero-quantity line is not written")

	for _, line := range order.Lines {
		tx, err := f.ledger.Get(ctx, line.TransactionID)
		require.NoError(t, err)
		require.NotNil(t, tx)
		assert.Equal(t, generic.KindSale, tx.Kind)
		assert.Equal(t, line.ItemName, tx.ItemName)
		assert.Equal(t, line.Quantity, tx.UnitCount())
		assert.Equal(t, "2025-01-03", tx.OccurredOn.String())
		assert.Equal(t, "quote:"+quote.ID, tx.Reference)
	}
	assertMoney(t, "25.00", order.TotalAmount)
}

// failingLedger accepts reads and fails every batch write.
type failingLedger struct {
	generic.Ledger
}

func (failingLedger) AppendBatch(context.Context, []generic.Transaction) ([]generic.TransactionID, error) {
	return nil, errors.New("disk full")
}

func TestFulfill_StoreFailure_IsFailedStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.receive(t, "A4 paper", 1000, "50", "2025-01-01")

	quote, err := f.quoter().Quote(ctx, []inventory.RequestedItem{{ItemName: "A4 paper", Quantity: 1}}, day("2025-01-02"))
	require.NoError(t, err)

	order, err := inventory.NewFulfiller(failingLedger{f.ledger}, nil).Fulfill(ctx, quote, day("2025-01-02"))
	assert.ErrorIs(t, err, generic.ErrTransactionFailed)
	assert.Equal(t, inventory.OrderFailed, order.Status)
	assert.Contains(t, order.Reason, "disk full")
}

func TestFulfill_NilQuote(t *testing.T) {
	f := newFixture(t)
	before := f.mem.Len()

	order, err := f.fulfiller().Fulfill(context.Background(), nil, day("2025-01-02"))
	assert.ErrorIs(t, err, generic.ErrValidation)
	require.NotNil(t, order)
	assert.Equal(t, inventory.OrderFailed, order.Status)
	assert.Equal(t, before, f.mem.Len())
}
