/*
Package generic provides the core ledger engine.

PURPOSE:
  This package contains domain-agnostic types and algorithms for an
  append-only stock and cash ledger. Stock levels, cash balance and
  inventory value are never stored: they are folded out of the ledger up
  to an as-of date whenever someone asks.

KEY CONCEPTS IN THIS FILE (types.go):
  - Kind: What a ledger row records (stock receipt or sale)
  - Transaction: An immutable ledger entry
  - Filter: The read contract for querying the ledger
  - TimePoint: A calendar day (used as the ledger's date key)

DESIGN PRINCIPLES:
  1. Immutability: Transactions are never modified or deleted
  2. Precision: Money uses decimal.Decimal, never float64
  3. Unsigned amounts: The sign of a cash movement comes from Kind
  4. Insertion order: Rows are read back in the order they were written

USAGE:
  units := 1000
  tx := generic.Transaction{
      ItemName:   "A4 paper",
      Kind:       generic.KindStockReceipt,
      Units:      &units,
      Amount:     decimal.RequireFromString("50"),
      OccurredOn: generic.NewTimePoint(2025, time.January, 1),
  }

SEE ALSO:
  - ledger.go: Validation and append serialization
  - projection.go: Stock and cash derived from transactions
  - store.go: Persistence interface
*/
package generic

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// KIND - What a ledger row records
// =============================================================================

type Kind string

const (
	// KindStockReceipt records stock bought from a supplier. Cash outflow.
	KindStockReceipt Kind = "stock_orders"
	// KindSale records goods sold to a customer. Cash inflow.
	KindSale Kind = "sales"
)

// ParseKind converts the wire name of a kind. Unknown names are a ValidationError.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindStockReceipt, KindSale:
		return Kind(s), nil
	}
	return "", &ValidationError{Field: "kind", Message: fmt.Sprintf("unknown transaction kind %q", s)}
}

func (k Kind) Valid() bool {
	return k == KindStockReceipt || k == KindSale
}

// =============================================================================
// TRANSACTION - Atomic change to stock and/or cash
// =============================================================================

// TransactionID is assigned by the store at write time.
// IDs are monotonic: a later append always has a larger ID.
type TransactionID int64

// Transaction is one immutable ledger row.
//
// ItemName and Units may be absent for pure cash movements (the opening
// capital is recorded as a Sale with no item). Amount is always the
// unsigned total of the row; Kind decides which way cash moves.
type Transaction struct {
	ID         TransactionID
	ItemName   string // Empty = no item
	Kind       Kind
	Units      *int // nil = no units
	Amount     decimal.Decimal
	OccurredOn TimePoint

	// Reference ties a row to whatever produced it (quote id, reorder run).
	Reference string
	CreatedAt time.Time
}

// HasItem reports whether the row references a catalog item.
func (t Transaction) HasItem() bool { return t.ItemName != "" }

// UnitCount returns Units or 0 when absent.
func (t Transaction) UnitCount() int {
	if t.Units == nil {
		return 0
	}
	return *t.Units
}

// UnitsPtr is a convenience for building transactions.
func UnitsPtr(n int) *int { return &n }

// =============================================================================
// FILTER - Ledger read contract
// =============================================================================

// Filter selects ledger rows. Nil fields match everything.
// A zero AsOf means no upper date bound; otherwise the bound is inclusive.
type Filter struct {
	ItemName *string
	Kind     *Kind
	AsOf     TimePoint
}

// Matches applies the filter to one transaction.
func (f Filter) Matches(tx Transaction) bool {
	if f.ItemName != nil && tx.ItemName != *f.ItemName {
		return false
	}
	if f.Kind != nil && tx.Kind != *f.Kind {
		return false
	}
	if !f.AsOf.IsZero() && tx.OccurredOn.After(f.AsOf) {
		return false
	}
	return true
}

// ForItem returns a copy of f restricted to one item.
func (f Filter) ForItem(name string) Filter {
	f.ItemName = &name
	return f
}

// OfKind returns a copy of f restricted to one kind.
func (f Filter) OfKind(k Kind) Filter {
	f.Kind = &k
	return f
}

// =============================================================================
// MONEY HELPERS
// =============================================================================

// Cents rounds a money value to two decimal places.
func Cents(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

