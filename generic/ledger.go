/*
ledger.go - Append-only transaction log

PURPOSE:
  The Ledger is the immutable source of truth for stock and cash.
  Every stock receipt and every sale is recorded here. Stock levels and
  cash balance are always computed by folding transactions - there's no
  separate "stock" or "balance" column that can get out of sync.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. EVER.
  2. IMMUTABLE: Once written, transactions cannot be modified
  3. VALIDATED: Unknown kinds, missing dates and negative amounts are
     rejected before anything reaches the store
  4. SERIALIZED: Appends go through a Locker. Callers that read a
     projection and then write on the strength of it (quote then fulfill,
     cash check then stock order) wrap the whole sequence in WithLock;
     appends inside it reuse the held lock

CORRECTIONS:
  There is no reversal kind in this ledger. A wrong sale is corrected by
  recording the goods coming back as a stock receipt; both rows remain.

EXAMPLE FLOW:
  1. Opening capital:     Sale, no item, $50,000
  2. Initial stock:       StockReceipt A4 paper x1000, $50
  3. Customer order:      Sale A4 paper x500, $25
  Cash = 50,000 + 25 - 50 = 49,975; A4 stock = 500

SEE ALSO:
  - store.go: Low-level persistence interface
  - projection.go: Derived views
*/
package generic

import (
	"context"
	"fmt"
	"sync"
)

// =============================================================================
// LEDGER - Append-only transaction log
// =============================================================================

// Ledger is the source of truth for all stock and cash changes.
//
// INVARIANTS:
//   - Append-only: No Update, No Delete. EVER.
//   - Immutable: Once written, transactions cannot be modified.
type Ledger interface {
	// Append validates and adds a transaction, returning its ID.
	Append(ctx context.Context, tx Transaction) (TransactionID, error)

	// AppendBatch validates every transaction first, then adds them atomically.
	// Used when fulfilling an order (one sale per line).
	AppendBatch(ctx context.Context, txs []Transaction) ([]TransactionID, error)

	// Query returns matching transactions in insertion order. Read-only.
	Query(ctx context.Context, filter Filter) ([]Transaction, error)

	// Get returns one transaction or nil. Read-only.
	Get(ctx context.Context, id TransactionID) (*Transaction, error)

	// WithLock runs fn while holding the append lock. Appends made with the
	// ctx passed to fn do not lock again. Nested calls run fn directly.
	WithLock(ctx context.Context, fn func(ctx context.Context) error) error
}

// Locker serializes ledger writers. The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context) (func(), error)
}

// MutexLocker is the in-process Locker used when nothing else is configured.
type MutexLocker struct {
	mu sync.Mutex
}

func (m *MutexLocker) Lock(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	return m.mu.Unlock, nil
}

// =============================================================================
// DEFAULT LEDGER - Implementation using Store
// =============================================================================

type DefaultLedger struct {
	Store  Store
	Locker Locker
}

// NewLedger wraps a store. A nil locker falls back to an in-process mutex.
func NewLedger(store Store, locker Locker) *DefaultLedger {
	if locker == nil {
		locker = &MutexLocker{}
	}
	return &DefaultLedger{Store: store, Locker: locker}
}

// heldKey marks a ctx as running under this ledger's lock.
type heldKey struct{ l *DefaultLedger }

func (l *DefaultLedger) holds(ctx context.Context) bool {
	held, _ := ctx.Value(heldKey{l}).(bool)
	return held
}

func (l *DefaultLedger) WithLock(ctx context.Context, fn func(ctx context.Context) error) error {
	if l.holds(ctx) {
		return fn(ctx)
	}
	unlock, err := l.Locker.Lock(ctx)
	if err != nil {
		return fmt.Errorf("lock ledger: %w", err)
	}
	defer unlock()
	return fn(context.WithValue(ctx, heldKey{l}, true))
}

func (l *DefaultLedger) Append(ctx context.Context, tx Transaction) (TransactionID, error) {
	if err := ValidateTransaction(tx); err != nil {
		return 0, err
	}
	var id TransactionID
	err := l.WithLock(ctx, func(ctx context.Context) error {
		var err error
		id, err = l.Store.Append(ctx, tx)
		return err
	})
	return id, err
}

func (l *DefaultLedger) AppendBatch(ctx context.Context, txs []Transaction) ([]TransactionID, error) {
	// Validate everything first so a bad row never leaves a partial batch
	for i, tx := range txs {
		if err := ValidateTransaction(tx); err != nil {
			return nil, fmt.Errorf("batch row %d: %w", i, err)
		}
	}
	if len(txs) == 0 {
		return nil, nil
	}
	var ids []TransactionID
	err := l.WithLock(ctx, func(ctx context.Context) error {
		var err error
		ids, err = l.Store.AppendBatch(ctx, txs)
		return err
	})
	return ids, err
}

func (l *DefaultLedger) Query(ctx context.Context, filter Filter) ([]Transaction, error) {
	return l.Store.Query(ctx, filter)
}

func (l *DefaultLedger) Get(ctx context.Context, id TransactionID) (*Transaction, error) {
	return l.Store.Get(ctx, id)
}

// ValidateTransaction checks a row before it is written.
func ValidateTransaction(tx Transaction) error {
	if !tx.Kind.Valid() {
		return &ValidationError{Field: "kind", Message: fmt.Sprintf("unknown transaction kind %q", tx.Kind)}
	}
	if tx.OccurredOn.IsZero() {
		return &ValidationError{Field: "occurred_on", Message: "date is required"}
	}
	if tx.Amount.IsNegative() {
		return &ValidationError{Field: "amount", Message: "amount must not be negative; direction comes from kind"}
	}
	if tx.Units != nil && *tx.Units < 0 {
		return &ValidationError{Field: "units", Message: "units must not be negative"}
	}
	if tx.Units != nil && !tx.HasItem() {
		return &ValidationError{Field: "item_name", Message: "units given without an item"}
	}
	return nil
}
