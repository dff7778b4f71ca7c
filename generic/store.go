/*
store.go - Persistence interface for ledger transactions

PURPOSE:
  Defines the interface between the ledger engine and the database.
  The Store handles persistence while maintaining append-only semantics.
  Different implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  Store:   Core transaction persistence (append, batch, query, get)
  TxStore: Transactional operations (atomic multi-step writes)

APPEND-ONLY CONTRACT:
  - Append(): Single transaction write, returns the assigned ID
  - AppendBatch(): Atomic multi-transaction write
  - NO Update() or Delete() methods exist

ORDERING:
  Query() returns rows in insertion order (ID ascending). Two rows on the
  same date therefore come back in the order they were written.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite via sqlx
  - generic/store/memory.go: In-memory for tests and dev

SEE ALSO:
  - ledger.go: Higher-level interface using Store
*/
package generic

import "context"

// =============================================================================
// STORE - Interface for transaction persistence (append-only)
// =============================================================================

// Store handles persistence of transactions.
// IMPORTANT: Store is APPEND-ONLY. No Update, No Delete. Ever.
type Store interface {
	// Append persists a transaction durably and returns its new ID.
	Append(ctx context.Context, tx Transaction) (TransactionID, error)

	// AppendBatch persists multiple transactions atomically.
	// Either all succeed or none do. IDs are returned in input order.
	AppendBatch(ctx context.Context, txs []Transaction) ([]TransactionID, error)

	// Query returns matching transactions ordered by insertion.
	Query(ctx context.Context, filter Filter) ([]Transaction, error)

	// Get returns a single transaction, or nil when absent.
	Get(ctx context.Context, id TransactionID) (*Transaction, error)
}

// =============================================================================
// TRANSACTIONAL STORE - For atomic operations across multiple writes
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
