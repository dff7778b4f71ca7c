// Package store provides Store implementations.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/warp/paper-supply/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	transactions []generic.Transaction
	nextID       generic.TransactionID

	// failQuery lets tests exercise the soft-fail paths of projections.
	failQuery error
}

func NewMemory() *Memory {
	return &Memory{nextID: 1}
}

// Append adds a single transaction. Append-only.
func (m *Memory) Append(_ context.Context, tx generic.Transaction) (generic.TransactionID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(tx), nil
}

// AppendBatch adds multiple transactions atomically.
func (m *Memory) AppendBatch(_ context.Context, txs []generic.Transaction) ([]generic.TransactionID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]generic.TransactionID, 0, len(txs))
	for _, tx := range txs {
		ids = append(ids, m.appendLocked(tx))
	}
	return ids, nil
}

// Rows are kept in insertion order, which is also ID order.
func (m *Memory) appendLocked(tx generic.Transaction) generic.TransactionID {
	tx.ID = m.nextID
	m.nextID++
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	if tx.Units != nil {
		u := *tx.Units
		tx.Units = &u
	}
	m.transactions = append(m.transactions, tx)
	return tx.ID
}

func (m *Memory) Query(_ context.Context, filter generic.Filter) ([]generic.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.failQuery != nil {
		return nil, m.failQuery
	}
	var result []generic.Transaction
	for _, tx := range m.transactions {
		if filter.Matches(tx) {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (m *Memory) Get(_ context.Context, id generic.TransactionID) (*generic.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// IDs are dense and start at 1
	i := int(id) - 1
	if i < 0 || i >= len(m.transactions) {
		return nil, nil
	}
	tx := m.transactions[i]
	return &tx, nil
}

// Len returns the number of stored rows.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.transactions)
}

// FailQueries makes every subsequent Query return err (nil to clear).
func (m *Memory) FailQueries(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failQuery = err
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(generic.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := memorySnapshot{
		transactions: append([]generic.Transaction{}, tm.transactions...),
		nextID:       tm.nextID,
	}

	if err := fn(&txMemoryView{parent: tm}); err != nil {
		tm.transactions = snapshot.transactions
		tm.nextID = snapshot.nextID
		return fmt.Errorf("rolled back: %w", err)
	}
	return nil
}

type memorySnapshot struct {
	transactions []generic.Transaction
	nextID       generic.TransactionID
}

// txMemoryView runs with the parent lock already held.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) Append(_ context.Context, tx generic.Transaction) (generic.TransactionID, error) {
	return tv.parent.appendLocked(tx), nil
}

func (tv *txMemoryView) AppendBatch(_ context.Context, txs []generic.Transaction) ([]generic.TransactionID, error) {
	ids := make([]generic.TransactionID, 0, len(txs))
	for _, tx := range txs {
		ids = append(ids, tv.parent.appendLocked(tx))
	}
	return ids, nil
}

func (tv *txMemoryView) Query(_ context.Context, filter generic.Filter) ([]generic.Transaction, error) {
	var result []generic.Transaction
	for _, tx := range tv.parent.transactions {
		if filter.Matches(tx) {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (tv *txMemoryView) Get(_ context.Context, id generic.TransactionID) (*generic.Transaction, error) {
	i := int(id) - 1
	if i < 0 || i >= len(tv.parent.transactions) {
		return nil, nil
	}
	tx := tv.parent.transactions[i]
	return &tx, nil
}
