/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements the ledger, catalog and quote history persistence on one
  SQLite file, through sqlx. The schema is a plain relational log: one
  row per transaction, ordered by its autoincrement id.

INTERFACES IMPLEMENTED:
  generic.Store:          Transaction persistence
  generic.TxStore:        Multi-step writes in one database transaction
  inventory.CatalogStore: Catalog and tracked inventory records
  inventory.QuoteHistory: Past quotes and their requests

APPEND-ONLY ENFORCEMENT:
  The Store enforces append-only semantics on the ledger:
  - No UPDATE statements on transactions table
  - No DELETE statements on transactions table
  - Corrections are new rows

KEY TABLES:
  transactions:   Immutable ledger (stock_orders, sales)
  catalog:        Items the company sells
  inventory:      Tracked items and their reorder thresholds
  quote_requests: Customer request text
  quotes:         Quote given for a request

INDEXES:
  - idx_transactions_item_date: Stock projection (hot path)
  - idx_transactions_date:      Cash projection and reports

ORDERING:
  Query always returns rows ORDER BY id. The id is assigned on insert
  and increases monotonically, so rows on the same date come back in
  the order they were written.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery
  ":memory:" databases are pinned to one connection, since every new
  connection would otherwise see its own empty database.

USAGE:
  store, err := sqlite.New("./data/paper.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := generic.NewLedger(store, nil)

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/paper-supply/generic"
	"github.com/warp/paper-supply/inventory"
)

// driverName is go-sqlite3 with a Unicode-aware fold() function, so quote
// search folds case the same way as inventory.MatchesAllTerms. SQLite's own
// LOWER() only folds ASCII.
const driverName = "sqlite3_paper_supply"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("fold", strings.ToLower, true)
		},
	})
}

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sqlx.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at dbPath and migrates it.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sqlx.Open(driverName, dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Transactions (append-only ledger)
	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		item_name TEXT,
		transaction_type TEXT NOT NULL CHECK (transaction_type IN ('stock_orders', 'sales')),
		units INTEGER,
		price TEXT NOT NULL,
		transaction_date TEXT NOT NULL,
		reference TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_item_date
		ON transactions(item_name, transaction_date);
	CREATE INDEX IF NOT EXISTS idx_transactions_date
		ON transactions(transaction_date);

	-- Catalog
	CREATE TABLE IF NOT EXISTS catalog (
		item_name TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		unit_price TEXT NOT NULL,
		position INTEGER NOT NULL
	);

	-- Tracked inventory
	CREATE TABLE IF NOT EXISTS inventory (
		item_name TEXT PRIMARY KEY REFERENCES catalog(item_name),
		min_stock_level INTEGER NOT NULL CHECK (min_stock_level >= 0),
		position INTEGER NOT NULL
	);

	-- Quote history
	CREATE TABLE IF NOT EXISTS quote_requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		response TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS quotes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id INTEGER NOT NULL REFERENCES quote_requests(id),
		total_amount TEXT NOT NULL,
		quote_explanation TEXT NOT NULL,
		job_type TEXT,
		order_size TEXT,
		event_type TEXT,
		order_date TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_quotes_order_date
		ON quotes(order_date DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTION STORE (generic.Store interface)
// =============================================================================

type transactionRow struct {
	ID        int64          `db:"id"`
	ItemName  sql.NullString `db:"item_name"`
	Kind      string         `db:"transaction_type"`
	Units     sql.NullInt64  `db:"units"`
	Price     string         `db:"price"`
	Date      string         `db:"transaction_date"`
	Reference sql.NullString `db:"reference"`
	CreatedAt string         `db:"created_at"`
}

func toRow(tx generic.Transaction) transactionRow {
	row := transactionRow{
		ItemName:  nullString(tx.ItemName),
		Kind:      string(tx.Kind),
		Price:     tx.Amount.String(),
		Date:      tx.OccurredOn.String(),
		Reference: nullString(tx.Reference),
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if tx.Units != nil {
		row.Units = sql.NullInt64{Int64: int64(*tx.Units), Valid: true}
	}
	return row
}

func (r transactionRow) toTransaction() (generic.Transaction, error) {
	amount, err := decimal.NewFromString(r.Price)
	if err != nil {
		return generic.Transaction{}, fmt.Errorf("transaction %d: bad price %q: %w", r.ID, r.Price, err)
	}
	date, err := generic.ParseDate(r.Date)
	if err != nil {
		return generic.Transaction{}, fmt.Errorf("transaction %d: %w", r.ID, err)
	}
	tx := generic.Transaction{
		ID:         generic.TransactionID(r.ID),
		ItemName:   r.ItemName.String,
		Kind:       generic.Kind(r.Kind),
		Amount:     amount,
		OccurredOn: date,
		Reference:  r.Reference.String,
	}
	if r.Units.Valid {
		tx.Units = generic.UnitsPtr(int(r.Units.Int64))
	}
	if created, err := time.Parse(time.RFC3339Nano, r.CreatedAt); err == nil {
		tx.CreatedAt = created
	}
	return tx, nil
}

// Append adds a transaction to the ledger.
func (s *Store) Append(ctx context.Context, tx generic.Transaction) (generic.TransactionID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendTx(ctx, s.db, tx)
}

func appendTx(ctx context.Context, db sqlx.ExtContext, tx generic.Transaction) (generic.TransactionID, error) {
	query := `
		INSERT INTO transactions
		(item_name, transaction_type, units, price, transaction_date, reference, created_at)
		VALUES (:item_name, :transaction_type, :units, :price, :transaction_date, :reference, :created_at)
	`
	res, err := sqlx.NamedExecContext(ctx, db, query, toRow(tx))
	if err != nil {
		return 0, fmt.Errorf("failed to append transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read transaction id: %w", err)
	}
	return generic.TransactionID(id), nil
}

// AppendBatch adds multiple transactions atomically.
func (s *Store) AppendBatch(ctx context.Context, txs []generic.Transaction) ([]generic.TransactionID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	ids, err := appendBatchTx(ctx, sqlTx, txs)
	if err != nil {
		return nil, err
	}
	if err := sqlTx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit batch: %w", err)
	}
	return ids, nil
}

func appendBatchTx(ctx context.Context, db sqlx.ExtContext, txs []generic.Transaction) ([]generic.TransactionID, error) {
	ids := make([]generic.TransactionID, 0, len(txs))
	for _, tx := range txs {
		id, err := appendTx(ctx, db, tx)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Query returns matching transactions in id order.
func (s *Store) Query(ctx context.Context, filter generic.Filter) ([]generic.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryTx(ctx, s.db, filter)
}

func queryTx(ctx context.Context, db sqlx.QueryerContext, filter generic.Filter) ([]generic.Transaction, error) {
	conditions := []string{}
	args := map[string]interface{}{}

	if filter.ItemName != nil {
		conditions = append(conditions, "item_name = :item_name")
		args["item_name"] = *filter.ItemName
	}
	if filter.Kind != nil {
		conditions = append(conditions, "transaction_type = :transaction_type")
		args["transaction_type"] = string(*filter.Kind)
	}
	if !filter.AsOf.IsZero() {
		// ISO dates compare correctly as text
		conditions = append(conditions, "transaction_date <= :as_of")
		args["as_of"] = filter.AsOf.String()
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}
	query, bound, err := sqlx.Named("SELECT * FROM transactions"+whereClause+" ORDER BY id ASC", args)
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var rows []transactionRow
	if err := sqlx.SelectContext(ctx, db, &rows, query, bound...); err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	txs := make([]generic.Transaction, 0, len(rows))
	for _, r := range rows {
		tx, err := r.toTransaction()
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// Get returns one transaction, or nil if the id is unknown.
func (s *Store) Get(ctx context.Context, id generic.TransactionID) (*generic.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getTx(ctx, s.db, id)
}

func getTx(ctx context.Context, db sqlx.QueryerContext, id generic.TransactionID) (*generic.Transaction, error) {
	var row transactionRow
	err := sqlx.GetContext(ctx, db, &row, `SELECT * FROM transactions WHERE id = ? LIMIT 1`, int64(id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	tx, err := row.toTransaction()
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// =============================================================================
// TRANSACTIONAL STORE (generic.TxStore interface)
// =============================================================================

// WithTx runs fn against a store view bound to one database transaction.
// The transaction commits if fn returns nil and rolls back otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return fmt.Errorf("rolled back: %w", err)
	}
	return sqlTx.Commit()
}

type txStore struct {
	tx *sqlx.Tx
}

func (ts *txStore) Append(ctx context.Context, tx generic.Transaction) (generic.TransactionID, error) {
	return appendTx(ctx, ts.tx, tx)
}

func (ts *txStore) AppendBatch(ctx context.Context, txs []generic.Transaction) ([]generic.TransactionID, error) {
	return appendBatchTx(ctx, ts.tx, txs)
}

func (ts *txStore) Query(ctx context.Context, filter generic.Filter) ([]generic.Transaction, error) {
	return queryTx(ctx, ts.tx, filter)
}

func (ts *txStore) Get(ctx context.Context, id generic.TransactionID) (*generic.Transaction, error) {
	return getTx(ctx, ts.tx, id)
}

// =============================================================================
// CATALOG STORE (inventory.CatalogStore interface)
// =============================================================================

type catalogRow struct {
	ItemName  string `db:"item_name"`
	Category  string `db:"category"`
	UnitPrice string `db:"unit_price"`
	Position  int    `db:"position"`
}

type inventoryRow struct {
	ItemName      string `db:"item_name"`
	MinStockLevel int    `db:"min_stock_level"`
	Position      int    `db:"position"`
}

// SaveCatalog replaces the stored catalog and inventory records. The
// transactions table is untouched.
func (s *Store) SaveCatalog(ctx context.Context, c *inventory.Catalog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, stmt := range []string{"DELETE FROM inventory", "DELETE FROM catalog"} {
		if _, err := sqlTx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to clear catalog: %w", err)
		}
	}
	for i, item := range c.Items() {
		_, err := sqlTx.NamedExecContext(ctx,
			`INSERT INTO catalog (item_name, category, unit_price, position)
			 VALUES (:item_name, :category, :unit_price, :position)`,
			catalogRow{ItemName: item.Name, Category: item.Category, UnitPrice: item.UnitPrice.String(), Position: i})
		if err != nil {
			return fmt.Errorf("failed to save catalog item %q: %w", item.Name, err)
		}
	}
	for i, rec := range c.Records() {
		_, err := sqlTx.NamedExecContext(ctx,
			`INSERT INTO inventory (item_name, min_stock_level, position)
			 VALUES (:item_name, :min_stock_level, :position)`,
			inventoryRow{ItemName: rec.Item.Name, MinStockLevel: rec.MinStockLevel, Position: i})
		if err != nil {
			return fmt.Errorf("failed to save inventory record %q: %w", rec.Item.Name, err)
		}
	}
	return sqlTx.Commit()
}

// LoadCatalog returns nil, nil when no catalog has been saved.
func (s *Store) LoadCatalog(ctx context.Context) (*inventory.Catalog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var catRows []catalogRow
	if err := s.db.SelectContext(ctx, &catRows, `SELECT * FROM catalog ORDER BY position ASC`); err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	if len(catRows) == 0 {
		return nil, nil
	}
	var invRows []inventoryRow
	if err := s.db.SelectContext(ctx, &invRows, `SELECT * FROM inventory ORDER BY position ASC`); err != nil {
		return nil, fmt.Errorf("failed to load inventory: %w", err)
	}

	items := make([]inventory.CatalogItem, 0, len(catRows))
	byName := make(map[string]inventory.CatalogItem, len(catRows))
	for _, r := range catRows {
		price, err := decimal.NewFromString(r.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("catalog item %q: bad price %q: %w", r.ItemName, r.UnitPrice, err)
		}
		item := inventory.CatalogItem{Name: r.ItemName, Category: r.Category, UnitPrice: price}
		items = append(items, item)
		byName[item.Name] = item
	}
	records := make([]inventory.InventoryRecord, 0, len(invRows))
	for _, r := range invRows {
		records = append(records, inventory.InventoryRecord{Item: byName[r.ItemName], MinStockLevel: r.MinStockLevel})
	}
	return inventory.NewCatalog(items, records)
}

// =============================================================================
// QUOTE HISTORY (inventory.QuoteHistory interface)
// =============================================================================

type quoteRow struct {
	ID          int64          `db:"id"`
	Request     string         `db:"response"`
	TotalAmount string         `db:"total_amount"`
	Explanation string         `db:"quote_explanation"`
	JobType     sql.NullString `db:"job_type"`
	OrderSize   sql.NullString `db:"order_size"`
	EventType   sql.NullString `db:"event_type"`
	OrderDate   string         `db:"order_date"`
}

// SaveQuote stores the request text and its quote together.
func (s *Store) SaveQuote(ctx context.Context, rec inventory.QuoteRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	res, err := sqlTx.ExecContext(ctx,
		`INSERT INTO quote_requests (response, created_at) VALUES (?, ?)`,
		rec.Request, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("failed to save quote request: %w", err)
	}
	requestID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	orderDate := rec.OrderDate
	if orderDate.IsZero() {
		orderDate = time.Now().UTC()
	}
	res, err = sqlTx.ExecContext(ctx,
		`INSERT INTO quotes (request_id, total_amount, quote_explanation, job_type, order_size, event_type, order_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		requestID, rec.TotalAmount.String(), rec.Explanation,
		nullString(rec.JobType), nullString(rec.OrderSize), nullString(rec.EventType),
		orderDate.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to save quote: %w", err)
	}
	quoteID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err := sqlTx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit quote: %w", err)
	}
	return quoteID, nil
}

// SearchQuotes matches every term, case-insensitively, against the request
// text or the quote explanation. Newest first.
func (s *Store) SearchQuotes(ctx context.Context, terms []string, limit int) ([]inventory.QuoteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = inventory.DefaultSearchLimit
	}
	conditions := []string{}
	args := []interface{}{}
	for _, term := range terms {
		// instr avoids treating % and _ in user terms as LIKE wildcards
		conditions = append(conditions, "(instr(fold(qr.response), ?) > 0 OR instr(fold(q.quote_explanation), ?) > 0)")
		t := strings.ToLower(term)
		args = append(args, t, t)
	}
	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}
	query := `
		SELECT q.id, qr.response, q.total_amount, q.quote_explanation,
		       q.job_type, q.order_size, q.event_type, q.order_date
		FROM quotes q
		JOIN quote_requests qr ON qr.id = q.request_id` + whereClause + `
		ORDER BY q.order_date DESC, q.id ASC
		LIMIT ?`
	args = append(args, limit)

	var rows []quoteRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to search quotes: %w", err)
	}
	out := make([]inventory.QuoteRecord, 0, len(rows))
	for _, r := range rows {
		total, err := decimal.NewFromString(r.TotalAmount)
		if err != nil {
			return nil, fmt.Errorf("quote %d: bad total %q: %w", r.ID, r.TotalAmount, err)
		}
		orderDate, _ := time.Parse(time.RFC3339, r.OrderDate)
		out = append(out, inventory.QuoteRecord{
			ID:          r.ID,
			Request:     r.Request,
			TotalAmount: total,
			Explanation: r.Explanation,
			JobType:     r.JobType.String,
			OrderSize:   r.OrderSize.String,
			EventType:   r.EventType.String,
			OrderDate:   orderDate,
		})
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
