package inventory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// QUOTE HISTORY - Past requests and the quotes given for them
// =============================================================================

// QuoteRecord is one historical quote with the request that produced it.
type QuoteRecord struct {
	ID          int64
	Request     string
	TotalAmount decimal.Decimal
	Explanation string
	JobType     string
	OrderSize   string
	EventType   string
	OrderDate   time.Time
}

// QuoteHistory stores quotes and answers keyword searches over them.
type QuoteHistory interface {
	SaveQuote(ctx context.Context, rec QuoteRecord) (int64, error)

	// SearchQuotes returns records whose request text or explanation
	// contains every term (case-insensitive), newest first.
	SearchQuotes(ctx context.Context, terms []string, limit int) ([]QuoteRecord, error)
}

const DefaultSearchLimit = 5

// MemoryHistory is an in-process QuoteHistory.
type MemoryHistory struct {
	mu      sync.RWMutex
	records []QuoteRecord
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{}
}

func (m *MemoryHistory) SaveQuote(_ context.Context, rec QuoteRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.ID = int64(len(m.records) + 1)
	m.records = append(m.records, rec)
	return rec.ID, nil
}

func (m *MemoryHistory) SearchQuotes(_ context.Context, terms []string, limit int) ([]QuoteRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	var out []QuoteRecord
	for _, rec := range m.records {
		if MatchesAllTerms(rec, terms) {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OrderDate.After(out[j].OrderDate)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MatchesAllTerms is the search predicate shared by history implementations.
func MatchesAllTerms(rec QuoteRecord, terms []string) bool {
	req := strings.ToLower(rec.Request)
	expl := strings.ToLower(rec.Explanation)
	for _, term := range terms {
		t := strings.ToLower(term)
		if !strings.Contains(req, t) && !strings.Contains(expl, t) {
			return false
		}
	}
	return true
}
