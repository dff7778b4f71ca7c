package factory

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/paper-supply/generic"
	"github.com/warp/paper-supply/inventory"
)

// =============================================================================
// CSV LOADERS
// =============================================================================

// RequestDateLayout is the m/d/yy format of request files.
const RequestDateLayout = "1/2/06"

// RequestRow is one customer request from a requests CSV.
type RequestRow struct {
	Line    int
	Date    generic.TimePoint
	Job     string
	Event   string
	Request string
}

// LoadRequests reads a CSV with request_date, job, event and request
// columns (any order, extra columns ignored) and returns the rows sorted by
// date. Rows with the same date keep file order.
func LoadRequests(r io.Reader) ([]RequestRow, error) {
	records, header, err := readCSV(r)
	if err != nil {
		return nil, err
	}
	for _, col := range []string{"request_date", "request"} {
		if _, ok := header[col]; !ok {
			return nil, &generic.ValidationError{Field: col, Message: "missing column"}
		}
	}

	rows := make([]RequestRow, 0, len(records))
	for i, rec := range records {
		raw := field(rec, header, "request_date")
		date, err := parseRequestDate(raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+2, err)
		}
		rows = append(rows, RequestRow{
			Line:    i + 2,
			Date:    date,
			Job:     field(rec, header, "job"),
			Event:   field(rec, header, "event"),
			Request: field(rec, header, "request"),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
	return rows, nil
}

func parseRequestDate(s string) (generic.TimePoint, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(RequestDateLayout, s); err == nil {
		return generic.FromTime(t), nil
	}
	return generic.ParseDate(s)
}

// LoadQuoteHistory pairs a quote requests CSV (column "response") with a
// quotes CSV (total_amount, quote_explanation, request_metadata) row by
// row and saves each pair dated orderDate. Returns the number saved.
func LoadQuoteHistory(ctx context.Context, requests, quotes io.Reader, history inventory.QuoteHistory, orderDate time.Time) (int, error) {
	reqRecords, reqHeader, err := readCSV(requests)
	if err != nil {
		return 0, fmt.Errorf("quote requests: %w", err)
	}
	quoteRecords, quoteHeader, err := readCSV(quotes)
	if err != nil {
		return 0, fmt.Errorf("quotes: %w", err)
	}

	n := len(quoteRecords)
	if len(reqRecords) < n {
		n = len(reqRecords)
	}
	saved := 0
	for i := 0; i < n; i++ {
		total, err := decimal.NewFromString(strings.TrimSpace(field(quoteRecords[i], quoteHeader, "total_amount")))
		if err != nil {
			total = decimal.Zero
		}
		meta := ParseMetadata(field(quoteRecords[i], quoteHeader, "request_metadata"))
		rec := inventory.QuoteRecord{
			Request:     field(reqRecords[i], reqHeader, "response"),
			TotalAmount: total,
			Explanation: field(quoteRecords[i], quoteHeader, "quote_explanation"),
			JobType:     meta["job_type"],
			OrderSize:   meta["order_size"],
			EventType:   meta["event_type"],
			OrderDate:   orderDate,
		}
		if _, err := history.SaveQuote(ctx, rec); err != nil {
			return saved, fmt.Errorf("quote %d: %w", i+1, err)
		}
		saved++
	}
	return saved, nil
}

var metadataPair = regexp.MustCompile(`["'](\w+)["']\s*:\s*["']([^"']*)["']`)

// ParseMetadata reads the flat string map stored in request_metadata. Both
// JSON and single-quoted dict literals are accepted.
func ParseMetadata(s string) map[string]string {
	out := make(map[string]string)
	for _, m := range metadataPair.FindAllStringSubmatch(s, -1) {
		out[m[1]] = m[2]
	}
	return out
}

// =============================================================================
// RESULTS CSV
// =============================================================================

// ResultRow is one processed request in a results file.
type ResultRow struct {
	RequestID      int
	RequestDate    generic.TimePoint
	CashBalance    decimal.Decimal
	InventoryValue decimal.Decimal
	Response       string
}

func WriteResults(w io.Writer, rows []ResultRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"request_id", "request_date", "cash_balance", "inventory_value", "response"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{
			strconv.Itoa(r.RequestID),
			r.RequestDate.String(),
			r.CashBalance.StringFixed(2),
			r.InventoryValue.StringFixed(2),
			r.Response,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// =============================================================================
// HELPERS
// =============================================================================

func readCSV(r io.Reader) ([][]string, map[string]int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	headerRow, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, &generic.ValidationError{Field: "csv", Message: "empty file"}
		}
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	header := make(map[string]int, len(headerRow))
	for i, h := range headerRow {
		header[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read rows: %w", err)
	}
	return records, header, nil
}

func field(rec []string, header map[string]int, name string) string {
	i, ok := header[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return rec[i]
}
