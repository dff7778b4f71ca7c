/*
main.go - Batch request simulator

PURPOSE:
  Replays a CSV of customer requests through the workflow in date order
  against a freshly seeded ledger, printing the company position after
  each one, and writes a results CSV (and optionally an XLSX report).

INPUT CSV COLUMNS:
  request_date (m/d/yy), job, event, request. Extra columns are ignored.

COMMAND-LINE FLAGS:
  -requests     Requests CSV (required)
  -out          Results CSV path (default: test_results.csv)
  -xlsx         Final report XLSX path (optional)
  -db           SQLite path (default: ":memory:")
  -seed         Seed JSON path (default: embedded catalog)
  -history      Quote requests CSV to pre-load history from (optional)
  -quotes       Quotes CSV paired with -history (optional)

EXAMPLES:
  ./simulate -requests=quote_requests_sample.csv -xlsx=report.xlsx
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/warp/paper-supply/config"
	"github.com/warp/paper-supply/export"
	"github.com/warp/paper-supply/factory"
	"github.com/warp/paper-supply/generic"
	"github.com/warp/paper-supply/logger"
	"github.com/warp/paper-supply/store/sqlite"
	"github.com/warp/paper-supply/workflow"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	requestsPath := flag.String("requests", "", "Requests CSV")
	outPath := flag.String("out", "test_results.csv", "Results CSV path")
	xlsxPath := flag.String("xlsx", "", "Final report XLSX path")
	dbPath := flag.String("db", ":memory:", "SQLite database path")
	seedPath := flag.String("seed", cfg.Seed.Path, "Seed JSON path (empty = embedded catalog)")
	historyPath := flag.String("history", "", "Quote requests CSV for history")
	quotesPath := flag.String("quotes", "", "Quotes CSV for history")
	flag.Parse()

	log := logger.New(cfg.Logger, cfg.IsDevelopment())
	defer log.Sync()

	if err := run(log, cfg, *requestsPath, *outPath, *xlsxPath, *dbPath, *seedPath, *historyPath, *quotesPath); err != nil {
		log.Fatal("Simulation failed", zap.Error(err))
	}
}

func run(log *zap.Logger, cfg *config.Config, requestsPath, outPath, xlsxPath, dbPath, seedPath, historyPath, quotesPath string) error {
	if requestsPath == "" {
		return fmt.Errorf("-requests is required")
	}
	ctx := context.Background()

	f, err := os.Open(requestsPath)
	if err != nil {
		return err
	}
	requests, err := factory.LoadRequests(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("load requests: %w", err)
	}
	if len(requests) == 0 {
		return fmt.Errorf("no requests in %s", requestsPath)
	}

	store, err := sqlite.New(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	ledger := generic.NewLedger(store, nil)

	sf := factory.NewSeedFactory()
	seed, err := sf.Load(factory.SeedOptions{
		Path:        seedPath,
		Coverage:    cfg.Seed.Coverage,
		RandomSeed:  cfg.Seed.RandomSeed,
		InitialCash: cfg.Seed.InitialCash,
		StartDate:   cfg.Seed.StartDate,
	})
	if err != nil {
		return err
	}
	catalog, _, err := sf.Bootstrap(ctx, store, ledger, seed)
	if err != nil {
		return err
	}

	if historyPath != "" && quotesPath != "" {
		n, err := loadHistory(ctx, store, historyPath, quotesPath, seed.StartDate)
		if err != nil {
			return err
		}
		log.Info("Loaded quote history", zap.Int("quotes", n))
	}

	o := workflow.New(catalog, ledger, store, nil, log)

	rep := o.Report(ctx, requests[0].Date)
	fmt.Printf("Starting position on %s: cash $%s, inventory $%s\n",
		requests[0].Date, rep.Cash.Value.StringFixed(2), rep.InventoryValue.Value.StringFixed(2))

	var results []factory.ResultRow
	for i, row := range requests {
		fmt.Printf("\n=== Request %d ===\n", i+1)
		fmt.Printf("Context: %s organizing %s\n", row.Job, row.Event)
		fmt.Printf("Request Date: %s\n", row.Date)

		res, err := o.Process(ctx, workflow.Request{
			Text:      fmt.Sprintf("%s (Date of request: %s)", row.Request, row.Date),
			Date:      row.Date,
			JobType:   row.Job,
			EventType: row.Event,
		})
		if err != nil {
			return fmt.Errorf("request %d (line %d): %w", i+1, row.Line, err)
		}

		fmt.Printf("Outcome: %s\n", res.State)
		if s := workflow.OrderSummary(res.Order); s != "" {
			fmt.Println(s)
		}
		for _, ro := range res.Reorders {
			fmt.Printf("Reorder %s: %d units of %s %s\n", ro.Status, ro.Quantity, ro.ItemName, ro.Reason)
		}
		fmt.Printf("Response: %s\n", res.Response)
		fmt.Printf("Updated Cash: $%s\n", res.Financial.Cash.Value.StringFixed(2))
		fmt.Printf("Updated Inventory: $%s\n", res.Financial.InventoryValue.Value.StringFixed(2))

		results = append(results, factory.ResultRow{
			RequestID:      i + 1,
			RequestDate:    row.Date,
			CashBalance:    res.Financial.Cash.Value,
			InventoryValue: res.Financial.InventoryValue.Value,
			Response:       res.Response,
		})
	}

	last := requests[len(requests)-1].Date
	final := o.Report(ctx, last)
	fmt.Printf("\n=== FINAL FINANCIAL REPORT ===\n")
	fmt.Printf("Final Cash: $%s\n", final.Cash.Value.StringFixed(2))
	fmt.Printf("Final Inventory: $%s\n", final.InventoryValue.Value.StringFixed(2))

	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	if err := factory.WriteResults(out, results); err != nil {
		out.Close()
		return fmt.Errorf("write results: %w", err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	log.Info("Wrote results", zap.String("path", outPath), zap.Int("rows", len(results)))

	if xlsxPath != "" {
		txs, err := ledger.Query(ctx, generic.Filter{AsOf: last})
		if err != nil {
			return err
		}
		if err := export.SaveReport(xlsxPath, final, txs); err != nil {
			return fmt.Errorf("write xlsx: %w", err)
		}
		log.Info("Wrote report", zap.String("path", xlsxPath))
	}
	return nil
}

func loadHistory(ctx context.Context, store *sqlite.Store, requestsPath, quotesPath string, on generic.TimePoint) (int, error) {
	reqs, err := os.Open(requestsPath)
	if err != nil {
		return 0, err
	}
	defer reqs.Close()
	quotes, err := os.Open(quotesPath)
	if err != nil {
		return 0, err
	}
	defer quotes.Close()
	return factory.LoadQuoteHistory(ctx, reqs, quotes, store, on.Time.In(time.UTC))
}
