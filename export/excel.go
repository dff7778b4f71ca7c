// Package export renders reports as spreadsheets.
package export

import (
	"fmt"
	"io"

	"github.com/warp/paper-supply/generic"
	"github.com/warp/paper-supply/inventory"
	"github.com/xuri/excelize/v2"
)

const (
	SheetSummary   = "Summary"
	SheetInventory = "Inventory"
	SheetTop       = "Top Sellers"
	SheetLedger    = "Ledger"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Workbook lays out a financial report. The ledger sheet is added only when
// txs is non-nil.
func Workbook(rep *inventory.FinancialReport, txs []generic.Transaction) (*excelize.File, error) {
	f := excelize.NewFile()
	// NewFile starts with "Sheet1"; rename it rather than leave it empty
	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		f.Close()
		return nil, err
	}

	if err := writeRows(f, SheetSummary, []string{"Figure", "Value"}, summaryRows(rep)); err != nil {
		f.Close()
		return nil, err
	}

	inv := make([][]interface{}, len(rep.InventorySummary))
	for i, s := range rep.InventorySummary {
		inv[i] = []interface{}{s.ItemName, s.Category, s.Stock, s.MinStockLevel, s.UnitPrice.InexactFloat64(), s.Value.InexactFloat64()}
	}
	if err := writeSheet(f, SheetInventory, []string{"Item", "Category", "Stock", "MinStockLevel", "UnitPrice", "Value"}, inv); err != nil {
		f.Close()
		return nil, err
	}

	top := make([][]interface{}, len(rep.TopSelling))
	for i, s := range rep.TopSelling {
		top[i] = []interface{}{i + 1, s.ItemName, s.TotalUnits, s.TotalRevenue.InexactFloat64()}
	}
	if err := writeSheet(f, SheetTop, []string{"Rank", "Item", "Units", "Revenue"}, top); err != nil {
		f.Close()
		return nil, err
	}

	if txs != nil {
		rows := make([][]interface{}, len(txs))
		for i, tx := range txs {
			var units interface{}
			if tx.Units != nil {
				units = *tx.Units
			}
			rows[i] = []interface{}{int64(tx.ID), tx.OccurredOn.String(), string(tx.Kind), tx.ItemName, units, tx.Amount.InexactFloat64(), tx.Reference}
		}
		if err := writeSheet(f, SheetLedger, []string{"ID", "Date", "Type", "Item", "Units", "Amount", "Reference"}, rows); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

// WriteReport streams the workbook to w.
func WriteReport(w io.Writer, rep *inventory.FinancialReport, txs []generic.Transaction) error {
	f, err := Workbook(rep, txs)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// SaveReport writes the workbook to a file.
func SaveReport(path string, rep *inventory.FinancialReport, txs []generic.Transaction) error {
	f, err := Workbook(rep, txs)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(path)
}

func summaryRows(rep *inventory.FinancialReport) [][]interface{} {
	return [][]interface{}{
		{"As of", rep.AsOf.String()},
		{"Cash balance", measureCell(rep.Cash)},
		{"Inventory value", measureCell(rep.InventoryValue)},
		{"Total assets", measureCell(rep.TotalAssets)},
	}
}

func measureCell(m inventory.Measure) interface{} {
	if !m.Available {
		return "unavailable: " + m.Error
	}
	return m.Value.InexactFloat64()
}

func writeSheet(f *excelize.File, sheet string, headings []string, rows [][]interface{}) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	return writeRows(f, sheet, headings, rows)
}

func writeRows(f *excelize.File, sheet string, headings []string, rows [][]interface{}) error {
	header := make([]interface{}, len(headings))
	for i, h := range headings {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("sheet %s header: %w", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return fmt.Errorf("sheet %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}
