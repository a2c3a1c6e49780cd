// Package export renders the entry collections as an Excel workbook.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"wallet/internal/core"
	"wallet/internal/ledger"
)

const (
	SheetIncome   = "Income"
	SheetExpenses = "Expenses"
	SheetTotals   = "Totals"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var header = []any{"ID", "Date", "Category", "Counterpart", "Amount", "Notes"}

// Workbook builds a workbook with one sheet per variant and a sheet of
// per-category totals.
func Workbook(income, expenses []core.Entry) (*excelize.File, error) {
	f := excelize.NewFile()

	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return nil, fmt.Errorf("create amount style: %w", err)
	}
	headStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", SheetIncome); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SheetExpenses); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SheetTotals); err != nil {
		return nil, err
	}

	for _, s := range []struct {
		name    string
		entries []core.Entry
	}{{SheetIncome, income}, {SheetExpenses, expenses}} {
		if err := writeEntries(f, s.name, s.entries, headStyle, amountStyle); err != nil {
			return nil, fmt.Errorf("write %s sheet: %w", s.name, err)
		}
	}
	if err := writeTotals(f, income, expenses, headStyle, amountStyle); err != nil {
		return nil, fmt.Errorf("write totals sheet: %w", err)
	}

	f.SetActiveSheet(0)
	return f, nil
}

func writeEntries(f *excelize.File, sheet string, entries []core.Entry, headStyle, amountStyle int) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", "F1", headStyle); err != nil {
		return err
	}
	for i, e := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			e.ID,
			e.Date.Format("2006-01-02"),
			e.Category,
			e.Counterpart,
			e.Amount.Decimal().InexactFloat64(),
			e.Notes,
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	if len(entries) > 0 {
		last := fmt.Sprintf("E%d", len(entries)+1)
		if err := f.SetCellStyle(sheet, "E2", last, amountStyle); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(sheet, "B", "D", 16); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "F", "F", 32)
}

func writeTotals(f *excelize.File, income, expenses []core.Entry, headStyle, amountStyle int) error {
	head := []any{"Variant", "Category", "Total"}
	if err := f.SetSheetRow(SheetTotals, "A1", &head); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetTotals, "A1", "C1", headStyle); err != nil {
		return err
	}

	row := 2
	for _, v := range []struct {
		variant core.Variant
		entries []core.Entry
	}{{core.Income, income}, {core.Expense, expenses}} {
		for _, ct := range ledger.CategoryTotals(v.entries, v.variant.Categories()) {
			values := []any{v.variant.String(), ct.Category, ct.Total.Decimal().InexactFloat64()}
			if err := f.SetSheetRow(SheetTotals, fmt.Sprintf("A%d", row), &values); err != nil {
				return err
			}
			if err := f.SetCellStyle(SheetTotals, fmt.Sprintf("C%d", row), fmt.Sprintf("C%d", row), amountStyle); err != nil {
				return err
			}
			row++
		}
	}
	return nil
}

// WriteXLSX writes the workbook to w.
func WriteXLSX(w io.Writer, income, expenses []core.Entry) error {
	f, err := Workbook(income, expenses)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
