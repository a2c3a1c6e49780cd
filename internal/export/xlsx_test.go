package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"wallet/internal/core"
)

func sample() (income, expenses []core.Entry) {
	income = []core.Entry{
		{ID: 1, Variant: core.Income, Amount: core.Money{Cents: 250000}, Category: "Salary", Counterpart: "Company ABC", Date: core.NewDate(2023, 4, 15), Notes: "Monthly salary"},
	}
	expenses = []core.Entry{
		{ID: 1, Variant: core.Expense, Amount: core.Money{Cents: 45000}, Category: "Housing", Counterpart: "Rent", Date: core.NewDate(2023, 4, 1)},
		{ID: 2, Variant: core.Expense, Amount: core.Money{Cents: 1250}, Category: "Food", Counterpart: "Lunch", Date: core.NewDate(2023, 4, 2), Notes: "with team"},
	}
	return income, expenses
}

func TestWriteXLSXRoundTrip(t *testing.T) {
	income, expenses := sample()

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, income, expenses))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetIncome, SheetExpenses, SheetTotals}, f.GetSheetList())

	raw := excelize.Options{RawCellValue: true}

	rows, err := f.GetRows(SheetIncome, raw)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"ID", "Date", "Category", "Counterpart", "Amount", "Notes"}, rows[0])
	assert.Equal(t, []string{"1", "2023-04-15", "Salary", "Company ABC", "2500", "Monthly salary"}, rows[1])

	rows, err = f.GetRows(SheetExpenses, raw)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "12.5", rows[2][4])
	assert.Equal(t, "with team", rows[2][5])

	rows, err = f.GetRows(SheetTotals, raw)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Variant", "Category", "Total"},
		{"income", "Salary", "2500"},
		{"expense", "Housing", "450"},
		{"expense", "Food", "12.5"},
	}, rows)
}

func TestWorkbookEmptyCollections(t *testing.T) {
	f, err := Workbook(nil, nil)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetExpenses)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	rows, err = f.GetRows(SheetTotals)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
