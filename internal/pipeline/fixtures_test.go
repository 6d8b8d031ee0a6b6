package pipeline

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"loanrisk/internal"
)

var applicationHeader = []any{"Age", "Income", "Credit_Score", "Debt_to_Income_Ratio", "Education_Level", "Loan_Purpose", "Loan Amount", "Risk_Rating"}

func mkXLSX(rows [][]any) []byte {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	buf := bytes.NewBuffer(nil)
	_, _ = f.WriteTo(buf)
	return buf.Bytes()
}

func writeFile(t *testing.T, name string, blob []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// fiveApplications has an empty Age on the third data row.
func fiveApplications() [][]any {
	return [][]any{
		applicationHeader,
		{30, "50000", 700, 0.2, "Bachelor", "Car", "$1,234.56", 3},
		{45, "40 000 €", 650, 0.35, "Master", "Home", "10000", 6},
		{"", "30000", 600, 0.5, "High School", "Business", "$5,000", 8},
		{52, "€60,000", 720, 0.15, "PhD", "Education", "20000", 2},
		{28, "25000", 580, 0.6, "Bachelor", "Car", "$2,500.00", 9},
	}
}

func record(id int, cells map[string]string) internal.Record {
	rec := internal.Record{ID: id, Cells: map[string]internal.Cell{}}
	for k, v := range cells {
		rec.Cells[k] = internal.Cell{Raw: v}
	}
	return rec
}

func ids(table internal.Table) []int {
	out := make([]int, 0, table.Len())
	for _, rec := range table.Records {
		out = append(out, rec.ID)
	}
	return out
}
