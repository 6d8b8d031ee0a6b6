package pipeline

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"loanrisk/internal"
)

// WriteCSV writes the header and one line per record. There is no index
// column; normalized amounts are plain two-decimal numbers.
func WriteCSV(w io.Writer, table internal.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(table.Columns); err != nil {
		return err
	}
	line := make([]string, len(table.Columns))
	for _, rec := range table.Records {
		for i, col := range table.Columns {
			line[i] = table.Value(rec, col)
		}
		if err := cw.Write(line); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportTableToCSV writes the table to a file, creating parent directories.
func ExportTableToCSV(table internal.Table, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, table); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func ExportTableToXLSX(table internal.Table, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	for i, h := range table.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, rec := range table.Records {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		for c, col := range table.Columns {
			switch {
			case col == internal.ColID:
				set(c+1, rec.ID)
			case rec.Cells[col].Amount != nil:
				set(c+1, rec.Cells[col].Amount.Round(2).InexactFloat64())
			default:
				set(c+1, rec.Cells[col].Raw)
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

// ExportTable dispatches on the output extension, .xlsx or anything else as CSV.
func ExportTable(table internal.Table, outputPath string) error {
	if ext := filepath.Ext(outputPath); ext == ".xlsx" || ext == ".xlsm" {
		return ExportTableToXLSX(table, outputPath)
	}
	return ExportTableToCSV(table, outputPath)
}
