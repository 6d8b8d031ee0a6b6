package pipeline

import (
	"loanrisk/internal"
	"loanrisk/internal/metrics"
	"loanrisk/internal/util"
)

// DropIncomplete keeps only records with a value in every column. Order and
// IDs are preserved; the input table is not modified.
func DropIncomplete(table internal.Table) internal.Table {
	out := internal.Table{
		Columns: append([]string(nil), table.Columns...),
		Records: make([]internal.Record, 0, table.Len()),
	}
	for _, rec := range table.Records {
		if complete(table.Columns, rec) {
			out.Records = append(out.Records, rec.Clone())
		}
	}
	metrics.RowsDropped.Add(float64(table.Len() - out.Len()))
	return out
}

func complete(columns []string, rec internal.Record) bool {
	for _, col := range columns {
		if col == internal.ColID {
			continue
		}
		cell, ok := rec.Cells[col]
		if !ok {
			return false
		}
		if cell.Amount == nil && util.IsMissing(cell.Raw) {
			return false
		}
	}
	return true
}
