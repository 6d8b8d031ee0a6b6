package pipeline

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"loanrisk/internal"
)

var errNotNormalized = errors.New("amount not normalized")

// Applications types every record of a cleaned table. Records with a value
// that cannot be typed are skipped and reported, one RowError per record.
func Applications(table internal.Table) ([]internal.Application, []*RowError) {
	apps := make([]internal.Application, 0, table.Len())
	var failures []*RowError
	for row, rec := range table.Records {
		app, col, err := application(rec)
		if err != nil {
			failures = append(failures, &RowError{Row: row, ID: rec.ID, Column: col, Value: rec.Cells[col].Raw, Err: err})
			continue
		}
		apps = append(apps, app)
	}
	return apps, failures
}

func application(rec internal.Record) (internal.Application, string, error) {
	app := internal.Application{
		ID:             rec.ID,
		EducationLevel: rec.Cells[internal.ColEducationLevel].Raw,
		LoanPurpose:    rec.Cells[internal.ColLoanPurpose].Raw,
	}
	var err error

	if app.Age, err = intCell(rec, internal.ColAge); err != nil {
		return app, internal.ColAge, err
	}
	if app.CreditScore, err = intCell(rec, internal.ColCreditScore); err != nil {
		return app, internal.ColCreditScore, err
	}
	if app.DebtToIncome, err = floatCell(rec, internal.ColDebtToIncome); err != nil {
		return app, internal.ColDebtToIncome, err
	}
	if app.RiskRating, err = floatCell(rec, internal.ColRiskRating); err != nil {
		return app, internal.ColRiskRating, err
	}
	if app.Income, err = amountCell(rec, internal.ColIncome); err != nil {
		return app, internal.ColIncome, err
	}
	if app.LoanAmount, err = amountCell(rec, internal.ColLoanAmount); err != nil {
		return app, internal.ColLoanAmount, err
	}
	return app, "", nil
}

func floatCell(rec internal.Record, col string) (float64, error) {
	cell, ok := rec.Cells[col]
	if !ok {
		return 0, fmt.Errorf("missing %s", col)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(cell.Raw), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s is not a finite number", col)
	}
	return v, nil
}

func intCell(rec internal.Record, col string) (int, error) {
	v, err := floatCell(rec, col)
	if err != nil {
		return 0, err
	}
	if v != math.Trunc(v) {
		return 0, fmt.Errorf("%s is not a whole number: %g", col, v)
	}
	return int(v), nil
}

func amountCell(rec internal.Record, col string) (decimal.Decimal, error) {
	cell := rec.Cells[col]
	if cell.Amount == nil {
		return decimal.Decimal{}, errNotNormalized
	}
	return *cell.Amount, nil
}
