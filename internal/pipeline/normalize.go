package pipeline

import (
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"loanrisk/internal"
	"loanrisk/internal/fx"
	"loanrisk/internal/logging"
	"loanrisk/internal/metrics"
	"loanrisk/internal/util"
)

// Normalizer rewrites the monetary columns as two-decimal amounts in the
// target currency.
type Normalizer struct {
	converter *fx.Converter
	source    string
	target    string
	logger    *zap.Logger
}

func NewNormalizer(converter *fx.Converter, source, target string, logger *zap.Logger) *Normalizer {
	return &Normalizer{
		converter: converter,
		source:    source,
		target:    target,
		logger:    logging.OrNop(logger),
	}
}

// Normalize converts Loan_Amount then Income for every record. A cell that
// cannot be converted keeps its original text and is reported as a RowError.
// Cells that already carry an amount are left as they are.
func (n *Normalizer) Normalize(table internal.Table) (internal.Table, []*RowError) {
	out := internal.Table{
		Columns: append([]string(nil), table.Columns...),
		Records: make([]internal.Record, 0, table.Len()),
	}
	var failures []*RowError

	for row, src := range table.Records {
		rec := src.Clone()
		for _, col := range internal.MonetaryColumns {
			if !table.HasColumn(col) {
				continue
			}
			cell := rec.Cells[col]
			if cell.Amount != nil {
				continue
			}
			amount, err := n.convertCell(col, cell.String())
			if err != nil {
				rowErr := &RowError{Row: row, ID: rec.ID, Column: col, Value: cell.Raw, Err: err}
				n.logger.Warn("currency conversion failed",
					zap.Int("row", row),
					zap.Int("id", rec.ID),
					zap.String("column", col),
					zap.String("value", cell.Raw),
					zap.Error(err),
				)
				metrics.ConversionFailures.WithLabelValues(col, failureReason(err)).Inc()
				failures = append(failures, rowErr)
				continue
			}
			cell.Amount = util.DecimalPtr(amount)
			rec.Cells[col] = cell
		}
		out.Records = append(out.Records, rec)
	}
	return out, failures
}

// convertCell applies the column rules to a single value. A "$" marked
// Loan_Amount is read as USD and anything else as the source currency.
// Income always takes the conversion path.
func (n *Normalizer) convertCell(column, value string) (decimal.Decimal, error) {
	amount, err := util.ParseAmount(value)
	if err != nil {
		return decimal.Decimal{}, err
	}
	from := n.source
	if column == internal.ColLoanAmount && util.HasUSDMarker(value) {
		from = "USD"
	}
	converted, err := n.converter.Convert(amount, from, n.target)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return util.RoundCents(converted), nil
}

func failureReason(err error) string {
	if errors.Is(err, fx.ErrUnsupportedCurrency) {
		return "unsupported_currency"
	}
	return "parse"
}
