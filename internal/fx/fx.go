package fx

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrUnsupportedCurrency = errors.New("unsupported currency")

// UnsupportedCurrencyError names the pair that has no configured rate.
type UnsupportedCurrencyError struct {
	From string
	To   string
}

func (e *UnsupportedCurrencyError) Error() string {
	return fmt.Sprintf("no rate for %s/%s: %s", e.From, e.To, ErrUnsupportedCurrency)
}

func (e *UnsupportedCurrencyError) Unwrap() error { return ErrUnsupportedCurrency }

// DefaultEURUSD is the fixed EUR to USD rate applied to unmarked amounts.
const DefaultEURUSD = "1.137"

// Rates maps "BASE/QUOTE" to a positive rate.
type Rates map[string]decimal.Decimal

func pairKey(base, quote string) string {
	return strings.ToUpper(strings.TrimSpace(base)) + "/" + strings.ToUpper(strings.TrimSpace(quote))
}

// Converter applies a fixed rate table. Inverse pairs are derived when only
// the opposite direction is configured.
type Converter struct {
	rates Rates
}

func NewConverter(rates Rates) (*Converter, error) {
	table := make(Rates, len(rates))
	for key, rate := range rates {
		if !rate.IsPositive() {
			return nil, fmt.Errorf("rate %s must be positive, got %s", key, rate)
		}
		parts := strings.SplitN(key, "/", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("rate key %q is not BASE/QUOTE", key)
		}
		table[pairKey(parts[0], parts[1])] = rate
	}
	return &Converter{rates: table}, nil
}

// NewEURUSDConverter builds the single-pair converter used by the pipeline.
func NewEURUSDConverter(rate string) (*Converter, error) {
	if strings.TrimSpace(rate) == "" {
		rate = DefaultEURUSD
	}
	d, err := decimal.NewFromString(strings.TrimSpace(rate))
	if err != nil {
		return nil, fmt.Errorf("parse EUR/USD rate %q: %w", rate, err)
	}
	return NewConverter(Rates{"EUR/USD": d})
}

// Rate returns the multiplier that turns an amount in from into to.
func (c *Converter) Rate(from, to string) (decimal.Decimal, error) {
	if strings.EqualFold(strings.TrimSpace(from), strings.TrimSpace(to)) {
		return decimal.NewFromInt(1), nil
	}
	if rate, ok := c.rates[pairKey(from, to)]; ok {
		return rate, nil
	}
	if rate, ok := c.rates[pairKey(to, from)]; ok {
		return decimal.NewFromInt(1).Div(rate), nil
	}
	return decimal.Decimal{}, &UnsupportedCurrencyError{From: strings.ToUpper(from), To: strings.ToUpper(to)}
}

// Convert multiplies amount by the from/to rate. The result is not rounded.
func (c *Converter) Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	rate, err := c.Rate(from, to)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return amount.Mul(rate), nil
}
