package util

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "usd with thousands", input: "$1,234.56", want: "1234.56"},
		{name: "plain integer", input: "1000", want: "1000"},
		{name: "euro suffix", input: "2.500 €", want: "2.5"},
		{name: "euro prefix", input: "€ 12,000", want: "12000"},
		{name: "nbsp thousands", input: "45\u00a0000", want: "45000"},
		{name: "code prefix", input: "EUR 300.10", want: "300.1"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseAmount(tc.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(decimal.RequireFromString(tc.want)) {
				t.Fatalf("got %s want %s", got, tc.want)
			}
		})
	}
}

func TestParseAmountMalformed(t *testing.T) {
	if _, err := ParseAmount("n/a"); !errors.Is(err, ErrNoDigits) {
		t.Fatalf("want ErrNoDigits, got %v", err)
	}
	if _, err := ParseAmount("1.2.3"); err == nil {
		t.Fatalf("want error for double decimal point")
	}
}

func TestHasUSDMarker(t *testing.T) {
	if !HasUSDMarker("$10") || HasUSDMarker("10 EUR") {
		t.Fatalf("marker detection wrong")
	}
}

func TestRoundCents(t *testing.T) {
	got := RoundCents(decimal.RequireFromString("1000").Mul(decimal.RequireFromString("1.137")))
	if got.StringFixed(2) != "1137.00" {
		t.Fatalf("got %s", got.StringFixed(2))
	}
	if RoundCents(decimal.RequireFromString("0.125")).StringFixed(2) != "0.13" {
		t.Fatalf("half should round away from zero")
	}
}
