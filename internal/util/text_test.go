package util

import (
	"testing"

	"loanrisk/internal"
)

func TestCanonicalColumn(t *testing.T) {
	cases := map[string]string{
		"Loan Amount":          internal.ColLoanAmount,
		" loan_amount ":        internal.ColLoanAmount,
		"Risk_Rating":          internal.ColRiskRating,
		"Risk Rating":          internal.ColRiskRating,
		"Debt-to-Income Ratio": internal.ColDebtToIncome,
		"Credit_Score":         internal.ColCreditScore,
		" Branch ":             "Branch",
	}
	for in, want := range cases {
		if got := CanonicalColumn(in); got != want {
			t.Fatalf("CanonicalColumn(%q) = %q want %q", in, got, want)
		}
	}
}

func TestIsMissing(t *testing.T) {
	for _, v := range []string{"", "   ", "NaN", "N/A", "null", "None", "#N/A"} {
		if !IsMissing(v) {
			t.Fatalf("%q should be missing", v)
		}
	}
	for _, v := range []string{"0", "High School", "$0.00"} {
		if IsMissing(v) {
			t.Fatalf("%q should be present", v)
		}
	}
}
