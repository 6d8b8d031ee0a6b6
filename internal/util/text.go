package util

import (
	"regexp"
	"strings"

	"loanrisk/internal"
)

var (
	reSeparators = regexp.MustCompile(`[\s_\-]+`)

	columnAliases = map[string]string{
		"id":                   internal.ColID,
		"age":                  internal.ColAge,
		"income":               internal.ColIncome,
		"annual_income":        internal.ColIncome,
		"credit_score":         internal.ColCreditScore,
		"debt_to_income_ratio": internal.ColDebtToIncome,
		"debt_to_income":       internal.ColDebtToIncome,
		"dti":                  internal.ColDebtToIncome,
		"education_level":      internal.ColEducationLevel,
		"education":            internal.ColEducationLevel,
		"loan_purpose":         internal.ColLoanPurpose,
		"purpose":              internal.ColLoanPurpose,
		"loan_amount":          internal.ColLoanAmount,
		"risk_rating":          internal.ColRiskRating,
	}

	missingMarkers = map[string]struct{}{
		"": {}, "na": {}, "n/a": {}, "nan": {}, "-nan": {}, "null": {},
		"none": {}, "#n/a": {}, "#na": {}, "<na>": {},
	}
)

// NormalizeHeader lower-cases a header and collapses runs of spaces, dashes
// and underscores into a single underscore.
func NormalizeHeader(input string) string {
	s := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(input, "\u00a0", " ")))
	s = reSeparators.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// CanonicalColumn maps spreadsheet header spellings onto the known column
// names. Unknown headers are returned trimmed but otherwise unchanged.
func CanonicalColumn(header string) string {
	if name, ok := columnAliases[NormalizeHeader(header)]; ok {
		return name
	}
	return strings.TrimSpace(header)
}

// IsMissing reports whether a cell value counts as absent: empty, blank or
// one of the usual spreadsheet null markers.
func IsMissing(value string) bool {
	_, ok := missingMarkers[strings.ToLower(strings.TrimSpace(value))]
	return ok
}
