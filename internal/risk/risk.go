// Package risk turns applicant attributes into a bounded risk rating.
//
// Two policies exist and are selected explicitly by configuration. The
// correlation policy weights standardized features by their correlation with
// historical ratings and yields a continuous 1 to 10 value. The fixed policy
// uses hand-assigned weights over capped features and yields 0, 1 or 2.
package risk

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"loanrisk/internal"
	"loanrisk/internal/config"
	"loanrisk/internal/metrics"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrDataUnavailable = errors.New("reference data unavailable")

	validate = validator.New()
)

// ValidationError describes the first rejected input or reference feature.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Features are the scorer inputs. Debt-to-income is a ratio in [0,1].
// Education level and loan purpose are carried for logging only.
type Features struct {
	Age            float64 `validate:"gte=18,lte=100"`
	Income         float64 `validate:"gte=0"`
	CreditScore    float64 `validate:"gte=300,lte=850"`
	DebtToIncome   float64 `validate:"gte=0,lte=1"`
	EducationLevel string
	LoanPurpose    string
	LoanAmount     float64 `validate:"gte=0"`
}

// FeaturesFromApplication scores a stored application as entered.
func FeaturesFromApplication(app internal.Application) Features {
	return Features{
		Age:            float64(app.Age),
		Income:         app.Income.InexactFloat64(),
		CreditScore:    float64(app.CreditScore),
		DebtToIncome:   app.DebtToIncome,
		EducationLevel: app.EducationLevel,
		LoanPurpose:    app.LoanPurpose,
		LoanAmount:     app.LoanAmount.InexactFloat64(),
	}
}

var featureColumns = map[string]string{
	"Age":          internal.ColAge,
	"Income":       internal.ColIncome,
	"CreditScore":  internal.ColCreditScore,
	"DebtToIncome": internal.ColDebtToIncome,
	"LoanAmount":   internal.ColLoanAmount,
}

// Validate checks the documented input ranges.
func (f Features) Validate() error {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Field: "features", Reason: err.Error()}
	}
	fe := fieldErrs[0]
	field := fe.Field()
	if col, ok := featureColumns[field]; ok {
		field = col
	}
	return &ValidationError{Field: field, Reason: formatFieldError(fe)}
}

func formatFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s, got %v", fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s, got %v", fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

type Band string

const (
	BandLow    Band = "Low"
	BandMedium Band = "Medium"
	BandHigh   Band = "High"
)

func (b Band) Description() string { return string(b) + " Risk" }

type Result struct {
	Value   float64
	Policy  string
	Band    Band
	Weights map[string]float64
}

type Scorer interface {
	Score(ctx context.Context, f Features) (Result, error)
	Policy() string
}

// NewScorer returns the scorer for the configured policy. ref is only used
// by the correlation policy and may be nil for the fixed one.
func NewScorer(policy string, ref ReferenceSource, logger *zap.Logger) (Scorer, error) {
	switch strings.ToLower(strings.TrimSpace(policy)) {
	case config.PolicyCorrelation:
		if ref == nil {
			return nil, fmt.Errorf("%w: no reference source configured", ErrDataUnavailable)
		}
		return NewCorrelationScorer(ref, logger), nil
	case config.PolicyFixed:
		return NewFixedWeightScorer(logger), nil
	default:
		return nil, fmt.Errorf("unsupported scoring policy: %s", policy)
	}
}

func observe(policy string, err error) {
	if err == nil {
		metrics.ScoresComputed.WithLabelValues(policy).Inc()
		return
	}
	reason := "other"
	switch {
	case errors.Is(err, ErrValidation):
		reason = "validation"
	case errors.Is(err, ErrDataUnavailable):
		reason = "data_unavailable"
	}
	metrics.ScoreFailures.WithLabelValues(policy, reason).Inc()
}
