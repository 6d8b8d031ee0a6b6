package risk

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"loanrisk/internal"
	"loanrisk/internal/config"
	"loanrisk/internal/logging"
)

// Standardized weighted sums are assumed to fall in [sumFloor, sumCeil]
// before being mapped onto the rating scale.
const (
	sumFloor    = -3.0
	sumCeil     = 3.0
	ratingFloor = 1.0
	ratingCeil  = 10.0
)

type CorrelationScorer struct {
	ref    ReferenceSource
	logger *zap.Logger
}

func NewCorrelationScorer(ref ReferenceSource, logger *zap.Logger) *CorrelationScorer {
	return &CorrelationScorer{ref: ref, logger: logging.OrNop(logger)}
}

func (s *CorrelationScorer) Policy() string { return config.PolicyCorrelation }

type feature struct {
	name  string
	value float64
	of    func(internal.Application) float64
}

// Score reloads the reference corpus on every call.
func (s *CorrelationScorer) Score(ctx context.Context, f Features) (res Result, err error) {
	defer func() { observe(s.Policy(), err) }()

	if err := f.Validate(); err != nil {
		return Result{}, err
	}

	apps, err := s.ref.LoadReference(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrDataUnavailable, err)
	}
	apps, skipped := withinDTIScale(apps)
	if skipped > 0 {
		s.logger.Warn("reference rows outside the debt-to-income scale skipped", zap.Int("skipped", skipped))
	}
	if len(apps) < 2 {
		return Result{}, fmt.Errorf("%w: reference corpus has %d applications, need at least 2", ErrDataUnavailable, len(apps))
	}

	features := []feature{
		{internal.ColAge, f.Age, func(a internal.Application) float64 { return float64(a.Age) }},
		{internal.ColIncome, f.Income, func(a internal.Application) float64 { return a.Income.InexactFloat64() }},
		{internal.ColCreditScore, f.CreditScore, func(a internal.Application) float64 { return float64(a.CreditScore) }},
		{internal.ColDebtToIncome, f.DebtToIncome, func(a internal.Application) float64 { return a.DebtToIncome }},
		{internal.ColLoanAmount, f.LoanAmount, func(a internal.Application) float64 { return a.LoanAmount.InexactFloat64() }},
	}

	labels := make([]float64, len(apps))
	for i, a := range apps {
		labels[i] = a.RiskRating
	}

	weights := make(map[string]float64, len(features))
	sum := 0.0
	for _, ft := range features {
		xs := make([]float64, len(apps))
		for i, a := range apps {
			xs[i] = ft.of(a)
		}
		std := sampleStd(xs)
		if std == 0 || math.IsNaN(std) {
			return Result{}, &ValidationError{Field: ft.name, Reason: "zero standard deviation in reference corpus"}
		}
		corr := pearson(xs, labels)
		if math.IsNaN(corr) {
			return Result{}, &ValidationError{Field: ft.name, Reason: "correlation with " + internal.ColRiskRating + " is undefined"}
		}
		w := math.Abs(corr)
		weights[ft.name] = w
		sum += w * (ft.value - mean(xs)) / std
	}

	scaled := (sum-sumFloor)/(sumCeil-sumFloor)*(ratingCeil-ratingFloor) + ratingFloor
	value := clamp(roundTo(scaled, 1), ratingFloor, ratingCeil)

	s.logger.Debug("risk scored",
		zap.String("policy", s.Policy()),
		zap.Int("reference_size", len(apps)),
		zap.Float64("weighted_sum", sum),
		zap.Float64("value", value),
		zap.String("education_level", f.EducationLevel),
		zap.String("loan_purpose", f.LoanPurpose),
	)

	return Result{Value: value, Policy: s.Policy(), Band: ContinuousBand(value), Weights: weights}, nil
}

// ContinuousBand maps a 1 to 10 rating onto a band.
func ContinuousBand(v float64) Band {
	switch {
	case v <= 3:
		return BandLow
	case v <= 7:
		return BandMedium
	default:
		return BandHigh
	}
}
