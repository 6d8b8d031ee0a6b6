package risk

import (
	"context"
	"math"

	"go.uber.org/zap"

	"loanrisk/internal"
	"loanrisk/internal/config"
	"loanrisk/internal/logging"
)

const (
	minCreditScore = 300.0
	maxCreditScore = 850.0
	incomeCap      = 200000.0
	loanAmountCap  = 150000.0
	ageCap         = 100.0
)

// FixedWeights sum to 1. Credit score and income lower the risk, the other
// factors raise it.
var FixedWeights = map[string]float64{
	internal.ColCreditScore:  0.30,
	internal.ColDebtToIncome: 0.25,
	internal.ColIncome:       0.20,
	internal.ColLoanAmount:   0.15,
	internal.ColAge:          0.10,
}

type FixedWeightScorer struct {
	logger *zap.Logger
}

func NewFixedWeightScorer(logger *zap.Logger) *FixedWeightScorer {
	return &FixedWeightScorer{logger: logging.OrNop(logger)}
}

func (s *FixedWeightScorer) Policy() string { return config.PolicyFixed }

// Score returns a discrete rating of 0, 1 or 2.
func (s *FixedWeightScorer) Score(_ context.Context, f Features) (res Result, err error) {
	defer func() { observe(s.Policy(), err) }()

	if err := f.Validate(); err != nil {
		return Result{}, err
	}

	risk := FixedRisk(f)
	value := clamp(math.Round(risk*2), 0, 2)

	s.logger.Debug("risk scored",
		zap.String("policy", s.Policy()),
		zap.Float64("risk", risk),
		zap.Float64("value", value),
		zap.String("education_level", f.EducationLevel),
		zap.String("loan_purpose", f.LoanPurpose),
	)

	weights := make(map[string]float64, len(FixedWeights))
	for k, v := range FixedWeights {
		weights[k] = v
	}
	return Result{Value: value, Policy: s.Policy(), Band: DiscreteBand(value), Weights: weights}, nil
}

// FixedRisk is the unscaled [0,1] weighted risk of already validated features.
func FixedRisk(f Features) float64 {
	credit := (f.CreditScore - minCreditScore) / (maxCreditScore - minCreditScore)
	income := math.Min(f.Income, incomeCap) / incomeCap
	loan := math.Min(f.LoanAmount, loanAmountCap) / loanAmountCap
	age := math.Min(f.Age, ageCap) / ageCap

	return FixedWeights[internal.ColCreditScore]*(1-credit) +
		FixedWeights[internal.ColDebtToIncome]*f.DebtToIncome +
		FixedWeights[internal.ColIncome]*(1-income) +
		FixedWeights[internal.ColLoanAmount]*loan +
		FixedWeights[internal.ColAge]*age
}

// DiscreteBand maps 0, 1 and 2 onto Low, Medium and High.
func DiscreteBand(v float64) Band {
	switch {
	case v < 0.5:
		return BandLow
	case v < 1.5:
		return BandMedium
	default:
		return BandHigh
	}
}
