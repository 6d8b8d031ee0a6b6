package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"loanrisk/internal/config"
	"loanrisk/internal/risk"
	"loanrisk/internal/storage"
)

func newScoreCommand(a *app) *cobra.Command {
	var f risk.Features
	var policy, runID string
	var recordID int

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Compute the risk rating of a single application",
		RunE: func(cmd *cobra.Command, args []string) error {
			policy = strings.ToLower(strings.TrimSpace(policy))
			if policy == "" {
				policy = a.cfg.ScoringPolicy
			}

			var db *storage.DB
			if runID != "" || (policy == config.PolicyCorrelation && a.cfg.ReferenceFromDB) {
				var err error
				if db, err = a.openDB(); err != nil {
					return err
				}
				defer db.Close()
			}

			if runID != "" {
				stored, err := storedFeatures(cmd.Context(), db, runID, recordID)
				if err != nil {
					return err
				}
				f = stored
			}

			var ref risk.ReferenceSource
			if policy == config.PolicyCorrelation {
				var err error
				if ref, err = a.referenceSource(db); err != nil {
					return err
				}
			}

			scorer, err := risk.NewScorer(policy, ref, a.logger)
			if err != nil {
				return err
			}
			res, err := scorer.Score(cmd.Context(), f)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "risk rating: %g (%s) policy=%s\n", res.Value, res.Band.Description(), res.Policy)
			names := make([]string, 0, len(res.Weights))
			for name := range res.Weights {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(out, "  weight %s=%.4f\n", name, res.Weights[name])
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&f.Age, "age", 30, "applicant age")
	cmd.Flags().Float64Var(&f.Income, "income", 50000, "annual income in USD")
	cmd.Flags().Float64Var(&f.CreditScore, "credit-score", 700, "credit score, 300 to 850")
	cmd.Flags().Float64Var(&f.DebtToIncome, "dti", 0.3, "debt-to-income ratio, 0 to 1")
	cmd.Flags().StringVar(&f.EducationLevel, "education", "Bachelor", "education level")
	cmd.Flags().StringVar(&f.LoanPurpose, "purpose", "Home", "loan purpose")
	cmd.Flags().Float64Var(&f.LoanAmount, "loan-amount", 100000, "loan amount in USD")
	cmd.Flags().StringVar(&policy, "policy", "", "correlation or fixed (default from SCORING_POLICY)")
	cmd.Flags().StringVar(&runID, "run-id", "", "score a stored application of this run instead of the feature flags")
	cmd.Flags().IntVar(&recordID, "id", 0, "record ID within --run-id")
	cmd.MarkFlagsRequiredTogether("run-id", "id")

	return cmd
}

// storedFeatures looks up one typed application of a stored run.
func storedFeatures(ctx context.Context, db *storage.DB, runID string, recordID int) (risk.Features, error) {
	apps, err := db.GetRunApplications(ctx, runID)
	if err != nil {
		return risk.Features{}, err
	}
	for _, app := range apps {
		if app.ID == recordID {
			return risk.FeaturesFromApplication(app), nil
		}
	}
	return risk.Features{}, fmt.Errorf("run %s has no typed application with ID %d", runID, recordID)
}
