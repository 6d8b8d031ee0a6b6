package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"loanrisk/internal/config"
	"loanrisk/internal/logging"
	"loanrisk/internal/metrics"
	"loanrisk/internal/pipeline"
	"loanrisk/internal/risk"
	"loanrisk/internal/storage"
)

// app carries what every subcommand needs once the root has loaded it.
type app struct {
	cfg    config.Config
	logger *zap.Logger
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "loanrisk",
		Short: "Clean loan application spreadsheets and score applicant risk",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return fmt.Errorf("building logger: %w", err)
			}
			a.cfg, a.logger = cfg, logger
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
			return metrics.WriteTextfile(a.cfg.MetricsTextfile)
		},
	}

	rootCmd.AddCommand(newProcessCommand(a))
	rootCmd.AddCommand(newScoreCommand(a))
	rootCmd.AddCommand(newExportCommand(a))
	rootCmd.AddCommand(newRunsCommand(a))

	return rootCmd
}

func (a *app) openDB() (*storage.DB, error) {
	db, err := storage.Open(a.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", a.cfg.DBPath, err)
	}
	return db, nil
}

// referenceSource assembles the configured corpus: spreadsheets first, then
// stored applications when REFERENCE_FROM_DB is set. db may be nil.
func (a *app) referenceSource(db *storage.DB) (risk.ReferenceSource, error) {
	var sources risk.MultiReference
	if len(a.cfg.ReferenceFiles) > 0 {
		normalizer, err := pipeline.NewConfiguredNormalizer(a.cfg, a.logger)
		if err != nil {
			return nil, err
		}
		sources = append(sources, risk.FileReference{Paths: a.cfg.ReferenceFiles, Normalizer: normalizer, Logger: a.logger})
	}
	if a.cfg.ReferenceFromDB && db != nil {
		sources = append(sources, db)
	}
	if len(sources) == 0 {
		return nil, nil
	}
	return sources, nil
}
