package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"loanrisk/internal"
	"loanrisk/internal/config"
	"loanrisk/internal/fx"
	"loanrisk/internal/logging"
	"loanrisk/internal/metrics"
	"loanrisk/internal/storage"
)

// ProcessingService runs load, clean and normalize over one file and
// optionally persists the outcome. db may be nil.
type ProcessingService struct {
	db         *storage.DB
	cfg        config.Config
	normalizer *Normalizer
	logger     *zap.Logger
}

func NewProcessingService(db *storage.DB, cfg config.Config, logger *zap.Logger) (*ProcessingService, error) {
	logger = logging.OrNop(logger)
	normalizer, err := NewConfiguredNormalizer(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &ProcessingService{db: db, cfg: cfg, normalizer: normalizer, logger: logger}, nil
}

// NewConfiguredNormalizer builds a Normalizer from the currency settings.
func NewConfiguredNormalizer(cfg config.Config, logger *zap.Logger) (*Normalizer, error) {
	converter, err := fx.NewEURUSDConverter(cfg.EURUSDRate)
	if err != nil {
		return nil, err
	}
	return NewNormalizer(converter, cfg.SourceCurrency, cfg.TargetCurrency, logger), nil
}

type ProcessResult struct {
	RunID    string
	Loaded   int
	Retained int
	Failures []*RowError
	Table    internal.Table
}

// Clean applies the completeness filter and then the currency normalizer.
func (s *ProcessingService) Clean(table internal.Table) (internal.Table, []*RowError) {
	return s.normalizer.Normalize(DropIncomplete(table))
}

func (s *ProcessingService) ProcessFile(ctx context.Context, path string) (ProcessResult, error) {
	start := time.Now()
	defer func() { metrics.RunDuration.Observe(time.Since(start).Seconds()) }()

	runID := uuid.NewString()
	log := s.logger.With(zap.String("run_id", runID), zap.String("source", path))

	raw, err := LoadTable(path)
	if err != nil {
		log.Error("load failed", zap.Error(err))
		return ProcessResult{}, err
	}

	cleaned, failures := s.Clean(raw)
	res := ProcessResult{
		RunID:    runID,
		Loaded:   raw.Len(),
		Retained: cleaned.Len(),
		Failures: failures,
		Table:    cleaned,
	}

	if s.db != nil {
		if err := s.persist(ctx, filepath.Base(path), res); err != nil {
			log.Error("persist run failed", zap.Error(err))
			return res, err
		}
	}

	log.Info("run complete",
		zap.Int("loaded", res.Loaded),
		zap.Int("retained", res.Retained),
		zap.Int("failures", len(res.Failures)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

func (s *ProcessingService) persist(ctx context.Context, source string, res ProcessResult) error {
	apps, untyped := Applications(res.Table)
	reported := make(map[int]bool, len(res.Failures))
	for _, f := range res.Failures {
		reported[f.ID] = true
	}
	all := append([]*RowError{}, res.Failures...)
	for _, f := range untyped {
		if !reported[f.ID] {
			all = append(all, f)
		}
	}
	failures := Failures(all)

	run := internal.RunSummary{
		RunID:     res.RunID,
		Source:    source,
		Loaded:    res.Loaded,
		Retained:  res.Retained,
		Failures:  len(failures),
		CreatedAt: time.Now(),
	}
	if err := s.db.SaveRun(ctx, run, res.Table, apps, failures); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}
