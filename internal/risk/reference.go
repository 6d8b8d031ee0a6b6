package risk

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"loanrisk/internal"
	"loanrisk/internal/logging"
	"loanrisk/internal/metrics"
	"loanrisk/internal/pipeline"
)

// ReferenceSource supplies the historical applications, with ratings, that
// the correlation policy learns its weights from.
type ReferenceSource interface {
	LoadReference(ctx context.Context) ([]internal.Application, error)
}

// FileReference cleans each spreadsheet the same way the pipeline does and
// concatenates the typed results.
type FileReference struct {
	Paths      []string
	Normalizer *pipeline.Normalizer
	Logger     *zap.Logger
}

func (r FileReference) LoadReference(ctx context.Context) ([]internal.Application, error) {
	if len(r.Paths) == 0 {
		return nil, errors.New("no reference files configured")
	}
	if r.Normalizer == nil {
		return nil, errors.New("reference normalizer not configured")
	}
	logger := logging.OrNop(r.Logger)

	var out []internal.Application
	for _, path := range r.Paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := pipeline.LoadTable(path)
		if err != nil {
			return nil, err
		}
		cleaned, failures := r.Normalizer.Normalize(pipeline.DropIncomplete(raw))
		apps, untyped := pipeline.Applications(cleaned)
		metrics.ReferenceRowsSkipped.WithLabelValues("untyped").Add(float64(len(untyped)))
		if len(failures)+len(untyped) > 0 {
			logger.Warn("reference rows skipped",
				zap.String("path", path),
				zap.Int("conversion_failures", len(failures)),
				zap.Int("untyped", len(untyped)),
			)
		}
		out = append(out, apps...)
	}
	return out, nil
}

// withinDTIScale keeps the applications whose debt-to-income ratio lies on
// the unit interval. Percent-scale rows (35 for 35%) are dropped and counted.
func withinDTIScale(apps []internal.Application) ([]internal.Application, int) {
	kept := make([]internal.Application, 0, len(apps))
	for _, a := range apps {
		if a.DebtToIncome >= 0 && a.DebtToIncome <= 1 {
			kept = append(kept, a)
		}
	}
	skipped := len(apps) - len(kept)
	metrics.ReferenceRowsSkipped.WithLabelValues("dti_scale").Add(float64(skipped))
	return kept, skipped
}

// MultiReference concatenates several sources. Any failing source fails the load.
type MultiReference []ReferenceSource

func (m MultiReference) LoadReference(ctx context.Context) ([]internal.Application, error) {
	if len(m) == 0 {
		return nil, errors.New("no reference sources configured")
	}
	var out []internal.Application
	for i, src := range m {
		apps, err := src.LoadReference(ctx)
		if err != nil {
			return nil, fmt.Errorf("reference source %d: %w", i, err)
		}
		out = append(out, apps...)
	}
	return out, nil
}

// StaticReference serves a fixed in-memory corpus.
type StaticReference []internal.Application

func (s StaticReference) LoadReference(context.Context) ([]internal.Application, error) {
	return s, nil
}
