package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RowsLoaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loanrisk_rows_loaded_total",
			Help: "Total number of application rows read by the loader",
		},
	)

	RowsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loanrisk_rows_dropped_total",
			Help: "Total number of rows removed by the completeness filter",
		},
	)

	ConversionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loanrisk_conversion_failures_total",
			Help: "Total number of monetary cells left unconverted",
		},
		[]string{"column", "reason"},
	)

	ScoresComputed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loanrisk_scores_computed_total",
			Help: "Total number of successful risk scoring calls",
		},
		[]string{"policy"},
	)

	ScoreFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loanrisk_score_failures_total",
			Help: "Total number of failed risk scoring calls",
		},
		[]string{"policy", "reason"},
	)

	ReferenceRowsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loanrisk_reference_rows_skipped_total",
			Help: "Total number of reference applications left out of the scoring corpus",
		},
		[]string{"reason"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "loanrisk_run_duration_seconds",
			Help: "Duration of a full load, clean and normalize run",
		},
	)
)

// WriteTextfile dumps the default registry in the node_exporter textfile format.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
