package listener

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"loanrisk/internal"
	"loanrisk/internal/config"
	"loanrisk/internal/connectors"
	dirconnector "loanrisk/internal/connectors/dir"
	gmailconnector "loanrisk/internal/connectors/gmail"
	imapconnector "loanrisk/internal/connectors/imap"
	"loanrisk/internal/logging"
	"loanrisk/internal/metrics"
	"loanrisk/internal/pipeline"
	"loanrisk/internal/storage"
)

const lastCycleKey = "inbox.last_cycle"

// Service polls the inbox directory and runs the pipeline over every new
// spreadsheet. db may be nil, in which case runs are not persisted.
type Service struct {
	db        *storage.DB
	cfg       config.Config
	processor *pipeline.ProcessingService
	fetch     *connectors.FetchService
	logger    *zap.Logger
}

func NewService(db *storage.DB, cfg config.Config, logger *zap.Logger) (*Service, error) {
	logger = logging.OrNop(logger).Named("listener")

	processor, err := pipeline.NewProcessingService(db, cfg, logger)
	if err != nil {
		return nil, err
	}
	connector, err := NewInboxConnector(context.Background(), cfg, logger)
	if err != nil {
		return nil, err
	}

	return &Service{
		db:        db,
		cfg:       cfg,
		processor: processor,
		fetch:     connectors.NewFetchService(cfg.InboxDir, connector, logger),
		logger:    logger,
	}, nil
}

// Run loops until ctx is cancelled. Cycle errors are logged, not returned.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("listening", zap.String("inbox", s.cfg.InboxDir), zap.Int("interval_sec", s.cfg.InboxIntervalSec))
	for {
		if _, err := s.RunCycle(ctx); err != nil {
			s.logger.Error("listener cycle error", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(s.cfg.InboxIntervalSec) * time.Second):
		}
	}
}

func (s *Service) RunCycle(ctx context.Context) (connectors.FetchResult, error) {
	res, err := s.fetch.FetchAndHandle(ctx, s.cfg.InboxFetchMax, s.handle)
	if err != nil {
		return res, err
	}

	if s.db != nil {
		if err := s.db.SetMetadata(lastCycleKey, time.Now().UTC().Format(time.RFC3339)); err != nil {
			return res, err
		}
	}
	if err := metrics.WriteTextfile(s.cfg.MetricsTextfile); err != nil {
		s.logger.Warn("metrics textfile not written", zap.Error(err))
	}

	if res.Fetched > 0 {
		s.logger.Info("listener cycle done",
			zap.Int("fetched", res.Fetched),
			zap.Int("processed", res.Processed),
			zap.Int("failed", res.Failed),
		)
	}
	return res, nil
}

func (s *Service) handle(ctx context.Context, file internal.InboxFile) error {
	res, err := s.processor.ProcessFile(ctx, file.Path)
	if err != nil {
		return err
	}
	return pipeline.ExportTableToCSV(res.Table, CleanedPath(s.cfg.OutputDir, file.Name))
}

// NewInboxConnector picks the inbox source from INBOX_PROVIDER. Mail
// providers drop their messages into the inbox directory, which is then
// read like any other dropped file.
func NewInboxConnector(ctx context.Context, cfg config.Config, logger *zap.Logger) (connectors.InboxConnector, error) {
	dir, err := dirconnector.NewConnector(cfg)
	if err != nil {
		return nil, err
	}

	var mail connectors.MailConnector
	switch cfg.InboxProvider {
	case "", config.ProviderDir:
		return dir, nil
	case config.ProviderIMAP:
		mail, err = imapconnector.NewConnector(cfg)
	case config.ProviderGmail:
		mail, err = gmailconnector.NewConnector(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported INBOX_PROVIDER: %s", cfg.InboxProvider)
	}
	if err != nil {
		return nil, err
	}
	return connectors.NewMailDrop(mail, cfg.MailLabel, cfg.InboxDir, dir, logger), nil
}

// CleanedPath is where the cleaned CSV for an inbox file is written.
func CleanedPath(outputDir, name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return filepath.Join(outputDir, base+".cleaned.csv")
}
