package connectors

import (
	"context"

	"go.uber.org/zap"

	"loanrisk/internal"
	"loanrisk/internal/logging"
)

// Handler processes one inbox file. A returned error marks the file failed.
type Handler func(ctx context.Context, file internal.InboxFile) error

type FetchService struct {
	connector InboxConnector
	archive   *ArchiveService
	logger    *zap.Logger
}

type FetchResult struct {
	Fetched   int
	Processed int
	Failed    int
}

func NewFetchService(inboxDir string, connector InboxConnector, logger *zap.Logger) *FetchService {
	return &FetchService{
		connector: connector,
		archive:   NewArchiveService(inboxDir),
		logger:    logging.OrNop(logger),
	}
}

// FetchAndHandle runs handle over each pending file and archives it by
// outcome. Handler failures do not stop the batch; archive failures do.
func (s *FetchService) FetchAndHandle(ctx context.Context, max int, handle Handler) (FetchResult, error) {
	files, err := s.connector.FetchInbox(max)
	if err != nil {
		return FetchResult{}, err
	}

	res := FetchResult{Fetched: len(files)}
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return res, nil
		}

		ok := true
		if err := handle(ctx, file); err != nil {
			ok = false
			res.Failed++
			s.logger.Error("inbox file failed", zap.String("file", file.Name), zap.Error(err))
		} else {
			res.Processed++
		}

		dest, err := s.archive.Archive(file, ok)
		if err != nil {
			return res, err
		}
		s.logger.Debug("inbox file archived", zap.String("file", file.Name), zap.String("to", dest))
	}
	return res, nil
}
