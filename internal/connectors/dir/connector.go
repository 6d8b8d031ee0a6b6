package dir

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"loanrisk/internal"
	"loanrisk/internal/config"
	"loanrisk/internal/pipeline"
)

// Connector reads the top level of an inbox directory. Subdirectories,
// hidden files and unsupported extensions are ignored.
type Connector struct {
	dir string
}

func NewConnector(cfg config.Config) (*Connector, error) {
	if err := cfg.Require("INBOX_DIR", cfg.InboxDir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.InboxDir, 0o755); err != nil {
		return nil, err
	}
	return &Connector{dir: cfg.InboxDir}, nil
}

func (c *Connector) FetchInbox(max int) ([]internal.InboxFile, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, err
	}

	var out []internal.InboxFile
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
			continue
		}
		if !pipeline.Supported(name) {
			continue
		}
		info, err := entry.Info()
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, internal.InboxFile{
			Path:    filepath.Join(c.dir, name),
			Name:    name,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ModTime.Equal(out[j].ModTime) {
			return out[i].Name < out[j].Name
		}
		return out[i].ModTime.Before(out[j].ModTime)
	})
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out, nil
}
