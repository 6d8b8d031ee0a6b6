package connectors

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"loanrisk/internal"
)

const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// ArchiveService moves handled inbox files out of the way so that the next
// cycle does not pick them up again.
type ArchiveService struct {
	inboxDir string
}

func NewArchiveService(inboxDir string) *ArchiveService {
	return &ArchiveService{inboxDir: inboxDir}
}

// Archive moves file into processed/ or failed/ and returns the new path. A
// name already taken there is prefixed with a short content hash.
func (s *ArchiveService) Archive(file internal.InboxFile, ok bool) (string, error) {
	sub := ProcessedDir
	if !ok {
		sub = FailedDir
	}
	targetDir := filepath.Join(s.inboxDir, sub)
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return "", err
	}

	target := filepath.Join(targetDir, file.Name)
	if _, err := os.Stat(target); err == nil {
		raw, err := os.ReadFile(file.Path)
		if err != nil {
			return "", err
		}
		hashBytes := sha256.Sum256(raw)
		target = filepath.Join(targetDir, hex.EncodeToString(hashBytes[:])[:12]+"_"+file.Name)
	}

	if err := os.Rename(file.Path, target); err != nil {
		return "", err
	}
	return target, nil
}
