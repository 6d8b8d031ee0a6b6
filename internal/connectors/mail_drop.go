package connectors

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/jhillyerd/enmime"
	"go.uber.org/zap"

	"loanrisk/internal"
	"loanrisk/internal/logging"
	"loanrisk/internal/pipeline"
)

// MailDrop copies mailbox messages that carry a spreadsheet attachment into
// the inbox directory as .eml files, then lists the directory through next.
// A message already dropped, processed or failed is not written again.
type MailDrop struct {
	mail     MailConnector
	label    string
	inboxDir string
	next     InboxConnector
	logger   *zap.Logger
}

func NewMailDrop(mail MailConnector, label, inboxDir string, next InboxConnector, logger *zap.Logger) *MailDrop {
	return &MailDrop{
		mail:     mail,
		label:    label,
		inboxDir: inboxDir,
		next:     next,
		logger:   logging.OrNop(logger),
	}
}

func (m *MailDrop) FetchInbox(max int) ([]internal.InboxFile, error) {
	messages, err := m.mail.FetchMessages(m.label, max)
	if err != nil {
		return nil, err
	}

	for _, msg := range messages {
		name := MessageFileName(msg)
		log := m.logger.With(
			zap.String("provider", msg.Provider),
			zap.String("message_id", msg.MessageID),
			zap.String("subject", msg.Subject),
		)
		if !hasSpreadsheet(msg.Raw) {
			log.Debug("message without spreadsheet attachment skipped")
			continue
		}
		if m.known(name) {
			continue
		}

		path := filepath.Join(m.inboxDir, name)
		if err := os.WriteFile(path, msg.Raw, 0o644); err != nil {
			return nil, err
		}
		if !msg.ReceivedAt.IsZero() {
			_ = os.Chtimes(path, msg.ReceivedAt, msg.ReceivedAt)
		}
		log.Info("message dropped into inbox", zap.String("file", name), zap.String("from", msg.From))
	}

	return m.next.FetchInbox(max)
}

func (m *MailDrop) known(name string) bool {
	for _, dir := range []string{m.inboxDir, filepath.Join(m.inboxDir, ProcessedDir), filepath.Join(m.inboxDir, FailedDir)} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// MessageFileName derives a stable inbox file name from the message ID.
func MessageFileName(msg internal.MailMessage) string {
	key := msg.MessageID
	if key == "" {
		key = string(msg.Raw)
	}
	hashBytes := sha256.Sum256([]byte(key))
	provider := msg.Provider
	if provider == "" {
		provider = "mail"
	}
	return provider + "-" + hex.EncodeToString(hashBytes[:])[:16] + ".eml"
}

func hasSpreadsheet(raw []byte) bool {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return false
	}
	for _, part := range append(append([]*enmime.Part{}, env.Attachments...), env.Inlines...) {
		name := strings.TrimSpace(part.FileName)
		if pipeline.Supported(name) && !strings.EqualFold(filepath.Ext(name), ".eml") {
			return true
		}
	}
	return false
}
