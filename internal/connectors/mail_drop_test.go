package connectors

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jhillyerd/enmime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loanrisk/internal"
	"loanrisk/internal/config"
	dirconnector "loanrisk/internal/connectors/dir"
	"loanrisk/internal/pipeline"
)

type fakeMailbox struct {
	messages []internal.MailMessage
	err      error
	labels   []string
}

func (f *fakeMailbox) FetchMessages(label string, max int) ([]internal.MailMessage, error) {
	f.labels = append(f.labels, label)
	return f.messages, f.err
}

func buildMessage(t *testing.T, id string, attachment []byte, fileName string) internal.MailMessage {
	t.Helper()
	b := enmime.Builder().
		From("Branch", "branch@example.com").
		To("Risk", "risk@example.com").
		Subject("applications " + id).
		Text([]byte("see attached"))
	if attachment != nil {
		b = b.AddAttachment(attachment, "text/csv", fileName)
	}
	part, err := b.Build()
	require.NoError(t, err)
	buf := &bytes.Buffer{}
	require.NoError(t, part.Encode(buf))
	return internal.MailMessage{
		Provider:   config.ProviderIMAP,
		MessageID:  id,
		Subject:    "applications " + id,
		ReceivedAt: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
		Raw:        buf.Bytes(),
	}
}

func newTestDrop(t *testing.T, mailbox MailConnector) (*MailDrop, string) {
	t.Helper()
	dir := t.TempDir()
	next, err := dirconnector.NewConnector(config.Config{InboxDir: dir})
	require.NoError(t, err)
	return NewMailDrop(mailbox, "Applications", dir, next, nil), dir
}

func TestMailDropWritesSpreadsheetMessages(t *testing.T) {
	sheet := []byte("Age,Income,Loan Amount\n30,1000,$10\n41,2000,20\n")
	withSheet := buildMessage(t, "<1@example.com>", sheet, "apps.csv")
	mailbox := &fakeMailbox{messages: []internal.MailMessage{
		withSheet,
		buildMessage(t, "<2@example.com>", nil, ""),
		buildMessage(t, "<3@example.com>", []byte("hello"), "notes.txt"),
		withSheet,
	}}
	drop, dir := newTestDrop(t, mailbox)

	files, err := drop.FetchInbox(10)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, MessageFileName(withSheet), files[0].Name)
	assert.Equal(t, ".eml", filepath.Ext(files[0].Name))
	assert.True(t, withSheet.ReceivedAt.Equal(files[0].ModTime))
	assert.Equal(t, []string{"Applications"}, mailbox.labels)

	table, err := pipeline.LoadTable(files[0].Path)
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())

	_, err = NewArchiveService(dir).Archive(files[0], true)
	require.NoError(t, err)

	again, err := drop.FetchInbox(10)
	require.NoError(t, err)
	assert.Empty(t, again, "archived messages are not dropped twice")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "only the processed directory remains")
}

func TestMailDropPropagatesMailboxErrors(t *testing.T) {
	drop, _ := newTestDrop(t, &fakeMailbox{err: errors.New("login refused")})
	_, err := drop.FetchInbox(5)
	assert.EqualError(t, err, "login refused")
}

func TestMessageFileName(t *testing.T) {
	a := internal.MailMessage{Provider: "gmail", MessageID: "<a@example.com>"}
	b := internal.MailMessage{Provider: "gmail", MessageID: "<b@example.com>"}
	assert.Equal(t, MessageFileName(a), MessageFileName(a))
	assert.NotEqual(t, MessageFileName(a), MessageFileName(b))
	assert.Regexp(t, `^gmail-[0-9a-f]{16}\.eml$`, MessageFileName(a))
	assert.Regexp(t, `^mail-[0-9a-f]{16}\.eml$`, MessageFileName(internal.MailMessage{Raw: []byte("x")}))
}
