package gmail

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loanrisk/internal/config"
)

const rawMessage = "Message-ID: <apps-7@example.com>\r\n" +
	"From: North Branch <north@example.com>\r\n" +
	"Subject: June applications\r\n" +
	"Date: Tue, 02 Jun 2026 10:15:00 +0200\r\n" +
	"\r\n" +
	"see attached\r\n"

func TestNewConnectorRequiresCredentials(t *testing.T) {
	_, err := NewConnector(context.Background(), config.Config{GmailClientID: "id", GmailClientSecret: "secret"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GMAIL_REFRESH_TOKEN")
}

func TestDecodeRaw(t *testing.T) {
	for _, enc := range []*base64.Encoding{base64.RawURLEncoding, base64.URLEncoding} {
		out, err := DecodeRaw(enc.EncodeToString([]byte(rawMessage)))
		require.NoError(t, err)
		assert.Equal(t, rawMessage, string(out))
	}

	_, err := DecodeRaw("***")
	assert.Error(t, err)
}

func TestToMailMessageReadsHeaders(t *testing.T) {
	out := ToMailMessage("18f0", 0, []byte(rawMessage))
	assert.Equal(t, config.ProviderGmail, out.Provider)
	assert.Equal(t, "<apps-7@example.com>", out.MessageID)
	assert.Equal(t, "June applications", out.Subject)
	assert.Equal(t, "North Branch <north@example.com>", out.From)
	assert.True(t, time.Date(2026, 6, 2, 8, 15, 0, 0, time.UTC).Equal(out.ReceivedAt))

	internalDate := time.Date(2026, 6, 3, 0, 0, 0, 0, time.UTC)
	out = ToMailMessage("18f0", internalDate.UnixMilli(), []byte("Subject: no id\r\n\r\nx"))
	assert.Equal(t, "18f0", out.MessageID)
	assert.True(t, internalDate.Equal(out.ReceivedAt))
}
