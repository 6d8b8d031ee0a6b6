package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"loanrisk/internal"
	"loanrisk/internal/config"
)

// attachmentQuery narrows the listing to messages that can carry a sheet.
const attachmentQuery = "has:attachment"

type Connector struct {
	service *gmail.Service
}

func NewConnector(ctx context.Context, cfg config.Config) (*Connector, error) {
	for _, req := range []struct{ name, value string }{
		{"GMAIL_CLIENT_ID", cfg.GmailClientID},
		{"GMAIL_CLIENT_SECRET", cfg.GmailClientSecret},
		{"GMAIL_REFRESH_TOKEN", cfg.GmailRefreshToken},
	} {
		if err := cfg.Require(req.name, req.value); err != nil {
			return nil, err
		}
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GmailClientID,
		ClientSecret: cfg.GmailClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.GmailRedirectURI,
		Scopes:       []string{gmail.GmailReadonlyScope},
	}
	tokenSource := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.GmailRefreshToken})

	svc, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, err
	}
	return &Connector{service: svc}, nil
}

// FetchMessages lists up to max messages with attachments under label and
// downloads each one in raw form.
func (c *Connector) FetchMessages(label string, max int) ([]internal.MailMessage, error) {
	list := c.service.Users.Messages.List("me").LabelIds(label).Q(attachmentQuery)
	if max > 0 {
		list = list.MaxResults(int64(max))
	}
	resp, err := list.Do()
	if err != nil {
		return nil, fmt.Errorf("gmail list %s: %w", label, err)
	}

	out := make([]internal.MailMessage, 0, len(resp.Messages))
	for _, ref := range resp.Messages {
		if ref.Id == "" {
			continue
		}
		msg, err := c.service.Users.Messages.Get("me", ref.Id).Format("raw").Do()
		if err != nil {
			return nil, fmt.Errorf("gmail get %s: %w", ref.Id, err)
		}
		if msg.Raw == "" {
			continue
		}
		raw, err := DecodeRaw(msg.Raw)
		if err != nil {
			return nil, err
		}
		out = append(out, ToMailMessage(ref.Id, msg.InternalDate, raw))
	}
	return out, nil
}

// ToMailMessage fills the envelope fields from the message headers. The
// Gmail ID stands in for a missing Message-ID.
func ToMailMessage(gmailID string, internalDateMs int64, raw []byte) internal.MailMessage {
	out := internal.MailMessage{
		Provider:  config.ProviderGmail,
		MessageID: gmailID,
		Raw:       raw,
	}
	if internalDateMs > 0 {
		out.ReceivedAt = time.UnixMilli(internalDateMs).UTC()
	}

	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return out
	}
	if id := strings.TrimSpace(env.GetHeader("Message-ID")); id != "" {
		out.MessageID = id
	}
	out.Subject = env.GetHeader("Subject")
	out.From = env.GetHeader("From")
	if out.ReceivedAt.IsZero() {
		if date, err := mail.ParseDate(env.GetHeader("Date")); err == nil {
			out.ReceivedAt = date.UTC()
		}
	}
	return out
}

// DecodeRaw decodes the base64url payload of a raw-format message.
func DecodeRaw(input string) ([]byte, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	decoded, err = base64.URLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	return nil, fmt.Errorf("decode gmail raw payload: %w", err)
}
