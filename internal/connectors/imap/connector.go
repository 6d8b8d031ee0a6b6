package imap

import (
	"crypto/tls"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"

	"loanrisk/internal"
	"loanrisk/internal/config"
)

// Connector reads unseen messages from one IMAP mailbox.
type Connector struct {
	host     string
	port     int
	secure   bool
	user     string
	password string
	markSeen bool
}

func NewConnector(cfg config.Config) (*Connector, error) {
	for _, req := range []struct{ name, value string }{
		{"IMAP_HOST", cfg.IMAPHost},
		{"IMAP_USER", cfg.IMAPUser},
		{"IMAP_PASSWORD", cfg.IMAPPassword},
	} {
		if err := cfg.Require(req.name, req.value); err != nil {
			return nil, err
		}
	}

	return &Connector{
		host:     cfg.IMAPHost,
		port:     cfg.IMAPPort,
		secure:   cfg.IMAPSecure,
		user:     cfg.IMAPUser,
		password: cfg.IMAPPassword,
		markSeen: cfg.IMAPMarkSeen,
	}, nil
}

func (c *Connector) Addr() string {
	return fmt.Sprintf("%s:%d", c.host, c.port)
}

// FetchMessages returns up to max of the newest unseen messages in label.
func (c *Connector) FetchMessages(label string, max int) ([]internal.MailMessage, error) {
	var client *imapclient.Client
	var err error
	if c.secure {
		client, err = imapclient.DialTLS(c.Addr(), &tls.Config{ServerName: c.host})
	} else {
		client, err = imapclient.Dial(c.Addr())
	}
	if err != nil {
		return nil, fmt.Errorf("imap dial %s: %w", c.Addr(), err)
	}
	defer client.Logout()

	if err := client.Login(c.user, c.password); err != nil {
		return nil, fmt.Errorf("imap login: %w", err)
	}
	if _, err := client.Select(label, false); err != nil {
		return nil, fmt.Errorf("imap select %s: %w", label, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	ids, err := client.Search(criteria)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if max > 0 && len(ids) > max {
		ids = ids[len(ids)-max:]
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchInternalDate, imap.FetchUid, section.FetchItem()}
	messages := make(chan *imap.Message, len(ids))
	done := make(chan error, 1)
	go func() { done <- client.Fetch(seqset, items, messages) }()

	out := make([]internal.MailMessage, 0, len(ids))
	for msg := range messages {
		if m, ok, err := toMailMessage(msg); err != nil {
			return nil, err
		} else if ok {
			out = append(out, m)
		}
	}
	if err := <-done; err != nil {
		return nil, err
	}

	if c.markSeen {
		flags := []interface{}{imap.SeenFlag}
		if err := client.Store(seqset, imap.FormatFlagsOp(imap.AddFlags, true), flags, nil); err != nil {
			return nil, fmt.Errorf("imap mark seen: %w", err)
		}
	}
	return out, nil
}

// toMailMessage converts one fetched message. Only the whole-body section is
// requested, so the single literal in msg.Body is the raw message.
func toMailMessage(msg *imap.Message) (internal.MailMessage, bool, error) {
	if msg == nil {
		return internal.MailMessage{}, false, nil
	}
	var body imap.Literal
	for _, literal := range msg.Body {
		body = literal
	}
	if body == nil {
		return internal.MailMessage{}, false, nil
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return internal.MailMessage{}, false, err
	}

	out := internal.MailMessage{
		Provider:   config.ProviderIMAP,
		ReceivedAt: msg.InternalDate.UTC(),
		Raw:        raw,
	}
	if msg.Envelope != nil {
		out.MessageID = msg.Envelope.MessageId
		out.Subject = msg.Envelope.Subject
		out.From = formatAddresses(msg.Envelope.From)
	}
	if out.MessageID == "" {
		out.MessageID = fmt.Sprintf("imap-%d", msg.Uid)
	}
	return out, true, nil
}

func formatAddresses(addrs []*imap.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a == nil {
			continue
		}
		email := a.Address()
		if a.PersonalName != "" {
			parts = append(parts, fmt.Sprintf("%s <%s>", a.PersonalName, email))
		} else {
			parts = append(parts, email)
		}
	}
	return strings.Join(parts, ", ")
}
