package connectors

import "loanrisk/internal"

// InboxConnector lists spreadsheets that are ready to be processed, oldest
// first, at most max of them.
type InboxConnector interface {
	FetchInbox(max int) ([]internal.InboxFile, error)
}

// MailConnector pulls raw messages from a mailbox label.
type MailConnector interface {
	FetchMessages(label string, max int) ([]internal.MailMessage, error)
}
