// Package mail sends transactional email.  The server talks to a Mailer;
// ResendMailer calls the provider inline and QueueMailer hands the message
// to the background worker.
package mail

import (
	"context"
	"errors"
	"strings"
)

// ErrMissingAPIKey is returned when no provider key is configured.  Nothing
// is sent in that case.
var ErrMissingAPIKey = errors.New("email API key is not configured")

// ErrInvalidMessage is returned for a message without recipients, subject or
// body.
var ErrInvalidMessage = errors.New("to, subject and html are required")

// Message is one outbound email.
type Message struct {
	To      []string
	Subject string
	HTML    string
}

// Validate trims recipients and rejects incomplete messages.
func (m *Message) Validate() error {
	to := make([]string, 0, len(m.To))
	for _, addr := range m.To {
		if addr = strings.TrimSpace(addr); addr != "" {
			to = append(to, addr)
		}
	}
	m.To = to
	if len(m.To) == 0 || strings.TrimSpace(m.Subject) == "" || strings.TrimSpace(m.HTML) == "" {
		return ErrInvalidMessage
	}
	return nil
}

// SendResult identifies an accepted message.  Queued marks messages handed
// to the worker rather than to the provider.
type SendResult struct {
	ID     string `json:"id"`
	Queued bool   `json:"queued,omitempty"`
}

// Mailer delivers one message.  Implementations make at most one delivery
// attempt and never retry.
type Mailer interface {
	Send(ctx context.Context, msg Message) (SendResult, error)
}
