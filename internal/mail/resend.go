package mail

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

// emailSender is the subset of the Resend client used here.
type emailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// ResendMailer delivers mail through the Resend API.
type ResendMailer struct {
	from   string
	emails emailSender
	log    *zap.Logger
}

// NewResendMailer builds a mailer.  An empty apiKey yields a mailer whose
// Send always fails with ErrMissingAPIKey.
func NewResendMailer(apiKey, from string, log *zap.Logger) *ResendMailer {
	if log == nil {
		log = zap.NewNop()
	}
	m := &ResendMailer{from: from, log: log}
	if apiKey != "" {
		m.emails = resend.NewClient(apiKey).Emails
	}
	return m
}

func (m *ResendMailer) Send(ctx context.Context, msg Message) (SendResult, error) {
	if m.emails == nil {
		return SendResult{}, ErrMissingAPIKey
	}
	if err := msg.Validate(); err != nil {
		return SendResult{}, err
	}
	resp, err := m.emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
	})
	if err != nil {
		m.log.Error("resend: send failed", zap.Strings("to", msg.To), zap.Error(err))
		return SendResult{}, fmt.Errorf("send email: %w", err)
	}
	return SendResult{ID: resp.Id}, nil
}
