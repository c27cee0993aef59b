package mail

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/estate-portal/internal/queue"
)

// publisher is satisfied by *queue.Publisher.
type publisher interface {
	Publish(ctx context.Context, queue string, event any) error
}

// QueueMailer publishes messages to the email queue for cmd/worker.  A
// successful Send means the broker accepted the request, not that the
// provider delivered it.
type QueueMailer struct {
	pub        publisher
	configured bool
}

// NewQueueMailer builds a queue mailer.  apiKey is the worker's provider
// key; when it is empty Send fails with ErrMissingAPIKey instead of queuing
// mail the worker could never deliver.
func NewQueueMailer(pub publisher, apiKey string) *QueueMailer {
	return &QueueMailer{pub: pub, configured: apiKey != ""}
}

func (m *QueueMailer) Send(ctx context.Context, msg Message) (SendResult, error) {
	if !m.configured {
		return SendResult{}, ErrMissingAPIKey
	}
	if err := msg.Validate(); err != nil {
		return SendResult{}, err
	}
	ev := queue.EmailRequested{
		ID:          uuid.NewString(),
		To:          msg.To,
		Subject:     msg.Subject,
		HTML:        msg.HTML,
		RequestedAt: time.Now().UTC(),
	}
	if err := m.pub.Publish(ctx, queue.EmailQueue, ev); err != nil {
		return SendResult{}, err
	}
	return SendResult{ID: ev.ID, Queued: true}, nil
}

// Deliver adapts a Mailer into the worker's queue handler.
func Deliver(m Mailer) queue.EmailHandler {
	return func(ctx context.Context, ev queue.EmailRequested) error {
		_, err := m.Send(ctx, Message{To: ev.To, Subject: ev.Subject, HTML: ev.HTML})
		return err
	}
}
