// Package realtime delivers change notifications to in-process subscribers.
// A notification says only that something on a topic changed; subscribers
// re-query whatever aggregate they display.  Delivery is best effort with no
// ordering or exactly-once guarantee.
package realtime

import (
	"context"
	"errors"
	"sync"
)

// TopicUpdates fires whenever a community update is posted.
const TopicUpdates = "updates.created"

// ErrUnknownTopic is returned by brokers that can only watch registered
// topics.
var ErrUnknownTopic = errors.New("realtime: unknown topic")

// Handler receives one notification.
type Handler func(ctx context.Context, payload string)

// Subscription is the cancellation handle returned by Subscribe.  Cancel is
// safe to call more than once.
type Subscription interface {
	Cancel()
}

// Broker publishes and subscribes to topic notifications.  Subscriptions end
// when the context passed to Subscribe is done or Cancel is called.
type Broker interface {
	Publish(ctx context.Context, topic, payload string) error
	Subscribe(ctx context.Context, topic string, fn Handler) (Subscription, error)
}

// subscription runs one delivery goroutine and stops it on Cancel.
type subscription struct {
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
	cleanup func()
}

func (s *subscription) Cancel() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
		if s.cleanup != nil {
			s.cleanup()
		}
	})
}
