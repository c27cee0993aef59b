package realtime

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBroker fans notifications out through Redis pub/sub so every server
// instance sees inserts made by any other.
type RedisBroker struct {
	client redis.UniversalClient
	prefix string
	log    *zap.Logger
}

func NewRedisBroker(client redis.UniversalClient, log *zap.Logger) *RedisBroker {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisBroker{client: client, prefix: "estate:rt:", log: log}
}

func (b *RedisBroker) Publish(ctx context.Context, topic, payload string) error {
	if err := b.client.Publish(ctx, b.prefix+topic, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe returns once Redis confirmed the subscription, so a Publish
// issued after Subscribe returns is observed.
func (b *RedisBroker) Subscribe(ctx context.Context, topic string, fn Handler) (Subscription, error) {
	ps := b.client.Subscribe(ctx, b.prefix+topic)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	sctx, cancel := context.WithCancel(ctx)
	sub := &subscription{cancel: cancel, done: make(chan struct{})}
	ch := ps.Channel()
	go func() {
		defer close(sub.done)
		defer func() { _ = ps.Close() }()
		for {
			select {
			case <-sctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					b.log.Warn("realtime: redis channel closed", zap.String("topic", topic))
					return
				}
				fn(sctx, msg.Payload)
			}
		}
	}()
	return sub, nil
}
