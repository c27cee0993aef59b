package realtime

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Probe returns a value that changes whenever the topic's data changes, for
// example a row count and latest timestamp.
type Probe func(ctx context.Context) (string, error)

// PollBroker is the fallback used without Redis.  Each subscriber polls the
// topic's probe and is notified when the value differs from the last one it
// saw.  Publish wakes local subscribers early.
type PollBroker struct {
	interval time.Duration
	log      *zap.Logger

	mu     sync.Mutex
	probes map[string]Probe
	wake   map[string][]chan struct{}
}

func NewPollBroker(interval time.Duration, log *zap.Logger) *PollBroker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PollBroker{interval: interval, log: log, probes: map[string]Probe{}, wake: map[string][]chan struct{}{}}
}

// Watch registers the probe for topic.
func (b *PollBroker) Watch(topic string, p Probe) {
	b.mu.Lock()
	b.probes[topic] = p
	b.mu.Unlock()
}

func (b *PollBroker) Publish(_ context.Context, topic, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, w := range b.wake[topic] {
		select {
		case w <- struct{}{}:
		default:
		}
	}
	return nil
}

func (b *PollBroker) Subscribe(ctx context.Context, topic string, fn Handler) (Subscription, error) {
	b.mu.Lock()
	probe, ok := b.probes[topic]
	if !ok {
		b.mu.Unlock()
		return nil, ErrUnknownTopic
	}
	wake := make(chan struct{}, 1)
	b.wake[topic] = append(b.wake[topic], wake)
	b.mu.Unlock()

	last, err := probe(ctx)
	if err != nil {
		b.removeWake(topic, wake)
		return nil, err
	}

	sctx, cancel := context.WithCancel(ctx)
	sub := &subscription{cancel: cancel, done: make(chan struct{}), cleanup: func() { b.removeWake(topic, wake) }}
	go func() {
		defer close(sub.done)
		t := time.NewTicker(b.interval)
		defer t.Stop()
		for {
			select {
			case <-sctx.Done():
				return
			case <-t.C:
			case <-wake:
			}
			cur, err := probe(sctx)
			if err != nil {
				if sctx.Err() == nil {
					b.log.Warn("realtime: probe failed", zap.String("topic", topic), zap.Error(err))
				}
				continue
			}
			if cur != last {
				last = cur
				fn(sctx, cur)
			}
		}
	}()
	return sub, nil
}

func (b *PollBroker) removeWake(topic string, w chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.wake[topic]
	for i, c := range list {
		if c == w {
			b.wake[topic] = append(list[:i], list[i+1:]...)
			break
		}
	}
}
