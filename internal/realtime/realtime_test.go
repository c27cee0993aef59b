package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRedisBrokerDeliversPublishedPayload(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	b := NewRedisBroker(client, zap.NewNop())

	var (
		mu  sync.Mutex
		got []string
	)
	sub, err := b.Subscribe(context.Background(), TopicUpdates, func(_ context.Context, p string) {
		mu.Lock()
		got = append(got, p)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer sub.Cancel()

	require.NoError(t, b.Publish(context.Background(), TopicUpdates, "u1"))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1 && got[0] == "u1"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRedisBrokerCancelStopsDelivery(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	b := NewRedisBroker(client, zap.NewNop())

	var n atomic.Int32
	sub, err := b.Subscribe(context.Background(), TopicUpdates, func(context.Context, string) { n.Add(1) })
	require.NoError(t, err)
	sub.Cancel()
	sub.Cancel()

	require.NoError(t, b.Publish(context.Background(), TopicUpdates, "u1"))
	time.Sleep(50 * time.Millisecond)
	require.Zero(t, n.Load())
}

func TestPollBrokerFiresOnChangeOnly(t *testing.T) {
	var version atomic.Int64
	b := NewPollBroker(10*time.Millisecond, zap.NewNop())
	b.Watch(TopicUpdates, func(context.Context) (string, error) {
		return time.Unix(version.Load(), 0).UTC().String(), nil
	})

	var fired atomic.Int32
	sub, err := b.Subscribe(context.Background(), TopicUpdates, func(context.Context, string) { fired.Add(1) })
	require.NoError(t, err)
	defer sub.Cancel()

	time.Sleep(60 * time.Millisecond)
	require.Zero(t, fired.Load(), "unchanged value must not notify")

	version.Add(1)
	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)

	time.Sleep(60 * time.Millisecond)
	require.Equal(t, int32(1), fired.Load())
}

func TestPollBrokerPublishWakesSubscriber(t *testing.T) {
	var version atomic.Int64
	b := NewPollBroker(time.Hour, zap.NewNop())
	b.Watch(TopicUpdates, func(context.Context) (string, error) {
		return time.Unix(version.Load(), 0).String(), nil
	})

	var fired atomic.Int32
	sub, err := b.Subscribe(context.Background(), TopicUpdates, func(context.Context, string) { fired.Add(1) })
	require.NoError(t, err)
	defer sub.Cancel()

	version.Add(1)
	require.NoError(t, b.Publish(context.Background(), TopicUpdates, ""))
	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestPollBrokerUnknownTopic(t *testing.T) {
	b := NewPollBroker(time.Second, nil)
	_, err := b.Subscribe(context.Background(), "nope", func(context.Context, string) {})
	require.ErrorIs(t, err, ErrUnknownTopic)
}
