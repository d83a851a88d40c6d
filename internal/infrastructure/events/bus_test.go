package events

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"vidtube/internal/core/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func likeEvent(target string) domain.EdgeEvent {
	return domain.EdgeEvent{
		Applied:     domain.ToggleCreated,
		Kind:        domain.EdgeLike,
		Source:      "viewer",
		TargetID:    target,
		TargetKind:  domain.TargetVideo,
		TargetOwner: "creator",
		At:          time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestLocalBus_DeliversToEverySubscriber(t *testing.T) {
	bus := NewLocalBus(zaptest.NewLogger(t).Sugar())
	a, cancelA := bus.Subscribe(4)
	defer cancelA()
	b, cancelB := bus.Subscribe(4)
	defer cancelB()

	require.NoError(t, bus.PublishEdgeEvent(context.Background(), likeEvent("v1")))

	assert.Equal(t, "v1", (<-a).TargetID)
	assert.Equal(t, "v1", (<-b).TargetID)
}

func TestLocalBus_DropsForFullSubscriber(t *testing.T) {
	bus := NewLocalBus(zaptest.NewLogger(t).Sugar())
	ch, cancel := bus.Subscribe(1)
	defer cancel()

	ctx := context.Background()
	require.NoError(t, bus.PublishEdgeEvent(ctx, likeEvent("v1")))
	require.NoError(t, bus.PublishEdgeEvent(ctx, likeEvent("v2")))

	assert.Equal(t, "v1", (<-ch).TargetID)
	assert.Equal(t, int64(1), bus.Dropped())
}

func TestLocalBus_CancelClosesChannel(t *testing.T) {
	bus := NewLocalBus(zaptest.NewLogger(t).Sugar())
	ch, cancel := bus.Subscribe(1)
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	assert.NoError(t, bus.PublishEdgeEvent(context.Background(), likeEvent("v1")))
}

func TestPump(t *testing.T) {
	bus := NewLocalBus(zaptest.NewLogger(t).Sugar())
	ch, cancel := bus.Subscribe(4)

	got := make(chan string, 4)
	done := make(chan struct{})
	go func() {
		Pump(context.Background(), ch, func(ctx context.Context, e domain.EdgeEvent) error {
			got <- e.TargetID
			return errors.New("handler errors are logged")
		}, zaptest.NewLogger(t).Sugar())
		close(done)
	}()

	require.NoError(t, bus.PublishEdgeEvent(context.Background(), likeEvent("v1")))
	assert.Equal(t, "v1", <-got)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pump did not stop after the channel closed")
	}
}

type failingPublisher struct{ calls int }

func (f *failingPublisher) PublishEdgeEvent(ctx context.Context, event domain.EdgeEvent) error {
	f.calls++
	return errors.New("down")
}

func TestFanout_PublishesToAll(t *testing.T) {
	bus := NewLocalBus(zaptest.NewLogger(t).Sugar())
	ch, cancel := bus.Subscribe(1)
	defer cancel()

	failing := &failingPublisher{}
	err := Fanout{failing, nil, bus}.PublishEdgeEvent(context.Background(), likeEvent("v1"))

	assert.Error(t, err)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, "v1", (<-ch).TargetID)
}

func TestRedisBus_SkipsOwnInstance(t *testing.T) {
	addr := os.Getenv("VIDTUBE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("VIDTUBE_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	logger := zaptest.NewLogger(t).Sugar()
	channel := "vidtube-test:" + uuid.NewString()
	api := NewRedisBus(client, channel, "api-1", logger)
	activity := NewRedisBus(client, channel, "activity-1", logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan domain.EdgeEvent, 2)
	go activity.Subscribe(ctx, func(ctx context.Context, e domain.EdgeEvent) error {
		received <- e
		return nil
	})
	go api.Subscribe(ctx, func(ctx context.Context, e domain.EdgeEvent) error {
		t.Errorf("api received its own event %v", e)
		return nil
	})

	// let both subscriptions register
	require.Eventually(t, func() bool {
		n, err := client.PubSubNumSub(ctx, channel).Result()
		return err == nil && n[channel] == 2
	}, 2*time.Second, 20*time.Millisecond)

	sent := likeEvent("v9")
	require.NoError(t, api.PublishEdgeEvent(ctx, sent))

	select {
	case got := <-received:
		assert.Equal(t, sent.TargetID, got.TargetID)
		assert.Equal(t, sent.TargetOwner, got.TargetOwner)
		assert.True(t, sent.At.Equal(got.At))
	case <-ctx.Done():
		t.Fatal("event not delivered")
	}
}
