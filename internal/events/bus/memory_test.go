package bus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chr1syy/maestro/internal/common/logger"
)

func newTestBus(t *testing.T) *MemoryEventBus {
	t.Helper()
	b := NewMemoryEventBus(logger.NewNop())
	t.Cleanup(b.Close)
	return b
}

func TestMemoryEventBus_PublishSubscribe(t *testing.T) {
	b := newTestBus(t)
	received := make(chan *Event, 1)

	sub, err := b.Subscribe("test.subject", func(_ context.Context, event *Event) error {
		received <- event
		return nil
	})
	require.NoError(t, err)
	defer func() { _ = sub.Unsubscribe() }()

	event := NewEvent("test.type", "test-source", map[string]any{"key": "value"})
	require.NoError(t, b.Publish(context.Background(), "test.subject", event))

	select {
	case e := <-received:
		assert.Equal(t, event.ID, e.ID)
		assert.Equal(t, "test.type", e.Type)
		assert.Equal(t, "test-source", e.Source)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestMemoryEventBus_MultipleSubscribers(t *testing.T) {
	b := newTestBus(t)
	var count atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)

	for i := 0; i < 3; i++ {
		_, err := b.Subscribe("multi.subject", func(context.Context, *Event) error {
			count.Add(1)
			wg.Done()
			return nil
		})
		require.NoError(t, err)
	}

	require.NoError(t, b.Publish(context.Background(), "multi.subject", NewEvent("t", "s", nil)))
	waitGroup(t, &wg)
	assert.Equal(t, int32(3), count.Load())
}

func TestMemoryEventBus_Wildcards(t *testing.T) {
	cases := []struct {
		pattern string
		subject string
		want    bool
	}{
		{"maestro.process.>", "maestro.process.s1.data", true},
		{"maestro.process.>", "maestro.process", false},
		{"maestro.process.*.exit", "maestro.process.s1.exit", true},
		{"maestro.process.*.exit", "maestro.process.s1.data", false},
		{"maestro.process.*.exit", "maestro.process.a.b.exit", false},
		{"plain.subject", "plain.subject", true},
		{"plain.subject", "plain.subjects", false},
	}
	for _, tc := range cases {
		t.Run(tc.pattern+"|"+tc.subject, func(t *testing.T) {
			assert.Equal(t, tc.want, matches(tc.subject, tc.pattern, compilePattern(tc.pattern)))
		})
	}
}

func TestMemoryEventBus_PreservesOrderPerSubscriber(t *testing.T) {
	b := newTestBus(t)
	const n = 200
	got := make(chan string, n)

	_, err := b.Subscribe("order.>", func(_ context.Context, e *Event) error {
		got <- e.Data.(string)
		return nil
	})
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		require.NoError(t, b.Publish(context.Background(), "order.x", NewEvent("t", "s", fmt.Sprint(i))))
	}
	for i := 0; i < n; i++ {
		select {
		case v := <-got:
			require.Equal(t, fmt.Sprint(i), v)
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout at event %d", i)
		}
	}
}

func TestMemoryEventBus_SlowSubscriberDoesNotBlockOthers(t *testing.T) {
	b := newTestBus(t)
	release := make(chan struct{})
	defer close(release)
	fast := make(chan struct{}, 1)

	_, err := b.Subscribe("s", func(context.Context, *Event) error {
		<-release
		return nil
	})
	require.NoError(t, err)
	_, err = b.Subscribe("s", func(context.Context, *Event) error {
		fast <- struct{}{}
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), "s", NewEvent("t", "s", nil)))
	select {
	case <-fast:
	case <-time.After(time.Second):
		t.Fatal("fast subscriber was blocked")
	}
}

func TestMemoryEventBus_Unsubscribe(t *testing.T) {
	b := newTestBus(t)
	var count atomic.Int32
	sub, err := b.Subscribe("u", func(context.Context, *Event) error {
		count.Add(1)
		return nil
	})
	require.NoError(t, err)
	require.True(t, sub.IsValid())

	require.NoError(t, sub.Unsubscribe())
	assert.False(t, sub.IsValid())
	require.NoError(t, b.Publish(context.Background(), "u", NewEvent("t", "s", nil)))
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, count.Load())
}

func TestMemoryEventBus_Close(t *testing.T) {
	b := NewMemoryEventBus(logger.NewNop())
	sub, err := b.Subscribe("c", func(context.Context, *Event) error { return nil })
	require.NoError(t, err)

	b.Close()
	assert.False(t, b.IsConnected())
	assert.False(t, sub.IsValid())
	assert.ErrorIs(t, b.Publish(context.Background(), "c", NewEvent("t", "s", nil)), ErrBusClosed)
	_, err = b.Subscribe("c", func(context.Context, *Event) error { return nil })
	assert.ErrorIs(t, err, ErrBusClosed)
}

func waitGroup(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for handlers")
	}
}
