package process

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitterPreservesOrderPerSubscriber(t *testing.T) {
	e := NewEmitter()
	defer e.Close()

	fast := e.Subscribe()
	slow := e.Subscribe()

	const n = 500
	for i := 0; i < n; i++ {
		e.Publish(Event{Type: EventData, SessionID: "s", Data: fmt.Sprint(i)})
	}

	for i := 0; i < n; i++ {
		ev := <-fast.Events()
		require.Equal(t, fmt.Sprint(i), ev.Data)
	}
	// The slow subscriber did not hold publishers back and still sees everything in order.
	for i := 0; i < n; i++ {
		ev := <-slow.Events()
		require.Equal(t, fmt.Sprint(i), ev.Data)
	}
}

func TestEmitterConcurrentPublishersAreSerialised(t *testing.T) {
	e := NewEmitter()
	defer e.Close()
	a := e.Subscribe()
	b := e.Subscribe()

	var wg sync.WaitGroup
	for s := 0; s < 4; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				e.Publish(Event{SessionID: fmt.Sprint(s), Data: fmt.Sprint(i)})
			}
		}(s)
	}
	wg.Wait()

	for i := 0; i < 400; i++ {
		assert.Equal(t, <-a.Events(), <-b.Events())
	}
}

func TestSubscriptionClose(t *testing.T) {
	e := NewEmitter()
	sub := e.Subscribe()
	e.Publish(Event{Data: "x"})
	sub.Close()
	sub.Close()

	select {
	case _, ok := <-drain(sub):
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("events channel not closed")
	}

	// Publishing after close must not block.
	e.Publish(Event{Data: "y"})

	e.Close()
	late := e.Subscribe()
	_, ok := <-late.Events()
	assert.False(t, ok)
}

// drain skips any buffered events and returns the channel once it is closed.
func drain(sub *Subscription) <-chan Event {
	out := make(chan Event)
	go func() {
		for range sub.Events() {
		}
		close(out)
	}()
	return out
}
