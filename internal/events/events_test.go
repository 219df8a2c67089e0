package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chr1syy/maestro/internal/common/config"
	"github.com/chr1syy/maestro/internal/common/logger"
	"github.com/chr1syy/maestro/internal/events/bus"
	"github.com/chr1syy/maestro/internal/process"
)

func TestProcessSubject(t *testing.T) {
	assert.Equal(t, "maestro.process.tab_1.data", ProcessSubject("", "tab.1", process.EventData))
	assert.Equal(t, "m.process.a_b_c_d.exit", ProcessSubject("m.", "a*b>c d", process.EventExit))
	assert.Equal(t, "m.process._.session-id", ProcessSubject("m", "", process.EventSessionID))
	assert.Equal(t, "maestro.process.>", ProcessWildcard(" "))
	assert.Equal(t, "x.process.s_1.>", ProcessSessionWildcard("x", "s 1"))
}

func TestBusEventType(t *testing.T) {
	assert.Equal(t, ProcessSlashCommands, BusEventType(process.EventSlashCommands))
	assert.Equal(t, "process.other", BusEventType(process.EventType("other")))
}

func TestProvideDefaultsToMemory(t *testing.T) {
	provided, cleanup, err := Provide(&config.Config{}, logger.NewNop())
	require.NoError(t, err)
	require.NotNil(t, provided.Memory)
	assert.Nil(t, provided.NATS)
	assert.True(t, provided.Bus.IsConnected())
	require.NoError(t, cleanup())
	assert.False(t, provided.Bus.IsConnected())
}

func TestBridgeForwardsInOrder(t *testing.T) {
	b := bus.NewMemoryEventBus(logger.NewNop())
	defer b.Close()

	got := make(chan process.Event, 8)
	_, err := b.Subscribe(ProcessWildcard("test"), func(_ context.Context, e *bus.Event) error {
		ev, err := DecodeProcessEvent(e)
		if err != nil {
			return err
		}
		got <- ev
		return nil
	})
	require.NoError(t, err)

	em := process.NewEmitter()
	defer em.Close()
	sub := em.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewBridge(b, "test", logger.NewNop()).Run(ctx, sub)
		close(done)
	}()

	code := 0
	em.Publish(process.Event{Type: process.EventData, SessionID: "s1", Data: "hello"})
	em.Publish(process.Event{Type: process.EventExit, SessionID: "s1", ExitCode: &code})

	first := receive(t, got)
	assert.Equal(t, process.EventData, first.Type)
	assert.Equal(t, "hello", first.Data)
	second := receive(t, got)
	assert.Equal(t, process.EventExit, second.Type)
	require.NotNil(t, second.ExitCode)
	assert.Equal(t, 0, *second.ExitCode)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("bridge did not stop")
	}
}

func TestDecodeProcessEventFromWireForm(t *testing.T) {
	raw, err := json.Marshal(bus.NewEvent(ProcessData, "x", process.Event{
		Type: process.EventData, SessionID: "s", Data: "line", Stream: process.StreamStderr,
	}))
	require.NoError(t, err)

	var wire bus.Event
	require.NoError(t, json.Unmarshal(raw, &wire))
	ev, err := DecodeProcessEvent(&wire)
	require.NoError(t, err)
	assert.Equal(t, "line", ev.Data)
	assert.Equal(t, process.StreamStderr, ev.Stream)
}

func receive(t *testing.T, ch <-chan process.Event) process.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for bridged event")
		return process.Event{}
	}
}
