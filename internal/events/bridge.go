package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/chr1syy/maestro/internal/common/logger"
	"github.com/chr1syy/maestro/internal/events/bus"
	"github.com/chr1syy/maestro/internal/process"
)

const bridgeSource = "process-manager"

// Bridge forwards every event of a process manager subscription to the bus.
type Bridge struct {
	bus    bus.EventBus
	prefix string
	logger *logger.Logger
}

// NewBridge creates a bridge publishing under prefix.
func NewBridge(b bus.EventBus, prefix string, log *logger.Logger) *Bridge {
	return &Bridge{
		bus:    b,
		prefix: prefix,
		logger: log.WithFields(zap.String("component", "event-bridge")),
	}
}

// Run publishes events from sub until ctx is done or sub is closed.
// It closes sub before returning.
func (br *Bridge) Run(ctx context.Context, sub *process.Subscription) {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			br.Forward(ctx, ev)
		}
	}
}

// Forward publishes a single process event.
func (br *Bridge) Forward(ctx context.Context, ev process.Event) {
	subject := ProcessSubject(br.prefix, ev.SessionID, ev.Type)
	out := bus.NewEvent(BusEventType(ev.Type), bridgeSource, ev)
	if !ev.Timestamp.IsZero() {
		out.Timestamp = ev.Timestamp
	}
	if err := br.bus.Publish(ctx, subject, out); err != nil {
		br.logger.Warn("failed to publish process event",
			zap.String("subject", subject),
			zap.String("session_id", ev.SessionID),
			zap.Error(err))
	}
}
