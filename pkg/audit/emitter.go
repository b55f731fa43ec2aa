package audit

import (
	"context"
	"log/slog"
	"time"
)

// Emitter decouples domain logic from audit delivery. Emit is non-blocking:
// events are queued to a bounded inbox and a background Run loop publishes
// them. When the inbox is full the event is dropped and counted rather than
// stalling a sign-in.
type Emitter struct {
	inbox     chan Event
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewEmitter(publisher Publisher, logger *slog.Logger, buffer int) *Emitter {
	if buffer <= 0 {
		buffer = 256
	}
	return &Emitter{
		inbox:     make(chan Event, buffer),
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Emit queues the event, stamping its timestamp if unset.
func (e *Emitter) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = e.now().UTC()
	}
	select {
	case e.inbox <- event:
	default:
		e.logger.Warn("audit inbox full, dropping event", "action", event.Action)
	}
}

// Run drains the inbox until ctx is done. Publish failures are logged and
// the loop keeps going; auditing never takes the gateway down.
func (e *Emitter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			e.drain()
			return ctx.Err()
		case event := <-e.inbox:
			e.publish(ctx, event)
		}
	}
}

// drain publishes whatever is still queued at shutdown, bounded by a short
// grace period.
func (e *Emitter) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case event := <-e.inbox:
			e.publish(ctx, event)
		default:
			return
		}
	}
}

func (e *Emitter) publish(ctx context.Context, event Event) {
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.Error("failed to publish audit event",
			"action", event.Action,
			"error", err,
		)
	}
}
