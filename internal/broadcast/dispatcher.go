package broadcast

import (
	"context"
	"log/slog"
	"time"
)

// Dispatcher drains the publisher queue and fans each message out to every
// sink. Sink errors are logged and swallowed: delivery is best effort and a
// broken transport must not back up the queue or the callers behind it.
type Dispatcher struct {
	inbox       <-chan Message
	sinks       []Notifier
	logger      *slog.Logger
	sinkTimeout time.Duration
}

func NewDispatcher(inbox <-chan Message, logger *slog.Logger, sinks ...Notifier) *Dispatcher {
	return &Dispatcher{
		inbox:       inbox,
		sinks:       sinks,
		logger:      logger,
		sinkTimeout: 5 * time.Second,
	}
}

// Run consumes until the context is cancelled. It returns ctx.Err() so an
// errgroup can treat shutdown as the only exit path.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-d.inbox:
			d.deliver(ctx, msg)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	for _, sink := range d.sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, d.sinkTimeout)
		if err := sink.Notify(sinkCtx, msg.Topic, msg.Payload); err != nil {
			d.logger.Warn("broadcast delivery failed",
				"topic", string(msg.Topic),
				"error", err,
			)
		}
		cancel()
	}
}
