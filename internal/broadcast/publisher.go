package broadcast

import (
	"log/slog"
	"sync"
	"time"
)

// Publisher is the write side of the outbound queue. Publish never blocks the
// caller: when the queue is full the oldest message is dropped and counted,
// because a stale notification is worth less than a stalled command.
type Publisher struct {
	mu      sync.Mutex
	queue   chan Message
	logger  *slog.Logger
	dropped int64
	now     func() time.Time
}

// NewPublisher builds a publisher with a bounded queue.
func NewPublisher(buffer int, logger *slog.Logger) *Publisher {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Publisher{
		queue:  make(chan Message, buffer),
		logger: logger,
		now:    time.Now,
	}
}

// Publish enqueues a notification. Call only after the durable write for the
// triggering command has committed.
func (p *Publisher) Publish(topic Topic, payload map[string]string) {
	msg := Message{Topic: topic, Payload: payload, EnqueuedAt: p.now()}

	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		select {
		case p.queue <- msg:
			return
		default:
		}
		// Full queue: drop the oldest and retry.
		select {
		case old := <-p.queue:
			p.dropped++
			p.logger.Warn("broadcast queue full, dropping oldest message",
				"dropped_topic", string(old.Topic),
				"dropped_total", p.dropped,
			)
		default:
		}
	}
}

// Dropped reports how many messages have been discarded under pressure.
func (p *Publisher) Dropped() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// Queue exposes the read side for the dispatcher.
func (p *Publisher) Queue() <-chan Message {
	return p.queue
}
