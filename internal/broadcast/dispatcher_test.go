package broadcast

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "caseflow/pkg/domain"
)

type captureSink struct {
	mu   sync.Mutex
	got  []Message
	fail bool
}

func (c *captureSink) Notify(_ context.Context, topic Topic, payload map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("transport down")
	}
	c.got = append(c.got, Message{Topic: topic, Payload: payload})
	return nil
}

func (c *captureSink) messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.got))
	copy(out, c.got)
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcherFansOutToAllSinks(t *testing.T) {
	pub := NewPublisher(8, discardLogger())
	first := &captureSink{}
	second := &captureSink{}
	dispatcher := NewDispatcher(pub.Queue(), discardLogger(), first, second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = dispatcher.Run(ctx)
	}()

	caseID := id.NewCaseID()
	pub.Publish(CaseStatus(caseID), map[string]string{"new_status": "TRIAL_READY"})

	require.Eventually(t, func() bool {
		return len(first.messages()) == 1 && len(second.messages()) == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, CaseStatus(caseID), first.messages()[0].Topic)

	cancel()
	<-done
}

func TestDispatcherSwallowsSinkFailures(t *testing.T) {
	pub := NewPublisher(8, discardLogger())
	broken := &captureSink{fail: true}
	healthy := &captureSink{}
	dispatcher := NewDispatcher(pub.Queue(), discardLogger(), broken, healthy)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = dispatcher.Run(ctx)
	}()

	pub.Publish(JudgeUnassigned, map[string]string{"case_id": id.NewCaseID().String()})
	pub.Publish(JudgeUnassigned, map[string]string{"case_id": id.NewCaseID().String()})

	// The broken sink must not stop delivery to the healthy one.
	require.Eventually(t, func() bool {
		return len(healthy.messages()) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestPublisherNeverBlocks(t *testing.T) {
	pub := NewPublisher(2, discardLogger())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			pub.Publish(JudgeUnassigned, nil)
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full queue")
	}

	// Oldest messages were dropped to make room.
	assert.Equal(t, int64(98), pub.Dropped())
	assert.Len(t, pub.Queue(), 2)
}
