package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaSink publishes notifications to a Kafka topic. The caseflow topic name
// is carried as the record key so consumers can route without decoding the
// value.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

// NewKafkaSink connects to the given seed brokers. Returns nil if no seeds
// are configured (Kafka not wired in this deployment).
func NewKafkaSink(seeds []string, topic string) (*KafkaSink, error) {
	if len(seeds) == 0 {
		return nil, nil
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(seeds...),
		kgo.ProduceRequestTimeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaSink{client: client, topic: topic}, nil
}

type kafkaEnvelope struct {
	Topic      string            `json:"topic"`
	Payload    map[string]string `json:"payload"`
	NotifiedAt time.Time         `json:"notified_at"`
}

func (s *KafkaSink) Notify(ctx context.Context, topic Topic, payload map[string]string) error {
	value, err := json.Marshal(kafkaEnvelope{
		Topic:      string(topic),
		Payload:    payload,
		NotifiedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(topic),
		Value: value,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce notification: %w", err)
	}
	return nil
}

// Close flushes and shuts down the Kafka client.
func (s *KafkaSink) Close() {
	s.client.Close()
}
