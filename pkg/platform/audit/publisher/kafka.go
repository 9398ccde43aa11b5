package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"etatcivil/pkg/platform/audit"
)

// Publisher delivers audit events to a durable sink. Emission from domain
// code is best-effort: a publish failure is logged, never propagated into
// the workflow transition it describes.
type Publisher interface {
	Publish(ctx context.Context, event audit.Event) error
	Close()
}

// wireEvent is the JSON layout written to the audit topic.
type wireEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Subject   string    `json:"subject"`
	AgentID   string    `json:"agent_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Severity  string    `json:"severity"`
}

// KafkaPublisher produces audit events to a Kafka topic, keyed by subject
// so events for one act/request/payment stay ordered within a partition.
type KafkaPublisher struct {
	client *kgo.Client
}

// NewKafka connects a producer for the given brokers and topic.
func NewKafka(brokers []string, topic string) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("connect audit producer: %w", err)
	}
	return &KafkaPublisher{client: client}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(wireEvent{
		Timestamp: event.Timestamp,
		Action:    string(event.Action),
		Subject:   event.Subject,
		AgentID:   agentString(event),
		Reason:    event.Reason,
		RequestID: event.RequestID,
		Severity:  string(event.Severity),
	})
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{Key: []byte(event.Subject), Value: payload}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() {
	p.client.Close()
}

func agentString(event audit.Event) string {
	if event.AgentID.IsZero() {
		return ""
	}
	return event.AgentID.String()
}
