// Package kafka publishes audit events to a Kafka topic with franz-go.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "doccontrol/pkg/platform/audit"
)

// Message is the wire form of an audit event.
type Message struct {
	Category  string    `json:"category"`
	Action    string    `json:"action"`
	TenantID  string    `json:"tenant_id"`
	ActorID   string    `json:"actor_id,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Status    string    `json:"status,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Count     int       `json:"count,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Encode converts an audit event into a record keyed by tenant, so one
// tenant's events stay ordered within a partition.
func Encode(topic string, event audit.Event) (*kgo.Record, error) {
	msg := Message{
		Category:  string(event.Category),
		Action:    event.Action,
		TenantID:  event.TenantID.String(),
		Subject:   event.Subject,
		Status:    event.Status,
		Reason:    event.Reason,
		Count:     event.Count,
		RequestID: event.RequestID,
		Timestamp: event.Timestamp.UTC(),
	}
	if !event.ActorID.IsNil() {
		msg.ActorID = event.ActorID.String()
	}
	value, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode audit event: %w", err)
	}
	return &kgo.Record{
		Topic: topic,
		Key:   []byte(msg.TenantID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "action", Value: []byte(event.Action)},
		},
		Timestamp: event.Timestamp,
	}, nil
}

// Producer is an audit.Store backed by a Kafka topic.
type Producer struct {
	client *kgo.Client
	topic  string
}

// NewProducer connects to brokers. Records wait for all in-sync replicas.
func NewProducer(brokers []string, topic string, opts ...kgo.Opt) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	base := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(5 * time.Millisecond),
		kgo.ClientID("doccontrol"),
	}
	client, err := kgo.NewClient(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &Producer{client: client, topic: topic}, nil
}

// Append produces event synchronously.
func (p *Producer) Append(ctx context.Context, event audit.Event) error {
	rec, err := Encode(p.topic, event)
	if err != nil {
		return err
	}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// EnsureTopic creates the topic when it does not exist yet.
func (p *Producer) EnsureTopic(ctx context.Context, partitions int32, replicationFactor int16) error {
	adm := kadm.NewClient(p.client)
	resp, err := adm.CreateTopics(ctx, partitions, replicationFactor, nil, p.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", p.topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

// Health pings the cluster.
func (p *Producer) Health(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Close flushes buffered records and closes the client.
func (p *Producer) Close(ctx context.Context) {
	_ = p.client.Flush(ctx)
	p.client.Close()
}
