package integrity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaPublisher produces conflict events to a topic. Produces are
// asynchronous; delivery failures are logged, never returned to a request.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafkaPublisher connects to brokers and uses topic for every event.
func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger, opts ...kgo.Opt) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	base := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerLinger(50 * time.Millisecond),
		kgo.RecordDeliveryTimeout(10 * time.Second),
	}
	client, err := kgo.NewClient(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaPublisher{client: client, topic: topic, logger: logger}, nil
}

// EnsureTopic creates the topic when missing.
func (p *KafkaPublisher) EnsureTopic(ctx context.Context, partitions int32, replication int16) error {
	adm := kadm.NewClient(p.client)
	resp, err := adm.CreateTopics(ctx, partitions, replication, nil, p.topic)
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

// Ping checks broker connectivity.
func (p *KafkaPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

func (p *KafkaPublisher) PublishConflict(ctx context.Context, event ConflictEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode conflict event: %w", err)
	}
	rec := &kgo.Record{
		Key:   []byte(event.EventType),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "type", Value: []byte("identificadores_conflitantes")},
			{Key: "individuos", Value: []byte(strconv.Itoa(len(event.IndividualIDs)))},
		},
	}
	// the produce outlives the request
	produceCtx := context.WithoutCancel(ctx)
	p.client.Produce(produceCtx, rec, func(r *kgo.Record, err error) {
		if err != nil {
			p.logger.ErrorContext(produceCtx, "integrity event delivery failed",
				"request_id", event.RequestID,
				"topic", r.Topic,
				"error", err,
			)
		}
	})
	return nil
}

// Close flushes pending records and closes the client.
func (p *KafkaPublisher) Close(ctx context.Context) error {
	err := p.client.Flush(ctx)
	p.client.Close()
	return err
}
