package sink

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"github.com/tunelab/trialrun/internal/pkg/errors"
)

// KafkaSink publishes metric records to a Kafka topic for out-of-band
// collectors. Messages are keyed by trial name so all records of one trial
// land on the same partition.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
	trial    string
}

// KafkaSinkConfig holds Kafka sink settings.
type KafkaSinkConfig struct {
	Brokers  []string // Kafka broker addresses
	Topic    string   // Destination topic
	ClientID string   // Client identifier
	Trial    string   // Trial name used as the message key (may be empty)
}

// metricMessage is the JSON payload published per metric.
type metricMessage struct {
	Trial     string    `json:"trial,omitempty"`
	Name      string    `json:"name"`
	Value     float64   `json:"value"`
	Step      int64     `json:"step"`
	Timestamp time.Time `json:"timestamp"`
}

// ParseBrokers splits a comma-separated broker list.
func ParseBrokers(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// NewKafkaSink creates a Kafka metric sink.
func NewKafkaSink(cfg KafkaSinkConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.PreconditionError("kafka brokers not configured")
	}
	if cfg.Topic == "" {
		return nil, errors.PreconditionError("kafka topic not configured")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "trialrun"
	}

	kafkaConfig := sarama.NewConfig()
	kafkaConfig.ClientID = cfg.ClientID
	kafkaConfig.Producer.Return.Successes = true
	kafkaConfig.Producer.Return.Errors = true
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll
	kafkaConfig.Net.DialTimeout = 10 * time.Second
	kafkaConfig.Net.ReadTimeout = 10 * time.Second
	kafkaConfig.Net.WriteTimeout = 10 * time.Second

	producer, err := sarama.NewSyncProducer(cfg.Brokers, kafkaConfig)
	if err != nil {
		return nil, errors.Wrap(errors.CodeUnavailable, "failed to create kafka producer", err)
	}

	return &KafkaSink{
		producer: producer,
		topic:    cfg.Topic,
		trial:    cfg.Trial,
	}, nil
}

// newKafkaSinkWithProducer wires an existing producer; used by tests.
func newKafkaSinkWithProducer(producer sarama.SyncProducer, topic, trial string) *KafkaSink {
	return &KafkaSink{
		producer: producer,
		topic:    topic,
		trial:    trial,
	}
}

// Name implements Sink.
func (s *KafkaSink) Name() string { return "kafka" }

// Record publishes one metric message.
func (s *KafkaSink) Record(ctx context.Context, m Metric) error {
	payload, err := json.Marshal(metricMessage{
		Trial:     s.trial,
		Name:      m.Name,
		Value:     m.Value,
		Step:      m.Step,
		Timestamp: time.Now(),
	})
	if err != nil {
		return errors.Wrap(errors.CodeSink, "failed to encode metric message", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Value: sarama.ByteEncoder(payload),
	}
	if s.trial != "" {
		msg.Key = sarama.StringEncoder(s.trial)
	}

	if _, _, err := s.producer.SendMessage(msg); err != nil {
		return errors.Wrap(errors.CodeSink, "failed to publish metric message", err)
	}
	return nil
}

// Close releases the producer connection.
func (s *KafkaSink) Close() error {
	if err := s.producer.Close(); err != nil {
		return errors.Wrap(errors.CodeSink, "failed to close kafka producer", err)
	}
	return nil
}
