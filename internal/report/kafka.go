package report

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/ppiankov/tribunal/internal/model"
)

// Sink receives finished evaluation records
type Sink interface {
	Publish(ctx context.Context, rec *model.EvaluationRecord) error
	Close() error
}

// KafkaConfig holds Kafka producer settings
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
	Version  string
	Timeout  time.Duration
}

// KafkaSink publishes records as JSON, keyed by record id
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string

	mu     sync.RWMutex
	closed bool
}

// NewKafkaSink connects a synchronous producer to the brokers
func NewKafkaSink(cfg KafkaConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, &model.ConfigError{Field: "kafka.brokers", Reason: "at least one broker is required"}
	}
	if cfg.Topic == "" {
		return nil, &model.ConfigError{Field: "kafka.topic", Reason: "topic is required"}
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "tribunal"
	}
	if cfg.Version == "" {
		cfg.Version = "2.8.0"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	version, err := sarama.ParseKafkaVersion(cfg.Version)
	if err != nil {
		return nil, &model.ConfigError{Field: "kafka.version", Reason: "invalid kafka version", Err: err}
	}

	sc := sarama.NewConfig()
	sc.Version = version
	sc.ClientID = cfg.ClientID
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	sc.Producer.Retry.Max = 3
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Net.DialTimeout = cfg.Timeout
	sc.Net.ReadTimeout = cfg.Timeout
	sc.Net.WriteTimeout = cfg.Timeout

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewKafkaSinkFromProducer(producer, cfg.Topic), nil
}

// NewKafkaSinkFromProducer wraps an existing producer
func NewKafkaSinkFromProducer(producer sarama.SyncProducer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

// Publish sends one record
func (s *KafkaSink) Publish(ctx context.Context, rec *model.EvaluationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("kafka sink is closed")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", rec.ID, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(rec.ID),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("verdict"), Value: []byte(rec.Final.Label)},
		},
	}
	if _, _, err := s.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("publish record %s: %w", rec.ID, err)
	}
	return nil
}

// Close flushes and closes the producer
func (s *KafkaSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.producer.Close()
}
