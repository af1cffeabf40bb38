package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	skafka "github.com/segmentio/kafka-go"
)

// Writer is the subset of kafka.Writer the producer needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...skafka.Message) error
	Close() error
}

type KafkaConfig struct {
	Brokers      []string
	Topic        string
	ClientID     string
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	RequiredAcks int
}

type KafkaProducer struct {
	writer Writer
	source string
}

func NewKafkaProducer(config *KafkaConfig) *KafkaProducer {
	w := &skafka.Writer{
		Addr:                   skafka.TCP(config.Brokers...),
		Topic:                  config.Topic,
		Balancer:               &skafka.Hash{},
		BatchTimeout:           config.BatchTimeout,
		WriteTimeout:           config.WriteTimeout,
		RequiredAcks:           skafka.RequiredAcks(config.RequiredAcks),
		AllowAutoTopicCreation: true,
	}
	return &KafkaProducer{writer: w, source: config.ClientID}
}

func NewKafkaProducerWithWriter(w Writer, source string) *KafkaProducer {
	return &KafkaProducer{writer: w, source: source}
}

// Publish writes value as JSON. Messages are keyed so events for one payment stay ordered.
func (p *KafkaProducer) Publish(ctx context.Context, key string, value interface{}) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal kafka value: %w", err)
	}

	msg := skafka.Message{
		Key:   []byte(key),
		Value: b,
		Time:  time.Now().UTC(),
	}
	if p.source != "" {
		msg.Headers = []skafka.Header{{Key: "source", Value: []byte(p.source)}}
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
