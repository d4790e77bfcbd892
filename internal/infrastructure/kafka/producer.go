package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/TheAVengineer/CarScout-AI/config"
)

// Envelope wraps every queued task with delivery bookkeeping. Attempts and
// NotBefore belong to the queue layer, not to the task payloads.
type Envelope struct {
	Attempts  int             `json:"attempts"`
	NotBefore time.Time       `json:"not_before"`
	Task      json.RawMessage `json:"task"`
}

// NewEnvelope wraps a task payload for first delivery
func NewEnvelope(task any) ([]byte, error) {
	raw, err := json.Marshal(task)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Task: raw})
}

// Producer publishes messages to Kafka
type Producer struct {
	writer *kafka.Writer
	logger zerolog.Logger
}

// NewProducer creates a Kafka producer
func NewProducer(cfg *config.KafkaConfig, logger zerolog.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}

	logger.Info().
		Strs("brokers", cfg.Brokers).
		Msg("Kafka producer initialized")

	return &Producer{
		writer: writer,
		logger: logger,
	}
}

// Publish writes one message to a topic
func (p *Producer) Publish(ctx context.Context, topic, key string, payload []byte) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
	})
	if err != nil {
		p.logger.Error().Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to publish message")
		return err
	}

	p.logger.Debug().
		Str("topic", topic).
		Str("key", key).
		Msg("Message published")

	return nil
}

// Close closes the producer
func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}
