package kafka

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/TheAVengineer/CarScout-AI/config"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/consts"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/dto"
)

const (
	minBytes = 1    // read messages as soon as they arrive
	maxBytes = 10e6 // 10MB

	retryBase = 30 * time.Second
	retryCap  = 15 * time.Minute

	// how long a consumer is willing to hold a not-yet-due message before
	// putting it back on the topic
	maxHold = 5 * time.Second
)

// Handler processes one task payload and tells the queue what to do next
type Handler func(ctx context.Context, payload []byte) (dto.Result, error)

// DeadLetterFunc is called once a task exhausts its attempts
type DeadLetterFunc func(ctx context.Context, topic string, payload []byte, attempts int, lastErr error)

// StageConsumer reads one stage topic and drives its handler. Execution is
// at-least-once: the offset commits only after the handler decides.
type StageConsumer struct {
	topic       string
	reader      *kafka.Reader
	producer    *Producer
	handler     Handler
	onDead      DeadLetterFunc
	maxAttempts int
	timeout     time.Duration
	logger      zerolog.Logger
	done        chan struct{}
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewStageConsumer creates a consumer for one stage topic
func NewStageConsumer(
	cfg *config.KafkaConfig,
	topic string,
	handler Handler,
	producer *Producer,
	maxAttempts int,
	timeout time.Duration,
	onDead DeadLetterFunc,
	logger zerolog.Logger,
) *StageConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.GroupID,
		MinBytes:    minBytes,
		MaxBytes:    maxBytes,
		MaxWait:     3 * time.Second,
		StartOffset: kafka.FirstOffset,
	})

	logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", topic).
		Str("group_id", cfg.GroupID).
		Msg("Stage consumer initialized")

	ctx, cancel := context.WithCancel(context.Background())

	return &StageConsumer{
		topic:       topic,
		reader:      reader,
		producer:    producer,
		handler:     handler,
		onDead:      onDead,
		maxAttempts: maxAttempts,
		timeout:     timeout,
		logger:      logger,
		done:        make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts consuming in the background
func (c *StageConsumer) Start() {
	go c.consume()
	c.logger.Info().Str("topic", c.topic).Msg("Stage consumer started")
}

func (c *StageConsumer) consume() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.done:
			return
		default:
			msg, err := c.reader.FetchMessage(c.ctx)
			if err != nil {
				if c.ctx.Err() != nil {
					return
				}
				c.logger.Error().Err(err).Msg("Failed to fetch message")
				continue
			}

			c.process(msg)

			if err := c.reader.CommitMessages(c.ctx, msg); err != nil {
				c.logger.Error().Err(err).
					Int64("offset", msg.Offset).
					Msg("Failed to commit message")
			}
		}
	}
}

func (c *StageConsumer) process(msg kafka.Message) {
	var env Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		c.logger.Error().Err(err).
			Str("topic", c.topic).
			Int64("offset", msg.Offset).
			Msg("Malformed envelope, dropping")
		return
	}

	if wait := time.Until(env.NotBefore); wait > 0 {
		if wait <= maxHold {
			select {
			case <-time.After(wait):
			case <-c.ctx.Done():
				return
			}
		} else {
			// not due yet: put it back and move on
			c.republish(env)
			return
		}
	}

	hctx, cancel := context.WithTimeout(c.ctx, c.timeout)
	result, err := c.handler(hctx, env.Task)
	cancel()

	switch result {
	case dto.ResultDone, dto.ResultSkip:
		if err != nil {
			c.logger.Warn().Err(err).
				Str("topic", c.topic).
				Msg("Task finished with warning")
		}
	case dto.ResultRetry:
		env.Attempts++
		if env.Attempts >= c.maxAttempts {
			c.deadLetter(env, err)
			return
		}
		env.NotBefore = time.Now().Add(backoff(env.Attempts))
		c.logger.Warn().Err(err).
			Str("topic", c.topic).
			Int("attempts", env.Attempts).
			Time("not_before", env.NotBefore).
			Msg("Task scheduled for retry")
		c.republish(env)
	case dto.ResultDeadLetter:
		c.deadLetter(env, err)
	}
}

func (c *StageConsumer) republish(env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to marshal envelope")
		return
	}
	if err := c.producer.Publish(c.ctx, c.topic, "", data); err != nil {
		c.logger.Error().Err(err).
			Str("topic", c.topic).
			Msg("Failed to republish task")
	}
}

func (c *StageConsumer) deadLetter(env Envelope, lastErr error) {
	errText := ""
	if lastErr != nil {
		errText = lastErr.Error()
	}

	dl := dto.DeadLetter{
		Topic:    c.topic,
		Payload:  env.Task,
		Error:    errText,
		Attempts: env.Attempts,
	}
	data, err := json.Marshal(dl)
	if err == nil {
		if perr := c.producer.Publish(c.ctx, consts.TopicDeadLetter, "", data); perr != nil {
			c.logger.Error().Err(perr).Msg("Failed to publish dead letter")
		}
	}

	if c.onDead != nil {
		c.onDead(c.ctx, c.topic, env.Task, env.Attempts, lastErr)
	}

	c.logger.Error().
		Str("topic", c.topic).
		Int("attempts", env.Attempts).
		Str("error", errText).
		Msg("Task dead-lettered")
}

// Stop stops the consumer gracefully
func (c *StageConsumer) Stop() error {
	c.cancel()
	close(c.done)

	if err := c.reader.Close(); err != nil {
		c.logger.Error().Err(err).Msg("Failed to close Kafka reader")
		return err
	}

	c.logger.Info().Str("topic", c.topic).Msg("Stage consumer stopped")
	return nil
}

// backoff returns an exponential delay with jitter
func backoff(attempt int) time.Duration {
	d := retryBase << uint(attempt-1)
	if d > retryCap || d <= 0 {
		d = retryCap
	}
	jitter := time.Duration(rand.Int63n(int64(d) / 5))
	return d - time.Duration(int64(d)/10) + jitter
}
