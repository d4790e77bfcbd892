package kafka

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/entities"
)

const (
	relayInterval  = 200 * time.Millisecond
	relayBatchSize = 100
)

// OutboxRelay moves committed outbox rows onto Kafka. Stage transactions
// write their enqueues to the outbox table; the relay makes them visible to
// consumers, so a crash between commit and publish loses nothing.
type OutboxRelay struct {
	db       *gorm.DB
	producer *Producer
	logger   zerolog.Logger
	done     chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewOutboxRelay creates the relay worker
func NewOutboxRelay(db *gorm.DB, producer *Producer, logger zerolog.Logger) *OutboxRelay {
	ctx, cancel := context.WithCancel(context.Background())
	return &OutboxRelay{
		db:       db,
		producer: producer,
		logger:   logger,
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start starts the relay loop in the background
func (r *OutboxRelay) Start() {
	go r.run()
	r.logger.Info().Msg("Outbox relay started")
}

func (r *OutboxRelay) run() {
	ticker := time.NewTicker(relayInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.done:
			return
		case <-ticker.C:
			if err := r.drain(); err != nil {
				r.logger.Error().Err(err).Msg("Outbox drain failed")
			}
		}
	}
}

// drain publishes pending rows oldest-first. Publishing is at-least-once:
// a crash after Publish but before the update re-sends the row, and
// consumers are idempotent.
func (r *OutboxRelay) drain() error {
	for {
		var rows []entities.Outbox
		err := r.db.WithContext(r.ctx).
			Where("published_at IS NULL").
			Order("id ASC").
			Limit(relayBatchSize).
			Find(&rows).Error
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		for _, row := range rows {
			if err := r.producer.Publish(r.ctx, row.Topic, row.Key, row.Payload); err != nil {
				return err
			}
			now := time.Now().UTC()
			if err := r.db.WithContext(r.ctx).
				Model(&entities.Outbox{}).
				Where("id = ?", row.ID).
				Update("published_at", now).Error; err != nil {
				return err
			}
		}

		if len(rows) < relayBatchSize {
			return nil
		}
	}
}

// Stop stops the relay
func (r *OutboxRelay) Stop() error {
	r.cancel()
	close(r.done)
	r.logger.Info().Msg("Outbox relay stopped")
	return nil
}
