package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/deps"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/entities"
	pipelineerrors "github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/errors"
	"github.com/TheAVengineer/CarScout-AI/internal/infrastructure/database"
	kafkainfra "github.com/TheAVengineer/CarScout-AI/internal/infrastructure/kafka"
)

type outboxEnqueuer struct {
	db *gorm.DB
}

// NewOutboxEnqueuer creates the transactional-outbox enqueuer. Enqueue joins
// whatever transaction travels in the context, so the next-stage message
// commits atomically with the stage's own writes.
func NewOutboxEnqueuer(db *gorm.DB) deps.Enqueuer {
	return &outboxEnqueuer{db: db}
}

// Enqueue stores one task for the relay to publish
func (e *outboxEnqueuer) Enqueue(ctx context.Context, topic, key string, payload any) error {
	data, err := kafkainfra.NewEnvelope(payload)
	if err != nil {
		return err
	}

	row := entities.Outbox{
		Topic:   topic,
		Key:     key,
		Payload: data,
	}
	if err := database.FromContext(ctx, e.db).WithContext(ctx).Create(&row).Error; err != nil {
		return pipelineerrors.ErrDatabaseOperation
	}
	return nil
}
