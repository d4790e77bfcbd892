package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/deps"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/entities"
	pipelineerrors "github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/errors"
	"github.com/TheAVengineer/CarScout-AI/internal/infrastructure/database"
)

type sourceRepository struct {
	db *gorm.DB
}

// NewSourceRepository creates a new source repository
func NewSourceRepository(db *gorm.DB) deps.SourceRepository {
	return &sourceRepository{db: db}
}

// ListEnabled returns enabled sources that are not paused
func (r *sourceRepository) ListEnabled(ctx context.Context) ([]entities.Source, error) {
	var sources []entities.Source
	result := database.FromContext(ctx, r.db).WithContext(ctx).
		Where("enabled = ?", true).
		Where("paused_until IS NULL OR paused_until < ?", time.Now().UTC()).
		Find(&sources)
	if result.Error != nil {
		return nil, pipelineerrors.ErrDatabaseOperation
	}
	return sources, nil
}

// GetByID retrieves a source by id
func (r *sourceRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Source, error) {
	var source entities.Source
	result := database.FromContext(ctx, r.db).WithContext(ctx).First(&source, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, pipelineerrors.ErrSourceNotFound
		}
		return nil, pipelineerrors.ErrDatabaseOperation
	}
	return &source, nil
}

// TickExists reports whether a tick bucket was already processed
func (r *sourceRepository) TickExists(ctx context.Context, sourceID uuid.UUID, bucket int64) (bool, error) {
	var count int64
	result := database.FromContext(ctx, r.db).WithContext(ctx).
		Model(&entities.ScrapeTick{}).
		Where("source_id = ? AND bucket = ?", sourceID, bucket).
		Count(&count)
	if result.Error != nil {
		return false, pipelineerrors.ErrDatabaseOperation
	}
	return count > 0, nil
}

// RecordTick inserts the tick marker; a replayed tick hits the unique index
func (r *sourceRepository) RecordTick(ctx context.Context, sourceID uuid.UUID, bucket int64) error {
	tick := entities.ScrapeTick{SourceID: sourceID, Bucket: bucket}
	result := database.FromContext(ctx, r.db).WithContext(ctx).Create(&tick)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return pipelineerrors.ErrTickAlreadyProcessed
		}
		return pipelineerrors.ErrDatabaseOperation
	}
	return nil
}

// Pause stops scheduling a source until the given time
func (r *sourceRepository) Pause(ctx context.Context, sourceID uuid.UUID, until time.Time) error {
	result := database.FromContext(ctx, r.db).WithContext(ctx).
		Model(&entities.Source{}).
		Where("id = ?", sourceID).
		Update("paused_until", until)
	if result.Error != nil {
		return pipelineerrors.ErrDatabaseOperation
	}
	return nil
}
