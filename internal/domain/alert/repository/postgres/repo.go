package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/TheAVengineer/CarScout-AI/internal/domain/alert/deps"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/alert/entities"
	"github.com/TheAVengineer/CarScout-AI/internal/infrastructure/database"
	pkgerrors "github.com/TheAVengineer/CarScout-AI/pkg/errors"
)

type alertRepository struct {
	db *gorm.DB
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *gorm.DB) deps.AlertRepository {
	return &alertRepository{db: db}
}

// ListActive returns all active alerts
func (r *alertRepository) ListActive(ctx context.Context) ([]entities.Alert, error) {
	var alerts []entities.Alert
	result := database.FromContext(ctx, r.db).WithContext(ctx).Where("active = ?", true).Find(&alerts)
	if result.Error != nil {
		return nil, pkgerrors.NewDatabaseError("failed to list alerts")
	}
	return alerts, nil
}

// GetByID retrieves an alert
func (r *alertRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Alert, error) {
	var alert entities.Alert
	result := database.FromContext(ctx, r.db).WithContext(ctx).First(&alert, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NewNotFoundError("alert not found")
		}
		return nil, pkgerrors.NewDatabaseError("failed to read alert")
	}
	return &alert, nil
}

// CountActiveByUser counts a user's active alerts
func (r *alertRepository) CountActiveByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	result := database.FromContext(ctx, r.db).WithContext(ctx).
		Model(&entities.Alert{}).
		Where("user_id = ? AND active = ?", userID, true).
		Count(&count)
	if result.Error != nil {
		return 0, pkgerrors.NewDatabaseError("failed to count alerts")
	}
	return count, nil
}

// Create stores a new alert
func (r *alertRepository) Create(ctx context.Context, alert *entities.Alert) error {
	if err := database.FromContext(ctx, r.db).WithContext(ctx).Create(alert).Error; err != nil {
		return pkgerrors.NewDatabaseError("failed to create alert")
	}
	return nil
}

// Deactivate turns an alert off
func (r *alertRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := database.FromContext(ctx, r.db).WithContext(ctx).
		Model(&entities.Alert{}).
		Where("id = ?", id).
		Update("active", false).Error; err != nil {
		return pkgerrors.NewDatabaseError("failed to deactivate alert")
	}
	return nil
}

type matchRepository struct {
	db *gorm.DB
}

// NewMatchRepository creates a new match repository
func NewMatchRepository(db *gorm.DB) deps.MatchRepository {
	return &matchRepository{db: db}
}

// Create inserts the unique (alert, listing) match
func (r *matchRepository) Create(ctx context.Context, match *entities.AlertMatch) error {
	err := database.FromContext(ctx, r.db).WithContext(ctx).Create(match).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return pkgerrors.NewConflictError("alert match already exists")
		}
		return pkgerrors.NewDatabaseError("failed to create alert match")
	}
	return nil
}

// GetByID retrieves a match
func (r *matchRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.AlertMatch, error) {
	var match entities.AlertMatch
	result := database.FromContext(ctx, r.db).WithContext(ctx).First(&match, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NewNotFoundError("alert match not found")
		}
		return nil, pkgerrors.NewDatabaseError("failed to read alert match")
	}
	return &match, nil
}

// Due returns pending matches ripe for delivery
func (r *matchRepository) Due(ctx context.Context, now time.Time, limit int) ([]entities.AlertMatch, error) {
	var matches []entities.AlertMatch
	result := database.FromContext(ctx, r.db).WithContext(ctx).
		Where("status = ? AND deliver_after <= ?", entities.MatchPending, now).
		Order("deliver_after ASC").
		Limit(limit).
		Find(&matches)
	if result.Error != nil {
		return nil, pkgerrors.NewDatabaseError("failed to list due matches")
	}
	return matches, nil
}

// Transition flips status with an optimistic guard
func (r *matchRepository) Transition(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	result := database.FromContext(ctx, r.db).WithContext(ctx).
		Model(&entities.AlertMatch{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return false, pkgerrors.NewDatabaseError("failed to transition alert match")
	}
	return result.RowsAffected > 0, nil
}

// MarkNotified finalizes a delivered match
func (r *matchRepository) MarkNotified(ctx context.Context, id uuid.UUID, at time.Time) error {
	if err := database.FromContext(ctx, r.db).WithContext(ctx).
		Model(&entities.AlertMatch{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      entities.MatchNotified,
			"notified_at": at,
		}).Error; err != nil {
		return pkgerrors.NewDatabaseError("failed to mark match notified")
	}
	return nil
}

// MarkFinal records a terminal skipped/failed status
func (r *matchRepository) MarkFinal(ctx context.Context, id uuid.UUID, status, reason string) error {
	if err := database.FromContext(ctx, r.db).WithContext(ctx).
		Model(&entities.AlertMatch{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": status,
			"reason": reason,
		}).Error; err != nil {
		return pkgerrors.NewDatabaseError("failed to finalize alert match")
	}
	return nil
}
