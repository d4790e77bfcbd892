package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/TheAVengineer/CarScout-AI/internal/domain/catalog/deps"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/catalog/entities"
	pkgerrors "github.com/TheAVengineer/CarScout-AI/pkg/errors"
)

type brandModelRepository struct {
	db *gorm.DB
}

// NewBrandModelRepository creates a new brand/model repository
func NewBrandModelRepository(db *gorm.DB) deps.BrandModelRepository {
	return &brandModelRepository{db: db}
}

// ListActive returns all active mappings
func (r *brandModelRepository) ListActive(ctx context.Context) ([]entities.BrandModel, error) {
	var rows []entities.BrandModel
	result := r.db.WithContext(ctx).Where("active = ?", true).Find(&rows)
	if result.Error != nil {
		return nil, pkgerrors.NewDatabaseError("failed to list brand models")
	}
	return rows, nil
}

// SeedIfEmpty inserts the seed rows when the table holds nothing
func (r *brandModelRepository) SeedIfEmpty(ctx context.Context, rows []entities.BrandModel) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&entities.BrandModel{}).Count(&count).Error; err != nil {
		return pkgerrors.NewDatabaseError("failed to count brand models")
	}
	if count > 0 || len(rows) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(rows, 100).Error; err != nil {
		return pkgerrors.NewDatabaseError("failed to seed brand models")
	}
	return nil
}

type fxRepository struct {
	db *gorm.DB
}

// NewFxRepository creates a new FX rate repository
func NewFxRepository(db *gorm.DB) deps.FxRepository {
	return &fxRepository{db: db}
}

// Rate returns the stored conversion rate for a currency on a day
func (r *fxRepository) Rate(ctx context.Context, currency, day string) (float64, error) {
	var row entities.FxRate
	result := r.db.WithContext(ctx).
		Where("currency = ? AND day = ?", currency, day).
		First(&row)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return 0, pkgerrors.NewNotFoundError("fx rate not found")
		}
		return 0, pkgerrors.NewDatabaseError("failed to read fx rate")
	}
	return row.RateToBGN, nil
}

// Upsert stores the rate for a currency/day pair
func (r *fxRepository) Upsert(ctx context.Context, currency, day string, rate float64) error {
	row := entities.FxRate{Currency: currency, Day: day, RateToBGN: rate}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "currency"}, {Name: "day"}},
			DoUpdates: clause.AssignmentColumns([]string{"rate_to_bgn"}),
		}).
		Create(&row).Error
	if err != nil {
		return pkgerrors.NewDatabaseError("failed to upsert fx rate")
	}
	return nil
}
