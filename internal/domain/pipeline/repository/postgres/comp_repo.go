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

type compRepository struct {
	db *gorm.DB
}

// NewCompRepository creates a new comparables repository
func NewCompRepository(db *gorm.DB) deps.CompRepository {
	return &compRepository{db: db}
}

// Comparables returns prices of listings matching the filter, most recent
// first, excluding duplicates and the target listing
func (r *compRepository) Comparables(ctx context.Context, f deps.CompFilter) ([]float64, error) {
	db := database.FromContext(ctx, r.db).WithContext(ctx)

	q := db.Model(&entities.NormalizedListing{}).
		Joins("JOIN listings_raw ON listings_raw.id = listings_normalized.raw_id").
		Where("listings_normalized.brand_id = ? AND listings_normalized.model_id = ?", f.BrandID, f.ModelID).
		Where("listings_normalized.is_duplicate = ?", false).
		Where("listings_normalized.is_normalized = ?", true).
		Where("listings_normalized.price_bgn > 0").
		Where("listings_normalized.id <> ?", f.ExcludeID).
		Where("listings_raw.is_active = ?", true)

	if f.Year > 0 && f.YearSpan > 0 {
		q = q.Where("listings_normalized.year BETWEEN ? AND ?", f.Year-f.YearSpan, f.Year+f.YearSpan)
	}
	if f.MileageKm > 0 && f.MileagePct > 0 {
		lo := int(float64(f.MileageKm) * (1 - f.MileagePct))
		hi := int(float64(f.MileageKm) * (1 + f.MileagePct))
		q = q.Where("listings_normalized.mileage_km BETWEEN ? AND ?", lo, hi)
	}
	if f.Fuel != "" {
		q = q.Where("listings_normalized.fuel = ?", f.Fuel)
	}
	if f.Gearbox != "" {
		q = q.Where("listings_normalized.gearbox = ?", f.Gearbox)
	}
	if f.SinceDays > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -f.SinceDays)
		q = q.Where("listings_raw.first_seen >= ?", cutoff)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 200
	}

	var prices []float64
	err := q.Order("listings_raw.first_seen DESC").
		Limit(limit).
		Pluck("listings_normalized.price_bgn", &prices).Error
	if err != nil {
		return nil, pipelineerrors.ErrDatabaseOperation
	}
	return prices, nil
}

// SaveCompCache upserts the estimate for a listing
func (r *compRepository) SaveCompCache(ctx context.Context, cc *entities.CompCache) error {
	db := database.FromContext(ctx, r.db).WithContext(ctx)

	var existing entities.CompCache
	err := db.First(&existing, "listing_id = ?", cc.ListingID).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pipelineerrors.ErrDatabaseOperation
		}
		if err := db.Create(cc).Error; err != nil {
			return pipelineerrors.ErrDatabaseOperation
		}
		return nil
	}

	cc.ID = existing.ID
	if err := db.Model(&entities.CompCache{}).
		Where("id = ?", existing.ID).
		Select("*").
		Omit("id", "listing_id").
		Updates(cc).Error; err != nil {
		return pipelineerrors.ErrDatabaseOperation
	}
	return nil
}

// GetCompCache loads the estimate for a listing
func (r *compRepository) GetCompCache(ctx context.Context, listingID uuid.UUID) (*entities.CompCache, error) {
	var cc entities.CompCache
	result := database.FromContext(ctx, r.db).WithContext(ctx).First(&cc, "listing_id = ?", listingID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, pipelineerrors.ErrListingNotFound
		}
		return nil, pipelineerrors.ErrDatabaseOperation
	}
	return &cc, nil
}

// LastPrice returns the most recent recorded price, nil when none exists
func (r *compRepository) LastPrice(ctx context.Context, listingID uuid.UUID) (*float64, error) {
	var row entities.PriceHistory
	err := database.FromContext(ctx, r.db).WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order("seen_at DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pipelineerrors.ErrDatabaseOperation
	}
	return &row.PriceBGN, nil
}

// AppendPriceHistory appends one observation
func (r *compRepository) AppendPriceHistory(ctx context.Context, listingID uuid.UUID, priceBGN float64, seenAt time.Time) error {
	row := entities.PriceHistory{
		ListingID: listingID,
		PriceBGN:  priceBGN,
		SeenAt:    seenAt,
	}
	if err := database.FromContext(ctx, r.db).WithContext(ctx).Create(&row).Error; err != nil {
		return pipelineerrors.ErrDatabaseOperation
	}
	return nil
}
