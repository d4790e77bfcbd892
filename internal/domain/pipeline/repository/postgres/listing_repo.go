package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/deps"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/entities"
	pipelineerrors "github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/errors"
	"github.com/TheAVengineer/CarScout-AI/internal/infrastructure/database"
)

type listingRepository struct {
	db *gorm.DB
}

// NewListingRepository creates a new normalized listing repository
func NewListingRepository(db *gorm.DB) deps.ListingRepository {
	return &listingRepository{db: db}
}

// GetByID retrieves a listing by id
func (r *listingRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.NormalizedListing, error) {
	var listing entities.NormalizedListing
	result := database.FromContext(ctx, r.db).WithContext(ctx).First(&listing, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, pipelineerrors.ErrListingNotFound
		}
		return nil, pipelineerrors.ErrDatabaseOperation
	}
	return &listing, nil
}

// GetByRawID retrieves the listing for a raw snapshot
func (r *listingRepository) GetByRawID(ctx context.Context, rawID uuid.UUID) (*entities.NormalizedListing, error) {
	var listing entities.NormalizedListing
	result := database.FromContext(ctx, r.db).WithContext(ctx).First(&listing, "raw_id = ?", rawID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, pipelineerrors.ErrListingNotFound
		}
		return nil, pipelineerrors.ErrDatabaseOperation
	}
	return &listing, nil
}

// UpsertDraft writes the parse-stage draft, replacing any prior generation
// for the same raw id
func (r *listingRepository) UpsertDraft(ctx context.Context, listing *entities.NormalizedListing) error {
	db := database.FromContext(ctx, r.db).WithContext(ctx)

	var existing entities.NormalizedListing
	err := db.First(&existing, "raw_id = ?", listing.RawID).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pipelineerrors.ErrDatabaseOperation
		}
		if err := db.Create(listing).Error; err != nil {
			return pipelineerrors.ErrDatabaseOperation
		}
		return nil
	}

	listing.ID = existing.ID
	listing.Version = existing.Version + 1
	if err := db.Model(&entities.NormalizedListing{}).
		Where("id = ?", existing.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(listing).Error; err != nil {
		return pipelineerrors.ErrDatabaseOperation
	}
	return nil
}

// Save persists listing mutations
func (r *listingRepository) Save(ctx context.Context, listing *entities.NormalizedListing) error {
	if err := database.FromContext(ctx, r.db).WithContext(ctx).Save(listing).Error; err != nil {
		return pipelineerrors.ErrDatabaseOperation
	}
	return nil
}

// MarkDuplicate flags a listing as duplicate of a canonical one
func (r *listingRepository) MarkDuplicate(ctx context.Context, id, canonicalOf uuid.UUID) error {
	if err := database.FromContext(ctx, r.db).WithContext(ctx).
		Model(&entities.NormalizedListing{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_duplicate": true,
			"canonical_of": canonicalOf,
		}).Error; err != nil {
		return pipelineerrors.ErrDatabaseOperation
	}
	return nil
}
