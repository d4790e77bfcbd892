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

type dedupeRepository struct {
	db *gorm.DB
}

// NewDedupeRepository creates a new dedupe repository
func NewDedupeRepository(db *gorm.DB) deps.DedupeRepository {
	return &dedupeRepository{db: db}
}

// FindPhoneMatches returns active non-duplicate listings of the same
// brand/model sold by the same phone hash with a close price
func (r *dedupeRepository) FindPhoneMatches(ctx context.Context, sellerID uuid.UUID, brandID, modelID string, priceBGN, pct float64, excludeID uuid.UUID) ([]deps.DedupeCandidate, error) {
	db := database.FromContext(ctx, r.db).WithContext(ctx)

	lo := priceBGN * (1 - pct)
	hi := priceBGN * (1 + pct)

	var listings []entities.NormalizedListing
	err := db.
		Joins("JOIN listings_raw ON listings_raw.id = listings_normalized.raw_id").
		Where("listings_normalized.seller_id = ?", sellerID).
		Where("listings_normalized.brand_id = ? AND listings_normalized.model_id = ?", brandID, modelID).
		Where("listings_normalized.price_bgn BETWEEN ? AND ?", lo, hi).
		Where("listings_normalized.is_duplicate = ?", false).
		Where("listings_normalized.id <> ?", excludeID).
		Where("listings_raw.is_active = ?", true).
		Find(&listings).Error
	if err != nil {
		return nil, pipelineerrors.ErrDatabaseOperation
	}

	return r.attachMeta(ctx, listings)
}

// Candidates returns signatures for active non-duplicate listings of the
// same brand/model, most recent first
func (r *dedupeRepository) Candidates(ctx context.Context, brandID, modelID string, excludeID uuid.UUID, limit int) ([]deps.DedupeCandidate, error) {
	db := database.FromContext(ctx, r.db).WithContext(ctx)

	var listings []entities.NormalizedListing
	err := db.
		Joins("JOIN listings_raw ON listings_raw.id = listings_normalized.raw_id").
		Where("listings_normalized.brand_id = ? AND listings_normalized.model_id = ?", brandID, modelID).
		Where("listings_normalized.is_duplicate = ?", false).
		Where("listings_normalized.id <> ?", excludeID).
		Where("listings_raw.is_active = ?", true).
		Order("listings_raw.first_seen DESC").
		Limit(limit).
		Find(&listings).Error
	if err != nil {
		return nil, pipelineerrors.ErrDatabaseOperation
	}

	return r.attachMeta(ctx, listings)
}

// attachMeta loads signatures and first-seen timestamps for candidates
func (r *dedupeRepository) attachMeta(ctx context.Context, listings []entities.NormalizedListing) ([]deps.DedupeCandidate, error) {
	db := database.FromContext(ctx, r.db).WithContext(ctx)

	out := make([]deps.DedupeCandidate, 0, len(listings))
	for _, l := range listings {
		var raw entities.RawListing
		if err := db.Select("first_seen").First(&raw, "id = ?", l.RawID).Error; err != nil {
			return nil, pipelineerrors.ErrDatabaseOperation
		}

		var sig entities.DedupeSignature
		err := db.First(&sig, "listing_id = ?", l.ID).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pipelineerrors.ErrDatabaseOperation
		}

		out = append(out, deps.DedupeCandidate{
			Listing:   l,
			Signature: sig,
			FirstSeen: raw.FirstSeen,
		})
	}
	return out, nil
}

// SaveSignature upserts the signature row for a listing
func (r *dedupeRepository) SaveSignature(ctx context.Context, sig *entities.DedupeSignature) error {
	db := database.FromContext(ctx, r.db).WithContext(ctx)

	var existing entities.DedupeSignature
	err := db.First(&existing, "listing_id = ?", sig.ListingID).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pipelineerrors.ErrDatabaseOperation
		}
		if err := db.Create(sig).Error; err != nil {
			return pipelineerrors.ErrDatabaseOperation
		}
		return nil
	}

	sig.ID = existing.ID
	if err := db.Model(&entities.DedupeSignature{}).
		Where("id = ?", existing.ID).
		Updates(map[string]any{
			"title_trgm":        sig.TitleTrgm,
			"desc_minhash":      sig.DescMinhash,
			"first_image_phash": sig.FirstImagePhash,
			"embedding":         sig.Embedding,
		}).Error; err != nil {
		return pipelineerrors.ErrDatabaseOperation
	}
	return nil
}

// LogDuplicate records a duplicate decision
func (r *dedupeRepository) LogDuplicate(ctx context.Context, log *entities.DuplicateLog) error {
	if err := database.FromContext(ctx, r.db).WithContext(ctx).Create(log).Error; err != nil {
		return pipelineerrors.ErrDatabaseOperation
	}
	return nil
}

// GetSignature loads the signature of a listing
func (r *dedupeRepository) GetSignature(ctx context.Context, listingID uuid.UUID) (*entities.DedupeSignature, error) {
	var sig entities.DedupeSignature
	result := database.FromContext(ctx, r.db).WithContext(ctx).First(&sig, "listing_id = ?", listingID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, pipelineerrors.ErrListingNotFound
		}
		return nil, pipelineerrors.ErrDatabaseOperation
	}
	return &sig, nil
}
