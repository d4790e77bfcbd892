package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/deps"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/dto"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/entities"
	pipelineerrors "github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/errors"
	"github.com/TheAVengineer/CarScout-AI/internal/infrastructure/database"
)

type rawListingRepository struct {
	db *gorm.DB
}

// NewRawListingRepository creates a new raw listing repository
func NewRawListingRepository(db *gorm.DB) deps.RawListingRepository {
	return &rawListingRepository{db: db}
}

// Upsert creates or refreshes the (source, site ad) row
func (r *rawListingRepository) Upsert(ctx context.Context, sourceID uuid.UUID, rec *dto.AdapterRecord) (*entities.RawListing, bool, bool, error) {
	db := database.FromContext(ctx, r.db).WithContext(ctx)

	var raw entities.RawListing
	err := db.Where("source_id = ? AND site_ad_id = ?", sourceID, rec.SiteAdID).First(&raw).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, false, pipelineerrors.ErrDatabaseOperation
		}

		raw = entities.RawListing{
			SourceID:    sourceID,
			SiteAdID:    rec.SiteAdID,
			URL:         rec.URL,
			RawBlobKey:  rec.RawBlobKey,
			ContentHash: rec.ContentHash,
			HTTPStatus:  rec.HTTPStatus,
			ETag:        rec.ETag,
			LastMod:     rec.LastModified,
			FirstSeen:   rec.ObservedAt,
			LastSeen:    rec.ObservedAt,
			IsActive:    true,
			Version:     1,
		}
		if err := db.Create(&raw).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// concurrent first observation; re-read and treat as unchanged
				if err2 := db.Where("source_id = ? AND site_ad_id = ?", sourceID, rec.SiteAdID).First(&raw).Error; err2 == nil {
					return &raw, false, false, nil
				}
			}
			return nil, false, false, pipelineerrors.ErrDatabaseOperation
		}
		return &raw, true, true, nil
	}

	changed := rec.ContentHash != "" && rec.ContentHash != raw.ContentHash

	updates := map[string]any{
		"last_seen":   rec.ObservedAt,
		"http_status": rec.HTTPStatus,
		"is_active":   true,
	}
	if rec.ETag != "" {
		updates["e_tag"] = rec.ETag
	}
	if rec.LastModified != "" {
		updates["last_mod"] = rec.LastModified
	}
	if changed {
		updates["raw_blob_key"] = rec.RawBlobKey
		updates["content_hash"] = rec.ContentHash
		updates["version"] = gorm.Expr("version + 1")
	}

	if err := db.Model(&entities.RawListing{}).Where("id = ?", raw.ID).Updates(updates).Error; err != nil {
		return nil, false, false, pipelineerrors.ErrDatabaseOperation
	}

	if err := db.First(&raw, "id = ?", raw.ID).Error; err != nil {
		return nil, false, false, pipelineerrors.ErrDatabaseOperation
	}
	return &raw, changed, false, nil
}

// GetByID retrieves a raw listing by id
func (r *rawListingRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.RawListing, error) {
	var raw entities.RawListing
	result := database.FromContext(ctx, r.db).WithContext(ctx).First(&raw, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, pipelineerrors.ErrListingNotFound
		}
		return nil, pipelineerrors.ErrDatabaseOperation
	}
	return &raw, nil
}

// IncParseErrors bumps the consecutive parse error counter and returns it
func (r *rawListingRepository) IncParseErrors(ctx context.Context, id uuid.UUID) (int, error) {
	db := database.FromContext(ctx, r.db).WithContext(ctx)
	if err := db.Model(&entities.RawListing{}).
		Where("id = ?", id).
		Update("parse_errors", gorm.Expr("parse_errors + 1")).Error; err != nil {
		return 0, pipelineerrors.ErrDatabaseOperation
	}
	var raw entities.RawListing
	if err := db.Select("parse_errors").First(&raw, "id = ?", id).Error; err != nil {
		return 0, pipelineerrors.ErrDatabaseOperation
	}
	return raw.ParseErrors, nil
}

// ResetParseErrors clears the consecutive error counter after a good parse
func (r *rawListingRepository) ResetParseErrors(ctx context.Context, id uuid.UUID) error {
	if err := database.FromContext(ctx, r.db).WithContext(ctx).
		Model(&entities.RawListing{}).
		Where("id = ?", id).
		Update("parse_errors", 0).Error; err != nil {
		return pipelineerrors.ErrDatabaseOperation
	}
	return nil
}

// MarkInactive retires a raw listing after repeated permanent failures
func (r *rawListingRepository) MarkInactive(ctx context.Context, id uuid.UUID) error {
	if err := database.FromContext(ctx, r.db).WithContext(ctx).
		Model(&entities.RawListing{}).
		Where("id = ?", id).
		Update("is_active", false).Error; err != nil {
		return pipelineerrors.ErrDatabaseOperation
	}
	return nil
}
