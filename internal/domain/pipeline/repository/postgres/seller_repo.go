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

type sellerRepository struct {
	db *gorm.DB
}

// NewSellerRepository creates a new seller repository
func NewSellerRepository(db *gorm.DB) deps.SellerRepository {
	return &sellerRepository{db: db}
}

// UpsertByPhoneHash finds or creates the seller and bumps contact_count
func (r *sellerRepository) UpsertByPhoneHash(ctx context.Context, phoneHash, profileURL string) (*entities.Seller, error) {
	db := database.FromContext(ctx, r.db).WithContext(ctx)

	var seller entities.Seller
	err := db.Where("phone_hash = ?", phoneHash).First(&seller).Error
	if err == nil {
		updates := map[string]any{"contact_count": gorm.Expr("contact_count + 1")}
		if profileURL != "" && seller.ProfileURL == "" {
			updates["profile_url"] = profileURL
		}
		if err := db.Model(&entities.Seller{}).Where("id = ?", seller.ID).Updates(updates).Error; err != nil {
			return nil, pipelineerrors.ErrDatabaseOperation
		}
		seller.ContactCount++
		return &seller, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pipelineerrors.ErrDatabaseOperation
	}

	seller = entities.Seller{
		PhoneHash:    phoneHash,
		ProfileURL:   profileURL,
		ContactCount: 1,
	}
	if err := db.Create(&seller).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// concurrent insert: re-read
			if err2 := db.Where("phone_hash = ?", phoneHash).First(&seller).Error; err2 == nil {
				return &seller, nil
			}
		}
		return nil, pipelineerrors.ErrDatabaseOperation
	}
	return &seller, nil
}

// GetByID retrieves a seller
func (r *sellerRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Seller, error) {
	var seller entities.Seller
	result := database.FromContext(ctx, r.db).WithContext(ctx).First(&seller, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, pipelineerrors.ErrListingNotFound
		}
		return nil, pipelineerrors.ErrDatabaseOperation
	}
	return &seller, nil
}

type imageRepository struct {
	db *gorm.DB
}

// NewImageRepository creates a new image repository
func NewImageRepository(db *gorm.DB) deps.ImageRepository {
	return &imageRepository{db: db}
}

// ReplaceForListing swaps the image set of a listing
func (r *imageRepository) ReplaceForListing(ctx context.Context, listingID uuid.UUID, images []entities.Image) error {
	db := database.FromContext(ctx, r.db).WithContext(ctx)
	if err := db.Where("listing_id = ?", listingID).Delete(&entities.Image{}).Error; err != nil {
		return pipelineerrors.ErrDatabaseOperation
	}
	if len(images) == 0 {
		return nil
	}
	if err := db.Create(&images).Error; err != nil {
		return pipelineerrors.ErrDatabaseOperation
	}
	return nil
}

// ListForListing returns images ordered by index
func (r *imageRepository) ListForListing(ctx context.Context, listingID uuid.UUID) ([]entities.Image, error) {
	var images []entities.Image
	result := database.FromContext(ctx, r.db).WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order(`"index" ASC`).
		Find(&images)
	if result.Error != nil {
		return nil, pipelineerrors.ErrDatabaseOperation
	}
	return images, nil
}
