package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/TheAVengineer/CarScout-AI/internal/domain/channel/deps"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/channel/entities"
	"github.com/TheAVengineer/CarScout-AI/internal/infrastructure/database"
	pkgerrors "github.com/TheAVengineer/CarScout-AI/pkg/errors"
)

type channelPostRepository struct {
	db *gorm.DB
}

// NewChannelPostRepository creates a new channel post repository
func NewChannelPostRepository(db *gorm.DB) deps.ChannelPostRepository {
	return &channelPostRepository{db: db}
}

// Get loads the post for a (channel, listing) pair
func (r *channelPostRepository) Get(ctx context.Context, channel string, listingID uuid.UUID) (*entities.ChannelPost, error) {
	var post entities.ChannelPost
	err := database.FromContext(ctx, r.db).WithContext(ctx).
		Where("channel = ? AND listing_id = ?", channel, listingID).
		First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NewNotFoundError("channel post not found")
		}
		return nil, pkgerrors.NewDatabaseError("failed to read channel post")
	}
	return &post, nil
}

// Create stores a new broadcast record; the unique (channel, listing) index
// collapses concurrent creates
func (r *channelPostRepository) Create(ctx context.Context, post *entities.ChannelPost) error {
	err := database.FromContext(ctx, r.db).WithContext(ctx).Create(post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return pkgerrors.NewConflictError("channel post already exists")
		}
		return pkgerrors.NewDatabaseError("failed to create channel post")
	}
	return nil
}

// UpdatePrice records the price shown by the edited message
func (r *channelPostRepository) UpdatePrice(ctx context.Context, id uuid.UUID, priceBGN float64) error {
	err := database.FromContext(ctx, r.db).WithContext(ctx).
		Model(&entities.ChannelPost{}).
		Where("id = ?", id).
		Update("last_price_bgn", priceBGN).Error
	if err != nil {
		return pkgerrors.NewDatabaseError("failed to update channel post price")
	}
	return nil
}

// CountRecentByModel counts posts of a brand/model in the diversity window
func (r *channelPostRepository) CountRecentByModel(ctx context.Context, channel, brandID, modelID string, since time.Time) (int64, error) {
	var count int64
	err := database.FromContext(ctx, r.db).WithContext(ctx).
		Model(&entities.ChannelPost{}).
		Where("channel = ? AND brand_id = ? AND model_id = ?", channel, brandID, modelID).
		Where("posted_at >= ?", since).
		Count(&count).Error
	if err != nil {
		return 0, pkgerrors.NewDatabaseError("failed to count recent posts")
	}
	return count, nil
}
