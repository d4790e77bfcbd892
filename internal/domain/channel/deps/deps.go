package deps

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/TheAVengineer/CarScout-AI/internal/domain/channel/entities"
)

// Messenger is the outbound messaging transport
type Messenger interface {
	SendMediaGroup(ctx context.Context, chatID string, images []string, caption string) (messageID int, err error)
	EditCaption(ctx context.Context, chatID string, messageID int, caption string) error
}

// ChannelPostRepository maintains broadcast records
type ChannelPostRepository interface {
	Get(ctx context.Context, channel string, listingID uuid.UUID) (*entities.ChannelPost, error)
	Create(ctx context.Context, post *entities.ChannelPost) error
	UpdatePrice(ctx context.Context, id uuid.UUID, priceBGN float64) error
	// CountRecentByModel serves the diversity filter
	CountRecentByModel(ctx context.Context, channel, brandID, modelID string, since time.Time) (int64, error)
}

// RateLimiter is a persisted token bucket
type RateLimiter interface {
	// Take consumes one token from the bucket; capacity tokens refill evenly
	// over the window
	Take(ctx context.Context, key string, capacity int, window time.Duration) (bool, error)
}
