package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base holds the shared opaque identifier column
type Base struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
}

// BeforeCreate assigns an identifier when none was set
func (b *Base) BeforeCreate(_ *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// ChannelPost records a broadcast to a channel. Unique per (channel,
// listing); price changes edit the existing message instead of reposting.
type ChannelPost struct {
	Base
	ListingID    uuid.UUID `gorm:"type:uuid;not null;index:idx_channel_listing,unique" json:"listingId"`
	Channel      string    `gorm:"not null;size:100;index:idx_channel_listing,unique" json:"channel"`
	MessageID    int       `gorm:"not null" json:"messageId"`
	BrandID      string    `gorm:"size:100;index:idx_channel_brand_model" json:"brandId"`
	ModelID      string    `gorm:"size:100;index:idx_channel_brand_model" json:"modelId"`
	LastPriceBGN float64   `json:"lastPriceBgn"`
	PostedAt     time.Time `gorm:"not null;index" json:"postedAt"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName returns the table name for ChannelPost
func (ChannelPost) TableName() string {
	return "channel_posts"
}
