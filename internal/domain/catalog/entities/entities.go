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

// BrandModel maps free-form brand/model spellings to canonical identifiers
type BrandModel struct {
	Base
	Brand     string    `gorm:"not null;size:100" json:"brand"`
	Model     string    `gorm:"not null;size:100" json:"model"`
	BrandID   string    `gorm:"not null;size:100;index:idx_brand_model_canon" json:"brandId"`
	ModelID   string    `gorm:"not null;size:100;index:idx_brand_model_canon" json:"modelId"`
	Aliases   string    `gorm:"type:text" json:"aliases"` // JSON-encoded list of alternative spellings
	Locale    string    `gorm:"size:10;default:bg" json:"locale"`
	Active    bool      `gorm:"default:true" json:"active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName returns the table name for BrandModel
func (BrandModel) TableName() string {
	return "brand_models"
}

// FxRate is a daily conversion rate into BGN
type FxRate struct {
	Base
	Currency  string    `gorm:"not null;size:10;index:idx_currency_day,unique" json:"currency"`
	Day       string    `gorm:"not null;size:10;index:idx_currency_day,unique" json:"day"` // YYYY-MM-DD
	RateToBGN float64   `gorm:"not null" json:"rateToBgn"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName returns the table name for FxRate
func (FxRate) TableName() string {
	return "fx_rates"
}
