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

// Fuel types
const (
	FuelPetrol   = "petrol"
	FuelDiesel   = "diesel"
	FuelHybrid   = "hybrid"
	FuelElectric = "electric"
	FuelLPG      = "lpg"
	FuelCNG      = "cng"
	FuelOther    = "other"
)

// Gearbox types
const (
	GearboxManual   = "manual"
	GearboxAuto     = "automatic"
	GearboxSemiAuto = "semi_auto"
	GearboxOther    = "other"
)

// Risk levels
const (
	RiskGreen  = "green"
	RiskYellow = "yellow"
	RiskRed    = "red"
)

// Score states
const (
	StateDraft    = "draft"
	StateApproved = "approved"
	StateRejected = "rejected"
)

// Dedupe methods
const (
	MethodPhone     = "phone"
	MethodText      = "text"
	MethodImage     = "image"
	MethodEmbedding = "embedding"
)

// Source is a marketplace we crawl (Mobile.bg, Cars.bg, ...)
type Source struct {
	Base
	Name          string     `gorm:"not null;unique;size:100" json:"name"`
	BaseURL       string     `gorm:"not null;size:255" json:"baseUrl"`
	Enabled       bool       `gorm:"default:true" json:"enabled"`
	CrawlInterval int        `gorm:"not null;default:120" json:"crawlIntervalS"` // seconds
	PausedUntil   *time.Time `json:"pausedUntil,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName returns the table name for Source
func (Source) TableName() string {
	return "sources"
}

// ScrapeTick records a processed scheduler tick so replays are idempotent
type ScrapeTick struct {
	Base
	SourceID uuid.UUID `gorm:"type:uuid;not null;index:idx_source_tick,unique" json:"sourceId"`
	Bucket   int64     `gorm:"not null;index:idx_source_tick,unique" json:"bucket"`
	TickedAt time.Time `gorm:"autoCreateTime" json:"tickedAt"`
}

// TableName returns the table name for ScrapeTick
func (ScrapeTick) TableName() string {
	return "scrape_ticks"
}

// RawListing is a scraped snapshot of a classified ad
type RawListing struct {
	Base
	SourceID    uuid.UUID `gorm:"type:uuid;not null;index:idx_source_site_ad,unique" json:"sourceId"`
	SiteAdID    string    `gorm:"not null;size:100;index:idx_source_site_ad,unique" json:"siteAdId"`
	URL         string    `gorm:"not null;size:500" json:"url"`
	RawBlobKey  string    `gorm:"size:500" json:"rawBlobKey"`
	ContentHash string    `gorm:"size:64" json:"contentHash"`
	HTTPStatus  int       `json:"httpStatus"`
	ETag        string    `gorm:"size:100" json:"etag"`
	LastMod     string    `gorm:"size:100" json:"lastModified"`
	ParseErrors int       `gorm:"default:0" json:"parseErrors"`
	FirstSeen   time.Time `gorm:"not null;index" json:"firstSeen"`
	LastSeen    time.Time `gorm:"not null" json:"lastSeen"`
	IsActive    bool      `gorm:"default:true;index" json:"isActive"`
	Version     int       `gorm:"default:1" json:"version"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName returns the table name for RawListing
func (RawListing) TableName() string {
	return "listings_raw"
}

// NormalizedListing is the canonical per-parse-generation view of an ad
type NormalizedListing struct {
	Base
	RawID           uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex" json:"rawId"`
	BrandRaw        string     `gorm:"size:100" json:"brandRaw"`
	ModelRaw        string     `gorm:"size:100" json:"modelRaw"`
	BrandID         *string    `gorm:"size:100;index:idx_brand_model_year" json:"brandId"`
	ModelID         *string    `gorm:"size:100;index:idx_brand_model_year" json:"modelId"`
	Year            *int       `gorm:"index:idx_brand_model_year" json:"year"`
	MileageKm       *int       `json:"mileageKm"`
	Fuel            string     `gorm:"size:50" json:"fuel"`
	Gearbox         string     `gorm:"size:50" json:"gearbox"`
	Body            string     `gorm:"size:50" json:"body"`
	PowerHP         *int       `json:"powerHp"`
	Price           float64    `json:"price"`
	Currency        string     `gorm:"size:10" json:"currency"`
	PriceBGN        float64    `gorm:"index" json:"priceBgn"`
	Region          string     `gorm:"size:100" json:"region"`
	Title           string     `gorm:"type:text" json:"title"`
	Description     string     `gorm:"type:text" json:"description"`
	DescriptionHash string     `gorm:"size:64;index" json:"descriptionHash"`
	Features        string     `gorm:"type:text" json:"features"` // JSON-encoded list
	FirstImageHash  string     `gorm:"size:64" json:"firstImageHash"`
	PhoneHash       string     `gorm:"size:64" json:"phoneHash"` // HMAC of seller digits, computed at parse
	SellerURL       string     `gorm:"size:500" json:"sellerUrl"`
	SellerID        *uuid.UUID `gorm:"type:uuid" json:"sellerId"`
	Version         int        `gorm:"default:1" json:"version"`
	IsNormalized    bool       `gorm:"default:false" json:"isNormalized"`
	Draft           bool       `gorm:"default:false" json:"draft"`
	IsDuplicate     bool       `gorm:"default:false;index" json:"isDuplicate"`
	CanonicalOf     *uuid.UUID `gorm:"type:uuid" json:"canonicalOf"`
	NormalizedAt    *time.Time `json:"normalizedAt"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName returns the table name for NormalizedListing
func (NormalizedListing) TableName() string {
	return "listings_normalized"
}

// Image is a listing photo; at most five are kept per listing
type Image struct {
	Base
	ListingID   uuid.UUID `gorm:"type:uuid;not null;index" json:"listingId"`
	URL         string    `gorm:"not null;size:500" json:"url"`
	ObjectKey   string    `gorm:"size:500" json:"objectKey"`
	ContentHash string    `gorm:"size:64" json:"contentHash"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Index       int       `gorm:"default:0" json:"index"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName returns the table name for Image
func (Image) TableName() string {
	return "images"
}

// Seller is identified only by a salted phone hash; the raw number is never stored
type Seller struct {
	Base
	PhoneHash    string    `gorm:"not null;unique;size:64" json:"phoneHash"`
	ProfileURL   string    `gorm:"size:500" json:"profileUrl"`
	ContactCount int       `gorm:"default:0" json:"contactCount"`
	Blacklisted  bool      `gorm:"default:false;index:idx_seller_blacklisted,where:blacklisted = true" json:"blacklisted"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName returns the table name for Seller
func (Seller) TableName() string {
	return "sellers"
}

// PriceHistory is an append-only record of observed asking prices
type PriceHistory struct {
	Base
	ListingID uuid.UUID `gorm:"type:uuid;not null;index:idx_listing_seen" json:"listingId"`
	PriceBGN  float64   `gorm:"not null" json:"priceBgn"`
	SeenAt    time.Time `gorm:"not null;index:idx_listing_seen" json:"seenAt"`
}

// TableName returns the table name for PriceHistory
func (PriceHistory) TableName() string {
	return "prices_history"
}

// CompCache stores the comparables-based market estimate for a listing
type CompCache struct {
	Base
	ListingID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"listingId"`
	P10            float64   `json:"p10"`
	P25            float64   `json:"p25"`
	P50            float64   `json:"p50"`
	P75            float64   `json:"p75"`
	P90            float64   `json:"p90"`
	Mean           float64   `json:"mean"`
	StdDev         float64   `json:"stdDev"`
	PredictedPrice *float64  `json:"predictedPrice"`
	DiscountPct    float64   `json:"discountPct"`
	SampleSize     int       `json:"sampleSize"`
	Confidence     float64   `json:"confidence"`
	ModelVersion   string    `gorm:"size:50" json:"modelVersion"`
	ComputedAt     time.Time `gorm:"autoCreateTime" json:"computedAt"`
}

// TableName returns the table name for CompCache
func (CompCache) TableName() string {
	return "comps_cache"
}

// RiskEvaluation holds the rule and LLM verdicts for a listing
type RiskEvaluation struct {
	Base
	ListingID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"listingId"`
	Flags          string    `gorm:"type:text" json:"flags"` // JSON: category -> matched keywords
	RiskLevel      string    `gorm:"size:10;not null" json:"riskLevel"`
	RuleConfidence float64   `json:"ruleConfidence"`
	LLMSummary     string    `gorm:"type:text" json:"llmSummary"`
	LLMReasons     string    `gorm:"type:text" json:"llmReasons"` // JSON-encoded list
	LLMConfidence  float64   `json:"llmConfidence"`
	LLMUnavailable bool      `gorm:"default:false" json:"llmUnavailable"`
	BuyerNotes     string    `gorm:"type:text" json:"buyerNotes"`
	EvaluatedAt    time.Time `gorm:"autoCreateTime" json:"evaluatedAt"`
}

// TableName returns the table name for RiskEvaluation
func (RiskEvaluation) TableName() string {
	return "evaluations"
}

// LLMCache caches escalation responses keyed by description and prompt version
type LLMCache struct {
	Base
	DescriptionHash string    `gorm:"not null;size:64;index:idx_desc_prompt,unique" json:"descriptionHash"`
	PromptVersion   string    `gorm:"not null;size:20;index:idx_desc_prompt,unique" json:"promptVersion"`
	Response        []byte    `gorm:"type:bytea" json:"response"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName returns the table name for LLMCache
func (LLMCache) TableName() string {
	return "llm_cache"
}

// Score is the final 1-10 verdict with its component breakdown
type Score struct {
	Base
	ListingID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"listingId"`
	Score       float64   `gorm:"not null;index:idx_score_state" json:"score"`
	PriceScore  float64   `json:"priceScore"`
	RiskPenalty float64   `json:"riskPenalty"`
	Freshness   float64   `json:"freshness"`
	Liquidity   float64   `json:"liquidity"`
	Reasons     string    `gorm:"type:text" json:"reasons"` // JSON-encoded component trace
	State       string    `gorm:"size:20;not null;index:idx_score_state" json:"state"`
	ScoredAt    time.Time `gorm:"autoCreateTime" json:"scoredAt"`
}

// TableName returns the table name for Score
func (Score) TableName() string {
	return "scores"
}

// DedupeSignature holds the match material future listings compare against
type DedupeSignature struct {
	Base
	ListingID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"listingId"`
	TitleTrgm       string    `gorm:"type:text" json:"titleTrgm"`
	DescMinhash     string    `gorm:"type:text" json:"descMinhash"` // comma-joined sketch slots
	FirstImagePhash int64     `json:"firstImagePhash"`
	Embedding       []byte    `gorm:"type:bytea" json:"embedding,omitempty"` // optional float32 vector
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName returns the table name for DedupeSignature
func (DedupeSignature) TableName() string {
	return "dedupe_signatures"
}

// DuplicateLog records every duplicate decision for audit
type DuplicateLog struct {
	Base
	ListingID   uuid.UUID `gorm:"type:uuid;not null;index" json:"listingId"`
	DuplicateOf uuid.UUID `gorm:"type:uuid;not null" json:"duplicateOf"`
	Method      string    `gorm:"size:20;not null" json:"method"`
	Confidence  float64   `json:"confidence"`
	DecidedAt   time.Time `gorm:"autoCreateTime" json:"decidedAt"`
}

// TableName returns the table name for DuplicateLog
func (DuplicateLog) TableName() string {
	return "duplicates_log"
}

// Outbox is the transactional outbox feeding the queue. Rows are written in
// the same transaction as stage state and relayed to Kafka afterwards.
type Outbox struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Topic       string     `gorm:"not null;size:100" json:"topic"`
	Key         string     `gorm:"size:100" json:"key"`
	Payload     []byte     `gorm:"type:bytea;not null" json:"payload"`
	CreatedAt   time.Time  `gorm:"autoCreateTime;index" json:"createdAt"`
	PublishedAt *time.Time `gorm:"index" json:"publishedAt"`
}

// TableName returns the table name for Outbox
func (Outbox) TableName() string {
	return "outbox"
}

// RateBucket is a persisted token bucket keyed by (entity, window semantics)
type RateBucket struct {
	Key       string    `gorm:"primaryKey;size:100" json:"key"`
	Tokens    float64   `gorm:"not null" json:"tokens"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

// TableName returns the table name for RateBucket
func (RateBucket) TableName() string {
	return "rate_buckets"
}

// QuarantinedTask surfaces listings that exhausted their stage retries
type QuarantinedTask struct {
	Base
	ListingID uuid.UUID `gorm:"type:uuid;not null;index" json:"listingId"`
	Stage     string    `gorm:"size:30;not null" json:"stage"`
	Attempts  int       `json:"attempts"`
	LastError string    `gorm:"type:text" json:"lastError"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName returns the table name for QuarantinedTask
func (QuarantinedTask) TableName() string {
	return "quarantined_tasks"
}
