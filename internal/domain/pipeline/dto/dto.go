package dto

import (
	"time"

	"github.com/google/uuid"
)

// Result tells the queue layer what to do with a finished task
type Result int

const (
	ResultDone Result = iota
	ResultRetry
	ResultSkip
	ResultDeadLetter
)

// ScrapeTask is emitted by the scheduler for each source tick
type ScrapeTask struct {
	SourceID   uuid.UUID `json:"source_id"`
	TickBucket int64     `json:"tick_bucket"`
}

// ListingTask moves one listing between stages
type ListingTask struct {
	RawID     uuid.UUID `json:"raw_id,omitempty"`
	ListingID uuid.UUID `json:"listing_id,omitempty"`
}

// NotifyTask carries a due alert match to the notification dispatcher
type NotifyTask struct {
	MatchID uuid.UUID `json:"match_id"`
}

// DeadLetter wraps an undeliverable task for the operational queue
type DeadLetter struct {
	Topic    string `json:"topic"`
	Payload  []byte `json:"payload"`
	Error    string `json:"error"`
	Attempts int    `json:"attempts"`
}

// AdapterRecord is what a source adapter emits per observed ad
type AdapterRecord struct {
	SiteAdID     string    `json:"site_ad_id"`
	URL          string    `json:"url"`
	RawBlobKey   string    `json:"raw_blob_key"`
	ContentHash  string    `json:"content_hash"`
	HTTPStatus   int       `json:"http_status"`
	ETag         string    `json:"etag"`
	LastModified string    `json:"last_modified"`
	ObservedAt   time.Time `json:"observed_at"`
}

// Draft is the parse-stage output; missing fields stay nil, never guessed
type Draft struct {
	Title       string
	Brand       string
	Model       string
	Price       *float64
	Currency    string
	Year        *int
	MileageKm   *int
	PowerHP     *int
	Fuel        string
	Gearbox     string
	Body        string
	Region      string
	Description string
	ImageURLs   []string
	Features    []string
	SellerPhone string
	SellerURL   string
}

// RiskRequest is the LLM escalation payload
type RiskRequest struct {
	PromptVersion string   `json:"prompt_version"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Features      []string `json:"features"`
}

// RiskResponse is the strict schema the LLM must return; any deviation is
// treated as llm_unavailable
type RiskResponse struct {
	RiskLevel  string   `json:"risk_level"`
	Confidence float64  `json:"confidence"`
	Reasons    []string `json:"reasons"`
	Summary    string   `json:"summary"`
	BuyerNotes string   `json:"buyer_notes"`
}

// RuleVerdict is the keyword classifier output
type RuleVerdict struct {
	Flags          map[string][]string `json:"flags"` // category -> matched keywords
	PositiveFlags  map[string][]string `json:"positive_flags"`
	RiskLevel      string              `json:"risk_level"`
	RuleConfidence float64             `json:"rule_confidence"`
	NeedsLLM       bool                `json:"needs_llm"`
	HardFlag       bool                `json:"hard_flag"` // accident or salvage keyword hit
}

// CompStats is the comparables summary computed by the price stage
type CompStats struct {
	P10            float64
	P25            float64
	P50            float64
	P75            float64
	P90            float64
	Mean           float64
	StdDev         float64
	SampleSize     int
	RelaxationStep int
}
