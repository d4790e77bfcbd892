package deps

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/dto"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/entities"
)

// Tx groups repository calls into one database transaction. The transaction
// travels in the context; enqueues through Enqueuer join it, implementing
// the transactional outbox.
type Tx interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// Enqueuer writes stage tasks to the durable queue via the outbox table
type Enqueuer interface {
	Enqueue(ctx context.Context, topic, key string, payload any) error
}

// BlobStore is the opaque raw-snapshot storage
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// SourceAdapter is the per-source record producer. Implementations live
// outside the core and must obey per-source concurrency and delay budgets.
type SourceAdapter interface {
	Name() string
	ListRecent(ctx context.Context, cursor string) (records []dto.AdapterRecord, next string, err error)
	FetchDetail(ctx context.Context, url string) ([]byte, error)
}

// AdapterRegistry resolves the adapter serving a source
type AdapterRegistry interface {
	Adapter(sourceName string) (SourceAdapter, bool)
}

// FieldExtractor turns a raw blob into a draft record
type FieldExtractor interface {
	Extract(blob []byte) (*dto.Draft, error)
}

// ExtractorRegistry resolves the extractor for a source, falling back to the
// generic one when the source has no dedicated extractor
type ExtractorRegistry interface {
	Extractor(sourceName string) FieldExtractor
}

// RiskLLM is the external escalation service
type RiskLLM interface {
	Evaluate(ctx context.Context, req *dto.RiskRequest) (*dto.RiskResponse, error)
}

// SourceRepository reads and maintains crawl sources
type SourceRepository interface {
	ListEnabled(ctx context.Context) ([]entities.Source, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Source, error)
	TickExists(ctx context.Context, sourceID uuid.UUID, bucket int64) (bool, error)
	RecordTick(ctx context.Context, sourceID uuid.UUID, bucket int64) error
	Pause(ctx context.Context, sourceID uuid.UUID, until time.Time) error
}

// RawListingRepository maintains scraped snapshots
type RawListingRepository interface {
	// Upsert creates or refreshes the (source, site ad) row. Returns the row,
	// whether content changed since the last observation, and whether the row
	// was newly created.
	Upsert(ctx context.Context, sourceID uuid.UUID, rec *dto.AdapterRecord) (raw *entities.RawListing, changed bool, created bool, err error)
	GetByID(ctx context.Context, id uuid.UUID) (*entities.RawListing, error)
	IncParseErrors(ctx context.Context, id uuid.UUID) (int, error)
	ResetParseErrors(ctx context.Context, id uuid.UUID) error
	MarkInactive(ctx context.Context, id uuid.UUID) error
}

// ListingRepository maintains normalized listings
type ListingRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entities.NormalizedListing, error)
	GetByRawID(ctx context.Context, rawID uuid.UUID) (*entities.NormalizedListing, error)
	// UpsertDraft writes the parse-stage draft for a raw listing generation
	UpsertDraft(ctx context.Context, listing *entities.NormalizedListing) error
	Save(ctx context.Context, listing *entities.NormalizedListing) error
	MarkDuplicate(ctx context.Context, id, canonicalOf uuid.UUID) error
}

// SellerRepository maintains sellers keyed by phone hash
type SellerRepository interface {
	UpsertByPhoneHash(ctx context.Context, phoneHash, profileURL string) (*entities.Seller, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Seller, error)
}

// ImageRepository maintains listing photos
type ImageRepository interface {
	ReplaceForListing(ctx context.Context, listingID uuid.UUID, images []entities.Image) error
	ListForListing(ctx context.Context, listingID uuid.UUID) ([]entities.Image, error)
}

// DedupeCandidate pairs a listing with its stored signature
type DedupeCandidate struct {
	Listing   entities.NormalizedListing
	Signature entities.DedupeSignature
	FirstSeen time.Time
}

// DedupeRepository serves the duplicate-detection cascade
type DedupeRepository interface {
	// FindPhoneMatches returns active non-duplicate listings of the same
	// brand/model sharing the seller phone hash, with price within ±pct.
	FindPhoneMatches(ctx context.Context, sellerID uuid.UUID, brandID, modelID string, priceBGN, pct float64, excludeID uuid.UUID) ([]DedupeCandidate, error)
	// Candidates returns signatures of active non-duplicate listings of the
	// same brand/model for image/text/embedding comparison.
	Candidates(ctx context.Context, brandID, modelID string, excludeID uuid.UUID, limit int) ([]DedupeCandidate, error)
	SaveSignature(ctx context.Context, sig *entities.DedupeSignature) error
	LogDuplicate(ctx context.Context, log *entities.DuplicateLog) error
	GetSignature(ctx context.Context, listingID uuid.UUID) (*entities.DedupeSignature, error)
}

// CompFilter narrows the comparable search; zero values mean "no constraint"
type CompFilter struct {
	BrandID      string
	ModelID      string
	Year         int
	YearSpan     int
	MileageKm    int
	MileagePct   float64
	Fuel         string
	Gearbox      string
	SinceDays    int
	ExcludeID    uuid.UUID
	Limit        int
}

// CompRepository serves the price stage
type CompRepository interface {
	Comparables(ctx context.Context, f CompFilter) ([]float64, error)
	SaveCompCache(ctx context.Context, cc *entities.CompCache) error
	GetCompCache(ctx context.Context, listingID uuid.UUID) (*entities.CompCache, error)
	LastPrice(ctx context.Context, listingID uuid.UUID) (*float64, error)
	AppendPriceHistory(ctx context.Context, listingID uuid.UUID, priceBGN float64, seenAt time.Time) error
}

// RiskRepository persists risk verdicts and the LLM response cache
type RiskRepository interface {
	SaveEvaluation(ctx context.Context, ev *entities.RiskEvaluation) error
	GetEvaluation(ctx context.Context, listingID uuid.UUID) (*entities.RiskEvaluation, error)
	GetCachedLLM(ctx context.Context, descriptionHash, promptVersion string) (*dto.RiskResponse, error)
	CacheLLM(ctx context.Context, descriptionHash, promptVersion string, resp *dto.RiskResponse) error
}

// ScoreRepository persists final scores
type ScoreRepository interface {
	Save(ctx context.Context, score *entities.Score) error
	Get(ctx context.Context, listingID uuid.UUID) (*entities.Score, error)
}

// QuarantineRepository records tasks that exhausted retries
type QuarantineRepository interface {
	Add(ctx context.Context, q *entities.QuarantinedTask) error
}
