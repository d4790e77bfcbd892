// Package dedupe detects cross-source duplicates with a multi-signal cascade.
package dedupe

import (
	"context"
	"encoding/binary"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/TheAVengineer/CarScout-AI/config"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/consts"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/deps"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/dto"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/entities"
	pkgerrors "github.com/TheAVengineer/CarScout-AI/pkg/errors"
	"github.com/TheAVengineer/CarScout-AI/pkg/phash"
	"github.com/TheAVengineer/CarScout-AI/pkg/textsig"
)

// Method confidences and thresholds per the cascade contract
const (
	phoneConfidence     = 0.95
	imageConfidence     = 0.90
	textConfidence      = 0.75
	embeddingConfidence = 0.80

	phonePriceTolerance  = 0.10
	textSimThreshold     = 0.80
	embeddingSimThreshold = 0.85
	tieBreakMileagePct   = 0.30
	tieBreakPricePct     = 0.10

	candidateLimit = 200
)

// match is an accepted cascade hit
type match struct {
	candidate  deps.DedupeCandidate
	method     string
	confidence float64
}

// UseCase decides whether a listing duplicates an existing one
type UseCase struct {
	listings deps.ListingRepository
	raws     deps.RawListingRepository
	dedupe   deps.DedupeRepository
	enqueuer deps.Enqueuer
	tx       deps.Tx
	cfg      *config.PipelineConfig
	logger   zerolog.Logger
}

// NewUseCase creates the dedupe use case
func NewUseCase(
	listings deps.ListingRepository,
	raws deps.RawListingRepository,
	dedupeRepo deps.DedupeRepository,
	enqueuer deps.Enqueuer,
	tx deps.Tx,
	cfg *config.PipelineConfig,
	logger zerolog.Logger,
) *UseCase {
	return &UseCase{
		listings: listings,
		raws:     raws,
		dedupe:   dedupeRepo,
		enqueuer: enqueuer,
		tx:       tx,
		cfg:      cfg,
		logger:   logger,
	}
}

// Process runs the cascade for one listing. The first method whose
// confidence clears its threshold wins; canonical is the earliest first_seen
// of the match group regardless of arrival order.
func (u *UseCase) Process(ctx context.Context, task *dto.ListingTask) (dto.Result, error) {
	listing, err := u.listings.GetByID(ctx, task.ListingID)
	if err != nil {
		if pkgerrors.IsNotFoundError(err) {
			return dto.ResultSkip, err
		}
		return dto.ResultRetry, err
	}
	if !listing.IsNormalized || listing.BrandID == nil || listing.ModelID == nil {
		return dto.ResultSkip, nil
	}

	raw, err := u.raws.GetByID(ctx, listing.RawID)
	if err != nil {
		return dto.ResultRetry, err
	}

	sig := buildSignature(listing)

	hit, err := u.runCascade(ctx, listing, sig)
	if err != nil {
		return dto.ResultRetry, err
	}

	if hit == nil {
		// not a duplicate: persist the signature with the verdict so future
		// listings can match this one
		err = u.tx.Do(ctx, func(ctx context.Context) error {
			if err := u.dedupe.SaveSignature(ctx, sig); err != nil {
				return err
			}
			return u.enqueuer.Enqueue(ctx, consts.TopicPrice, listing.ID.String(), &dto.ListingTask{
				ListingID: listing.ID,
			})
		})
		if err != nil {
			return dto.ResultRetry, err
		}
		return dto.ResultDone, nil
	}

	return u.applyVerdict(ctx, listing, raw.FirstSeen, sig, hit)
}

// runCascade tries phone, image, text and embedding in order
func (u *UseCase) runCascade(ctx context.Context, listing *entities.NormalizedListing, sig *entities.DedupeSignature) (*match, error) {
	// 1. phone
	if listing.SellerID != nil && listing.PriceBGN > 0 {
		cands, err := u.dedupe.FindPhoneMatches(ctx, *listing.SellerID, *listing.BrandID, *listing.ModelID,
			listing.PriceBGN, phonePriceTolerance, listing.ID)
		if err != nil {
			return nil, err
		}
		if len(cands) > 0 {
			return &match{candidate: earliest(cands), method: entities.MethodPhone, confidence: phoneConfidence}, nil
		}
	}

	cands, err := u.dedupe.Candidates(ctx, *listing.BrandID, *listing.ModelID, listing.ID, candidateLimit)
	if err != nil {
		return nil, err
	}

	// 2. image
	if sig.FirstImagePhash != 0 {
		var hits []deps.DedupeCandidate
		for _, c := range cands {
			if c.Signature.FirstImagePhash == 0 {
				continue
			}
			dist := phash.Distance(uint64(sig.FirstImagePhash), uint64(c.Signature.FirstImagePhash))
			if dist <= u.cfg.PhashMaxDistance {
				hits = append(hits, c)
			}
		}
		if len(hits) > 0 {
			return &match{candidate: earliest(hits), method: entities.MethodImage, confidence: imageConfidence}, nil
		}
	}

	// 3. text: trigram similarity tie-broken by attributes
	if sig.TitleTrgm != "" {
		var hits []deps.DedupeCandidate
		for _, c := range cands {
			if c.Signature.TitleTrgm == "" {
				continue
			}
			if textsig.Similarity(sig.TitleTrgm, c.Signature.TitleTrgm) < textSimThreshold {
				continue
			}
			if attributesAgree(listing, &c.Listing) {
				hits = append(hits, c)
			}
		}
		if len(hits) > 0 {
			return &match{candidate: earliest(hits), method: entities.MethodText, confidence: textConfidence}, nil
		}
	}

	// 4. embedding, only when both sides carry vectors
	if len(sig.Embedding) > 0 {
		var hits []deps.DedupeCandidate
		for _, c := range cands {
			if len(c.Signature.Embedding) == 0 {
				continue
			}
			if cosine(decodeVector(sig.Embedding), decodeVector(c.Signature.Embedding)) >= embeddingSimThreshold {
				hits = append(hits, c)
			}
		}
		if len(hits) > 0 {
			return &match{candidate: earliest(hits), method: entities.MethodEmbedding, confidence: embeddingConfidence}, nil
		}
	}

	return nil, nil
}

// applyVerdict marks the later listing duplicate of the earlier one. When
// the new listing precedes the matched one, the pointers flip so the
// canonical depends on first_seen, not arrival order.
func (u *UseCase) applyVerdict(ctx context.Context, listing *entities.NormalizedListing, firstSeen time.Time, sig *entities.DedupeSignature, hit *match) (dto.Result, error) {
	dup, canonical := listing.ID, hit.candidate.Listing.ID
	if firstSeen.Before(hit.candidate.FirstSeen) {
		dup, canonical = hit.candidate.Listing.ID, listing.ID
	}

	err := u.tx.Do(ctx, func(ctx context.Context) error {
		if err := u.listings.MarkDuplicate(ctx, dup, canonical); err != nil {
			return err
		}
		if err := u.dedupe.LogDuplicate(ctx, &entities.DuplicateLog{
			ListingID:   dup,
			DuplicateOf: canonical,
			Method:      hit.method,
			Confidence:  hit.confidence,
		}); err != nil {
			return err
		}

		if canonical == listing.ID {
			// the new listing survives: store its signature and keep it moving
			if err := u.dedupe.SaveSignature(ctx, sig); err != nil {
				return err
			}
			return u.enqueuer.Enqueue(ctx, consts.TopicPrice, listing.ID.String(), &dto.ListingTask{
				ListingID: listing.ID,
			})
		}
		return nil
	})
	if err != nil {
		return dto.ResultRetry, err
	}

	u.logger.Info().
		Str("listing_id", dup.String()).
		Str("canonical_of", canonical.String()).
		Str("method", hit.method).
		Float64("confidence", hit.confidence).
		Msg("Duplicate detected")
	return dto.ResultDone, nil
}

// buildSignature derives the stored match material from a listing
func buildSignature(listing *entities.NormalizedListing) *entities.DedupeSignature {
	sig := &entities.DedupeSignature{
		ListingID:   listing.ID,
		TitleTrgm:   textsig.TrigramString(listing.Title),
		DescMinhash: encodeMinhash(textsig.Minhash(listing.Description)),
	}
	if listing.FirstImageHash != "" {
		if h, err := strconv.ParseUint(listing.FirstImageHash, 16, 64); err == nil {
			sig.FirstImagePhash = int64(h)
		}
	}
	return sig
}

// attributesAgree applies the text-method tie break
func attributesAgree(a, b *entities.NormalizedListing) bool {
	if a.Year != nil && b.Year != nil && *a.Year != *b.Year {
		return false
	}
	if a.MileageKm != nil && b.MileageKm != nil && *a.MileageKm > 0 {
		diff := math.Abs(float64(*a.MileageKm - *b.MileageKm))
		if diff/float64(*a.MileageKm) > tieBreakMileagePct {
			return false
		}
	}
	if a.PriceBGN > 0 && b.PriceBGN > 0 {
		if math.Abs(a.PriceBGN-b.PriceBGN)/a.PriceBGN > tieBreakPricePct {
			return false
		}
	}
	return true
}

// earliest picks the candidate with the earliest first observation
func earliest(cands []deps.DedupeCandidate) deps.DedupeCandidate {
	best := cands[0]
	for _, c := range cands[1:] {
		if c.FirstSeen.Before(best.FirstSeen) {
			best = c
		}
	}
	return best
}

// encodeMinhash renders the sketch in its storable form
func encodeMinhash(sketch []uint32) string {
	parts := make([]string, len(sketch))
	for i, v := range sketch {
		parts[i] = strconv.FormatUint(uint64(v), 10)
	}
	return strings.Join(parts, ",")
}

// decodeVector reads a little-endian float32 vector
func decodeVector(data []byte) []float32 {
	n := len(data) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

// cosine computes cosine similarity of two vectors
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
