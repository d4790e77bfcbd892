// Package parse turns raw snapshots into draft listings.
package parse

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/TheAVengineer/CarScout-AI/config"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/consts"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/deps"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/dto"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/entities"
	pkgerrors "github.com/TheAVengineer/CarScout-AI/pkg/errors"
	"github.com/TheAVengineer/CarScout-AI/pkg/phash"
)

// maxConsecutiveParseErrors retires a raw listing
const maxConsecutiveParseErrors = 3

// UseCase loads a raw blob and produces the draft listing
type UseCase struct {
	raws       deps.RawListingRepository
	listings   deps.ListingRepository
	images     deps.ImageRepository
	sources    deps.SourceRepository
	blobs      deps.BlobStore
	extractors deps.ExtractorRegistry
	adapters   deps.AdapterRegistry
	enqueuer   deps.Enqueuer
	tx         deps.Tx
	cfg        *config.PipelineConfig
	logger     zerolog.Logger
}

// NewUseCase creates the parse use case
func NewUseCase(
	raws deps.RawListingRepository,
	listings deps.ListingRepository,
	images deps.ImageRepository,
	sources deps.SourceRepository,
	blobs deps.BlobStore,
	extractors deps.ExtractorRegistry,
	adapters deps.AdapterRegistry,
	enqueuer deps.Enqueuer,
	tx deps.Tx,
	cfg *config.PipelineConfig,
	logger zerolog.Logger,
) *UseCase {
	return &UseCase{
		raws:       raws,
		listings:   listings,
		images:     images,
		sources:    sources,
		blobs:      blobs,
		extractors: extractors,
		adapters:   adapters,
		enqueuer:   enqueuer,
		tx:         tx,
		cfg:        cfg,
		logger:     logger,
	}
}

// Process parses one raw listing
func (u *UseCase) Process(ctx context.Context, task *dto.ListingTask) (dto.Result, error) {
	raw, err := u.raws.GetByID(ctx, task.RawID)
	if err != nil {
		if pkgerrors.IsNotFoundError(err) {
			return dto.ResultSkip, err
		}
		return dto.ResultRetry, err
	}
	if !raw.IsActive {
		return dto.ResultSkip, nil
	}
	if raw.RawBlobKey == "" {
		// drafts without content are terminal until a new scrape fills them
		u.logger.Debug().Str("raw_id", raw.ID.String()).Msg("Raw listing has no blob, skipping")
		return dto.ResultSkip, nil
	}

	blob, err := u.blobs.Get(ctx, raw.RawBlobKey)
	if err != nil {
		if pkgerrors.IsNotFoundError(err) {
			return dto.ResultSkip, err
		}
		return dto.ResultRetry, err
	}

	source, err := u.sources.GetByID(ctx, raw.SourceID)
	if err != nil {
		return dto.ResultRetry, err
	}

	draft, err := u.extractors.Extractor(source.Name).Extract(blob)
	if err != nil {
		return u.recordParseError(ctx, raw.ID, err)
	}

	listing := u.buildDraft(raw, draft)
	images := u.buildImages(ctx, source.Name, listing, draft)
	if len(images) > 0 {
		listing.FirstImageHash = images[0].ContentHash
	}

	err = u.tx.Do(ctx, func(ctx context.Context) error {
		if err := u.listings.UpsertDraft(ctx, listing); err != nil {
			return err
		}
		for i := range images {
			images[i].ListingID = listing.ID
		}
		if err := u.images.ReplaceForListing(ctx, listing.ID, images); err != nil {
			return err
		}
		if err := u.raws.ResetParseErrors(ctx, raw.ID); err != nil {
			return err
		}
		return u.enqueuer.Enqueue(ctx, consts.TopicNormalize, listing.ID.String(), &dto.ListingTask{
			RawID:     raw.ID,
			ListingID: listing.ID,
		})
	})
	if err != nil {
		return dto.ResultRetry, err
	}

	u.logger.Info().
		Str("raw_id", raw.ID.String()).
		Str("listing_id", listing.ID.String()).
		Str("title", listing.Title).
		Msg("Raw listing parsed")
	return dto.ResultDone, nil
}

// buildDraft maps the extractor output onto the listing row. Missing fields
// stay empty; normalization decides what is usable.
func (u *UseCase) buildDraft(raw *entities.RawListing, draft *dto.Draft) *entities.NormalizedListing {
	listing := &entities.NormalizedListing{
		RawID:        raw.ID,
		BrandRaw:     draft.Brand,
		ModelRaw:     draft.Model,
		Title:        draft.Title,
		Description:  draft.Description,
		Fuel:         draft.Fuel,
		Gearbox:      draft.Gearbox,
		Body:         draft.Body,
		Region:       draft.Region,
		Currency:     draft.Currency,
		Year:         draft.Year,
		MileageKm:    draft.MileageKm,
		PowerHP:      draft.PowerHP,
		SellerURL:    draft.SellerURL,
		IsNormalized: false,
		Version:      raw.Version,
	}
	if draft.Price != nil {
		listing.Price = *draft.Price
	}
	if len(draft.Features) > 0 {
		if data, err := json.Marshal(draft.Features); err == nil {
			listing.Features = string(data)
		}
	}
	if draft.SellerPhone != "" {
		listing.PhoneHash = HashPhone(draft.SellerPhone, u.cfg.PhoneHashSalt)
	}
	return listing
}

// buildImages collects up to five photos and fingerprints the first one
func (u *UseCase) buildImages(ctx context.Context, sourceName string, listing *entities.NormalizedListing, draft *dto.Draft) []entities.Image {
	urls := draft.ImageURLs
	if len(urls) > 5 {
		urls = urls[:5]
	}

	images := make([]entities.Image, 0, len(urls))
	for i, url := range urls {
		img := entities.Image{URL: url, Index: i}
		if i == 0 {
			if adapter, ok := u.adapters.Adapter(sourceName); ok {
				if data, err := adapter.FetchDetail(ctx, url); err == nil {
					if h := phash.FromBytes(data); h != 0 {
						img.ContentHash = fmt.Sprintf("%016x", h)
					}
				}
			}
		}
		images = append(images, img)
	}
	return images
}

// recordParseError counts the failure and retires the row when it keeps failing
func (u *UseCase) recordParseError(ctx context.Context, id uuid.UUID, cause error) (dto.Result, error) {
	count, err := u.raws.IncParseErrors(ctx, id)
	if err != nil {
		return dto.ResultRetry, err
	}
	if count >= maxConsecutiveParseErrors {
		if err := u.raws.MarkInactive(ctx, id); err != nil {
			return dto.ResultRetry, err
		}
		u.logger.Warn().
			Str("raw_id", id.String()).
			Int("errors", count).
			Msg("Raw listing retired after repeated parse failures")
	}
	// input error: not retried automatically; a new scrape version re-enters
	return dto.ResultSkip, cause
}

// HashPhone computes the salted HMAC of the normalized digits. The raw
// number never leaves this function.
func HashPhone(rawPhone, salt string) string {
	digits := NormalizePhone(rawPhone)
	if digits == "" {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(salt))
	mac.Write([]byte(digits))
	return hex.EncodeToString(mac.Sum(nil))
}
