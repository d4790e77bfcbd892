// Package normalize canonicalizes draft listings against the catalog.
package normalize

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/TheAVengineer/CarScout-AI/internal/domain/catalog"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/consts"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/deps"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/dto"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/entities"
	pkgerrors "github.com/TheAVengineer/CarScout-AI/pkg/errors"
)

// Plausibility windows; values outside are dropped, never clamped
const (
	minYear    = 1980
	maxMileage = 1_000_000
)

var (
	yearRegex    = regexp.MustCompile(`\b(19[89]\d|20[0-4]\d)\b`)
	mileageRegex = regexp.MustCompile(`(\d[\d\s.,]{0,9})\s*(?:км|km)(?:[^\p{L}\p{N}_]|$)`)
	digitsOnly   = regexp.MustCompile(`\D`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// UseCase canonicalizes one draft listing
type UseCase struct {
	listings deps.ListingRepository
	sellers  deps.SellerRepository
	catalog  *catalog.Service
	enqueuer deps.Enqueuer
	tx       deps.Tx
	logger   zerolog.Logger
}

// NewUseCase creates the normalize use case
func NewUseCase(
	listings deps.ListingRepository,
	sellers deps.SellerRepository,
	catalogSvc *catalog.Service,
	enqueuer deps.Enqueuer,
	tx deps.Tx,
	logger zerolog.Logger,
) *UseCase {
	return &UseCase{
		listings: listings,
		sellers:  sellers,
		catalog:  catalogSvc,
		enqueuer: enqueuer,
		tx:       tx,
		logger:   logger,
	}
}

// Process normalizes one listing and forwards it to dedupe
func (u *UseCase) Process(ctx context.Context, task *dto.ListingTask) (dto.Result, error) {
	listing, err := u.listings.GetByID(ctx, task.ListingID)
	if err != nil {
		if pkgerrors.IsNotFoundError(err) {
			return dto.ResultSkip, err
		}
		return dto.ResultRetry, err
	}

	pair, ok := u.catalog.MatchBrandModel(listing.BrandRaw, listing.ModelRaw)
	if !ok && listing.Title != "" {
		// titles usually start with "<brand> <model> ..."
		fields := strings.Fields(listing.Title)
		if len(fields) >= 2 {
			pair, ok = u.catalog.MatchBrandModel(fields[0], fields[1])
		}
	}
	if !ok {
		// no confident mapping: park as draft until the alias table changes
		listing.Draft = true
		listing.IsNormalized = false
		if err := u.listings.Save(ctx, listing); err != nil {
			return dto.ResultRetry, err
		}
		u.logger.Info().
			Str("listing_id", listing.ID.String()).
			Str("brand_raw", listing.BrandRaw).
			Str("model_raw", listing.ModelRaw).
			Msg("Brand/model not mappable, parked as draft")
		return dto.ResultSkip, nil
	}

	listing.BrandID = &pair.BrandID
	listing.ModelID = &pair.ModelID

	listing.Fuel = catalog.NormalizeFuel(listing.Fuel)
	listing.Gearbox = catalog.NormalizeGearbox(listing.Gearbox)
	listing.Body = catalog.NormalizeBody(listing.Body)

	u.normalizeYear(listing)
	u.normalizeMileage(listing)

	if region, ok := catalog.CanonicalRegion(listing.Region); ok {
		listing.Region = region
	}

	if listing.Price > 0 {
		bgn, err := u.catalog.Convert(ctx, listing.Price, listing.Currency, time.Now().UTC())
		if err != nil {
			if pkgerrors.IsValidationError(err) {
				u.logger.Warn().
					Str("listing_id", listing.ID.String()).
					Str("currency", listing.Currency).
					Msg("Unknown currency, leaving price unconverted")
			} else {
				return dto.ResultRetry, err
			}
		} else {
			listing.PriceBGN = bgn
		}
	}

	listing.DescriptionHash = DescriptionHash(listing.Description)

	err = u.tx.Do(ctx, func(ctx context.Context) error {
		if listing.PhoneHash != "" {
			seller, err := u.sellers.UpsertByPhoneHash(ctx, listing.PhoneHash, listing.SellerURL)
			if err != nil {
				return err
			}
			listing.SellerID = &seller.ID
		}

		now := time.Now().UTC()
		listing.IsNormalized = true
		listing.Draft = false
		listing.NormalizedAt = &now
		if err := u.listings.Save(ctx, listing); err != nil {
			return err
		}

		return u.enqueuer.Enqueue(ctx, consts.TopicDedupe, listing.ID.String(), &dto.ListingTask{
			ListingID: listing.ID,
		})
	})
	if err != nil {
		return dto.ResultRetry, err
	}

	u.logger.Info().
		Str("listing_id", listing.ID.String()).
		Str("brand_id", pair.BrandID).
		Str("model_id", pair.ModelID).
		Float64("price_bgn", listing.PriceBGN).
		Msg("Listing normalized")
	return dto.ResultDone, nil
}

// normalizeYear validates the parsed year or recovers it from the title
func (u *UseCase) normalizeYear(listing *entities.NormalizedListing) {
	maxYear := time.Now().UTC().Year() + 1
	if listing.Year != nil && (*listing.Year < minYear || *listing.Year > maxYear) {
		listing.Year = nil
	}
	if listing.Year == nil {
		if m := yearRegex.FindString(listing.Title); m != "" {
			if y, err := strconv.Atoi(m); err == nil && y >= minYear && y <= maxYear {
				listing.Year = &y
			}
		}
	}
}

// normalizeMileage validates the parsed mileage or recovers it from the text
func (u *UseCase) normalizeMileage(listing *entities.NormalizedListing) {
	if listing.MileageKm != nil && (*listing.MileageKm < 0 || *listing.MileageKm > maxMileage) {
		listing.MileageKm = nil
	}
	if listing.MileageKm == nil {
		if m := mileageRegex.FindStringSubmatch(listing.Title + " " + listing.Description); m != nil {
			if km, err := strconv.Atoi(digitsOnly.ReplaceAllString(m[1], "")); err == nil && km >= 0 && km <= maxMileage {
				listing.MileageKm = &km
			}
		}
	}
}

// DescriptionHash hashes the whitespace-normalized description
func DescriptionHash(description string) string {
	normalized := whitespace.ReplaceAllString(strings.TrimSpace(description), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
