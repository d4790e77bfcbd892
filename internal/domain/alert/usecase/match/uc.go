// Package match pairs approved listings with user alerts.
package match

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	alertdeps "github.com/TheAVengineer/CarScout-AI/internal/domain/alert/deps"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/alert/dsl"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/alert/entities"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/catalog"
	pipelinedeps "github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/deps"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/dto"
	pipelineent "github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/entities"
	pkgerrors "github.com/TheAVengineer/CarScout-AI/pkg/errors"
)

// UseCase matches one approved listing against all active alerts
type UseCase struct {
	listings     pipelinedeps.ListingRepository
	alerts       alertdeps.AlertRepository
	matches      alertdeps.MatchRepository
	entitlements alertdeps.EntitlementsView
	logger       zerolog.Logger
}

// NewUseCase creates the alert match use case
func NewUseCase(
	listings pipelinedeps.ListingRepository,
	alerts alertdeps.AlertRepository,
	matches alertdeps.MatchRepository,
	entitlements alertdeps.EntitlementsView,
	logger zerolog.Logger,
) *UseCase {
	return &UseCase{
		listings:     listings,
		alerts:       alerts,
		matches:      matches,
		entitlements: entitlements,
		logger:       logger,
	}
}

// Process creates match rows for every alert the listing satisfies.
// Delivery is scheduled matched_at + plan delay; the unique (alert, listing)
// row makes concurrent matching idempotent.
func (u *UseCase) Process(ctx context.Context, task *dto.ListingTask) (dto.Result, error) {
	listing, err := u.listings.GetByID(ctx, task.ListingID)
	if err != nil {
		if pkgerrors.IsNotFoundError(err) {
			return dto.ResultSkip, err
		}
		return dto.ResultRetry, err
	}
	if listing.IsDuplicate {
		return dto.ResultSkip, nil
	}

	alerts, err := u.alerts.ListActive(ctx)
	if err != nil {
		return dto.ResultRetry, err
	}

	now := time.Now().UTC()
	matched := 0
	for i := range alerts {
		alert := &alerts[i]

		var filters dsl.Filters
		if err := json.Unmarshal([]byte(alert.Filters), &filters); err != nil {
			u.logger.Warn().
				Str("alert_id", alert.ID.String()).
				Msg("Malformed alert filters, skipping")
			continue
		}
		if !Matches(filters, listing) {
			continue
		}

		ent, err := u.entitlements.Get(ctx, alert.UserID)
		if err != nil {
			if pkgerrors.IsNotFoundError(err) {
				continue
			}
			return dto.ResultRetry, err
		}

		row := &entities.AlertMatch{
			AlertID:      alert.ID,
			ListingID:    listing.ID,
			MatchedAt:    now,
			DeliverAfter: now.Add(ent.Delay),
			Status:       entities.MatchPending,
		}
		if err := u.matches.Create(ctx, row); err != nil {
			if pkgerrors.IsConflictError(err) {
				continue // already matched
			}
			return dto.ResultRetry, err
		}
		matched++
	}

	if matched > 0 {
		u.logger.Info().
			Str("listing_id", listing.ID.String()).
			Int("matches", matched).
			Msg("Alert matches created")
	}
	return dto.ResultDone, nil
}

// Matches reports whether the listing satisfies every populated filter
// field. All boundary comparisons are inclusive.
func Matches(f dsl.Filters, l *pipelineent.NormalizedListing) bool {
	if f.BrandID != "" && (l.BrandID == nil || *l.BrandID != f.BrandID) {
		return false
	}
	if f.ModelID != "" && (l.ModelID == nil || *l.ModelID != f.ModelID) {
		return false
	}
	if f.Fuel != "" && l.Fuel != f.Fuel {
		return false
	}
	if f.Gearbox != "" && l.Gearbox != f.Gearbox {
		return false
	}
	if f.Body != "" && l.Body != f.Body {
		return false
	}
	if f.Region != "" && !catalog.RegionMatches(l.Region, f.Region) {
		return false
	}
	if f.MinYear != nil && (l.Year == nil || *l.Year < *f.MinYear) {
		return false
	}
	if f.MaxYear != nil && (l.Year == nil || *l.Year > *f.MaxYear) {
		return false
	}
	if f.MinPrice != nil && (l.PriceBGN <= 0 || l.PriceBGN < float64(*f.MinPrice)) {
		return false
	}
	if f.MaxPrice != nil && (l.PriceBGN <= 0 || l.PriceBGN > float64(*f.MaxPrice)) {
		return false
	}
	if f.MinMileage != nil && (l.MileageKm == nil || *l.MileageKm < *f.MinMileage) {
		return false
	}
	if f.MaxMileage != nil && (l.MileageKm == nil || *l.MileageKm > *f.MaxMileage) {
		return false
	}
	if f.MinPower != nil && (l.PowerHP == nil || *l.PowerHP < *f.MinPower) {
		return false
	}
	if f.MaxPower != nil && (l.PowerHP == nil || *l.PowerHP > *f.MaxPower) {
		return false
	}
	return true
}
