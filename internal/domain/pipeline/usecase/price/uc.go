// Package price estimates fair market value from comparables.
package price

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/TheAVengineer/CarScout-AI/internal/domain/catalog"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/consts"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/deps"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/dto"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/entities"
	pkgerrors "github.com/TheAVengineer/CarScout-AI/pkg/errors"
)

const (
	modelVersion = "comps-v1"

	targetSample = 30
	minSample    = 5
	compLimit    = 200
	compWindow   = 180 // days
)

// UseCase computes the comparables-based estimate for one listing
type UseCase struct {
	listings deps.ListingRepository
	comps    deps.CompRepository
	enqueuer deps.Enqueuer
	tx       deps.Tx
	logger   zerolog.Logger
}

// NewUseCase creates the price use case
func NewUseCase(
	listings deps.ListingRepository,
	comps deps.CompRepository,
	enqueuer deps.Enqueuer,
	tx deps.Tx,
	logger zerolog.Logger,
) *UseCase {
	return &UseCase{
		listings: listings,
		comps:    comps,
		enqueuer: enqueuer,
		tx:       tx,
		logger:   logger,
	}
}

// Process estimates one listing and forwards it to risk
func (u *UseCase) Process(ctx context.Context, task *dto.ListingTask) (dto.Result, error) {
	listing, err := u.listings.GetByID(ctx, task.ListingID)
	if err != nil {
		if pkgerrors.IsNotFoundError(err) {
			return dto.ResultSkip, err
		}
		return dto.ResultRetry, err
	}
	if listing.IsDuplicate || listing.BrandID == nil || listing.ModelID == nil {
		return dto.ResultSkip, nil
	}

	prices, step, err := u.selectComparables(ctx, listing)
	if err != nil {
		return dto.ResultRetry, err
	}

	stats := Summarize(prices)
	stats.RelaxationStep = step

	cc := buildCompCache(listing, stats)

	err = u.tx.Do(ctx, func(ctx context.Context) error {
		if err := u.comps.SaveCompCache(ctx, cc); err != nil {
			return err
		}

		if listing.PriceBGN > 0 {
			last, err := u.comps.LastPrice(ctx, listing.ID)
			if err != nil {
				return err
			}
			if last == nil || *last != listing.PriceBGN {
				if err := u.comps.AppendPriceHistory(ctx, listing.ID, listing.PriceBGN, time.Now().UTC()); err != nil {
					return err
				}
			}
		}

		return u.enqueuer.Enqueue(ctx, consts.TopicRisk, listing.ID.String(), &dto.ListingTask{
			ListingID: listing.ID,
		})
	})
	if err != nil {
		return dto.ResultRetry, err
	}

	u.logger.Info().
		Str("listing_id", listing.ID.String()).
		Int("sample", stats.SampleSize).
		Int("relaxation_step", step).
		Float64("p50", stats.P50).
		Float64("discount_pct", cc.DiscountPct).
		Float64("confidence", cc.Confidence).
		Msg("Price estimated")
	return dto.ResultDone, nil
}

// selectComparables walks the progressive relaxation ladder and stops at the
// first step that reaches the target sample
func (u *UseCase) selectComparables(ctx context.Context, listing *entities.NormalizedListing) ([]float64, int, error) {
	year := 0
	if listing.Year != nil {
		year = *listing.Year
	}
	mileage := 0
	if listing.MileageKm != nil {
		mileage = *listing.MileageKm
	}

	base := deps.CompFilter{
		BrandID:   *listing.BrandID,
		ModelID:   *listing.ModelID,
		Year:      year,
		YearSpan:  2,
		MileageKm: mileage,
		MileagePct: 0.30,
		Fuel:      listing.Fuel,
		Gearbox:   listing.Gearbox,
		SinceDays: compWindow,
		ExcludeID: listing.ID,
		Limit:     compLimit,
	}

	steps := []func(f deps.CompFilter) deps.CompFilter{
		func(f deps.CompFilter) deps.CompFilter { return f },
		func(f deps.CompFilter) deps.CompFilter { f.MileagePct = 0.50; return f },
		func(f deps.CompFilter) deps.CompFilter { f.MileagePct = 0.50; f.Gearbox = ""; return f },
		func(f deps.CompFilter) deps.CompFilter { f.MileagePct = 0.50; f.Gearbox = ""; f.Fuel = ""; return f },
		func(f deps.CompFilter) deps.CompFilter {
			f.MileagePct = 0.50
			f.Gearbox = ""
			f.Fuel = ""
			f.YearSpan = 4
			return f
		},
	}

	var best []float64
	for i, relax := range steps {
		prices, err := u.comps.Comparables(ctx, relax(base))
		if err != nil {
			return nil, 0, err
		}
		if len(prices) >= targetSample {
			return prices, i, nil
		}
		if len(prices) > len(best) {
			best = prices
		}
	}
	return best, len(steps) - 1, nil
}

// buildCompCache derives the persisted estimate from the summary
func buildCompCache(listing *entities.NormalizedListing, stats dto.CompStats) *entities.CompCache {
	cc := &entities.CompCache{
		ListingID:    listing.ID,
		P10:          stats.P10,
		P25:          stats.P25,
		P50:          stats.P50,
		P75:          stats.P75,
		P90:          stats.P90,
		Mean:         stats.Mean,
		StdDev:       stats.StdDev,
		SampleSize:   stats.SampleSize,
		ModelVersion: modelVersion,
	}

	if stats.SampleSize < minSample {
		cc.Confidence = 0
		cc.PredictedPrice = nil
		return cc
	}

	predicted := catalog.Round2(stats.P50)
	cc.PredictedPrice = &predicted
	if predicted > 0 && listing.PriceBGN > 0 {
		cc.DiscountPct = (predicted - listing.PriceBGN) / predicted
	}
	cc.Confidence = Confidence(stats)
	return cc
}

// Confidence is min(1, n/30) x max(0, 1-cv), clamped to [0,1]
func Confidence(stats dto.CompStats) float64 {
	if stats.SampleSize == 0 || stats.Mean <= 0 {
		return 0
	}
	sampleTerm := math.Min(1, float64(stats.SampleSize)/float64(targetSample))
	cv := stats.StdDev / stats.Mean
	spreadTerm := math.Max(0, 1-cv)
	c := sampleTerm * spreadTerm
	return math.Max(0, math.Min(1, c))
}

// Summarize computes the empirical percentiles and moments of a price set
func Summarize(prices []float64) dto.CompStats {
	stats := dto.CompStats{SampleSize: len(prices)}
	if len(prices) == 0 {
		return stats
	}

	sorted := append([]float64(nil), prices...)
	sort.Float64s(sorted)

	stats.P10 = Percentile(sorted, 0.10)
	stats.P25 = Percentile(sorted, 0.25)
	stats.P50 = Percentile(sorted, 0.50)
	stats.P75 = Percentile(sorted, 0.75)
	stats.P90 = Percentile(sorted, 0.90)

	var sum float64
	for _, p := range sorted {
		sum += p
	}
	stats.Mean = sum / float64(len(sorted))

	var sq float64
	for _, p := range sorted {
		d := p - stats.Mean
		sq += d * d
	}
	if len(sorted) > 1 {
		stats.StdDev = math.Sqrt(sq / float64(len(sorted)-1))
	}
	return stats
}

// Percentile interpolates linearly over a sorted sample
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
