// Package score computes the final 1-10 verdict and the approval gate.
package score

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/TheAVengineer/CarScout-AI/config"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/consts"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/deps"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/dto"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/entities"
	pkgerrors "github.com/TheAVengineer/CarScout-AI/pkg/errors"
)

// Components is the additive score breakdown
type Components struct {
	PriceScore  float64 `json:"price_score"`
	RiskPenalty float64 `json:"risk_penalty"`
	Freshness   float64 `json:"freshness"`
	Liquidity   float64 `json:"liquidity"`
	Score       float64 `json:"score"`
}

// Inputs collects everything the formula needs
type Inputs struct {
	DiscountPct  float64
	Confidence   float64
	SampleSize   int
	RiskLevel    string
	HardAccident bool
	Age          time.Duration
}

// UseCase scores one listing and decides approval
type UseCase struct {
	listings deps.ListingRepository
	raws     deps.RawListingRepository
	comps    deps.CompRepository
	risks    deps.RiskRepository
	scores   deps.ScoreRepository
	enqueuer deps.Enqueuer
	tx       deps.Tx
	cfg      *config.ScoringConfig
	logger   zerolog.Logger
}

// NewUseCase creates the score use case
func NewUseCase(
	listings deps.ListingRepository,
	raws deps.RawListingRepository,
	comps deps.CompRepository,
	risks deps.RiskRepository,
	scores deps.ScoreRepository,
	enqueuer deps.Enqueuer,
	tx deps.Tx,
	cfg *config.ScoringConfig,
	logger zerolog.Logger,
) *UseCase {
	return &UseCase{
		listings: listings,
		raws:     raws,
		comps:    comps,
		risks:    risks,
		scores:   scores,
		enqueuer: enqueuer,
		tx:       tx,
		cfg:      cfg,
		logger:   logger,
	}
}

// Process scores one listing; approved listings fan out to channel delivery
// and alert matching
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

	cc, err := u.comps.GetCompCache(ctx, listing.ID)
	if err != nil {
		if pkgerrors.IsNotFoundError(err) {
			return dto.ResultSkip, err
		}
		return dto.ResultRetry, err
	}
	ev, err := u.risks.GetEvaluation(ctx, listing.ID)
	if err != nil {
		if pkgerrors.IsNotFoundError(err) {
			return dto.ResultSkip, err
		}
		return dto.ResultRetry, err
	}
	raw, err := u.raws.GetByID(ctx, listing.RawID)
	if err != nil {
		return dto.ResultRetry, err
	}

	inputs := Inputs{
		DiscountPct:  cc.DiscountPct,
		Confidence:   cc.Confidence,
		SampleSize:   cc.SampleSize,
		RiskLevel:    ev.RiskLevel,
		HardAccident: hasHardFlag(ev.Flags),
		Age:          time.Since(raw.FirstSeen),
	}
	components := Compute(inputs)

	approved := components.Score >= u.cfg.ScoreThreshold &&
		cc.SampleSize >= u.cfg.SampleThreshold &&
		cc.Confidence >= u.cfg.ConfidenceThreshold &&
		ev.RiskLevel != entities.RiskRed

	state := entities.StateRejected
	if approved {
		state = entities.StateApproved
	}

	row := &entities.Score{
		ListingID:   listing.ID,
		Score:       components.Score,
		PriceScore:  components.PriceScore,
		RiskPenalty: components.RiskPenalty,
		Freshness:   components.Freshness,
		Liquidity:   components.Liquidity,
		State:       state,
	}
	row.Reasons = reasons(components, inputs, u.cfg, approved)

	err = u.tx.Do(ctx, func(ctx context.Context) error {
		if err := u.scores.Save(ctx, row); err != nil {
			return err
		}
		if !approved {
			return nil
		}
		if err := u.enqueuer.Enqueue(ctx, consts.TopicChannel, listing.ID.String(), &dto.ListingTask{
			ListingID: listing.ID,
		}); err != nil {
			return err
		}
		return u.enqueuer.Enqueue(ctx, consts.TopicAlertMatch, listing.ID.String(), &dto.ListingTask{
			ListingID: listing.ID,
		})
	})
	if err != nil {
		return dto.ResultRetry, err
	}

	u.logger.Info().
		Str("listing_id", listing.ID.String()).
		Float64("score", components.Score).
		Str("state", state).
		Msg("Listing scored")
	return dto.ResultDone, nil
}

// Compute applies the additive formula and the [1,10] clamp
func Compute(in Inputs) Components {
	c := Components{}

	// price score: 0 at no discount, 5 at >=25%, linear between, scaled by
	// estimate confidence
	switch {
	case in.DiscountPct <= 0:
		c.PriceScore = 0
	case in.DiscountPct >= 0.25:
		c.PriceScore = 5
	default:
		c.PriceScore = in.DiscountPct / 0.25 * 5
	}
	c.PriceScore *= clamp01(in.Confidence)

	switch in.RiskLevel {
	case entities.RiskYellow:
		c.RiskPenalty = -2
	case entities.RiskRed:
		c.RiskPenalty = -4
	}
	if in.HardAccident {
		c.RiskPenalty--
	}

	// freshness: 0.5 within an hour, decays to 0 at 24h
	switch {
	case in.Age <= time.Hour:
		c.Freshness = 0.5
	case in.Age >= 24*time.Hour:
		c.Freshness = 0
	default:
		c.Freshness = 0.5 * (1 - (in.Age.Hours()-1)/23)
	}

	c.Liquidity = math.Min(1, float64(in.SampleSize)/60)

	c.Score = clamp(1+c.PriceScore+c.RiskPenalty+c.Freshness+c.Liquidity, 1, 10)
	return c
}

// reasons persists the contributing components and decisive thresholds
func reasons(c Components, in Inputs, cfg *config.ScoringConfig, approved bool) string {
	data, err := json.Marshal(map[string]any{
		"components": c,
		"inputs": map[string]any{
			"discount_pct": in.DiscountPct,
			"confidence":   in.Confidence,
			"sample_size":  in.SampleSize,
			"risk_level":   in.RiskLevel,
			"age_hours":    in.Age.Hours(),
		},
		"gate": map[string]any{
			"score_threshold":      cfg.ScoreThreshold,
			"sample_threshold":     cfg.SampleThreshold,
			"confidence_threshold": cfg.ConfidenceThreshold,
			"approved":             approved,
		},
	})
	if err != nil {
		return ""
	}
	return string(data)
}

// hasHardFlag checks the persisted flag JSON for a hard accident/salvage hit
func hasHardFlag(flagsJSON string) bool {
	if flagsJSON == "" {
		return false
	}
	var flags struct {
		Hard bool `json:"hard"`
	}
	if err := json.Unmarshal([]byte(flagsJSON), &flags); err != nil {
		return false
	}
	return flags.Hard
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}
