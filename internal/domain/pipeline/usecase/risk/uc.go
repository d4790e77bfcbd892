// Package risk evaluates listings with keyword rules and cached LLM escalation.
package risk

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/TheAVengineer/CarScout-AI/config"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/consts"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/deps"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/dto"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/entities"
	pkgerrors "github.com/TheAVengineer/CarScout-AI/pkg/errors"
)

// UseCase evaluates one listing's risk
type UseCase struct {
	listings   deps.ListingRepository
	sellers    deps.SellerRepository
	risks      deps.RiskRepository
	llm        deps.RiskLLM
	classifier *Classifier
	enqueuer   deps.Enqueuer
	tx         deps.Tx
	cfg        *config.LLMConfig
	logger     zerolog.Logger
}

// NewUseCase creates the risk use case
func NewUseCase(
	listings deps.ListingRepository,
	sellers deps.SellerRepository,
	risks deps.RiskRepository,
	llm deps.RiskLLM,
	classifier *Classifier,
	enqueuer deps.Enqueuer,
	tx deps.Tx,
	cfg *config.LLMConfig,
	logger zerolog.Logger,
) *UseCase {
	return &UseCase{
		listings:   listings,
		sellers:    sellers,
		risks:      risks,
		llm:        llm,
		classifier: classifier,
		enqueuer:   enqueuer,
		tx:         tx,
		cfg:        cfg,
		logger:     logger,
	}
}

// Process evaluates one listing and forwards it to scoring. The pipeline
// never blocks on the LLM: failures fall back to the rule verdict.
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

	verdict := u.classifier.Classify(listing.Title, listing.Description)

	// a blacklisted seller overrides everything
	if listing.SellerID != nil {
		if seller, err := u.sellers.GetByID(ctx, *listing.SellerID); err == nil && seller.Blacklisted {
			verdict.RiskLevel = entities.RiskRed
			verdict.RuleConfidence = 0.95
			verdict.NeedsLLM = false
			verdict.Flags["seller_blacklisted"] = []string{listing.PhoneHash}
		}
	}

	ev := &entities.RiskEvaluation{
		ListingID:      listing.ID,
		RiskLevel:      verdict.RiskLevel,
		RuleConfidence: verdict.RuleConfidence,
	}
	if flags, err := json.Marshal(map[string]any{
		"categories": verdict.Flags,
		"positive":   verdict.PositiveFlags,
		"hard":       verdict.HardFlag,
		"version":    u.classifier.Version(),
	}); err == nil {
		ev.Flags = string(flags)
	}

	if verdict.NeedsLLM {
		u.escalate(ctx, listing, verdict, ev)
	}

	err = u.tx.Do(ctx, func(ctx context.Context) error {
		if err := u.risks.SaveEvaluation(ctx, ev); err != nil {
			return err
		}
		return u.enqueuer.Enqueue(ctx, consts.TopicScore, listing.ID.String(), &dto.ListingTask{
			ListingID: listing.ID,
		})
	})
	if err != nil {
		return dto.ResultRetry, err
	}

	u.logger.Info().
		Str("listing_id", listing.ID.String()).
		Str("risk_level", ev.RiskLevel).
		Float64("rule_confidence", ev.RuleConfidence).
		Bool("llm_unavailable", ev.LLMUnavailable).
		Msg("Risk evaluated")
	return dto.ResultDone, nil
}

// escalate consults the cached LLM; its verdict wins only when it is more
// confident than the rules
func (u *UseCase) escalate(ctx context.Context, listing *entities.NormalizedListing, verdict *dto.RuleVerdict, ev *entities.RiskEvaluation) {
	resp, err := u.risks.GetCachedLLM(ctx, listing.DescriptionHash, u.cfg.PromptVersion)
	if err != nil {
		ev.LLMUnavailable = true
		return
	}

	if resp == nil {
		var features []string
		if listing.Features != "" {
			_ = json.Unmarshal([]byte(listing.Features), &features)
		}

		resp, err = u.llm.Evaluate(ctx, &dto.RiskRequest{
			PromptVersion: u.cfg.PromptVersion,
			Title:         listing.Title,
			Description:   listing.Description,
			Features:      features,
		})
		if err != nil {
			u.logger.Warn().Err(err).
				Str("listing_id", listing.ID.String()).
				Msg("LLM escalation unavailable, keeping rule verdict")
			ev.LLMUnavailable = true
			return
		}

		if err := u.risks.CacheLLM(ctx, listing.DescriptionHash, u.cfg.PromptVersion, resp); err != nil {
			u.logger.Warn().Err(err).Msg("Failed to cache LLM response")
		}
	}

	ev.LLMSummary = resp.Summary
	ev.LLMConfidence = resp.Confidence
	ev.BuyerNotes = resp.BuyerNotes
	if reasons, err := json.Marshal(resp.Reasons); err == nil {
		ev.LLMReasons = string(reasons)
	}

	if resp.Confidence > verdict.RuleConfidence {
		ev.RiskLevel = resp.RiskLevel
	}
}
