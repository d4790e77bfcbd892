// Package kafka adapts queue payloads to the pipeline stage use cases.
package kafka

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/dto"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/usecase/dedupe"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/usecase/normalize"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/usecase/parse"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/usecase/price"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/usecase/risk"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/usecase/score"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/usecase/scrape"
)

// Handlers dispatches stage topics to their use cases
type Handlers struct {
	scrapeUC    *scrape.UseCase
	parseUC     *parse.UseCase
	normalizeUC *normalize.UseCase
	dedupeUC    *dedupe.UseCase
	priceUC     *price.UseCase
	riskUC      *risk.UseCase
	scoreUC     *score.UseCase
	logger      zerolog.Logger
}

// NewHandlers creates the pipeline stage handlers
func NewHandlers(
	scrapeUC *scrape.UseCase,
	parseUC *parse.UseCase,
	normalizeUC *normalize.UseCase,
	dedupeUC *dedupe.UseCase,
	priceUC *price.UseCase,
	riskUC *risk.UseCase,
	scoreUC *score.UseCase,
	logger zerolog.Logger,
) *Handlers {
	return &Handlers{
		scrapeUC:    scrapeUC,
		parseUC:     parseUC,
		normalizeUC: normalizeUC,
		dedupeUC:    dedupeUC,
		priceUC:     priceUC,
		riskUC:      riskUC,
		scoreUC:     scoreUC,
		logger:      logger,
	}
}

// HandleScrape processes a scheduler tick
func (h *Handlers) HandleScrape(ctx context.Context, payload []byte) (dto.Result, error) {
	var task dto.ScrapeTask
	if err := json.Unmarshal(payload, &task); err != nil {
		h.logger.Error().Err(err).Msg("Malformed scrape task")
		return dto.ResultDeadLetter, err
	}
	return h.scrapeUC.ProcessTick(ctx, &task)
}

// HandleParse processes a parse task
func (h *Handlers) HandleParse(ctx context.Context, payload []byte) (dto.Result, error) {
	var task dto.ListingTask
	if err := json.Unmarshal(payload, &task); err != nil {
		h.logger.Error().Err(err).Msg("Malformed parse task")
		return dto.ResultDeadLetter, err
	}
	return h.parseUC.Process(ctx, &task)
}

// HandleNormalize processes a normalize task
func (h *Handlers) HandleNormalize(ctx context.Context, payload []byte) (dto.Result, error) {
	var task dto.ListingTask
	if err := json.Unmarshal(payload, &task); err != nil {
		h.logger.Error().Err(err).Msg("Malformed normalize task")
		return dto.ResultDeadLetter, err
	}
	return h.normalizeUC.Process(ctx, &task)
}

// HandleDedupe processes a dedupe task
func (h *Handlers) HandleDedupe(ctx context.Context, payload []byte) (dto.Result, error) {
	var task dto.ListingTask
	if err := json.Unmarshal(payload, &task); err != nil {
		h.logger.Error().Err(err).Msg("Malformed dedupe task")
		return dto.ResultDeadLetter, err
	}
	return h.dedupeUC.Process(ctx, &task)
}

// HandlePrice processes a price task
func (h *Handlers) HandlePrice(ctx context.Context, payload []byte) (dto.Result, error) {
	var task dto.ListingTask
	if err := json.Unmarshal(payload, &task); err != nil {
		h.logger.Error().Err(err).Msg("Malformed price task")
		return dto.ResultDeadLetter, err
	}
	return h.priceUC.Process(ctx, &task)
}

// HandleRisk processes a risk task
func (h *Handlers) HandleRisk(ctx context.Context, payload []byte) (dto.Result, error) {
	var task dto.ListingTask
	if err := json.Unmarshal(payload, &task); err != nil {
		h.logger.Error().Err(err).Msg("Malformed risk task")
		return dto.ResultDeadLetter, err
	}
	return h.riskUC.Process(ctx, &task)
}

// HandleScore processes a score task
func (h *Handlers) HandleScore(ctx context.Context, payload []byte) (dto.Result, error) {
	var task dto.ListingTask
	if err := json.Unmarshal(payload, &task); err != nil {
		h.logger.Error().Err(err).Msg("Malformed score task")
		return dto.ResultDeadLetter, err
	}
	return h.scoreUC.Process(ctx, &task)
}
