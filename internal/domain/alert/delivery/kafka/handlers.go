// Package kafka adapts queue payloads to the alert use cases.
package kafka

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/TheAVengineer/CarScout-AI/internal/domain/alert/usecase/match"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/alert/usecase/notify"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/dto"
)

// Handlers dispatches alert topics to their use cases
type Handlers struct {
	matchUC  *match.UseCase
	notifyUC *notify.UseCase
	logger   zerolog.Logger
}

// NewHandlers creates the alert handlers
func NewHandlers(matchUC *match.UseCase, notifyUC *notify.UseCase, logger zerolog.Logger) *Handlers {
	return &Handlers{
		matchUC:  matchUC,
		notifyUC: notifyUC,
		logger:   logger,
	}
}

// HandleAlertMatch processes an approved listing against all alerts
func (h *Handlers) HandleAlertMatch(ctx context.Context, payload []byte) (dto.Result, error) {
	var task dto.ListingTask
	if err := json.Unmarshal(payload, &task); err != nil {
		h.logger.Error().Err(err).Msg("Malformed alert match task")
		return dto.ResultDeadLetter, err
	}
	return h.matchUC.Process(ctx, &task)
}

// HandleNotify delivers one due match
func (h *Handlers) HandleNotify(ctx context.Context, payload []byte) (dto.Result, error) {
	var task dto.NotifyTask
	if err := json.Unmarshal(payload, &task); err != nil {
		h.logger.Error().Err(err).Msg("Malformed notify task")
		return dto.ResultDeadLetter, err
	}
	return h.notifyUC.Process(ctx, &task)
}
