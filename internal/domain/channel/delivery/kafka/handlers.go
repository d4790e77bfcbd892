// Package kafka adapts queue payloads to channel delivery.
package kafka

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/TheAVengineer/CarScout-AI/internal/domain/channel/usecase"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/dto"
)

// Handlers dispatches channel delivery tasks
type Handlers struct {
	uc     *usecase.UseCase
	logger zerolog.Logger
}

// NewHandlers creates the channel delivery handlers
func NewHandlers(uc *usecase.UseCase, logger zerolog.Logger) *Handlers {
	return &Handlers{uc: uc, logger: logger}
}

// HandleChannelDelivery processes one broadcast task
func (h *Handlers) HandleChannelDelivery(ctx context.Context, payload []byte) (dto.Result, error) {
	var task dto.ListingTask
	if err := json.Unmarshal(payload, &task); err != nil {
		h.logger.Error().Err(err).Msg("Malformed channel delivery task")
		return dto.ResultDeadLetter, err
	}
	return h.uc.Process(ctx, &task)
}
