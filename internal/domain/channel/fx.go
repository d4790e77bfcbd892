package channel

import (
	"go.uber.org/fx"

	channelkafka "github.com/TheAVengineer/CarScout-AI/internal/domain/channel/delivery/kafka"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/channel/deps"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/channel/repository/postgres"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/channel/usecase"
	"github.com/TheAVengineer/CarScout-AI/internal/infrastructure/telegram"
)

// Module provides channel delivery dependencies
var Module = fx.Module(
	"channel",
	fx.Provide(
		postgres.NewChannelPostRepository,
		postgres.NewRateLimiter,
		newMessenger,
		usecase.NewUseCase,
		channelkafka.NewHandlers,
	),
)

func newMessenger(bot *telegram.Bot) deps.Messenger {
	return bot
}
