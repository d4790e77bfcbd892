package alert

import (
	"context"

	"go.uber.org/fx"

	alertkafka "github.com/TheAVengineer/CarScout-AI/internal/domain/alert/delivery/kafka"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/alert/deps"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/alert/dsl"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/alert/repository/postgres"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/alert/usecase/manage"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/alert/usecase/match"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/alert/usecase/notify"
	"github.com/TheAVengineer/CarScout-AI/internal/infrastructure/telegram"
)

// Module provides alert domain dependencies
var Module = fx.Module(
	"alert",
	fx.Provide(
		postgres.NewAlertRepository,
		postgres.NewMatchRepository,
		postgres.NewUserRepository,
		postgres.NewPlanRepository,
		postgres.NewCounterRepository,
		postgres.NewEntitlementsView,
		newMessenger,
		dsl.NewParser,
		match.NewUseCase,
		notify.NewUseCase,
		manage.NewUseCase,
		alertkafka.NewHandlers,
	),
	fx.Invoke(seedPlans),
)

func newMessenger(bot *telegram.Bot) deps.Messenger {
	return bot
}

func seedPlans(lc fx.Lifecycle, plans deps.PlanRepository) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return plans.SeedDefaults(ctx)
		},
	})
}
