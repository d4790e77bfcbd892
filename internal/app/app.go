package app

import (
	"context"

	"go.uber.org/fx"

	"github.com/TheAVengineer/CarScout-AI/config"
	"github.com/TheAVengineer/CarScout-AI/internal/domain"
	"github.com/TheAVengineer/CarScout-AI/internal/infrastructure/database"
	"github.com/TheAVengineer/CarScout-AI/internal/infrastructure/kafka"
	"github.com/TheAVengineer/CarScout-AI/internal/infrastructure/logger"
	"github.com/TheAVengineer/CarScout-AI/internal/infrastructure/scheduler"
	"github.com/TheAVengineer/CarScout-AI/internal/infrastructure/telegram"
)

// CreateApp creates the fx application with all dependencies
func CreateApp() fx.Option {
	return fx.Options(
		fx.Provide(config.Out),
		fx.Provide(logger.NewLogger),
		fx.Provide(database.NewPostgresDB),
		fx.Provide(telegram.NewBot),
		domain.Module,
		kafka.Module,
		fx.Provide(scheduler.New),
		fx.Invoke(registerSchedulerLifecycle),
	)
}

func registerSchedulerLifecycle(lc fx.Lifecycle, s *scheduler.Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			return s.Start()
		},
		OnStop: func(_ context.Context) error {
			return s.Stop()
		},
	})
}
