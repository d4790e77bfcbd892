package main

import (
	"context"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/TheAVengineer/CarScout-AI/config"
	"github.com/TheAVengineer/CarScout-AI/internal/app"
)

func main() {
	fx.New(
		app.CreateApp(),
		fx.Invoke(run),
	).Run()
}

func run(
	lc fx.Lifecycle,
	cfg *config.Config,
	db *gorm.DB,
	logger zerolog.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info().
				Str("service", cfg.Service.Name).
				Msg("Starting CarScout worker")

			logger.Info().Msg("Database connected successfully")
			logger.Info().Msg("Pipeline workers initialized")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("Shutting down CarScout worker...")

			sqlDB, _ := db.DB()
			if sqlDB != nil {
				sqlDB.Close()
			}

			logger.Info().Msg("CarScout worker stopped")
			return nil
		},
	})
}
