package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/TheAVengineer/CarScout-AI/config"
	alertent "github.com/TheAVengineer/CarScout-AI/internal/domain/alert/entities"
	catalogent "github.com/TheAVengineer/CarScout-AI/internal/domain/catalog/entities"
	channelent "github.com/TheAVengineer/CarScout-AI/internal/domain/channel/entities"
	pipelineent "github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/entities"
)

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dsn := cfg.GetDSN()

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(
		&catalogent.BrandModel{},
		&catalogent.FxRate{},
		&pipelineent.Source{},
		&pipelineent.ScrapeTick{},
		&pipelineent.RawListing{},
		&pipelineent.NormalizedListing{},
		&pipelineent.Image{},
		&pipelineent.Seller{},
		&pipelineent.PriceHistory{},
		&pipelineent.CompCache{},
		&pipelineent.RiskEvaluation{},
		&pipelineent.LLMCache{},
		&pipelineent.Score{},
		&pipelineent.DedupeSignature{},
		&pipelineent.DuplicateLog{},
		&pipelineent.Outbox{},
		&pipelineent.RateBucket{},
		&pipelineent.QuarantinedTask{},
		&channelent.ChannelPost{},
		&alertent.User{},
		&alertent.Plan{},
		&alertent.Subscription{},
		&alertent.Alert{},
		&alertent.AlertMatch{},
		&alertent.NotificationCount{},
	); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}

	return db, nil
}
