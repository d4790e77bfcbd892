package pipeline

import (
	"context"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/TheAVengineer/CarScout-AI/config"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/adapters"
	pipelinekafka "github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/delivery/kafka"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/deps"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/repository/postgres"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/usecase/dedupe"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/usecase/normalize"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/usecase/parse"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/usecase/price"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/usecase/risk"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/usecase/score"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/usecase/scrape"
	"github.com/TheAVengineer/CarScout-AI/internal/infrastructure/blob"
	"github.com/TheAVengineer/CarScout-AI/internal/infrastructure/database"
	"github.com/TheAVengineer/CarScout-AI/internal/infrastructure/llm"
)

// Module provides pipeline domain dependencies
var Module = fx.Module(
	"pipeline",
	fx.Provide(
		postgres.NewSourceRepository,
		postgres.NewRawListingRepository,
		postgres.NewListingRepository,
		postgres.NewSellerRepository,
		postgres.NewImageRepository,
		postgres.NewDedupeRepository,
		postgres.NewCompRepository,
		postgres.NewRiskRepository,
		postgres.NewScoreRepository,
		postgres.NewQuarantineRepository,
		postgres.NewOutboxEnqueuer,
		newTxManager,
		newBlobStore,
		newAdapterRegistry,
		newExtractorRegistry,
		newRiskLLM,
		risk.NewClassifier,
		scrape.NewUseCase,
		parse.NewUseCase,
		normalize.NewUseCase,
		dedupe.NewUseCase,
		price.NewUseCase,
		risk.NewUseCase,
		score.NewUseCase,
		pipelinekafka.NewHandlers,
	),
)

func newTxManager(db *gorm.DB) deps.Tx {
	return database.NewTxManager(db)
}

func newBlobStore(cfg *config.BlobConfig) (deps.BlobStore, error) {
	return blob.NewBlobStore(context.Background(), cfg)
}

func newAdapterRegistry() deps.AdapterRegistry {
	return adapters.NewRegistry()
}

func newExtractorRegistry() deps.ExtractorRegistry {
	return parse.NewRegistry()
}

func newRiskLLM(cfg *config.LLMConfig, logger zerolog.Logger) deps.RiskLLM {
	return llm.NewClient(cfg, logger)
}
