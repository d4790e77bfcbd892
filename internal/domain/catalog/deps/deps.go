package deps

import (
	"context"

	"github.com/TheAVengineer/CarScout-AI/internal/domain/catalog/entities"
)

// BrandModelRepository reads and seeds the alias table
type BrandModelRepository interface {
	ListActive(ctx context.Context) ([]entities.BrandModel, error)
	SeedIfEmpty(ctx context.Context, rows []entities.BrandModel) error
}

// FxRepository reads daily conversion rates
type FxRepository interface {
	Rate(ctx context.Context, currency, day string) (float64, error)
	Upsert(ctx context.Context, currency, day string, rate float64) error
}
