package catalog

import (
	"context"

	"go.uber.org/fx"

	"github.com/TheAVengineer/CarScout-AI/internal/domain/catalog/repository/postgres"
)

// Module provides catalog dependencies
var Module = fx.Module(
	"catalog",
	fx.Provide(
		postgres.NewBrandModelRepository,
		postgres.NewFxRepository,
		NewService,
	),
	fx.Invoke(registerLifecycle),
)

func registerLifecycle(lc fx.Lifecycle, svc *Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := svc.Seed(ctx); err != nil {
				return err
			}
			return svc.Load(ctx)
		},
	})
}
