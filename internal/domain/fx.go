package domain

import (
	"go.uber.org/fx"

	"github.com/TheAVengineer/CarScout-AI/internal/domain/alert"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/catalog"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/channel"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline"
)

// Module aggregates all domain modules
var Module = fx.Module(
	"domain",
	catalog.Module,
	pipeline.Module,
	channel.Module,
	alert.Module,
)
