//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"CrowdedCOT/internal/usecase"
	"CrowdedCOT/pkg/config"
	"CrowdedCOT/pkg/logger"
	"CrowdedCOT/pkg/server"
)

var coreSet = wire.NewSet(
	ProvideMetrics,
	ProvideEngine,
	ProvideDataSource,
	ProvidePublisher,
	ProvidePositioningUseCase,
)

// InitializeUseCase wires a one-shot run: source, engine, publisher, metrics.
func InitializeUseCase(ctx context.Context, cfg *config.Config, l *logger.Logger) (*usecase.PositioningUseCase, func(), error) {
	wire.Build(coreSet)
	return nil, nil, nil
}

// InitializeApp wires the HTTP API on top of the core set.
func InitializeApp(ctx context.Context, cfg *config.Config, l *logger.Logger) (*server.App, func(), error) {
	wire.Build(
		coreSet,
		ProvidePositioningHandler,
		ProvideRateLimiter,
		ProvideApp,
	)
	return nil, nil, nil
}
