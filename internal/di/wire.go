//go:build wireinject
// +build wireinject

package di

import (
	"PricePortal/internal/usecase"
	"PricePortal/pkg/config"
	"PricePortal/pkg/server"

	"github.com/google/wire"
)

var infraSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideCache,
	ProvidePriceFetcher,
	ProvideArtifactStore,
)

// InitializeApp wires the HTTP API, its stores and the archive consumer.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		infraSet,

		// Stores
		ProvidePostgresPool,
		ProvideUserRepository,
		ProvidePredictionPublisher,
		ProvidePredictionArchive,
		ProvideArchiveConsumer,

		// Use cases
		ProvidePredictorContext,
		ProvideTokenService,
		ProvidePasswordHasher,
		ProvideAuthService,
		ProvidePredictionService,

		// HTTP
		ProvideRateLimiter,
		ProvideHTTPHandler,
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeTrainingPipeline wires the offline training run.
func InitializeTrainingPipeline(cfg *config.Config) (*usecase.TrainingPipeline, func(), error) {
	wire.Build(
		infraSet,
		ProvideTrainer,
		ProvideTrainingPipeline,
	)
	return nil, nil, nil
}
