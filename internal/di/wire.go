//go:build wireinject
// +build wireinject

package di

import (
	"CoinRoute/pkg/config"
	"CoinRoute/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,
		ProvideClock,

		// Infrastructure clients
		ProvideCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Exchange plumbing
		ProvideRateLimiter,
		ProvideClassifier,
		ProvideAdapters,

		// Repositories
		ProvideStorage,
		ProvidePublisher,
		ProvideSignalStream,

		// Use cases
		ProvideRouter,
		ProvideIntake,
		ProvideEstimator,
		ProvideRiskGate,
		ProvideSignalBuffer,
		ProvideSignalHandler,
		ProvideCollector,
		ProvidePersistQueue,
		ProvidePipeline,

		// HTTP surface
		ProvideOrdersHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
