//go:build wireinject
// +build wireinject

package di

import (
	"StockCast/pkg/config"
	"StockCast/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideRedisCache,

		// Repositories
		ProvidePriceStore,
		ProvideLedgerStore,
		ProvidePerformanceStore,
		ProvideArtifactStore,
		ProvideNotifier,
		ProvideSnapshotCache,
		ProvideQueuePublisher,
		ProvideQueueConsumer,

		// Domain services
		ProvideFeatureBuilder,
		ProvideRegimeDetector,
		ProvideModelBank,
		ProvideActualsSource,
		ProvideAdaptiveLearner,
		ProvideHistoryClient,
		ProvideMarketStream,

		// Use cases
		ProvideQuoteCollector,
		ProvidePredictionCycle,
		ProvideLearningCycle,
		ProvideTrainJob,
		ProvideBarIngestor,

		// HTTP
		ProvideResponseCache,
		ProvideHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
