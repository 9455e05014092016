//go:build wireinject
// +build wireinject

package di

import (
	"PairScout/pkg/config"
	"PairScout/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideResultStore,
		ProvideResultSink,
		ProvideResultReader,
		ProvideHistoryProvider,
		ProvideSignalPublisher,

		// Discovery services
		ProvideSimIndex,
		ProvideSignalConfig,
		ProvideCointEngine,
		ProvideBacktestEngine,
		ProvideDiscovery,
		ProvideDiscoveryJob,
		ProvideJobQueue,

		// Live path
		ProvideMonitor,
		ProvideQuotePipeline,
		ProvideFeedStream,
		ProvideQuoteCollector,
		ProvideQuotesHandler,

		// HTTP
		ProvideResultCache,
		ProvidePairsHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
