//go:build wireinject
// +build wireinject

package di

import (
	"StockForecaster/pkg/config"
	"StockForecaster/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,
		ProvideCache,

		// Market data and analytics
		ProvideMarketData,
		ProvidePricesUseCase,
		ProvideStationarityTester,
		ProvideDecomposer,
		ProvideModelFitter,
		ProvideProgressHub,

		// Recording backends
		ProvideForecastStore,
		ProvideKafkaProducer,
		ProvideRunPublisher,
		ProvideForecastRecorder,
		ProvideRecordPipeline,
		ProvideKafkaConsumer,
		ProvideKafkaForecastHandler,

		// Use cases and transport
		ProvideForecaster,
		ProvideRateLimiter,
		ProvideHTTPHandler,
		ProvideWarmup,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
