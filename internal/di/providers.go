package di

import (
	"context"
	"fmt"
	"time"

	"StockForecaster/internal/domain/repository"
	domsvc "StockForecaster/internal/domain/service"
	"StockForecaster/internal/handler/api"
	mid "StockForecaster/internal/middleware"
	internalrepo "StockForecaster/internal/repository"
	"StockForecaster/internal/scheduler"
	"StockForecaster/internal/service/ratelimit"
	"StockForecaster/internal/service/yahoo"
	"StockForecaster/internal/services/analytics"
	"StockForecaster/internal/usecase"
	"StockForecaster/pkg/cache"
	pkgch "StockForecaster/pkg/clickhouse"
	"StockForecaster/pkg/config"
	xhttp "StockForecaster/pkg/http"
	pkgkafka "StockForecaster/pkg/kafka"
	applogger "StockForecaster/pkg/logger"
	"StockForecaster/pkg/metrics"
	"StockForecaster/pkg/server"
	pkgsqlite "StockForecaster/pkg/sqlite"
	"StockForecaster/pkg/util"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New(nil)
}

// ProvideCache creates the price cache: Redis behind an in-memory L1 when
// Redis is enabled, in-memory LRU otherwise.
func ProvideCache(cfg *config.Config, l *applogger.Logger) (cache.Service, error) {
	if !cfg.Cache.Redis.Enabled {
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize)), nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Cache.Redis.Host, cfg.Cache.Redis.Port),
		cache.WithRedisAuth(cfg.Cache.Redis.Password, cfg.Cache.Redis.DB),
		cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	l.Info("price cache on redis",
		applogger.String("host", cfg.Cache.Redis.Host),
		applogger.Int("port", cfg.Cache.Redis.Port))
	return cache.NewLayeredCache(rc, cache.WithLayeredMemory(cfg.Cache.MemoryMaxSize, 5*time.Minute)), nil
}

// ProvideMarketData creates the Yahoo chart client.
func ProvideMarketData(cfg *config.Config) repository.MarketData {
	return yahoo.New(cfg.Market.BaseURL, cfg.Market.UserAgent,
		xhttp.WithTimeout(cfg.Market.Timeout),
		xhttp.WithProxy(cfg.Market.Proxy),
	)
}

// ProvidePricesUseCase creates the cached price loader.
func ProvidePricesUseCase(
	market repository.MarketData,
	c cache.Service,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.PricesUseCase {
	return usecase.NewPricesUseCase(market, c, cfg.Market.CacheTTL, m, l)
}

func ProvideStationarityTester(cfg *config.Config) domsvc.StationarityTester {
	return analytics.NewADFTester(cfg.Analysis.SignificanceLevel)
}

func ProvideDecomposer() domsvc.Decomposer {
	return analytics.NewClassicalDecomposer()
}

func ProvideModelFitter(cfg *config.Config) domsvc.ModelFitter {
	a := cfg.Analysis.Auto
	return analytics.NewSARIMAFitter(analytics.AutoOptions{
		SeasonalPeriod: a.SeasonalPeriod,
		MaxP:           a.MaxP,
		MaxD:           a.MaxD,
		MaxQ:           a.MaxQ,
		Criterion:      a.Criterion,
	})
}

func ProvideProgressHub() *usecase.ProgressHub {
	return usecase.NewProgressHub(0)
}

// ProvideForecastStore opens the store this process writes to, or returns nil
// when runs are not persisted locally.
func ProvideForecastStore(cfg *config.Config, l *applogger.Logger) (repository.ForecastStore, error) {
	var store repository.ForecastStore
	switch cfg.StoreBackend() {
	case config.BackendSQLite:
		client, err := pkgsqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		store = internalrepo.NewSQLiteForecastStore(client)
	case config.BackendClickHouse:
		client, err := pkgch.NewClient(
			pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
			pkgch.WithDatabase(cfg.ClickHouse.Database),
			pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
			pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
			pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
			pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
			pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		)
		if err != nil {
			return nil, fmt.Errorf("clickhouse client: %w", err)
		}
		chStore := internalrepo.NewCHForecastStore(client)
		chStore.SetLogger(l)
		store = chStore
	default:
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("forecast store schema: %w", err)
	}
	l.Info("forecast store ready", applogger.String("backend", cfg.StoreBackend()))
	return store, nil
}

// ProvideKafkaProducer creates a Kafka producer when runs are published.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if cfg.Recorder.Backend != config.BackendKafka {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideRunPublisher creates the Kafka run publisher.
func ProvideRunPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.RunPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

func ProvideForecastRecorder(
	cfg *config.Config,
	store repository.ForecastStore,
	pub repository.RunPublisher,
	m repository.Metrics,
) *usecase.ForecastRecorder {
	return usecase.NewForecastRecorder(cfg.Recorder.Backend, store, pub, m)
}

// ProvideRecordPipeline buffers runs the backend could not take and retries them.
func ProvideRecordPipeline(rec *usecase.ForecastRecorder, cfg *config.Config, l *applogger.Logger) *mid.RecordPipeline {
	return mid.NewRecordPipeline(rec,
		mid.WithBufferSize(cfg.Recorder.BufferSize),
		mid.WithLogger(l),
	)
}

func ProvideForecaster(
	prices *usecase.PricesUseCase,
	tester domsvc.StationarityTester,
	decomposer domsvc.Decomposer,
	fitter domsvc.ModelFitter,
	hub *usecase.ProgressHub,
	pipeline *mid.RecordPipeline,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.Forecaster {
	return usecase.NewForecaster(prices, tester, decomposer, fitter, hub, pipeline, m, l,
		usecase.ForecastOptions{
			Confidence: cfg.Analysis.Confidence,
			RunTimeout: cfg.Analysis.RunTimeout,
		})
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML, or nil when disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithHook(pkgkafka.NewHookChain(pkgkafka.TraceHook{Log: l}))
	return consumer, nil
}

// ProvideKafkaForecastHandler persists consumed runs into the sink store.
func ProvideKafkaForecastHandler(cfg *config.Config, store repository.ForecastStore, m repository.Metrics) pkgkafka.MessageHandler {
	if !cfg.Kafka.Consumer.Enabled || store == nil {
		return nil
	}
	return usecase.NewKafkaForecastHandler(cfg.Kafka.Topic, cfg.Recorder.Sink, store, m)
}

func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSec)
}

func provideDefaults(cfg *config.Config) api.Defaults {
	return api.Defaults{
		Tickers:         cfg.Market.Tickers,
		DefaultStart:    cfg.Market.DefaultStart,
		DecomposePeriod: cfg.Analysis.DecomposePeriod,
		DecomposeModel:  cfg.Analysis.DecomposeModel,
		SeasonalPeriod:  cfg.Analysis.SeasonalPeriod,
	}
}

// ProvideHTTPHandler mounts the dashboard page, the JSON API and the progress websocket.
func ProvideHTTPHandler(
	cfg *config.Config,
	l *applogger.Logger,
	fc *usecase.Forecaster,
	rec *usecase.ForecastRecorder,
	limiter *ratelimit.Limiter,
) (xhttp.Handler, error) {
	renderer, err := api.NewTemplateRenderer()
	if err != nil {
		return nil, fmt.Errorf("dashboard templates: %w", err)
	}
	d := cfg.Dashboard
	page := api.Page{
		Title:      d.Title,
		Subtitle:   d.Subtitle,
		HeroImage:  d.HeroImage,
		SocialText: d.SocialText,
		SocialURL:  d.SocialURL,
		SocialIcon: d.SocialIcon,
	}
	defaults := provideDefaults(cfg)
	return api.NewRouter(
		api.NewDashboardPageHandler(renderer, page, defaults),
		api.NewForecastEchoHandler(l, fc, rec, rec, limiter, defaults),
		api.NewProgressWSHandler(l, fc.Hub()),
	), nil
}

// ProvideWarmup creates the cron job that preloads the price cache.
func ProvideWarmup(prices *usecase.PricesUseCase, c cache.Service, cfg *config.Config, l *applogger.Logger) *scheduler.Warmup {
	start, _ := util.ParseTime(cfg.Market.DefaultStart)
	return scheduler.NewWarmup(prices, c, cfg.Market.Tickers, start, l)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler xhttp.Handler,
	pipeline *mid.RecordPipeline,
	rec *usecase.ForecastRecorder,
	warmup *scheduler.Warmup,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	c cache.Service,
) *server.App {
	return server.New(cfg, l, handler, pipeline, rec, warmup, consumer, kh, c)
}
