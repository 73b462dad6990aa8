package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"StockForecaster/internal/middleware"
	"StockForecaster/internal/scheduler"
	"StockForecaster/internal/usecase"
	"StockForecaster/pkg/cache"
	"StockForecaster/pkg/config"
	xhttp "StockForecaster/pkg/http"
	pkgkafka "StockForecaster/pkg/kafka"
	applogger "StockForecaster/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	handler    xhttp.Handler
	httpServer *xhttp.Server
	pipeline   *middleware.RecordPipeline
	recorder   *usecase.ForecastRecorder
	warmup     *scheduler.Warmup
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	cache      cache.Service
}

// New creates a new App instance with all dependencies. consumer and kh may be nil.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	handler xhttp.Handler,
	pipeline *middleware.RecordPipeline,
	recorder *usecase.ForecastRecorder,
	warmup *scheduler.Warmup,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	c cache.Service,
) *App {
	if log == nil {
		log = applogger.Nop()
	}
	return &App{
		cfg:      cfg,
		log:      log,
		handler:  handler,
		pipeline: pipeline,
		recorder: recorder,
		warmup:   warmup,
		consumer: consumer,
		kh:       kh,
		cache:    c,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := a.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.Shutdown(context.Background())
}

// Start launches every background component and the HTTP server without blocking.
func (a *App) Start(ctx context.Context) error {
	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithSlowRequest(a.cfg.Server.SlowRequest),
		xhttp.WithLogger(a.log),
	)

	if a.pipeline != nil {
		a.pipeline.Start(ctx)
	}

	if a.warmup != nil {
		if err := a.warmup.Register(a.cfg.Schedule.WarmupCron); err != nil {
			return err
		}
		a.warmup.Start()
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer error", applogger.Error(err))
			return err
		}
		a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("stock forecaster started",
		applogger.String("env", a.cfg.Environment),
		applogger.String("recorder", a.cfg.Recorder.Backend),
		applogger.Strings("tickers", a.cfg.Market.Tickers))
	return nil
}

// Shutdown stops the server first so no new runs start, then drains the
// recorder and closes infrastructure clients.
func (a *App) Shutdown(ctx context.Context) error {
	a.log.Info("shutting down...")
	var errs []error

	if a.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
			errs = append(errs, err)
		}
		cancel()
	}

	if a.warmup != nil {
		a.warmup.Stop()
	}

	if a.consumer != nil {
		stopCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
		if err := a.consumer.Stop(stopCtx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
			errs = append(errs, err)
		}
		cancel()
	}

	if a.pipeline != nil {
		a.pipeline.Stop()
	}

	// closes the publisher and the store
	if a.recorder != nil {
		a.recorder.Close()
	}

	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.Warn("cache close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}
