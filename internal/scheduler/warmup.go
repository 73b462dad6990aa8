package scheduler

import (
	"context"
	"fmt"
	"time"

	"StockForecaster/internal/domain/models"
	"StockForecaster/pkg/cache"
	"StockForecaster/pkg/logger"
	"StockForecaster/pkg/util"

	"github.com/robfig/cron/v3"
)

const (
	warmupLockPrefix = "lock:warmup"
	warmupLockTTL    = 5 * time.Minute
	warmupTimeout    = 2 * time.Minute
)

// PriceLoader loads and caches a ticker's price table.
type PriceLoader interface {
	Load(ctx context.Context, ticker string, start, end time.Time) (*models.PriceTable, error)
}

// Warmup preloads the price cache for every configured ticker on a cron schedule.
// The lock keeps several instances sharing a Redis cache from fetching the same ticker.
type Warmup struct {
	cron    *cron.Cron
	loader  PriceLoader
	locker  cache.Service
	tickers []string
	start   time.Time
	log     *logger.Logger
	today   func() time.Time
}

func NewWarmup(loader PriceLoader, locker cache.Service, tickers []string, start time.Time, log *logger.Logger) *Warmup {
	if log == nil {
		log = logger.Nop()
	}
	return &Warmup{
		cron:    cron.New(cron.WithSeconds()),
		loader:  loader,
		locker:  locker,
		tickers: tickers,
		start:   util.Day(start),
		log:     log,
		today:   util.Today,
	}
}

// Register schedules the warmup. An empty spec leaves the scheduler idle.
func (w *Warmup) Register(spec string) error {
	if spec == "" {
		return nil
	}
	if _, err := w.cron.AddFunc(spec, func() { w.RunOnce(context.Background()) }); err != nil {
		return fmt.Errorf("register warmup %q: %w", spec, err)
	}
	return nil
}

func (w *Warmup) Start() {
	w.cron.Start()
	w.log.Info("warmup scheduler started", logger.Int("jobs", len(w.cron.Entries())))
}

// Stop waits for a running warmup to finish.
func (w *Warmup) Stop() {
	<-w.cron.Stop().Done()
	w.log.Info("warmup scheduler stopped")
}

// RunOnce loads every ticker over [start, today) and returns how many succeeded.
func (w *Warmup) RunOnce(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, warmupTimeout)
	defer cancel()

	end := w.today()
	ok := 0
	for _, ticker := range w.tickers {
		if ctx.Err() != nil {
			break
		}
		if !w.lock(ctx, ticker) {
			w.log.Debug("warmup skipped, locked elsewhere", logger.String("ticker", ticker))
			continue
		}
		tbl, err := w.loader.Load(ctx, ticker, w.start, end)
		w.unlock(ticker)
		if err != nil {
			w.log.Warn("warmup failed", logger.String("ticker", ticker), logger.Error(err))
			continue
		}
		ok++
		w.log.Debug("warmup loaded", logger.String("ticker", ticker), logger.Int("rows", tbl.Len()))
	}
	w.log.Info("warmup finished", logger.Int("loaded", ok), logger.Int("tickers", len(w.tickers)))
	return ok
}

func (w *Warmup) lock(ctx context.Context, ticker string) bool {
	if w.locker == nil {
		return true
	}
	got, err := w.locker.TryLock(ctx, cache.GenerateKeyWithParams(warmupLockPrefix, ticker), warmupLockTTL)
	if err != nil {
		// a broken lock must not stop the warmup
		w.log.Warn("warmup lock failed", logger.String("ticker", ticker), logger.Error(err))
		return true
	}
	return got
}

func (w *Warmup) unlock(ticker string) {
	if w.locker == nil {
		return
	}
	if err := w.locker.Unlock(context.Background(), cache.GenerateKeyWithParams(warmupLockPrefix, ticker)); err != nil {
		w.log.Debug("warmup unlock failed", logger.String("ticker", ticker), logger.Error(err))
	}
}
