package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"StockForecaster/internal/domain/models"
	domrepo "StockForecaster/internal/domain/repository"
	"StockForecaster/internal/services/features"
	"StockForecaster/pkg/cache"
	"StockForecaster/pkg/logger"
	"StockForecaster/pkg/util"
)

// ErrNoData means the market-data provider had no bars for the request.
var ErrNoData = errors.New("no price data")

const pricesKeyPrefix = "prices"

// PricesUseCase loads reshaped price tables through the price cache.
type PricesUseCase struct {
	market  domrepo.MarketData
	cache   cache.Service
	ttl     time.Duration
	metrics domrepo.Metrics
	log     *logger.Logger
}

func NewPricesUseCase(market domrepo.MarketData, c cache.Service, ttl time.Duration, metrics domrepo.Metrics, log *logger.Logger) *PricesUseCase {
	if metrics == nil {
		metrics = domrepo.NoopMetrics{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &PricesUseCase{market: market, cache: c, ttl: ttl, metrics: metrics, log: log}
}

// PricesKey is the cache key of a ticker's table over [start, end).
func PricesKey(ticker string, start, end time.Time) string {
	return cache.GenerateKeyWithParams(pricesKeyPrefix, strings.ToUpper(ticker), util.FormatDate(start), util.FormatDate(end))
}

// Load returns the price table of ticker over [start, end), fetching on a cache miss.
func (uc *PricesUseCase) Load(ctx context.Context, ticker string, start, end time.Time) (*models.PriceTable, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	load := func(ctx context.Context) (*models.PriceTable, error) {
		bars, err := uc.market.FetchDaily(ctx, ticker, start, end)
		if err != nil {
			return nil, err
		}
		if len(bars) == 0 {
			return nil, fmt.Errorf("%w for %s", ErrNoData, ticker)
		}
		return features.BuildTable(ticker, start, end, bars), nil
	}

	if uc.cache == nil {
		return load(ctx)
	}

	key := PricesKey(ticker, start, end)
	tbl, hit, err := cache.Remember(ctx, uc.cache, key, uc.ttl, load, func(err error) {
		uc.log.Warn("price cache unavailable", logger.String("key", key), logger.Error(err))
	})
	uc.metrics.RecordCacheLookup(hit)
	if err != nil {
		return nil, err
	}
	if hit {
		uc.log.Debug("price cache hit", logger.String("key", key), logger.Int("rows", tbl.Len()))
	}
	return tbl, nil
}
