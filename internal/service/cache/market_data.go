package cache

import (
	"context"
	"time"

	"PricePortal/internal/domain/models"
	drepo "PricePortal/internal/domain/repository"
	pcache "PricePortal/pkg/cache"
	"PricePortal/pkg/logger"
	"PricePortal/pkg/util"
)

// CachedPriceFetcher decorates a PriceFetcher with a read-through cache.
// History is keyed by symbol and calendar dates, so repeated requests on the
// same day share one upstream call. Empty results and errors are not cached.
type CachedPriceFetcher struct {
	next       drepo.PriceFetcher
	cache      pcache.Service
	historyTTL time.Duration
	rateTTL    time.Duration
	metrics    drepo.Metrics
	log        *logger.Logger
}

var _ drepo.PriceFetcher = (*CachedPriceFetcher)(nil)

func NewCachedPriceFetcher(next drepo.PriceFetcher, c pcache.Service, historyTTL, rateTTL time.Duration, m drepo.Metrics, log *logger.Logger) *CachedPriceFetcher {
	if log == nil {
		log = logger.Nop()
	}
	return &CachedPriceFetcher{
		next:       next,
		cache:      c,
		historyTTL: historyTTL,
		rateTTL:    rateTTL,
		metrics:    m,
		log:        log.Component("market_cache"),
	}
}

func (f *CachedPriceFetcher) FetchHistory(ctx context.Context, symbol string, start, end time.Time) (models.PriceSeries, error) {
	key := pcache.Key("history", symbol, util.FormatDate(start.UTC()), util.FormatDate(end.UTC()))

	var cached models.PriceSeries
	if err := f.cache.Get(ctx, key, &cached); err == nil && len(cached) > 0 {
		f.record("history", true)
		return cached, nil
	}
	f.record("history", false)

	s, err := f.next.FetchHistory(ctx, symbol, start, end)
	if err != nil || len(s) == 0 {
		return s, err
	}
	if err := f.cache.Set(ctx, key, s, f.historyTTL); err != nil {
		f.log.Warn("cache set failed", logger.String("key", key), logger.Error(err))
	}
	return s, nil
}

func (f *CachedPriceFetcher) FetchConversionRate(ctx context.Context) (float64, error) {
	var rate float64
	if err := f.cache.Get(ctx, "fx:usd_inr", &rate); err == nil && rate > 0 {
		f.record("fx", true)
		return rate, nil
	}
	f.record("fx", false)

	rate, err := f.next.FetchConversionRate(ctx)
	if err != nil {
		return 0, err
	}
	if err := f.cache.Set(ctx, "fx:usd_inr", rate, f.rateTTL); err != nil {
		f.log.Warn("cache set failed", logger.String("key", "fx:usd_inr"), logger.Error(err))
	}
	return rate, nil
}

func (f *CachedPriceFetcher) record(kind string, hit bool) {
	if f.metrics != nil {
		f.metrics.RecordCacheLookup(kind, hit)
	}
}
