package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kislikjeka/quicktrade/internal/core/pricing/domain"
	"github.com/kislikjeka/quicktrade/pkg/logger"
)

const (
	// DefaultRefreshInterval is the default interval between refresh cycles
	DefaultRefreshInterval = 45 * time.Second

	// DefaultBatchSize is the default number of coin ids per API call
	DefaultBatchSize = 50
)

// PairSource lists the pairs worth keeping warm
type PairSource func() []domain.Pair

// Refresher periodically re-fetches prices for held pairs so dashboard
// valuations are served from the cache
type Refresher struct {
	svc       *PriceService
	pairs     PairSource
	interval  time.Duration
	batchSize int
	logger    *logger.Logger
}

// RefresherConfig holds configuration for the refresher
type RefresherConfig struct {
	Interval  time.Duration
	BatchSize int
	Logger    *logger.Logger
}

// NewRefresher creates a new price refresher
func NewRefresher(svc *PriceService, pairs PairSource, config *RefresherConfig) *Refresher {
	interval := DefaultRefreshInterval
	batchSize := DefaultBatchSize
	log := logger.NewDiscard()

	if config != nil {
		if config.Interval > 0 {
			interval = config.Interval
		}
		if config.BatchSize > 0 {
			batchSize = config.BatchSize
		}
		if config.Logger != nil {
			log = config.Logger
		}
	}

	return &Refresher{
		svc:       svc,
		pairs:     pairs,
		interval:  interval,
		batchSize: batchSize,
		logger:    log.WithField("component", "price_refresher"),
	}
}

// Run refreshes on every tick until the context is cancelled
func (r *Refresher) Run(ctx context.Context) {
	r.logger.Info("price refresher started", "interval", r.interval, "batch_size", r.batchSize)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("price refresher stopped")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce runs a single refresh cycle and reports how many pairs were
// refreshed and how many failed
func (r *Refresher) RunOnce(ctx context.Context) (success, fail int) {
	pairs := r.pairs()
	if len(pairs) == 0 {
		r.logger.Debug("no held pairs to refresh")
		return 0, 0
	}

	success, fail = r.svc.Refresh(ctx, pairs, r.batchSize)
	r.logger.Debug("price refresh cycle completed", "success_count", success, "fail_count", fail)
	return success, fail
}

// Refresh fetches prices for pairs in batches, grouped by vs currency, and
// stores them in the cache. Cycles are skipped while the circuit is open.
func (s *PriceService) Refresh(ctx context.Context, pairs []domain.Pair, batchSize int) (success, fail int) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	// vs currency -> coin id -> pairs priced by it
	groups := make(map[string]map[string][]domain.Pair)
	var order []string
	for _, p := range pairs {
		vs := domain.VsCurrency(p.Quote)
		if _, ok := groups[vs]; !ok {
			groups[vs] = make(map[string][]domain.Pair)
			order = append(order, vs)
		}
		id := domain.CoinGeckoID(p.Base)
		groups[vs][id] = append(groups[vs][id], p)
	}

	for _, vs := range order {
		ids := make([]string, 0, len(groups[vs]))
		for id := range groups[vs] {
			ids = append(ids, id)
		}

		for i := 0; i < len(ids); i += batchSize {
			end := min(i+batchSize, len(ids))
			ok, bad := s.refreshBatch(ctx, vs, ids[i:end], groups[vs])
			success += ok
			fail += bad
		}
	}
	return success, fail
}

func (s *PriceService) refreshBatch(ctx context.Context, vs string, ids []string, byID map[string][]domain.Pair) (success, fail int) {
	count := 0
	for _, id := range ids {
		count += len(byID[id])
	}

	if !s.circuitBreaker.CanAttempt() {
		return 0, count
	}

	prices, err := s.fetcher.GetSimplePrice(ctx, ids, vs)
	if err != nil {
		s.circuitBreaker.RecordFailure()
		s.logger.Warn("failed to refresh price batch", "vs_currency", vs, "ids", len(ids), "error", err)
		return 0, count
	}
	s.circuitBreaker.RecordSuccess()

	for _, id := range ids {
		price, found := prices[id]
		if !found {
			fail += len(byID[id])
			continue
		}
		for _, p := range byID[id] {
			if s.store(ctx, p, price) {
				success++
			} else {
				fail++
			}
		}
	}
	return success, fail
}

func (s *PriceService) store(ctx context.Context, p domain.Pair, price decimal.Decimal) bool {
	if err := s.cache.Set(ctx, p.CacheKey(), price); err != nil {
		s.logger.Warn("price cache write failed", "key", p.CacheKey(), "error", err)
		return false
	}
	return true
}
