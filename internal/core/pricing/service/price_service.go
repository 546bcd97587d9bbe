package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kislikjeka/quicktrade/internal/core/pricing/cache"
	"github.com/kislikjeka/quicktrade/internal/core/pricing/domain"
	"github.com/kislikjeka/quicktrade/internal/platform/metrics"
	"github.com/kislikjeka/quicktrade/pkg/logger"
)

// Fetcher fetches spot prices for CoinGecko coin ids
type Fetcher interface {
	GetSimplePrice(ctx context.Context, ids []string, vsCurrency string) (map[string]decimal.Decimal, error)
}

// Lookup outcomes recorded in metrics
const (
	outcomeHit     = "hit"
	outcomeMiss    = "miss"
	outcomeError   = "error"
	outcomeSkipped = "skipped"
)

// PriceService serves spot prices from the cache, falling back to the
// upstream API while the circuit breaker allows it
type PriceService struct {
	fetcher        Fetcher
	cache          cache.Cache
	circuitBreaker *CircuitBreaker
	logger         *logger.Logger
	now            func() time.Time
}

// NewPriceService creates a new price service
func NewPriceService(fetcher Fetcher, c cache.Cache, log *logger.Logger) *PriceService {
	if log == nil {
		log = logger.NewDiscard()
	}
	return &PriceService{
		fetcher:        fetcher,
		cache:          c,
		circuitBreaker: NewCircuitBreaker(3, 5*time.Minute), // 3 failures, 5-minute cooldown
		logger:         log.WithField("component", "price_service"),
		now:            time.Now,
	}
}

// GetPrice returns the spot price of base in quote. Any failure is logged
// and reported as zero so callers can render a placeholder.
func (s *PriceService) GetPrice(ctx context.Context, base, quote string) decimal.Decimal {
	q, err := s.Lookup(ctx, base, quote)
	if err != nil {
		s.logger.Warn("price lookup failed", "base", base, "quote", quote, "error", err)
		return decimal.Zero
	}
	return q.Price
}

// Lookup returns the spot price of base in quote.
// Order: Cache (60s) → CoinGecko API → error
func (s *PriceService) Lookup(ctx context.Context, base, quote string) (domain.Quote, error) {
	pair, err := domain.NewPair(base, quote)
	if err != nil {
		return domain.Quote{}, err
	}
	key := pair.CacheKey()

	// Layer 1: cache
	price, found, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("price cache read failed", "key", key, "error", err)
	}
	if err == nil && found {
		metrics.PriceLookups.WithLabelValues(outcomeHit).Inc()
		return domain.Quote{Pair: pair, Price: price, Source: domain.PriceSourceCache, FetchedAt: s.now().UTC()}, nil
	}

	// Layer 2: upstream, if the circuit breaker allows
	if !s.circuitBreaker.CanAttempt() {
		metrics.PriceLookups.WithLabelValues(outcomeSkipped).Inc()
		return domain.Quote{}, domain.ErrPriceAPIUnavailable
	}

	price, err = s.fetch(ctx, pair)
	if err != nil {
		s.circuitBreaker.RecordFailure()
		metrics.PriceLookups.WithLabelValues(outcomeError).Inc()
		return domain.Quote{}, err
	}
	s.circuitBreaker.RecordSuccess()
	metrics.PriceLookups.WithLabelValues(outcomeMiss).Inc()

	if err := s.cache.Set(ctx, key, price); err != nil {
		s.logger.Warn("price cache write failed", "key", key, "error", err)
	}

	return domain.Quote{Pair: pair, Price: price, Source: domain.PriceSourceCoinGecko, FetchedAt: s.now().UTC()}, nil
}

func (s *PriceService) fetch(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	id := domain.CoinGeckoID(pair.Base)
	vs := domain.VsCurrency(pair.Quote)

	prices, err := s.fetcher.GetSimplePrice(ctx, []string{id}, vs)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to fetch %s: %w", pair, err)
	}

	price, ok := prices[id]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", domain.ErrPriceNotFound, pair)
	}
	return price, nil
}

// IsCircuitOpen returns true if upstream calls are currently skipped
func (s *PriceService) IsCircuitOpen() bool {
	return !s.circuitBreaker.CanAttempt()
}

// CircuitBreaker implements a simple circuit breaker pattern
type CircuitBreaker struct {
	maxFailures     int
	cooldownPeriod  time.Duration
	failures        int
	lastFailureTime time.Time
	state           CircuitState
	now             func() time.Time
	mu              sync.RWMutex
}

// CircuitState represents the state of the circuit breaker
type CircuitState int

const (
	CircuitClosed CircuitState = iota // Normal operation
	CircuitOpen                       // Too many failures, blocking requests
)

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(maxFailures int, cooldownPeriod time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures:    maxFailures,
		cooldownPeriod: cooldownPeriod,
		state:          CircuitClosed,
		now:            time.Now,
	}
}

// CanAttempt returns true if a request can be attempted. Once the cooldown
// has passed an open breaker lets requests through again; the next failure
// reopens it.
func (cb *CircuitBreaker) CanAttempt() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	if cb.state == CircuitClosed {
		return true
	}
	return cb.now().Sub(cb.lastFailureTime) > cb.cooldownPeriod
}

// RecordSuccess records a successful API call
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.state = CircuitClosed
}

// RecordFailure records a failed API call
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailureTime = cb.now()

	if cb.failures >= cb.maxFailures {
		cb.state = CircuitOpen
	}
}

// GetState returns the current circuit breaker state
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}
