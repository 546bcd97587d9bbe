package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kislikjeka/quicktrade/internal/core/pricing/cache"
	"github.com/kislikjeka/quicktrade/internal/core/pricing/coingecko"
	"github.com/kislikjeka/quicktrade/internal/core/pricing/service"
	"github.com/kislikjeka/quicktrade/internal/core/trading"
	infraRedis "github.com/kislikjeka/quicktrade/internal/infra/redis"
	"github.com/kislikjeka/quicktrade/internal/module/account"
	"github.com/kislikjeka/quicktrade/internal/platform/credential"
	"github.com/kislikjeka/quicktrade/internal/platform/document"
	"github.com/kislikjeka/quicktrade/internal/platform/preference"
	"github.com/kislikjeka/quicktrade/internal/platform/watch"
	"github.com/kislikjeka/quicktrade/internal/transport/httpapi"
	"github.com/kislikjeka/quicktrade/internal/transport/httpapi/handler"
	"github.com/kislikjeka/quicktrade/internal/transport/httpapi/middleware"
	"github.com/kislikjeka/quicktrade/internal/transport/ws"
	"github.com/kislikjeka/quicktrade/pkg/config"
	"github.com/kislikjeka/quicktrade/pkg/logger"
)

func main() {
	// Create context that listens for termination signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithFormat(cfg.Env, cfg.LogFormat, os.Stdout)
	log.Info("Starting QuickTrade API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"config_dir", cfg.ConfigDir,
	)

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("Server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	exchanges := config.DefaultExchanges()
	if cfg.ExchangesFile != "" {
		loaded, err := config.LoadExchangesConfig(cfg.ExchangesFile)
		if err != nil {
			return err
		}
		exchanges = loaded
	}
	log.Info("Exchange set loaded", "exchanges", len(exchanges.Exchanges))

	dir, err := document.Open(cfg.ConfigDir)
	if err != nil {
		return err
	}

	// Writes go through the tracker so the watcher only reloads edits made
	// by other processes.
	watcher := watch.NewWatcher(dir, nil, &watch.Config{Interval: cfg.WatchInterval, NotifyDir: dir.Root(), Logger: log})
	tracked := watcher.Track(dir)

	creds, err := credential.NewStore(tracked, exchanges, log)
	if err != nil {
		return err
	}
	prefs, err := preference.NewStore(tracked, exchanges, log)
	if err != nil {
		return err
	}

	healthChecks := map[string]handler.Pinger{
		"config_dir": handler.PingFunc(func(ctx context.Context) error {
			_, err := os.Stat(dir.Root())
			return err
		}),
	}

	// Price cache: Redis when configured, in-memory otherwise
	var priceCache cache.Cache = cache.NewMemory(cfg.PriceCacheTTL)
	if cfg.RedisURL != "" {
		redisClient, err := infraRedis.NewClient(ctx, cfg.RedisURL, cfg.RedisPassword)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		priceCache = infraRedis.NewCacheWithTTL(redisClient, cfg.PriceCacheTTL, log)
		healthChecks["redis"] = redisPinger{redisClient}
		log.Info("Redis price cache enabled")
	} else {
		log.Info("REDIS_URL not configured, using in-memory price cache")
	}

	coinGeckoClient := coingecko.NewClient(cfg.CoinGeckoAPIKey)
	priceSvc := service.NewPriceService(coinGeckoClient, priceCache, log)

	journal, journalFile, err := logger.NewFile(cfg.TradeLogPath)
	if err != nil {
		return err
	}
	defer closeQuietly(journalFile)

	executor := trading.NewExecutor(creds, trading.Config{
		Latency: cfg.TradeLatency,
		Journal: journal,
	}, log)
	accountSvc := account.NewService(creds, prefs, exchanges, priceSvc, executor, log)

	// Change feed
	hub := ws.NewHub(cfg.AllowedOrigins, log)
	creds.Subscribe(hub.CredentialListener())
	broadcastPrefs := func(p preference.Preferences) {
		if err := hub.Broadcast(ws.TypePreferenceChange, p); err != nil {
			log.Warn("Failed to broadcast preference change", "error", err)
		}
	}

	watcher.Add(
		watch.Target{Document: document.APIKeys, Reload: creds.Reload},
		watch.Target{Document: document.UserPrefs, Reload: func() error {
			if err := prefs.Reload(); err != nil {
				return err
			}
			broadcastPrefs(prefs.Snapshot())
			return nil
		}},
	)

	rateLimiter := middleware.NewRateLimiter(100, 20)

	r := httpapi.NewRouter(httpapi.Config{
		Logger:            log,
		AllowedOrigins:    cfg.AllowedOrigins,
		SubaccountHandler: handler.NewSubaccountHandler(accountSvc, creds, exchanges),
		PreferenceHandler: handler.NewPreferenceHandler(prefs, creds, broadcastPrefs),
		TradingHandler:    handler.NewTradingHandler(priceSvc, accountSvc, executor.Balances()),
		HealthHandler:     handler.NewHealthHandler(healthChecks),
		FeedHandler:       hub.ServeWS,
		RateLimiter:       rateLimiter,
		Metrics:           true,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go hub.Run(ctx)
	go watcher.Run(ctx)
	go rateLimiter.Run(ctx)
	if cfg.PriceRefreshInterval > 0 {
		refresher := service.NewRefresher(priceSvc, accountSvc.HeldPairs, &service.RefresherConfig{
			Interval: cfg.PriceRefreshInterval,
			Logger:   log,
		})
		go refresher.Run(ctx)
	}
	log.Info("Background workers started",
		"watch_interval", cfg.WatchInterval,
		"price_refresh_interval", cfg.PriceRefreshInterval,
	)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return nil
}

type redisPinger struct {
	client *goredis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func closeQuietly(c io.Closer) {
	_ = c.Close()
}
