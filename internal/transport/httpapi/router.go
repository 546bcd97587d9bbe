package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kislikjeka/quicktrade/internal/transport/httpapi/handler"
	"github.com/kislikjeka/quicktrade/internal/transport/httpapi/middleware"
	"github.com/kislikjeka/quicktrade/pkg/logger"
)

// Config holds router configuration
type Config struct {
	Logger            *logger.Logger
	AllowedOrigins    []string
	SubaccountHandler *handler.SubaccountHandler
	PreferenceHandler *handler.PreferenceHandler
	TradingHandler    *handler.TradingHandler
	HealthHandler     *handler.HealthHandler
	// FeedHandler upgrades /ws to the change feed.
	FeedHandler http.HandlerFunc
	// RateLimiter defaults to 100 req/s with burst of 20.
	RateLimiter *middleware.RateLimiter
	// Metrics exposes /metrics when set.
	Metrics bool
}

// NewRouter creates a new HTTP router
func NewRouter(cfg Config) *chi.Mux {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewDiscard()
	}
	if cfg.RateLimiter == nil {
		cfg.RateLimiter = middleware.NewRateLimiter(100, 20)
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))

	// The change feed is long-lived; keep it out of compression and rate limiting.
	if cfg.FeedHandler != nil {
		r.Get("/ws", cfg.FeedHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.CORS(cfg.AllowedOrigins))
		r.Use(chimiddleware.Compress(5))
		r.Use(cfg.RateLimiter.Middleware)

		// Health check endpoints
		r.Get("/health", handler.GetHealth)
		r.Get("/health/live", handler.GetLiveness)
		if cfg.HealthHandler != nil {
			r.Get("/health/ready", cfg.HealthHandler.GetReadiness)
			r.Get("/health/detailed", cfg.HealthHandler.GetHealthDetailed)
		}

		if cfg.Metrics {
			r.Handle("/metrics", promhttp.Handler())
		}

		r.Route("/api/v1", func(r chi.Router) {
			if h := cfg.SubaccountHandler; h != nil {
				r.Get("/exchanges", h.ListExchanges)
				r.Get("/overview", h.GetOverview)
				r.Get("/subaccounts", h.ListRows)

				r.Get("/edit", h.GetEditLock)
				r.Delete("/edit", h.CancelEdit)

				r.Route("/exchanges/{exchange}/subaccounts", func(r chi.Router) {
					r.Get("/", h.ListRows)
					r.Post("/", h.CreateSubaccount)
					r.Route("/{name}", func(r chi.Router) {
						r.Put("/", h.RenameSubaccount)
						r.Delete("/", h.DeleteSubaccount)
						r.Put("/credentials", h.UpdateCredentials)
						r.Post("/select", h.SelectSubaccount)
						r.Post("/edit", h.BeginEdit)
						if p := cfg.PreferenceHandler; p != nil {
							r.Get("/settings", p.GetSubaccountSettings)
							r.Put("/settings", p.PutSubaccountSettings)
						}
					})
				})
			}

			if h := cfg.PreferenceHandler; h != nil {
				r.Route("/preferences", func(r chi.Router) {
					r.Get("/", h.GetPreferences)
					r.Delete("/", h.ResetPreferences)
					r.Put("/exchanges", h.SetEnabledExchanges)
					r.Put("/display-currency", h.SetDisplayCurrency)
					r.Put("/show-dust", h.SetShowDust)
					r.Put("/theme", h.SetTheme)
					r.Get("/last-used/{exchange}", h.GetLastUsed)
				})
			}

			if h := cfg.TradingHandler; h != nil {
				r.Get("/prices", h.GetPrice)
				r.Get("/prices/{base}/{quote}", h.GetPrice)
				r.Post("/orders", h.SubmitOrder)
				r.Get("/holdings", h.GetHoldings)
				r.Get("/balances", h.GetBalances)
			}
		})
	})

	return r
}
