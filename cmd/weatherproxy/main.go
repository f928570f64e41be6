package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "modernc.org/sqlite"

	httpapi "github.com/yorgis/weatherproxy/internal/api/http"
	"github.com/yorgis/weatherproxy/internal/cache"
	"github.com/yorgis/weatherproxy/internal/config"
	"github.com/yorgis/weatherproxy/internal/geocode"
	"github.com/yorgis/weatherproxy/internal/scheduler"
	"github.com/yorgis/weatherproxy/internal/weather"
	"github.com/yorgis/weatherproxy/internal/weather/providers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound provider and geocode calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	backend, cleanup, err := newCacheBackend(cfg)
	if err != nil {
		log.Fatalf("failed to open cache backend: %v", err)
	}
	defer cleanup()

	// Providers with resilience (backoff + circuit breaker). Both are
	// keyless; MET Norway requires a descriptive User-Agent.
	provs := []weather.Provider{
		providers.NewOpenMeteo(httpClient, cfg.OutboundUserAgent),
		providers.NewMetNo(httpClient, cfg.OutboundUserAgent),
	}

	geocoder := geocode.NewResolver(httpClient, backend, cfg.OutboundUserAgent, cfg.GeocodeTTL)

	service := weather.NewService(backend, provs, geocoder, weather.Config{
		CacheTTL:        cfg.CacheTTL,
		FetchTimeout:    cfg.HTTPTimeout,
		CoordDecimals:   cfg.CacheCoordDecimals,
		DefaultProvider: cfg.DefaultProvider,
	})

	// Scheduler that keeps configured locations warm in the cache.
	warmPairs, err := cfg.ParsedWarmLocations()
	if err != nil {
		log.Fatalf("failed to parse warm locations: %v", err)
	}
	var warmLocs []scheduler.Location
	for _, p := range warmPairs {
		warmLocs = append(warmLocs, scheduler.Location{Lat: p[0], Lon: p[1]})
	}
	sched := scheduler.New(warmLocs, cfg.WarmInterval, service)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "weatherproxy",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response for anything the handlers did not
			// shape themselves.
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weatherproxy",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	httpapi.RegisterRoutes(app, service, geocoder)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}

// newCacheBackend builds the configured backend. The sqlite backend gets a
// background purge loop so expired entries do not accumulate forever; they
// are kept around for one extra TTL window to stay available as stale
// fallbacks.
func newCacheBackend(cfg *config.AppConfig) (cache.Backend, func(), error) {
	if cfg.CacheBackend != "sqlite" {
		return cache.NewMemoryBackend(cfg.CacheMaxEntries), func() {}, nil
	}

	db, err := sql.Open("sqlite", cfg.CacheSQLitePath)
	if err != nil {
		return nil, nil, err
	}

	backend, err := cache.NewSQLiteBackend(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(cfg.CacheTTL)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				n, err := backend.Purge(ctx, 2*cfg.CacheTTL)
				cancel()
				if err != nil {
					log.Printf("cache: purge failed: %v", err)
				} else if n > 0 {
					log.Printf("cache: purged %d expired entries", n)
				}
			}
		}
	}()

	cleanup := func() {
		close(done)
		if err := db.Close(); err != nil {
			log.Printf("cache: close failed: %v", err)
		}
	}
	return backend, cleanup, nil
}
