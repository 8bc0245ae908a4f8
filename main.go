package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/justbri/reelscrape/config"
	"github.com/justbri/reelscrape/database"
	"github.com/justbri/reelscrape/handlers"
	"github.com/justbri/reelscrape/services"
	"github.com/justbri/reelscrape/services/scraper"
	sharedhttp "github.com/justbri/reelscrape/shared/http"
	"github.com/justbri/reelscrape/shared/logger"
	sharedmw "github.com/justbri/reelscrape/shared/middleware"
	"github.com/justbri/reelscrape/shared/server"
)

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fatal("Failed to load configuration", err)
	}
	logger.Init(cfg.Environment, cfg.Debug)

	// Initialize session store
	services.InitSessionStore(cfg)

	// Connect to database
	if err := database.Connect(cfg); err != nil {
		fatal("Failed to connect to database", err)
	}
	defer database.Close()

	// Run migrations
	if err := database.RunMigrations(); err != nil {
		fatal("Failed to run migrations", err)
	}

	// Seed admin user
	if err := database.SeedAdminUser(); err != nil {
		fatal("Failed to seed admin user", err)
	}

	repo := services.NewRepository(database.DB)
	pipeline := newPipeline(cfg, repo)
	defer pipeline.Close()

	api := handlers.New(repo, pipeline, cfg.Scraper.DownloadImages, logger.Default())

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(sharedmw.Logging(logger.Component("http")))
	r.Use(chimw.Recoverer)

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		if err := repo.DB().PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("pong"))
	})
	r.Mount("/api", api.Routes())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srvCfg := server.DefaultConfig(":" + cfg.ServerPort)
	if err := server.Run(ctx, srvCfg, server.CreateServer(srvCfg, r)); err != nil {
		fatal("Server failed", err)
	}
	slog.Info("Server stopped")
}

// newPipeline wires the scraping components. Every fetcher shares one
// limiter so all jobs together respect the request interval.
func newPipeline(cfg *config.Config, repo *services.Repository) *services.Pipeline {
	s := cfg.Scraper
	log := logger.Default()

	limiter := scraper.NewLimiter(s.RequestInterval.Duration)
	fetcher := scraper.NewFetcher(limiter, scraper.FetchOptions{
		UserAgent:    s.UserAgent,
		Timeout:      s.RequestTimeout.Duration,
		Retries:      s.FetchRetries,
		RetryDelay:   s.FetchRetryDelay.Duration,
		MaxBodyBytes: s.MaxBodyBytes,
		Bypass:       sharedhttp.NewBypass(s.BypassURL, logger.Component("bypass")),
		Logger:       log,
	})

	return services.NewPipeline(repo, services.PipelineDeps{
		Resolver: scraper.NewResolver(fetcher, s.SitemapDepth, log),
		Extractor: scraper.NewExtractor(fetcher, scraper.ExtractOptions{
			Attempts:  s.ExtractAttempts,
			BaseDelay: s.ExtractBaseDelay.Duration,
			MaxDelay:  s.ExtractMaxDelay.Duration,
			Logger:    log,
		}),
		Images: scraper.NewImageProcessor(fetcher, scraper.ImageOptions{
			Width:   s.ImageWidth,
			Height:  s.ImageHeight,
			Quality: s.ImageQuality,
			Logger:  log,
		}),
		Logger: log,
	})
}
