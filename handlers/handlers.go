package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/justbri/reelscrape/middleware"
	"github.com/justbri/reelscrape/services"
	"github.com/justbri/reelscrape/shared/logger"
)

// Handler serves the admin JSON API.
type Handler struct {
	repo           *services.Repository
	pipeline       *services.Pipeline
	downloadImages bool
	logger         *slog.Logger
}

// New builds the API. downloadImages is the default for scrape requests that
// do not say otherwise.
func New(repo *services.Repository, pipeline *services.Pipeline, downloadImages bool, log *slog.Logger) *Handler {
	return &Handler{
		repo:           repo,
		pipeline:       pipeline,
		downloadImages: downloadImages,
		logger:         logger.OrDefault(log).With("component", "api"),
	}
}

// Routes returns the API router, ready to be mounted under /api.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin(h.repo))

		r.Get("/me", h.Me)

		r.Route("/sitemaps", func(r chi.Router) {
			r.Get("/", h.ListSitemaps)
			r.Post("/", h.CreateSitemap)
			r.Get("/stats", h.SitemapStats)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetSitemap)
				r.Put("/", h.UpdateSitemap)
				r.Delete("/", h.DeleteSitemap)
				r.Post("/refresh", h.RefreshSitemap)
				r.Post("/scrape", h.StartScrape)
				r.Get("/scrape", h.ScrapeStatus)
				r.Delete("/scrape", h.StopScrape)
			})
		})

		r.Get("/scraper/jobs", h.ListJobs)

		r.Route("/candidates", func(r chi.Router) {
			r.Get("/", h.ListCandidates)
			r.Delete("/", h.DeleteSitemapCandidates)
			r.Get("/stats", h.CandidateStats)
			r.Put("/{id}/status", h.UpdateCandidateStatus)
			r.Delete("/{id}", h.DeleteCandidate)
			r.Post("/{id}/scrape", h.ScrapeCandidate)
		})

		r.Route("/movies", func(r chi.Router) {
			r.Get("/", h.ListRawMovies)
			r.Delete("/", h.DeleteSitemapRawMovies)
			r.Get("/stats", h.RawMovieStats)
			r.Post("/bulk-delete", h.BulkDeleteRawMovies)
			r.Get("/{id}", h.GetRawMovie)
			r.Put("/{id}", h.UpdateRawMovie)
			r.Delete("/{id}", h.DeleteRawMovie)
		})
	})

	return r
}
