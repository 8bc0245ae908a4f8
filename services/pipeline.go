package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/justbri/reelscrape/models"
	"github.com/justbri/reelscrape/services/scraper"
	"github.com/justbri/reelscrape/shared/logger"
)

var (
	ErrNoCandidates     = errors.New("no active candidates to scrape")
	ErrAlreadyProcessed = errors.New("candidate already processed")
)

// SitemapResolver turns a sitemap URL into movie candidates.
type SitemapResolver interface {
	ResolveSitemap(ctx context.Context, sitemapURL string) ([]scraper.Candidate, error)
}

// RegisterResult is the outcome of registering or refreshing a sitemap. A
// resolver failure is reported in ParseError; the sitemap row still exists.
type RegisterResult struct {
	Sitemap    *models.Sitemap `json:"sitemap"`
	MovieCount int             `json:"movie_count"`
	Found      int             `json:"found"`
	ParseError string          `json:"parse_error,omitempty"`
}

// Pipeline ties the resolver, extractor and image processor to storage.
type Pipeline struct {
	repo      *Repository
	resolver  SitemapResolver
	extractor scraper.DetailsExtractor
	images    scraper.PosterProcessor
	jobs      *Jobs
	logger    *slog.Logger

	base context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup
}

// PipelineDeps are the scraping components a Pipeline drives. Images may be
// nil to disable posters entirely.
type PipelineDeps struct {
	Resolver  SitemapResolver
	Extractor scraper.DetailsExtractor
	Images    scraper.PosterProcessor
	Logger    *slog.Logger
}

func NewPipeline(repo *Repository, deps PipelineDeps) *Pipeline {
	base, stop := context.WithCancel(context.Background())
	return &Pipeline{
		repo:      repo,
		resolver:  deps.Resolver,
		extractor: deps.Extractor,
		images:    deps.Images,
		jobs:      NewJobs(),
		logger:    logger.OrDefault(deps.Logger).With("component", "pipeline"),
		base:      base,
		stop:      stop,
	}
}

// Close cancels running jobs and waits for them to wind down.
func (p *Pipeline) Close() {
	p.stop()
	p.jobs.StopAll()
	p.wg.Wait()
}

// RegisterSitemap stores a new sitemap and loads its candidates.
func (p *Pipeline) RegisterSitemap(ctx context.Context, in models.SitemapInput) (*RegisterResult, error) {
	sitemap, err := p.repo.CreateSitemap(ctx, in)
	if err != nil {
		return nil, err
	}
	p.logger.Info("Registered sitemap", "sitemap_id", sitemap.ID, "site", sitemap.SiteName, "url", sitemap.URL)
	return p.loadCandidates(ctx, sitemap)
}

// RefreshSitemap resolves an existing sitemap again. Candidates already
// stored are left untouched.
func (p *Pipeline) RefreshSitemap(ctx context.Context, sitemapID int64) (*RegisterResult, error) {
	sitemap, err := p.repo.GetSitemapByID(ctx, sitemapID)
	if err != nil {
		return nil, err
	}
	return p.loadCandidates(ctx, sitemap)
}

func (p *Pipeline) loadCandidates(ctx context.Context, sitemap *models.Sitemap) (*RegisterResult, error) {
	result := &RegisterResult{Sitemap: sitemap}

	candidates, err := p.resolver.ResolveSitemap(ctx, sitemap.URL)
	if err != nil {
		p.logger.Warn("Sitemap could not be resolved", "sitemap_id", sitemap.ID, "error", err)
		result.ParseError = err.Error()
		return result, nil
	}
	result.Found = len(candidates)

	inputs := make([]models.ExtractedMovieInput, 0, len(candidates))
	for _, c := range candidates {
		inputs = append(inputs, models.ExtractedMovieInput{
			SitemapID: sitemap.ID,
			Title:     c.Title,
			URL:       c.URL,
			SiteName:  sitemap.SiteName,
		})
	}
	created, err := p.repo.CreateExtractedMoviesBatch(ctx, inputs)
	result.MovieCount = len(created)
	if err != nil {
		return result, fmt.Errorf("store candidates of sitemap %d: %w", sitemap.ID, err)
	}

	p.logger.Info("Loaded sitemap candidates",
		"sitemap_id", sitemap.ID,
		"found", result.Found,
		"new", result.MovieCount)
	return result, nil
}

// UpdateSitemap applies upd. A changed URL discards every candidate and raw
// movie of the sitemap and resolves the new URL; the returned result then
// carries the new candidate count.
func (p *Pipeline) UpdateSitemap(ctx context.Context, id int64, upd models.SitemapUpdate) (*RegisterResult, error) {
	current, err := p.repo.GetSitemapByID(ctx, id)
	if err != nil {
		return nil, err
	}

	urlChanged := upd.URL != nil && *upd.URL != current.URL
	if !urlChanged {
		upd.URL = nil
		if !upd.Empty() {
			if _, err := p.repo.UpdateSitemap(ctx, id, upd); err != nil {
				return nil, err
			}
		}
		updated, err := p.repo.GetSitemapByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return &RegisterResult{Sitemap: updated}, nil
	}

	if p.jobs.Stop(id) {
		p.logger.Info("Stopped scrape of sitemap whose URL changed", "sitemap_id", id)
	}
	found, err := p.repo.ReplaceSitemapURL(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("update sitemap %d: %w", id, ErrNotFound)
	}
	p.logger.Info("Sitemap URL changed, candidates reset", "sitemap_id", id, "old_url", current.URL, "new_url", *upd.URL)
	return p.RefreshSitemap(ctx, id)
}

// ScrapeCandidate scrapes one candidate now. On success the raw movie is
// stored and the candidate marked processed together.
func (p *Pipeline) ScrapeCandidate(ctx context.Context, candidateID int64, downloadImages bool) (*models.RawMovie, error) {
	candidate, err := p.repo.GetExtractedMovieByID(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if candidate.Status == models.MovieProcessed {
		return nil, fmt.Errorf("candidate %d: %w", candidateID, ErrAlreadyProcessed)
	}

	details, err := p.extractor.ExtractMovieDetails(ctx, candidate.URL)
	if err != nil {
		return nil, err
	}
	if images := p.posters(downloadImages); images != nil && details.ImageURL != scraper.PlaceholderImageURL {
		if data, ok := images.ProcessImage(ctx, details.ImageURL, details.Title); ok {
			details.ImageData = data
		}
	}

	return p.repo.SaveScrapedCandidate(ctx, candidate.ID, models.RawMovieInput{
		MovieDetails: *details,
		ScrapedFrom:  candidate.SitemapID,
		Status:       models.MovieActive,
	})
}

func (p *Pipeline) posters(enabled bool) scraper.PosterProcessor {
	if !enabled {
		return nil
	}
	return p.images
}

// StartSitemapScrape scrapes up to limit active candidates of a sitemap in the
// background. limit <= 0 means all of them. Only one job per sitemap runs at
// a time.
func (p *Pipeline) StartSitemapScrape(ctx context.Context, sitemapID int64, limit int, downloadImages bool) (JobState, error) {
	if p.jobs.IsRunning(sitemapID) {
		state, _ := p.jobs.Get(sitemapID)
		return state, ErrJobRunning
	}
	if _, err := p.repo.GetSitemapByID(ctx, sitemapID); err != nil {
		return JobState{}, err
	}
	candidates, err := p.repo.GetActiveExtractedMovies(ctx, sitemapID, limit)
	if err != nil {
		return JobState{}, err
	}
	if len(candidates) == 0 {
		return JobState{}, ErrNoCandidates
	}

	jobCtx, state, err := p.jobs.Start(p.base, sitemapID, len(candidates))
	if err != nil {
		return state, err
	}

	urls := make([]string, 0, len(candidates))
	store := &candidateStore{repo: p.repo, byURL: make(map[string]int64, len(candidates))}
	for _, c := range candidates {
		urls = append(urls, c.URL)
		store.byURL[c.URL] = c.ID
	}
	orchestrator := scraper.NewOrchestrator(p.extractor, p.posters(downloadImages), store, p.logger)

	updates := make(chan scraper.Progress)
	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		for snap := range updates {
			p.jobs.Update(sitemapID, state.ID, snap)
		}
	}()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		result, err := orchestrator.RunBatch(jobCtx, urls, sitemapID, updates)
		close(updates)
		<-forwarded
		p.jobs.Finish(sitemapID, state.ID, err)
		p.logger.Info("Scrape job finished",
			"job_id", state.ID,
			"sitemap_id", sitemapID,
			"success", result.Success,
			"failed", result.Failed)
	}()

	p.logger.Info("Scrape job started", "job_id", state.ID, "sitemap_id", sitemapID, "candidates", len(urls), "images", downloadImages)
	return state, nil
}

// StopScrape cancels the running job of a sitemap.
func (p *Pipeline) StopScrape(sitemapID int64) bool {
	return p.jobs.Stop(sitemapID)
}

// JobStatus returns the latest job of a sitemap.
func (p *Pipeline) JobStatus(sitemapID int64) (JobState, bool) {
	return p.jobs.Get(sitemapID)
}

func (p *Pipeline) Jobs() []JobState {
	return p.jobs.List()
}

// candidateStore saves batch results against the candidates they came from.
type candidateStore struct {
	repo  *Repository
	byURL map[string]int64
}

func (s *candidateStore) SaveMovie(ctx context.Context, sitemapID int64, movie models.MovieDetails) error {
	in := models.RawMovieInput{MovieDetails: movie, ScrapedFrom: sitemapID, Status: models.MovieActive}
	if id, ok := s.byURL[movie.URL]; ok {
		_, err := s.repo.SaveScrapedCandidate(ctx, id, in)
		return err
	}
	_, err := s.repo.CreateRawMovie(ctx, in)
	return err
}
