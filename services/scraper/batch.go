package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/justbri/reelscrape/models"
	"github.com/justbri/reelscrape/shared/logger"
)

// Status is the lifecycle of one batch run.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Progress is a snapshot of a running batch.
type Progress struct {
	Total      int    `json:"total"`
	Completed  int    `json:"completed"`
	Failed     int    `json:"failed"`
	CurrentURL string `json:"current_url"`
	Status     Status `json:"status"`
}

// Processed is the number of URLs with an outcome so far.
func (p Progress) Processed() int {
	return p.Completed + p.Failed
}

// BatchResult summarises a finished batch.
type BatchResult struct {
	Success int                   `json:"success"`
	Failed  int                   `json:"failed"`
	Movies  []models.MovieDetails `json:"movies"`
}

// DetailsExtractor is the page extraction step of a batch.
type DetailsExtractor interface {
	ExtractMovieDetails(ctx context.Context, pageURL string) (*models.MovieDetails, error)
}

// PosterProcessor is the optional image step of a batch.
type PosterProcessor interface {
	ProcessImage(ctx context.Context, imageURL, label string) (string, bool)
}

// MovieStore persists one extracted movie for the given sitemap.
type MovieStore interface {
	SaveMovie(ctx context.Context, sitemapID int64, movie models.MovieDetails) error
}

// Orchestrator runs extraction batches one URL at a time.
type Orchestrator struct {
	extractor DetailsExtractor
	images    PosterProcessor
	store     MovieStore
	logger    *slog.Logger

	mu       sync.Mutex
	progress Progress
}

// NewOrchestrator wires the batch steps. images may be nil to skip posters
// and store may be nil to only collect results.
func NewOrchestrator(extractor DetailsExtractor, images PosterProcessor, store MovieStore, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		extractor: extractor,
		images:    images,
		store:     store,
		logger:    logger.OrDefault(log).With("component", "batch"),
		progress:  Progress{Status: StatusIdle},
	}
}

// Progress returns the current snapshot.
func (o *Orchestrator) Progress() Progress {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.progress
}

// RunBatch processes urls in order. A failing URL is counted and skipped.
// When updates is non-nil a snapshot is sent after every URL and once more
// when the batch ends; the caller must keep receiving until RunBatch returns.
// The returned error is non-nil only when the batch itself stopped early.
func (o *Orchestrator) RunBatch(ctx context.Context, urls []string, sitemapID int64, updates chan<- Progress) (result *BatchResult, err error) {
	result = &BatchResult{Movies: []models.MovieDetails{}}
	o.update(func(p *Progress) {
		*p = Progress{Total: len(urls), Status: StatusRunning}
	})
	o.logger.Info("Starting batch", "sitemap_id", sitemapID, "total", len(urls))

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("batch aborted: %v", r)
		}
		final := StatusCompleted
		if err != nil {
			final = StatusError
			o.logger.Error("Batch stopped", "sitemap_id", sitemapID, "error", err)
		}
		snap := o.update(func(p *Progress) {
			p.Status = final
			p.CurrentURL = ""
		})
		o.send(updates, snap)
		o.logger.Info("Batch finished",
			"sitemap_id", sitemapID,
			"status", final,
			"success", result.Success,
			"failed", result.Failed)
	}()

	for _, pageURL := range urls {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		o.update(func(p *Progress) { p.CurrentURL = pageURL })

		movie, itemErr := o.processOne(ctx, pageURL, sitemapID)
		if itemErr != nil {
			if errors.Is(itemErr, context.Canceled) || errors.Is(itemErr, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return result, ctx.Err()
				}
			}
			result.Failed++
			o.logger.Warn("Movie failed", "url", pageURL, "error", itemErr)
		} else {
			result.Success++
			result.Movies = append(result.Movies, *movie)
		}

		snap := o.update(func(p *Progress) {
			p.Completed = result.Success
			p.Failed = result.Failed
		})
		o.send(updates, snap)
	}
	return result, nil
}

// processOne extracts, enriches and stores a single URL. Panics are turned
// into errors so one bad page cannot stop the batch.
func (o *Orchestrator) processOne(ctx context.Context, pageURL string, sitemapID int64) (movie *models.MovieDetails, err error) {
	defer func() {
		if r := recover(); r != nil {
			movie, err = nil, fmt.Errorf("panic processing %s: %v", pageURL, r)
		}
	}()

	movie, err = o.extractor.ExtractMovieDetails(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	if movie == nil {
		return nil, fmt.Errorf("%w: %s", ErrExtractionFailed, pageURL)
	}

	if o.images != nil && movie.ImageURL != "" && movie.ImageURL != PlaceholderImageURL {
		if data, ok := o.images.ProcessImage(ctx, movie.ImageURL, movie.Title); ok {
			movie.ImageData = data
		}
	}

	if o.store != nil {
		if err := o.store.SaveMovie(ctx, sitemapID, *movie); err != nil {
			return nil, fmt.Errorf("save %s: %w", pageURL, err)
		}
	}
	return movie, nil
}

func (o *Orchestrator) update(fn func(p *Progress)) Progress {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(&o.progress)
	return o.progress
}

func (o *Orchestrator) send(updates chan<- Progress, snap Progress) {
	if updates != nil {
		updates <- snap
	}
}
