package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/justbri/reelscrape/models"
	"github.com/justbri/reelscrape/shared/logger"
)

var (
	// ErrNoTitle means the page yielded no usable title.
	ErrNoTitle = errors.New("no title extracted")
	// ErrExtractionFailed is returned once every attempt for a URL failed.
	ErrExtractionFailed = errors.New("extraction failed")
)

// ExtractFields runs every field cascade over p. It never fails; fields that
// cannot be found carry their fallback value.
func ExtractFields(p *Page) models.MovieDetails {
	return models.MovieDetails{
		Title:       titleField.resolve(p),
		URL:         p.RawURL,
		Description: descriptionField.resolve(p),
		ImageURL:    imageField.resolve(p),
		ReleaseDate: releaseDateField.resolve(p),
		Genre:       genreField.resolve(p),
		Rating:      ratingField.resolve(p),
		Duration:    durationField.resolve(p),
		Director:    directorField.resolve(p),
		Cast:        castField.resolve(p),
		Quality:     qualityField.resolve(p),
		Size:        sizeField.resolve(p),
		Language:    languageField.resolve(p),
	}
}

func logStrategyPanic(field string, index int, r any) {
	logger.Default().Debug("Extraction strategy panicked",
		"field", field,
		"strategy", index,
		"panic", r)
}

// ExtractOptions controls the whole-page retry loop.
type ExtractOptions struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Logger    *slog.Logger
}

// Extractor fetches movie pages and extracts their details.
type Extractor struct {
	fetcher *Fetcher
	opts    ExtractOptions
	logger  *slog.Logger
}

func NewExtractor(fetcher *Fetcher, opts ExtractOptions) *Extractor {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	if opts.MaxDelay < opts.BaseDelay {
		opts.MaxDelay = opts.BaseDelay
	}
	return &Extractor{
		fetcher: fetcher,
		opts:    opts,
		logger:  logger.OrDefault(opts.Logger).With("component", "extractor"),
	}
}

// ExtractMovieDetails fetches pageURL and extracts a movie record. A page
// without a usable title is fetched again, with exponential backoff, until
// every attempt is used; the error then wraps ErrExtractionFailed.
// An invalid URL or a cancelled context is returned as is.
func (e *Extractor) ExtractMovieDetails(ctx context.Context, pageURL string) (*models.MovieDetails, error) {
	u, err := url.Parse(pageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid movie url %q", pageURL)
	}

	var details *models.MovieDetails
	attempt := 0
	operation := func() error {
		attempt++
		body, err := e.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		page, err := ParsePage(pageURL, body)
		if err != nil {
			return err
		}
		d := ExtractFields(page)
		if d.Title == "" || d.Title == UnknownTitle {
			return ErrNoTitle
		}
		details = &d
		return nil
	}

	notify := func(err error, wait time.Duration) {
		e.logger.Warn("Extraction attempt failed",
			"url", pageURL,
			"attempt", attempt,
			"max_attempts", e.opts.Attempts,
			"retry_in", wait,
			"error", err)
	}

	if err := backoff.RetryNotify(operation, e.policy(ctx), notify); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.logger.Error("Giving up on movie page", "url", pageURL, "attempts", attempt, "error", err)
		return nil, fmt.Errorf("%w: %s after %d attempts: %v", ErrExtractionFailed, pageURL, attempt, err)
	}

	e.logger.Info("Extracted movie", "url", pageURL, "title", details.Title, "attempts", attempt)
	return details, nil
}

// policy doubles the delay from BaseDelay up to MaxDelay between attempts.
func (e *Extractor) policy(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = e.opts.BaseDelay
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxInterval = e.opts.MaxDelay
	eb.MaxElapsedTime = 0
	eb.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(e.opts.Attempts-1)), ctx)
}
