package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/justbri/reelscrape/shared/format"
	sharedhttp "github.com/justbri/reelscrape/shared/http"
	"github.com/justbri/reelscrape/shared/logger"
	"golang.org/x/time/rate"
)

// Limiter spaces outbound requests at least interval apart. One Limiter may be
// shared by any number of fetchers; they then share one request clock.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter returns a limiter with the given minimum spacing. A non-positive
// interval disables limiting.
func NewLimiter(interval time.Duration) *Limiter {
	if interval <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next request may be sent or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}

// FetchOptions controls HTTP behaviour of a Fetcher.
type FetchOptions struct {
	UserAgent    string
	Timeout      time.Duration
	Retries      int
	RetryDelay   time.Duration
	MaxBodyBytes int64
	Bypass       *sharedhttp.Bypass
	Logger       *slog.Logger
}

// Fetcher performs rate-limited GETs with browser headers.
type Fetcher struct {
	client  *http.Client
	limiter *Limiter
	opts    FetchOptions
	logger  *slog.Logger
}

// Resource is a downloaded body with its declared content type.
type Resource struct {
	URL         string
	ContentType string
	Body        []byte
}

func NewFetcher(limiter *Limiter, opts FetchOptions) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = sharedhttp.DefaultMaxBodyBytes
	}
	return &Fetcher{
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: limiter,
		opts:    opts,
		logger:  logger.OrDefault(opts.Logger).With("component", "fetcher"),
	}
}

// Fetch waits for the limiter once, then GETs rawURL with up to opts.Retries
// retries spaced opts.RetryDelay apart. The last error is returned when every
// attempt fails.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var body []byte
	attempt := 0
	operation := func() error {
		attempt++
		res, err := f.get(ctx, rawURL)
		if err != nil {
			var statusErr *sharedhttp.StatusError
			if errors.As(err, &statusErr) && f.opts.Bypass != nil && blockedStatus(statusErr.StatusCode) {
				f.logger.Info("Direct fetch blocked, trying bypass", "url", rawURL, "status", statusErr.StatusCode)
				solved, bypassErr := f.opts.Bypass.Fetch(ctx, rawURL)
				if bypassErr == nil {
					body = solved
					return nil
				}
				f.logger.Warn("Bypass failed", "url", rawURL, "error", bypassErr)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		body = res.Body
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(f.opts.RetryDelay), uint64(f.opts.Retries)),
		ctx,
	)
	notify := func(err error, wait time.Duration) {
		f.logger.Warn("Fetch failed, retrying",
			"url", rawURL,
			"attempt", attempt,
			"max_attempts", f.opts.Retries+1,
			"retry_in", wait,
			"error", err)
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, fmt.Errorf("fetch %s after %d attempts: %w", rawURL, attempt, err)
	}
	f.logger.Debug("Fetched page", "url", rawURL, "size", format.Bytes(int64(len(body))))
	return body, nil
}

// Download waits for the limiter and performs a single GET. Used for images,
// where a failure simply means no image.
func (f *Fetcher) Download(ctx context.Context, rawURL string) (*Resource, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return f.get(ctx, rawURL)
}

func (f *Fetcher) get(ctx context.Context, rawURL string) (*Resource, error) {
	resp, err := sharedhttp.MakeRequest(ctx, rawURL, f.opts.UserAgent, f.client)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := sharedhttp.ReadBody(resp, f.opts.MaxBodyBytes)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	return &Resource{
		URL:         rawURL,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

func blockedStatus(code int) bool {
	return code == http.StatusForbidden || code == http.StatusServiceUnavailable
}
