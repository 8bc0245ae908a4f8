package scraper

import (
	"testing"

	"github.com/justbri/reelscrape/shared/logger"
)

func newTestFetcher(t *testing.T, retries int) *Fetcher {
	t.Helper()
	return NewFetcher(NewLimiter(0), FetchOptions{
		Retries:    retries,
		RetryDelay: 0,
		Logger:     logger.Discard(),
	})
}
