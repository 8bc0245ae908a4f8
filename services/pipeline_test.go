package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/justbri/reelscrape/models"
	"github.com/justbri/reelscrape/services/scraper"
	"github.com/justbri/reelscrape/shared/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sitemapCols   = []string{"id", "site_name", "url", "status", "created_by", "username", "created_at", "updated_at"}
	extractedCols = []string{"id", "sitemap_id", "title", "url", "site_name", "status", "extracted_at", "created_at", "updated_at"}
)

type stubResolver struct {
	candidates []scraper.Candidate
	err        error
	calls      []string
}

func (s *stubResolver) ResolveSitemap(ctx context.Context, sitemapURL string) ([]scraper.Candidate, error) {
	s.calls = append(s.calls, sitemapURL)
	return s.candidates, s.err
}

type stubExtractor struct {
	mu   sync.Mutex
	err  error
	seen []string
}

func (s *stubExtractor) ExtractMovieDetails(ctx context.Context, pageURL string) (*models.MovieDetails, error) {
	s.mu.Lock()
	s.seen = append(s.seen, pageURL)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return &models.MovieDetails{
		Title:    "Scraped " + pageURL,
		URL:      pageURL,
		ImageURL: "https://cdn.example/poster.jpg",
	}, nil
}

type stubImages struct{ calls int }

func (s *stubImages) ProcessImage(ctx context.Context, imageURL, label string) (string, bool) {
	s.calls++
	return "data:image/jpeg;base64,AAAA", true
}

func newTestPipeline(t *testing.T, res *stubResolver, ext *stubExtractor, img *stubImages) (*Pipeline, sqlmock.Sqlmock) {
	t.Helper()
	repo, mock := newMockRepo(t)
	deps := PipelineDeps{Resolver: res, Extractor: ext, Logger: logger.Discard()}
	if img != nil {
		deps.Images = img
	}
	p := NewPipeline(repo, deps)
	t.Cleanup(p.Close)
	return p, mock
}

func sitemapRow(id int64, url string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(sitemapCols).AddRow(id, "Movies Site", url, "active", nil, "", now, now)
}

func TestRegisterSitemapStoresCandidates(t *testing.T) {
	res := &stubResolver{candidates: []scraper.Candidate{
		{Title: "Hindi Movie", URL: "https://s/hindi-movie-2024/"},
		{Title: "Other Film", URL: "https://s/other-film-2023/"},
	}}
	p, mock := newTestPipeline(t, res, &stubExtractor{}, nil)
	now := time.Now()

	mock.ExpectQuery("INSERT INTO sitemaps").
		WillReturnRows(sqlmock.NewRows([]string{"id", "site_name", "url", "status", "created_by", "created_at", "updated_at"}).
			AddRow(3, "Movies Site", "https://s/sitemap.xml", "active", nil, now, now))
	mock.ExpectQuery("INSERT INTO extracted_movies").
		WithArgs(int64(3), "Hindi Movie", "https://s/hindi-movie-2024/", "Movies Site",
			int64(3), "Other Film", "https://s/other-film-2023/", "Movies Site").
		WillReturnRows(sqlmock.NewRows(extractedCols).
			AddRow(1, 3, "Hindi Movie", "https://s/hindi-movie-2024/", "Movies Site", "active", now, now, now))

	result, err := p.RegisterSitemap(context.Background(), models.SitemapInput{SiteName: "Movies Site", URL: "https://s/sitemap.xml"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Sitemap.ID)
	assert.Equal(t, 2, result.Found)
	assert.Equal(t, 1, result.MovieCount)
	assert.Empty(t, result.ParseError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterSitemapReportsResolverError(t *testing.T) {
	res := &stubResolver{err: errors.New("failed to fetch sitemap: 404")}
	p, mock := newTestPipeline(t, res, &stubExtractor{}, nil)
	now := time.Now()

	mock.ExpectQuery("INSERT INTO sitemaps").
		WillReturnRows(sqlmock.NewRows([]string{"id", "site_name", "url", "status", "created_by", "created_at", "updated_at"}).
			AddRow(4, "Broken", "https://s/missing.xml", "active", nil, now, now))

	result, err := p.RegisterSitemap(context.Background(), models.SitemapInput{SiteName: "Broken", URL: "https://s/missing.xml"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), result.Sitemap.ID)
	assert.Zero(t, result.MovieCount)
	assert.Contains(t, result.ParseError, "404")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSitemapWithoutURLChangeKeepsCandidates(t *testing.T) {
	res := &stubResolver{}
	p, mock := newTestPipeline(t, res, &stubExtractor{}, nil)
	name := "Renamed"
	sameURL := "https://s/sitemap.xml"

	mock.ExpectQuery("FROM sitemaps s").WithArgs(int64(5)).WillReturnRows(sitemapRow(5, sameURL))
	mock.ExpectExec(`UPDATE sitemaps SET site_name = \$1, updated_at = NOW\(\) WHERE id = \$2`).
		WithArgs("Renamed", int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM sitemaps s").WithArgs(int64(5)).WillReturnRows(sitemapRow(5, sameURL))

	result, err := p.UpdateSitemap(context.Background(), 5, models.SitemapUpdate{SiteName: &name, URL: &sameURL})
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.Sitemap.ID)
	assert.Empty(t, res.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSitemapURLChangeResetsAndResolves(t *testing.T) {
	res := &stubResolver{candidates: []scraper.Candidate{{Title: "New Film", URL: "https://s/new-film-2024/"}}}
	p, mock := newTestPipeline(t, res, &stubExtractor{}, nil)
	newURL := "https://s/new-sitemap.xml"
	now := time.Now()

	mock.ExpectQuery("FROM sitemaps s").WithArgs(int64(5)).WillReturnRows(sitemapRow(5, "https://s/old.xml"))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE sitemaps SET url = \$1`).WithArgs(newURL, int64(5)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM extracted_movies WHERE sitemap_id").WithArgs(int64(5)).WillReturnResult(sqlmock.NewResult(0, 12))
	mock.ExpectExec("DELETE FROM raw_movies WHERE scraped_from").WithArgs(int64(5)).WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectCommit()
	mock.ExpectQuery("FROM sitemaps s").WithArgs(int64(5)).WillReturnRows(sitemapRow(5, newURL))
	mock.ExpectQuery("INSERT INTO extracted_movies").
		WillReturnRows(sqlmock.NewRows(extractedCols).
			AddRow(30, 5, "New Film", "https://s/new-film-2024/", "Movies Site", "active", now, now, now))

	result, err := p.UpdateSitemap(context.Background(), 5, models.SitemapUpdate{URL: &newURL})
	require.NoError(t, err)
	assert.Equal(t, newURL, result.Sitemap.URL)
	assert.Equal(t, 1, result.MovieCount)
	assert.Equal(t, []string{newURL}, res.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSitemapNotFound(t *testing.T) {
	p, mock := newTestPipeline(t, &stubResolver{}, &stubExtractor{}, nil)
	mock.ExpectQuery("FROM sitemaps s").WithArgs(int64(9)).WillReturnRows(sqlmock.NewRows(sitemapCols))

	_, err := p.UpdateSitemap(context.Background(), 9, models.SitemapUpdate{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestScrapeCandidateSavesAndClaims(t *testing.T) {
	img := &stubImages{}
	p, mock := newTestPipeline(t, &stubResolver{}, &stubExtractor{}, img)
	now := time.Now()

	mock.ExpectQuery("FROM extracted_movies WHERE id").WithArgs(int64(8)).
		WillReturnRows(sqlmock.NewRows(extractedCols).
			AddRow(8, 3, "Film", "https://s/film-2024/", "Movies Site", "active", now, now, now))
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO raw_movies").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(21))
	mock.ExpectExec("UPDATE extracted_movies SET status").WithArgs("processed", int64(8)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("FROM raw_movies rm").WithArgs(int64(21)).
		WillReturnRows(sqlmock.NewRows(rawMovieCols).AddRow(rawMovieRow(21, "Scraped https://s/film-2024/", "https://s/film-2024/")...))

	movie, err := p.ScrapeCandidate(context.Background(), 8, true)
	require.NoError(t, err)
	assert.Equal(t, int64(21), movie.ID)
	assert.Equal(t, 1, img.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScrapeCandidateRejectsProcessed(t *testing.T) {
	ext := &stubExtractor{}
	p, mock := newTestPipeline(t, &stubResolver{}, ext, nil)
	now := time.Now()

	mock.ExpectQuery("FROM extracted_movies WHERE id").WithArgs(int64(8)).
		WillReturnRows(sqlmock.NewRows(extractedCols).
			AddRow(8, 3, "Film", "https://s/film-2024/", "Movies Site", "processed", now, now, now))

	_, err := p.ScrapeCandidate(context.Background(), 8, false)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
	assert.Empty(t, ext.seen)
}

func TestScrapeCandidateExtractionFailureLeavesCandidate(t *testing.T) {
	ext := &stubExtractor{err: scraper.ErrExtractionFailed}
	p, mock := newTestPipeline(t, &stubResolver{}, ext, nil)
	now := time.Now()

	mock.ExpectQuery("FROM extracted_movies WHERE id").WithArgs(int64(8)).
		WillReturnRows(sqlmock.NewRows(extractedCols).
			AddRow(8, 3, "Film", "https://s/film-2024/", "Movies Site", "active", now, now, now))

	_, err := p.ScrapeCandidate(context.Background(), 8, false)
	assert.ErrorIs(t, err, scraper.ErrExtractionFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStartSitemapScrapeRunsInBackground(t *testing.T) {
	ext := &stubExtractor{}
	p, mock := newTestPipeline(t, &stubResolver{}, ext, nil)
	now := time.Now()

	mock.ExpectQuery("FROM sitemaps s").WithArgs(int64(3)).WillReturnRows(sitemapRow(3, "https://s/sitemap.xml"))
	mock.ExpectQuery("status = 'active'").WithArgs(int64(3), 2).
		WillReturnRows(sqlmock.NewRows(extractedCols).
			AddRow(1, 3, "A", "https://s/a-2024/", "Movies Site", "active", now, now, now).
			AddRow(2, 3, "B", "https://s/b-2024/", "Movies Site", "active", now, now, now))
	for i, id := range []int64{1, 2} {
		rawID := int64(40 + i)
		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO raw_movies").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(rawID))
		mock.ExpectExec("UPDATE extracted_movies SET status").WithArgs("processed", id).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
		mock.ExpectQuery("FROM raw_movies rm").WithArgs(rawID).
			WillReturnRows(sqlmock.NewRows(rawMovieCols).AddRow(rawMovieRow(rawID, "T", "https://s/t/")...))
	}

	state, err := p.StartSitemapScrape(context.Background(), 3, 2, false)
	require.NoError(t, err)
	assert.NotEmpty(t, state.ID)
	assert.Equal(t, 2, state.Progress.Total)

	require.Eventually(t, func() bool {
		s, ok := p.JobStatus(3)
		return ok && !s.Running()
	}, 2*time.Second, 10*time.Millisecond)

	final, _ := p.JobStatus(3)
	assert.Equal(t, scraper.StatusCompleted, final.Progress.Status)
	assert.Equal(t, 2, final.Progress.Completed)
	assert.Zero(t, final.Progress.Failed)
	assert.Len(t, p.Jobs(), 1)
	assert.Equal(t, []string{"https://s/a-2024/", "https://s/b-2024/"}, ext.seen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStartSitemapScrapeWithoutCandidates(t *testing.T) {
	p, mock := newTestPipeline(t, &stubResolver{}, &stubExtractor{}, nil)

	mock.ExpectQuery("FROM sitemaps s").WithArgs(int64(3)).WillReturnRows(sitemapRow(3, "https://s/sitemap.xml"))
	mock.ExpectQuery("status = 'active'").WithArgs(int64(3)).WillReturnRows(sqlmock.NewRows(extractedCols))

	_, err := p.StartSitemapScrape(context.Background(), 3, 0, true)
	assert.ErrorIs(t, err, ErrNoCandidates)
	assert.False(t, p.StopScrape(3))
	assert.NoError(t, mock.ExpectationsWereMet())
}
