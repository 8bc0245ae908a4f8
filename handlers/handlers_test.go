package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/justbri/reelscrape/config"
	"github.com/justbri/reelscrape/models"
	"github.com/justbri/reelscrape/services"
	"github.com/justbri/reelscrape/services/scraper"
	"github.com/justbri/reelscrape/shared/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var (
	userCols    = []string{"id", "username", "email", "password_hash", "is_admin", "created_at", "updated_at"}
	sitemapCols = []string{"id", "site_name", "url", "status", "created_by", "username", "created_at", "updated_at"}
)

type stubResolver struct {
	candidates []scraper.Candidate
	err        error
}

func (s *stubResolver) ResolveSitemap(ctx context.Context, sitemapURL string) ([]scraper.Candidate, error) {
	return s.candidates, s.err
}

type stubExtractor struct{}

func (stubExtractor) ExtractMovieDetails(ctx context.Context, pageURL string) (*models.MovieDetails, error) {
	return &models.MovieDetails{Title: "Stub", URL: pageURL}, nil
}

func init() {
	services.InitSessionStore(&config.Config{SessionSecret: "handler-test-secret", Environment: "test"})
}

type testAPI struct {
	mock   sqlmock.Sqlmock
	router http.Handler
}

func newTestAPI(t *testing.T, res *stubResolver) *testAPI {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := services.NewRepository(db)
	if res == nil {
		res = &stubResolver{}
	}
	pipeline := services.NewPipeline(repo, services.PipelineDeps{
		Resolver:  res,
		Extractor: stubExtractor{},
		Logger:    logger.Discard(),
	})
	t.Cleanup(pipeline.Close)

	return &testAPI{mock: mock, router: New(repo, pipeline, false, logger.Discard()).Routes()}
}

func (a *testAPI) do(t *testing.T, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

// sessionCookie issues a signed session cookie for userID.
func sessionCookie(t *testing.T, userID int64) *http.Cookie {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	session, err := services.GetSession(req)
	require.NoError(t, err)
	session.Values[services.SessionUserID] = userID
	require.NoError(t, services.SaveSession(rec, req, session))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func (a *testAPI) expectUser(id int64, isAdmin bool) {
	now := time.Now()
	a.mock.ExpectQuery("FROM users WHERE id").WithArgs(id).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(id, "admin", "admin@example.com", "x", isAdmin, now, now))
}

func (a *testAPI) admin(t *testing.T) *http.Cookie {
	a.expectUser(1, true)
	return sessionCookie(t, 1)
}

func TestLoginStartsSession(t *testing.T) {
	api := newTestAPI(t, nil)
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	now := time.Now()

	api.mock.ExpectQuery("FROM users WHERE username").WithArgs("admin").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(1, "admin", "admin@example.com", string(hash), true, now, now))

	rec := api.do(t, http.MethodPost, "/login", `{"username":"admin","password":"secret"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"admin"`)
	assert.NotContains(t, rec.Body.String(), "password")
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	api.expectUser(1, true)
	rec = api.do(t, http.MethodGet, "/me", "", cookies...)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, api.mock.ExpectationsWereMet())
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	api := newTestAPI(t, nil)
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	now := time.Now()

	api.mock.ExpectQuery("FROM users WHERE username").WithArgs("admin").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(1, "admin", "admin@example.com", string(hash), true, now, now))

	rec := api.do(t, http.MethodPost, "/login", `{"username":"admin","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodPost, "/login", `{"username":"admin"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutExpiresCookie(t *testing.T) {
	api := newTestAPI(t, nil)
	rec := api.do(t, http.MethodPost, "/logout", "", sessionCookie(t, 1))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].MaxAge < 0)
}

func TestProtectedRoutesNeedAdmin(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(t, http.MethodGet, "/sitemaps", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	api.expectUser(2, false)
	rec = api.do(t, http.MethodGet, "/sitemaps", "", sessionCookie(t, 2))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	api.mock.ExpectQuery("FROM users WHERE id").WithArgs(int64(3)).WillReturnRows(sqlmock.NewRows(userCols))
	rec = api.do(t, http.MethodGet, "/sitemaps", "", sessionCookie(t, 3))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NoError(t, api.mock.ExpectationsWereMet())
}

func TestCreateSitemapValidates(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(t, http.MethodPost, "/sitemaps", `{"site_name":"S"}`, api.admin(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPost, "/sitemaps", `{"site_name":"S","url":"not-a-url"}`, api.admin(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPost, "/sitemaps", `{"site_name":"S","url":"https://s/sitemap.xml","status":"weird"}`, api.admin(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NoError(t, api.mock.ExpectationsWereMet())
}

func TestCreateSitemapResolvesCandidates(t *testing.T) {
	api := newTestAPI(t, &stubResolver{candidates: []scraper.Candidate{
		{Title: "Hindi Movie", URL: "https://s/hindi-movie-2024/"},
	}})
	cookie := api.admin(t)
	now := time.Now()

	api.mock.ExpectQuery("INSERT INTO sitemaps").
		WithArgs("Movies Site", "https://s/sitemap.xml", "active", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "site_name", "url", "status", "created_by", "created_at", "updated_at"}).
			AddRow(3, "Movies Site", "https://s/sitemap.xml", "active", 1, now, now))
	api.mock.ExpectQuery("INSERT INTO extracted_movies").
		WillReturnRows(sqlmock.NewRows([]string{"id", "sitemap_id", "title", "url", "site_name", "status", "extracted_at", "created_at", "updated_at"}).
			AddRow(1, 3, "Hindi Movie", "https://s/hindi-movie-2024/", "Movies Site", "active", now, now, now))

	rec := api.do(t, http.MethodPost, "/sitemaps", `{"site_name":"Movies Site","url":"https://s/sitemap.xml"}`, cookie)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"movie_count":1`)
	assert.NoError(t, api.mock.ExpectationsWereMet())
}

func TestGetSitemapNotFound(t *testing.T) {
	api := newTestAPI(t, nil)
	cookie := api.admin(t)
	api.mock.ExpectQuery("FROM sitemaps s").WithArgs(int64(42)).WillReturnRows(sqlmock.NewRows(sitemapCols))

	rec := api.do(t, http.MethodGet, "/sitemaps/42", "", cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodGet, "/sitemaps/abc", "", api.admin(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NoError(t, api.mock.ExpectationsWereMet())
}

func TestDeleteSitemap(t *testing.T) {
	api := newTestAPI(t, nil)
	cookie := api.admin(t)
	api.mock.ExpectExec("DELETE FROM sitemaps WHERE id").WithArgs(int64(4)).WillReturnResult(sqlmock.NewResult(0, 1))

	rec := api.do(t, http.MethodDelete, "/sitemaps/4", "", cookie)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NoError(t, api.mock.ExpectationsWereMet())
}

func TestStartScrapeWithoutCandidates(t *testing.T) {
	api := newTestAPI(t, nil)
	cookie := api.admin(t)
	now := time.Now()

	api.mock.ExpectQuery("FROM sitemaps s").WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(sitemapCols).AddRow(3, "S", "https://s/sitemap.xml", "active", nil, "", now, now))
	api.mock.ExpectQuery("status = 'active'").WithArgs(int64(3), 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "sitemap_id", "title", "url", "site_name", "status", "extracted_at", "created_at", "updated_at"}))

	rec := api.do(t, http.MethodPost, "/sitemaps/3/scrape", `{"limit":10}`, cookie)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = api.do(t, http.MethodGet, "/sitemaps/3/scrape", "", api.admin(t))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodDelete, "/sitemaps/3/scrape", "", api.admin(t))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NoError(t, api.mock.ExpectationsWereMet())
}

func TestBulkDeleteRawMovies(t *testing.T) {
	api := newTestAPI(t, nil)
	cookie := api.admin(t)

	api.mock.ExpectBegin()
	prep := api.mock.ExpectPrepare("DELETE FROM raw_movies WHERE id")
	prep.ExpectExec().WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs(int64(2)).WillReturnResult(sqlmock.NewResult(0, 0))
	api.mock.ExpectCommit()

	rec := api.do(t, http.MethodPost, "/movies/bulk-delete", `{"ids":[1,2]}`, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted":1}`, rec.Body.String())

	rec = api.do(t, http.MethodPost, "/movies/bulk-delete", `{"ids":[]}`, api.admin(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NoError(t, api.mock.ExpectationsWereMet())
}

func TestUpdateRawMovieValidatesStatus(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(t, http.MethodPut, "/movies/5", `{"status":"bogus"}`, api.admin(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPut, "/movies/5", `{"unknown":"x"}`, api.admin(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NoError(t, api.mock.ExpectationsWereMet())
}

func TestUpdateCandidateStatus(t *testing.T) {
	api := newTestAPI(t, nil)
	cookie := api.admin(t)
	api.mock.ExpectExec("UPDATE extracted_movies SET status").WithArgs("inactive", int64(6)).WillReturnResult(sqlmock.NewResult(0, 0))

	rec := api.do(t, http.MethodPut, "/candidates/6/status", `{"status":"inactive"}`, cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NoError(t, api.mock.ExpectationsWereMet())
}

func TestDeleteSitemapCandidatesNeedsSitemap(t *testing.T) {
	api := newTestAPI(t, nil)
	rec := api.do(t, http.MethodDelete, "/candidates", "", api.admin(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	cookie := api.admin(t)
	api.mock.ExpectExec("DELETE FROM extracted_movies WHERE sitemap_id").WithArgs(int64(2)).WillReturnResult(sqlmock.NewResult(0, 7))
	rec = api.do(t, http.MethodDelete, "/candidates?sitemap_id=2", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted":7}`, rec.Body.String())
	assert.NoError(t, api.mock.ExpectationsWereMet())
}
