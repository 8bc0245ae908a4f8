package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/justbri/reelscrape/config"
	"github.com/justbri/reelscrape/models"
	"github.com/justbri/reelscrape/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type userMap map[int64]*models.User

func (m userMap) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	if u, ok := m[id]; ok {
		return u, nil
	}
	return nil, errors.New("not found")
}

func TestParseUserID(t *testing.T) {
	for _, v := range []any{int64(7), 7, "7"} {
		id, err := parseUserID(v)
		require.NoError(t, err)
		assert.Equal(t, int64(7), id)
	}
	_, err := parseUserID(7.5)
	assert.Error(t, err)
}

func TestRequireAdmin(t *testing.T) {
	services.InitSessionStore(&config.Config{SessionSecret: "middleware-test-secret"})
	users := userMap{
		1: {ID: 1, Username: "admin", IsAdmin: true},
		2: {ID: 2, Username: "viewer"},
	}

	var seen *models.User
	h := RequireAdmin(users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	cookieFor := func(v any) *http.Cookie {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		session, err := services.GetSession(req)
		require.NoError(t, err)
		session.Values[services.SessionUserID] = v
		require.NoError(t, services.SaveSession(rec, req, session))
		return rec.Result().Cookies()[0]
	}

	tests := []struct {
		name   string
		cookie *http.Cookie
		want   int
	}{
		{"no session", nil, http.StatusUnauthorized},
		{"admin", cookieFor(int64(1)), http.StatusOK},
		{"admin id as string", cookieFor("1"), http.StatusOK},
		{"not admin", cookieFor(int64(2)), http.StatusForbidden},
		{"unknown user", cookieFor(int64(9)), http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/api/sitemaps", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				require.NotNil(t, seen)
				assert.Equal(t, "admin", seen.Username)
			} else {
				assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			}
		})
	}
}
