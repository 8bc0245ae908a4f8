package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/justbri/reelscrape/models"
	"github.com/justbri/reelscrape/services"
)

type contextKey string

const userKey contextKey = "user"

// UserLookup loads the account behind a session.
type UserLookup interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// UserFromContext returns the admin attached by RequireAdmin.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userKey).(*models.User)
	return user, ok
}

func deny(w http.ResponseWriter, r *http.Request, status int, reason string) {
	slog.Info("Request denied", "path", r.URL.Path, "status", status, "reason", reason)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": http.StatusText(status)})
}

// parseUserID converts the session's user_id value to int64
func parseUserID(userID any) (int64, error) {
	switch v := userID.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, strconv.ErrSyntax
	}
}

// RequireAdmin lets through requests whose session belongs to an existing
// admin user, and answers 401 or 403 otherwise.
func RequireAdmin(users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := services.GetSession(r)
			if err != nil {
				deny(w, r, http.StatusUnauthorized, "no session")
				return
			}

			userID, ok := session.Values[services.SessionUserID]
			if !ok {
				deny(w, r, http.StatusUnauthorized, "not authenticated")
				return
			}

			id, err := parseUserID(userID)
			if err != nil {
				deny(w, r, http.StatusUnauthorized, "invalid user_id in session")
				return
			}

			// Verify user still exists
			user, err := users.GetUserByID(r.Context(), id)
			if err != nil {
				deny(w, r, http.StatusUnauthorized, "user not found")
				return
			}
			if !user.IsAdmin {
				deny(w, r, http.StatusForbidden, "not an admin")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
		})
	}
}
