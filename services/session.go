package services

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/justbri/reelscrape/config"
	"github.com/justbri/reelscrape/models"
)

const sessionName = "reelscrape-admin"

// Session value keys.
const (
	SessionUserID   = "user_id"
	SessionUsername = "username"
)

var store *sessions.CookieStore

// InitSessionStore configures the cookie store. It must run before any
// handler touches a session.
func InitSessionStore(cfg *config.Config) {
	store = sessions.NewCookieStore([]byte(cfg.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/api",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteStrictMode,
	}
}

// GetSession returns the admin session. On a decode error (for example a
// cookie signed with a rotated secret) a fresh session is returned along with
// the error.
func GetSession(r *http.Request) (*sessions.Session, error) {
	return store.Get(r, sessionName)
}

func SaveSession(w http.ResponseWriter, r *http.Request, session *sessions.Session) error {
	return session.Save(r, w)
}

// StartSession stores user in a new session cookie.
func StartSession(w http.ResponseWriter, r *http.Request, user *models.User) error {
	session, err := GetSession(r)
	if err != nil {
		slog.Debug("Discarding unreadable session", "error", err)
	}
	session.Values[SessionUserID] = user.ID
	session.Values[SessionUsername] = user.Username
	return SaveSession(w, r, session)
}

// EndSession expires the session cookie. A missing session is not an error.
func EndSession(w http.ResponseWriter, r *http.Request) error {
	session, err := GetSession(r)
	if err != nil {
		return nil
	}
	session.Values = make(map[any]any)
	session.Options.MaxAge = -1
	return SaveSession(w, r, session)
}
