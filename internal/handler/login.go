package handler

import (
	"net/http"
	"time"

	"potholewatch/internal/config"
	"potholewatch/internal/httputil"
	"potholewatch/internal/logger"
	"potholewatch/internal/middleware"
)

const sessionTTL = 30 * 24 * time.Hour

// LoginHandler handles POST /auth/login by validating password and issuing a
// signed session cookie. Form posts are redirected to the dashboard; JSON
// clients get a JSON answer.
func LoginHandler(config *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httputil.MethodNotAllowed(w)
			return
		}
		password := r.FormValue("password")
		if password != config.Password {
			logger.Warning("Failed login attempt from %s", r.RemoteAddr)
			http.Error(w, "Invalid password", http.StatusUnauthorized)
			return
		}

		token, expires, err := middleware.IssueToken(config.JWTSecret, sessionTTL)
		if err != nil {
			logger.Error("Failed to sign session token: %v", err)
			httputil.InternalServerError(w, "failed to create session")
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     middleware.SessionCookie,
			Value:    token,
			Path:     "/",
			Expires:  expires,
			MaxAge:   int(sessionTTL.Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})

		if r.Header.Get("Accept") == "application/json" {
			httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"authenticated": true, "expires_at": expires})
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// LogoutHandler clears the session cookie and redirects to the login page.
func LogoutHandler(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:   middleware.SessionCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
