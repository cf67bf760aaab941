package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"potholewatch/internal/logger"
)

// SessionCookie carries the signed session token.
const SessionCookie = "session"

const issuer = "potholewatch"

// IssueToken signs a session token valid for ttl.
func IssueToken(secret string, ttl time.Duration) (string, time.Time, error) {
	if secret == "" {
		return "", time.Time{}, errors.New("JWT secret not configured")
	}
	now := time.Now()
	expires := now.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   "dashboard",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// VerifyToken checks the signature, algorithm, issuer and expiry of a session token.
func VerifyToken(secret, tokenString string) error {
	_, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired(), jwt.WithValidMethods([]string{"HS256"}))
	return err
}

// isPublic lists what is reachable without a session: the login page and
// endpoint, static assets, the detection proxies, camera uploads and health.
func isPublic(path string) bool {
	switch path {
	case "/login", "/Login.html", "/auth/login", "/health",
		"/roboflow-detect", "/yolo-detection", "/custom-pothole-detection":
		return true
	}
	return strings.HasPrefix(path, "/css/") ||
		strings.HasPrefix(path, "/js/") ||
		strings.HasPrefix(path, "/static/")
}

// Auth checks that the caller holds a valid session cookie. API and JSON
// requests get 401; browsers are redirected to the login page.
func Auth(secret string, logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			cookie, err := r.Cookie(SessionCookie)
			if err == nil {
				if err = VerifyToken(secret, cookie.Value); err == nil {
					next.ServeHTTP(w, r)
					return
				}
				logger.Warning("Rejected session for %s: %v", r.URL.Path, err)
			}

			if strings.HasPrefix(r.URL.Path, "/api/") ||
				r.Header.Get("X-Requested-With") == "XMLHttpRequest" ||
				r.Header.Get("Content-Type") == "application/json" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
		})
	}
}
