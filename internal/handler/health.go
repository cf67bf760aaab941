package handler

import (
	"net/http"
	"time"

	"potholewatch/internal/httputil"
)

// HealthHandler handles GET /health.
func HealthHandler(started time.Time, backend func() string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "ok",
			"uptime":  time.Since(started).Round(time.Second).String(),
			"backend": backend(),
		})
	}
}
