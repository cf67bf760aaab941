package handler

import (
	"net/http"
	"time"

	"potholewatch/internal/httputil"
	"potholewatch/internal/logger"
	"potholewatch/internal/service/report"
)

// ReportSummaryHandler handles GET /api/reports/summary.
func ReportSummaryHandler(svc *report.Service, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w)
			return
		}
		summary, err := svc.Summary()
		if err != nil {
			writeError(w, logger, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, summary)
	}
}

// ReportAnalyticsHandler handles GET /api/reports/analytics. An optional tz
// parameter (IANA name) sets the calendar used for monthly and daily buckets.
func ReportAnalyticsHandler(svc *report.Service, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w)
			return
		}
		now := time.Now()
		if tz := r.URL.Query().Get("tz"); tz != "" {
			loc, err := time.LoadLocation(tz)
			if err != nil {
				httputil.BadRequest(w, "unknown time zone "+tz)
				return
			}
			now = now.In(loc)
		}
		analytics, err := svc.Analytics(now)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, analytics)
	}
}
