package handler

import (
	"net/http"

	"potholewatch/internal/httputil"
	"potholewatch/internal/logger"
	"potholewatch/internal/service/notification"
)

// NotificationsHandler handles GET /api/notifications.
func NotificationsHandler(svc *notification.Service, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w)
			return
		}
		inbox, err := svc.Inbox()
		if err != nil {
			writeError(w, logger, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, inbox)
	}
}

// MarkNotificationReadHandler handles POST /api/notifications/read?id=.
func MarkNotificationReadHandler(svc *notification.Service, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httputil.MethodNotAllowed(w)
			return
		}
		id, ok := requireID(w, r)
		if !ok {
			return
		}
		n, err := svc.MarkRead(id)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, n)
	}
}

// MarkAllNotificationsReadHandler handles POST /api/notifications/read-all.
func MarkAllNotificationsReadHandler(svc *notification.Service, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httputil.MethodNotAllowed(w)
			return
		}
		updated, err := svc.MarkAllRead()
		if err != nil {
			writeError(w, logger, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]int{"updated": updated})
	}
}
