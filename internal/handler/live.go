package handler

import (
	"net/http"

	"potholewatch/internal/httputil"
	"potholewatch/internal/logger"
	"potholewatch/internal/service/live"
)

// LiveStateHandler handles GET /api/live.
func LiveStateHandler(controller *live.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, controller.State())
	}
}

// LiveStartHandler handles POST /api/live/start.
func LiveStartHandler(controller *live.Controller, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httputil.MethodNotAllowed(w)
			return
		}
		if err := controller.Start(r.Context()); err != nil {
			logger.Warning("Failed to start live capture: %v", err)
			httputil.BadRequest(w, err.Error())
			return
		}
		httputil.WriteJSON(w, http.StatusOK, controller.State())
	}
}

// LiveStopHandler handles POST /api/live/stop.
func LiveStopHandler(controller *live.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httputil.MethodNotAllowed(w)
			return
		}
		controller.Stop()
		httputil.WriteJSON(w, http.StatusOK, controller.State())
	}
}

type locationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// LiveLocationHandler handles POST /api/live/location with the device's GPS fix.
func LiveLocationHandler(controller *live.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httputil.MethodNotAllowed(w)
			return
		}
		var req locationRequest
		if err := httputil.DecodeJSON(r, &req); err != nil || req.Latitude == nil || req.Longitude == nil {
			httputil.BadRequest(w, "latitude and longitude are required")
			return
		}
		if err := controller.SetLocation(*req.Latitude, *req.Longitude); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		httputil.WriteJSON(w, http.StatusOK, controller.State().Location)
	}
}
