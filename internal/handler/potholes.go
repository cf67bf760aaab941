package handler

import (
	"net/http"
	"time"

	"potholewatch/internal/httputil"
	"potholewatch/internal/logger"
	"potholewatch/internal/model"
	"potholewatch/internal/service/pothole"
)

const defaultNearbyRadius = 500.0

// PotholesHandler handles GET (list with filters) and POST (create) on /api/potholes.
func PotholesHandler(svc *pothole.Service, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			q := r.URL.Query()
			filter := model.PotholeFilter{
				Severity:  model.Severity(q.Get("severity")),
				Status:    model.Status(q.Get("status")),
				VehicleID: q.Get("vehicle_id"),
				Since:     parseDate(q.Get("since")),
				Limit:     atoiDefault(q.Get("limit"), 0),
				Offset:    atoiDefault(q.Get("offset"), 0),
			}
			potholes, err := svc.List(filter)
			if err != nil {
				writeError(w, logger, err)
				return
			}
			if potholes == nil {
				potholes = []model.Pothole{}
			}
			httputil.WriteJSON(w, http.StatusOK, potholes)

		case http.MethodPost:
			var in pothole.CreateInput
			if err := httputil.DecodeJSON(r, &in); err != nil {
				httputil.BadRequest(w, "invalid JSON body")
				return
			}
			p, err := svc.Create(in)
			if err != nil {
				writeError(w, logger, err)
				return
			}
			logger.Info("Pothole %s reported at %.5f,%.5f (%s)", p.ID, p.Latitude, p.Longitude, p.Severity)
			httputil.WriteJSON(w, http.StatusCreated, p)

		default:
			httputil.MethodNotAllowed(w)
		}
	}
}

// PotholeHandler handles GET /api/potholes/get?id=.
func PotholeHandler(svc *pothole.Service, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w)
			return
		}
		id, ok := requireID(w, r)
		if !ok {
			return
		}
		p, err := svc.Get(id)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, p)
	}
}

type statusRequest struct {
	Status model.Status `json:"status"`
}

// PotholeStatusHandler handles POST /api/potholes/status?id= with body {"status": "..."}.
func PotholeStatusHandler(svc *pothole.Service, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httputil.MethodNotAllowed(w)
			return
		}
		id, ok := requireID(w, r)
		if !ok {
			return
		}
		var req statusRequest
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.BadRequest(w, "invalid JSON body")
			return
		}
		p, err := svc.UpdateStatus(id, req.Status)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		logger.Info("Pothole %s marked %s", p.ID, p.Status)
		httputil.WriteJSON(w, http.StatusOK, p)
	}
}

// NearbyPotholesHandler handles GET /api/potholes/nearby?lat=&lng=&radius=.
// radius is in meters.
func NearbyPotholesHandler(svc *pothole.Service, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w)
			return
		}
		q := r.URL.Query()
		lat, okLat := parseFloat(q.Get("lat"))
		lng, okLng := parseFloat(q.Get("lng"))
		if !okLat || !okLng {
			httputil.BadRequest(w, "lat and lng parameters are required")
			return
		}
		radius := defaultNearbyRadius
		if v, ok := parseFloat(q.Get("radius")); ok {
			radius = v
		}

		nearby, err := svc.Nearby(lat, lng, radius)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, nearby)
	}
}

// parseDate parses a date in the format "2006-01-02" (HTML input format) or RFC 3339.
func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
