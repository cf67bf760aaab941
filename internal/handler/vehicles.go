package handler

import (
	"net/http"

	"potholewatch/internal/httputil"
	"potholewatch/internal/logger"
	"potholewatch/internal/model"
	"potholewatch/internal/service/vehicle"
)

type registerVehicleRequest struct {
	VehicleID string `json:"vehicle_id"`
	Name      string `json:"name"`
	IsActive  *bool  `json:"is_active"`
}

// VehiclesHandler handles GET (list) and POST (register) on /api/vehicles.
func VehiclesHandler(svc *vehicle.Service, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			vehicles, err := svc.List()
			if err != nil {
				writeError(w, logger, err)
				return
			}
			if vehicles == nil {
				vehicles = []model.Vehicle{}
			}
			httputil.WriteJSON(w, http.StatusOK, vehicles)

		case http.MethodPost:
			var req registerVehicleRequest
			if err := httputil.DecodeJSON(r, &req); err != nil {
				httputil.BadRequest(w, "invalid JSON body")
				return
			}
			active := true
			if req.IsActive != nil {
				active = *req.IsActive
			}
			v, err := svc.Register(req.VehicleID, req.Name, active)
			if err != nil {
				writeError(w, logger, err)
				return
			}
			logger.Info("Vehicle %s registered", v.VehicleID)
			httputil.WriteJSON(w, http.StatusCreated, v)

		default:
			httputil.MethodNotAllowed(w)
		}
	}
}

type vehicleStatusRequest struct {
	IsActive bool `json:"is_active"`
}

// VehicleStatusHandler handles POST /api/vehicles/status?id=, which also counts as a ping.
func VehicleStatusHandler(svc *vehicle.Service, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httputil.MethodNotAllowed(w)
			return
		}
		id, ok := requireID(w, r)
		if !ok {
			return
		}
		var req vehicleStatusRequest
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.BadRequest(w, "invalid JSON body")
			return
		}
		v, err := svc.UpdateStatus(id, req.IsActive)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, v)
	}
}
