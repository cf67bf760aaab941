package handler

import (
	"errors"
	"net/http"
	"strconv"

	"potholewatch/internal/httputil"
	"potholewatch/internal/logger"
	"potholewatch/internal/repository"
	"potholewatch/internal/service/pothole"
	"potholewatch/internal/service/settings"
	"potholewatch/internal/service/vehicle"
)

// writeError maps service errors onto HTTP status codes.
func writeError(w http.ResponseWriter, logger *logger.Logger, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, pothole.ErrInvalid),
		errors.Is(err, vehicle.ErrInvalid),
		errors.Is(err, settings.ErrInvalid):
		httputil.BadRequest(w, err.Error())
	default:
		logger.Error("Request failed: %v", err)
		httputil.InternalServerError(w, err.Error())
	}
}

// requireID reads the id query parameter, writing a 400 when it is missing.
func requireID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.URL.Query().Get("id")
	if id == "" {
		httputil.BadRequest(w, "id parameter is required")
		return "", false
	}
	return id, true
}

// atoiDefault converts s to int or returns def when conversion fails or the value is <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}
