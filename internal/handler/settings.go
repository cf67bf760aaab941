package handler

import (
	"net/http"

	"potholewatch/internal/httputil"
	"potholewatch/internal/logger"
	"potholewatch/internal/model"
	"potholewatch/internal/service/settings"
)

// modelSettingsResponse never echoes the stored API key.
type modelSettingsResponse struct {
	model.ModelSettings
	APIKey    string `json:"api_key,omitempty"`
	HasAPIKey bool   `json:"has_api_key"`
	Backend   string `json:"backend"`
}

func newModelSettingsResponse(s model.ModelSettings, backend string) modelSettingsResponse {
	return modelSettingsResponse{ModelSettings: s, HasAPIKey: s.APIKey != "", Backend: backend}
}

// ModelSettingsHandler handles GET and PUT on /api/settings/model.
func ModelSettingsHandler(svc *settings.Service, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			current, err := svc.Get()
			if err != nil {
				writeError(w, logger, err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, newModelSettingsResponse(current, svc.Backend().Name()))

		case http.MethodPut, http.MethodPost:
			var in model.ModelSettings
			if err := httputil.DecodeJSON(r, &in); err != nil {
				httputil.BadRequest(w, "invalid JSON body")
				return
			}
			saved, err := svc.Save(in)
			if err != nil {
				writeError(w, logger, err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, newModelSettingsResponse(saved, svc.Backend().Name()))

		default:
			httputil.MethodNotAllowed(w)
		}
	}
}
