package handler

import (
	"encoding/json"
	"net/http"

	"potholewatch/internal/httputil"
	"potholewatch/internal/inference"
	"potholewatch/internal/logger"
	"potholewatch/internal/model"
)

// proxyDetection is the flattened box returned by the detection proxies.
// Label and Class are mutually exclusive depending on the endpoint.
type proxyDetection struct {
	X          float64        `json:"x"`
	Y          float64        `json:"y"`
	Width      float64        `json:"width"`
	Height     float64        `json:"height"`
	Confidence float64        `json:"confidence"`
	Class      string         `json:"class,omitempty"`
	Label      string         `json:"label,omitempty"`
	Severity   model.Severity `json:"severity"`
}

func toProxyDetection(d model.RawDetection) proxyDetection {
	return proxyDetection{
		X:          d.Box.XMin,
		Y:          d.Box.YMin,
		Width:      d.Box.Width(),
		Height:     d.Box.Height(),
		Confidence: d.Score,
		Severity:   inference.ProxySeverity(d.Score),
	}
}

// postOnly rejects anything but POST. CORS headers and pre-flight are
// handled by middleware.CORS in front of the proxies.
func postOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httputil.MethodNotAllowed(w)
			return
		}
		next(w, r)
	}
}

type roboflowDetectRequest struct {
	ImageData string `json:"imageData"`
	ModelID   string `json:"modelId"`
	Version   string `json:"version"`
}

// RoboflowDetectHandler handles POST /roboflow-detect against the hosted
// Roboflow model named in the request.
func RoboflowDetectHandler(client httputil.HTTPClient, defaults inference.Defaults, logger *logger.Logger) http.HandlerFunc {
	return postOnly(func(w http.ResponseWriter, r *http.Request) {
		var req roboflowDetectRequest
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}

		backend, err := inference.NewRoboflowHosted(client, defaults.RoboflowBaseURL, req.ModelID, req.Version, defaults.RoboflowAPIKey)
		if err != nil {
			logger.Error("Error in roboflow-detect: %v", err)
			httputil.InternalServerError(w, err.Error())
			return
		}
		result, err := backend.Predict(r.Context(), inference.ImageFromBase64(req.ImageData))
		if err != nil {
			logger.Error("Error in roboflow-detect: %v", err)
			httputil.InternalServerError(w, err.Error())
			return
		}

		detections := make([]proxyDetection, 0, len(result.Predictions))
		for _, p := range result.Predictions {
			d := toProxyDetection(model.RawDetection{Label: p.Class, Score: p.Confidence, Box: p.Box()})
			d.Class = p.Class
			detections = append(detections, d)
		}
		httputil.WriteJSON(w, http.StatusOK, struct {
			Detections []proxyDetection `json:"detections"`
			Image      json.RawMessage  `json:"image,omitempty"`
		}{detections, result.Image})
	})
}

type yoloDetectionRequest struct {
	ImageData     string          `json:"imageData"`
	ModelEndpoint string          `json:"modelEndpoint"`
	APIKey        string          `json:"apiKey"`
	ModelType     model.ModelType `json:"modelType"`
}

// YOLODetectionHandler handles POST /yolo-detection. Request credentials
// override the server's; unknown model types yield no detections.
func YOLODetectionHandler(client httputil.HTTPClient, defaults inference.Defaults, logger *logger.Logger) http.HandlerFunc {
	return postOnly(func(w http.ResponseWriter, r *http.Request) {
		var req yoloDetectionRequest
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		if req.ModelType == "" {
			req.ModelType = model.ModelRoboflow
		}
		logger.Info("Processing detection request for model type: %s", req.ModelType)

		var backend inference.Backend
		var err error
		switch req.ModelType {
		case model.ModelRoboflow:
			backend, err = inference.NewRoboflow(client, or(req.ModelEndpoint, defaults.RoboflowEndpoint), or(req.APIKey, defaults.RoboflowAPIKey))
		case model.ModelHuggingFace:
			backend, err = inference.NewHuggingFace(client, or(req.ModelEndpoint, defaults.HuggingFaceEndpoint), or(req.APIKey, defaults.HuggingFaceAPIKey))
		case model.ModelCustom:
			backend, err = inference.NewCustom(client, or(req.ModelEndpoint, defaults.CustomEndpoint), or(req.APIKey, defaults.CustomAPIKey), inference.CustomFieldImage)
		default:
			httputil.WriteJSON(w, http.StatusOK, map[string][]proxyDetection{"detections": {}})
			return
		}
		if err != nil {
			logger.Error("Error in yolo-detection: %v", err)
			httputil.InternalServerError(w, err.Error())
			return
		}

		raw, err := backend.Detect(r.Context(), inference.ImageFromBase64(req.ImageData))
		if err != nil {
			logger.Error("Error in yolo-detection: %v", err)
			httputil.InternalServerError(w, err.Error())
			return
		}

		detections := make([]proxyDetection, 0, len(raw))
		for _, d := range raw {
			pd := toProxyDetection(d)
			pd.Label = d.Label
			detections = append(detections, pd)
		}
		logger.Info("Detected %d objects", len(detections))
		httputil.WriteJSON(w, http.StatusOK, map[string][]proxyDetection{"detections": detections})
	})
}

type customDetectionRequest struct {
	ImageData string `json:"imageData"`
}

// CustomPotholeDetectionHandler handles POST /custom-pothole-detection using
// the server's custom model credentials.
func CustomPotholeDetectionHandler(client httputil.HTTPClient, defaults inference.Defaults, logger *logger.Logger) http.HandlerFunc {
	return postOnly(func(w http.ResponseWriter, r *http.Request) {
		var req customDetectionRequest
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}

		backend, err := inference.NewCustom(client, defaults.CustomEndpoint, defaults.CustomAPIKey, inference.CustomFieldInputs)
		if err != nil {
			logger.Error("Error in custom pothole detection: %v", err)
			httputil.InternalServerError(w, err.Error())
			return
		}
		raw, err := backend.Detect(r.Context(), inference.ImageFromBase64(req.ImageData))
		if err != nil {
			logger.Error("Error in custom pothole detection: %v", err)
			httputil.InternalServerError(w, err.Error())
			return
		}

		detections := make([]proxyDetection, 0, len(raw))
		for _, d := range raw {
			detections = append(detections, toProxyDetection(d))
		}
		httputil.WriteJSON(w, http.StatusOK, map[string][]proxyDetection{"detections": detections})
	})
}

func or(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
