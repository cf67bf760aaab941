package handler

import (
	"encoding/base64"
	"io"
	"net/http"

	"potholewatch/internal/classify"
	"potholewatch/internal/httputil"
	"potholewatch/internal/inference"
	"potholewatch/internal/logger"
	"potholewatch/internal/model"
)

const maxUploadSize = 20 << 20

// ImageCodec reads image dimensions and draws detection overlays.
type ImageCodec interface {
	Dimensions(data []byte) (width, height int, err error)
	Annotate(data []byte, detections []model.ClassifiedDetection) ([]byte, error)
}

type uploadResponse struct {
	Detections []model.ClassifiedDetection `json:"detections"`
	Image      string                      `json:"image"`
	Width      int                         `json:"width"`
	Height     int                         `json:"height"`
	Backend    string                      `json:"backend"`
}

// UploadDetectHandler handles POST /api/detect/upload with a multipart "file"
// field. The configured backend runs once; its failures yield an empty result
// rather than an error.
func UploadDetectHandler(backend func() inference.Backend, codec ImageCodec, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httputil.MethodNotAllowed(w)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		file, header, err := r.FormFile("file")
		if err != nil {
			httputil.BadRequest(w, "file field is required")
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			httputil.BadRequest(w, "failed to read upload")
			return
		}
		width, height, err := codec.Dimensions(data)
		if err != nil {
			logger.Warning("Rejected upload %s: %v", header.Filename, err)
			httputil.BadRequest(w, "unsupported or corrupt image")
			return
		}

		b := backend()
		raw, err := b.Detect(r.Context(), inference.ImageFromBytes(data))
		if err != nil {
			logger.Warning("%s backend failed on upload %s: %v", b.Name(), header.Filename, err)
			raw = nil
		}
		detections := classify.Classify(raw, width, height)

		image := data
		if len(detections) > 0 {
			if annotated, err := codec.Annotate(data, detections); err != nil {
				logger.Warning("Failed to annotate upload %s: %v", header.Filename, err)
			} else {
				image = annotated
			}
		}

		logger.Info("Upload %s: %d detections (%s)", header.Filename, len(detections), b.Name())
		httputil.WriteJSON(w, http.StatusOK, uploadResponse{
			Detections: detections,
			Image:      base64.StdEncoding.EncodeToString(image),
			Width:      width,
			Height:     height,
			Backend:    b.Name(),
		})
	}
}
