package handler

import (
	"errors"
	"net/http"
	"os"

	"potholewatch/internal/httputil"
	"potholewatch/internal/logger"
	"potholewatch/internal/service/storage"
)

// SnapshotViewHandler handles GET /api/snapshots/view?image=NAME, serving a
// snapshot whether it is still buffered or already flushed to disk.
func SnapshotViewHandler(buffer *storage.BufferService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w)
			return
		}
		image := r.URL.Query().Get("image")
		if image == "" {
			httputil.BadRequest(w, "image parameter is required")
			return
		}

		data, err := buffer.Read(image)
		switch {
		case errors.Is(err, storage.ErrInvalidName):
			httputil.BadRequest(w, err.Error())
			return
		case errors.Is(err, os.ErrNotExist):
			httputil.NotFound(w, "snapshot not found")
			return
		case err != nil:
			logger.Error("Failed to read snapshot %s: %v", image, err)
			httputil.InternalServerError(w, "failed to read snapshot")
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Write(data)
	}
}
