package route

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"potholewatch/internal/config"
	"potholewatch/internal/handler"
	"potholewatch/internal/httputil"
	"potholewatch/internal/inference"
	"potholewatch/internal/logger"
	"potholewatch/internal/middleware"
	"potholewatch/internal/service/live"
	"potholewatch/internal/service/notification"
	"potholewatch/internal/service/pothole"
	"potholewatch/internal/service/realtime"
	"potholewatch/internal/service/report"
	"potholewatch/internal/service/settings"
	"potholewatch/internal/service/storage"
	"potholewatch/internal/service/vehicle"
)

const staticDir = "static"

// Services bundles everything the HTTP layer talks to.
type Services struct {
	Potholes      *pothole.Service
	Vehicles      *vehicle.Service
	Notifications *notification.Service
	Reports       *report.Service
	Settings      *settings.Service
	Live          *live.Controller
	Hub           *realtime.HubService
	Snapshots     *storage.BufferService
	Codec         handler.ImageCodec
	HTTPClient    httputil.HTTPClient
	Defaults      inference.Defaults
	ProxyLimiter  *middleware.RateLimiter
	Started       time.Time
}

// dynamicHTMLHandler serves /path as /static/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if path == "/" {
		path = "/index"
	}

	filePath := filepath.Join(staticDir, filepath.Clean("/"+path)+".html")

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, filePath)
}

// proxy applies CORS outside the rate limiter; a 429 carries the origin headers too.
func proxy(limiter *middleware.RateLimiter, h http.Handler) http.Handler {
	return middleware.CORS(middleware.RateLimit(limiter)(h))
}

// SetupRoutes registers static file serving, the detection proxies, the API
// and log endpoints, and wraps the mux with request logging and authentication.
func SetupRoutes(s Services, cfg *config.Config, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Static files
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))

	// Detection proxies
	mux.Handle("/roboflow-detect", proxy(s.ProxyLimiter, handler.RoboflowDetectHandler(s.HTTPClient, s.Defaults, logger)))
	mux.Handle("/yolo-detection", proxy(s.ProxyLimiter, handler.YOLODetectionHandler(s.HTTPClient, s.Defaults, logger)))
	mux.Handle("/custom-pothole-detection", proxy(s.ProxyLimiter, handler.CustomPotholeDetectionHandler(s.HTTPClient, s.Defaults, logger)))

	// Potholes, vehicles, notifications
	mux.HandleFunc("/api/potholes", handler.PotholesHandler(s.Potholes, logger))
	mux.HandleFunc("/api/potholes/get", handler.PotholeHandler(s.Potholes, logger))
	mux.HandleFunc("/api/potholes/status", handler.PotholeStatusHandler(s.Potholes, logger))
	mux.HandleFunc("/api/potholes/nearby", handler.NearbyPotholesHandler(s.Potholes, logger))
	mux.HandleFunc("/api/vehicles", handler.VehiclesHandler(s.Vehicles, logger))
	mux.HandleFunc("/api/vehicles/status", handler.VehicleStatusHandler(s.Vehicles, logger))
	mux.HandleFunc("/api/notifications", handler.NotificationsHandler(s.Notifications, logger))
	mux.HandleFunc("/api/notifications/read", handler.MarkNotificationReadHandler(s.Notifications, logger))
	mux.HandleFunc("/api/notifications/read-all", handler.MarkAllNotificationsReadHandler(s.Notifications, logger))

	// Reports and settings
	mux.HandleFunc("/api/reports/summary", handler.ReportSummaryHandler(s.Reports, logger))
	mux.HandleFunc("/api/reports/analytics", handler.ReportAnalyticsHandler(s.Reports, logger))
	mux.HandleFunc("/api/settings/model", handler.ModelSettingsHandler(s.Settings, logger))

	// Detection
	mux.HandleFunc("/api/detect/upload", handler.UploadDetectHandler(s.Settings.Backend, s.Codec, logger))
	mux.HandleFunc("/api/live", handler.LiveStateHandler(s.Live))
	mux.HandleFunc("/api/live/start", handler.LiveStartHandler(s.Live, logger))
	mux.HandleFunc("/api/live/stop", handler.LiveStopHandler(s.Live))
	mux.HandleFunc("/api/live/location", handler.LiveLocationHandler(s.Live))
	mux.HandleFunc("/api/live/view", handler.LiveViewHandler(s.Hub, logger))
	mux.HandleFunc("/api/snapshots/view", handler.SnapshotViewHandler(s.Snapshots, logger))

	// Change feed
	mux.HandleFunc("/api/realtime", handler.RealtimeHandler(s.Hub, logger))

	// Log endpoints
	mux.HandleFunc("/logs/info", handler.ShowLogsHandler(logger, "info.log"))
	mux.HandleFunc("/logs/warning", handler.ShowLogsHandler(logger, "warning.log"))
	mux.HandleFunc("/logs/error", handler.ShowLogsHandler(logger, "error.log"))

	mux.HandleFunc("/logs/info/clear", handler.ClearLogsHandler(logger, "info.log"))
	mux.HandleFunc("/logs/warning/clear", handler.ClearLogsHandler(logger, "warning.log"))
	mux.HandleFunc("/logs/error/clear", handler.ClearLogsHandler(logger, "error.log"))

	// Auth endpoints
	mux.HandleFunc("/auth/login", handler.LoginHandler(cfg, logger))
	mux.HandleFunc("/auth/logout", handler.LogoutHandler)

	mux.HandleFunc("/health", handler.HealthHandler(s.Started, func() string { return s.Settings.Backend().Name() }))

	// Automatic HTML handler mapping for example: /settings -> /static/settings.html
	mux.HandleFunc("/", dynamicHTMLHandler)

	// Apply middleware
	return middleware.RequestLogger(logger)(middleware.Auth(cfg.JWTSecret, logger)(mux))
}
