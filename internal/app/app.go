package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"potholewatch/internal/config"
	"potholewatch/internal/httputil"
	"potholewatch/internal/inference"
	"potholewatch/internal/logger"
	"potholewatch/internal/middleware"
	"potholewatch/internal/model"
	"potholewatch/internal/repository/sqlite"
	"potholewatch/internal/route"
	"potholewatch/internal/service/ai"
	"potholewatch/internal/service/frame"
	"potholewatch/internal/service/live"
	"potholewatch/internal/service/notification"
	"potholewatch/internal/service/pothole"
	"potholewatch/internal/service/realtime"
	"potholewatch/internal/service/report"
	"potholewatch/internal/service/settings"
	"potholewatch/internal/service/storage"
	"potholewatch/internal/service/vehicle"
)

const (
	simulatedWidth  = 640
	simulatedHeight = 480
	shutdownTimeout = 10 * time.Second
)

type App struct {
	config        *config.Config
	logger        *logger.Logger
	db            *sqlite.DB
	detector      *ai.DetectorService
	bufferService *storage.BufferService
	hubService    *realtime.HubService
	controller    *live.Controller
	limiter       *middleware.RateLimiter
	settings      *settings.Service
	router        http.Handler
}

func NewApp() (*App, error) {
	cfg := config.Load()
	log := logger.NewLogger(cfg)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	potholeRepo := sqlite.NewPotholeRepository(db)
	vehicleRepo := sqlite.NewVehicleRepository(db)
	notificationRepo := sqlite.NewNotificationRepository(db)
	settingsRepo := sqlite.NewSettingsRepository(db)

	hub := realtime.NewHubService(log)
	notifications := notification.NewService(notificationRepo, hub)
	potholes := pothole.NewService(potholeRepo, notifications, hub, log)
	vehicles := vehicle.NewService(vehicleRepo, hub)
	reports := report.NewService(potholeRepo, vehicleRepo, notificationRepo)

	hub.SetSnapshot(realtime.TablePotholes, func() (interface{}, error) {
		return potholes.List(model.PotholeFilter{})
	})
	hub.SetSnapshot(realtime.TableVehicles, func() (interface{}, error) {
		return vehicles.List()
	})
	hub.SetSnapshot(realtime.TableNotifications, func() (interface{}, error) {
		return notifications.List()
	})

	detector := ai.NewDetectorService(cfg, log)
	client := httputil.NewClient(time.Duration(cfg.InferenceTimeout) * time.Second)
	defaults := inference.DefaultsFromConfig(cfg)
	selector := inference.NewSelector(client, defaults, detector.Backend(), log)
	settingsService := settings.NewService(settingsRepo, selector, model.ModelSettings{ModelType: model.ModelType(cfg.ModelType)}, log)

	buffer := storage.NewBufferService(cfg, log)
	codec := frame.NewCodec()

	source, backend, err := liveSource(cfg, log, codec, settingsService)
	if err != nil {
		return nil, err
	}
	controller := live.NewController(live.Options{
		Cadence:   time.Duration(cfg.LiveCadenceMs) * time.Millisecond,
		VehicleID: cfg.LiveVehicleID,
		Source:    source,
		Backend:   backend,
		Records:   potholes,
		Snapshots: buffer,
		Annotator: codec,
		Viewers:   hub,
		Location:  live.NewLocationTracker(cfg.DefaultLat, cfg.DefaultLng),
		Logger:    log,
	})

	limiter := middleware.NewRateLimiter(cfg.RateLimit, time.Duration(cfg.RateWindowSeconds)*time.Second, cfg.TrustedProxies...)

	router := route.SetupRoutes(route.Services{
		Potholes:      potholes,
		Vehicles:      vehicles,
		Notifications: notifications,
		Reports:       reports,
		Settings:      settingsService,
		Live:          controller,
		Hub:           hub,
		Snapshots:     buffer,
		Codec:         codec,
		HTTPClient:    client,
		Defaults:      defaults,
		ProxyLimiter:  limiter,
		Started:       time.Now(),
	}, cfg, log)

	return &App{
		config:        cfg,
		logger:        log,
		db:            db,
		detector:      detector,
		bufferService: buffer,
		hubService:    hub,
		controller:    controller,
		limiter:       limiter,
		settings:      settingsService,
		router:        router,
	}, nil
}

// liveSource picks the frame source for LIVE_SOURCE. Simulation pairs a
// blank frame with random boxes; every other source uses the configured backend.
func liveSource(cfg *config.Config, log *logger.Logger, codec *frame.Codec, settingsService *settings.Service) (live.SourceFactory, live.BackendFunc, error) {
	backend := live.BackendFunc(settingsService.Backend)

	switch cfg.LiveSource {
	case "simulate":
		simulated := inference.NewSimulated(simulatedWidth, simulatedHeight, time.Now().UnixNano())
		return func() (live.FrameSource, error) {
			return frame.NewBlankSource(simulatedWidth, simulatedHeight)
		}, func() inference.Backend { return simulated }, nil
	case "udp":
		return func() (live.FrameSource, error) {
			return live.ListenUDP(cfg.CamerasPort, cfg.CameraNames, codec.Dimensions, log)
		}, backend, nil
	case "device", "":
		return func() (live.FrameSource, error) {
			return frame.OpenDevice(cfg.LiveDevice)
		}, backend, nil
	default:
		return nil, nil, fmt.Errorf("unknown LIVE_SOURCE %q", cfg.LiveSource)
	}
}

func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start background services
	go a.bufferService.Run(ctx)
	go a.hubService.Run(ctx)
	go a.limiter.RunCleanup(ctx.Done())

	if a.config.LiveAutostart {
		if err := a.controller.Start(ctx); err != nil {
			a.logger.Warning("Live capture autostart failed: %v", err)
		}
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Printf("🚀 Pothole Detection Server\n")
	fmt.Printf("📍 URL: http://localhost:%d\n", a.config.Port)
	fmt.Printf("📁 Database: %s\n", a.config.DBPath)
	fmt.Printf("📁 Snapshots: %s\n", a.config.ImageDirectory)
	fmt.Printf("🤖 Detector: %s\n", a.settings.Backend().Name())
	fmt.Printf("🎥 Live source: %s\n", a.config.LiveSource)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.close(closeCtx)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := server.Shutdown(shutdownCtx)
	a.close(shutdownCtx)
	return err
}

// close waits for the live loop before releasing what it writes to.
func (a *App) close(ctx context.Context) {
	if err := a.controller.Shutdown(ctx); err != nil {
		a.logger.Warning("Live capture did not stop in time: %v", err)
	}
	a.bufferService.Flush()
	if err := a.detector.Close(); err != nil {
		a.logger.Warning("Error closing detector: %v", err)
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warning("Error closing database: %v", err)
	}
	a.logger.Close()
}
