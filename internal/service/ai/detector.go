// Package ai hosts the on-box general purpose object detector.
package ai

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"potholewatch/internal/config"
	"potholewatch/internal/inference"
	"potholewatch/internal/logger"
	"potholewatch/internal/model"
)

// DetectionThreshold is the minimum network confidence forwarded to classification.
// The classification pipeline applies its own, stricter cut-offs afterwards.
const DetectionThreshold = 0.2

// DetectorService runs an SSD MobileNet COCO network loaded through OpenCV DNN.
type DetectorService struct {
	mu         sync.Mutex
	net        gocv.Net
	loaded     bool
	modelPath  string
	configPath string
	logger     *logger.Logger
}

// NewDetectorService creates a detector with model/config paths and a logger.
// It attempts to initialize the underlying DNN network; Loaded reports the outcome.
func NewDetectorService(cfg *config.Config, logger *logger.Logger) *DetectorService {
	service := &DetectorService{
		modelPath:  cfg.ModelPath,
		configPath: cfg.ConfigPath,
		logger:     logger,
	}

	if err := service.initializeNet(); err != nil {
		service.logger.Warning("Could not initialize detection network: %v", err)
	}
	return service
}

// initializeNet loads the DNN network and sets backend/target preferences.
func (s *DetectorService) initializeNet() error {
	if _, err := os.Stat(s.modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", s.modelPath)
	}
	if _, err := os.Stat(s.configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", s.configPath)
	}

	net := gocv.ReadNet(s.modelPath, s.configPath)
	if net.Empty() {
		return fmt.Errorf("failed to load network")
	}
	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable backend or target")
	}

	s.net = net
	s.loaded = true
	s.logger.Info("Detection network initialized successfully")
	return nil
}

// Loaded reports whether the network is ready.
func (s *DetectorService) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Backend returns s as an inference backend, or nil when the network failed to load.
func (s *DetectorService) Backend() inference.Backend {
	if !s.Loaded() {
		return nil
	}
	return s
}

func (s *DetectorService) Name() string { return string(model.ModelLocal) }

// Detect decodes the image and runs one forward pass.
func (s *DetectorService) Detect(ctx context.Context, img inference.Image) ([]model.RawDetection, error) {
	data, err := img.Bytes()
	if err != nil {
		return nil, err
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, fmt.Errorf("decoded image is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.DetectMat(mat)
}

// DetectMat runs the network on an already decoded BGR frame.
func (s *DetectorService) DetectMat(mat gocv.Mat) ([]model.RawDetection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return nil, fmt.Errorf("detection network not initialized")
	}

	// SSD COCO expects 300x300 input scaled to [-1, 1]
	blob := gocv.BlobFromImage(mat, 1.0/127.5, image.Pt(300, 300), gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	s.net.SetInput(blob, "")
	output := s.net.Forward("")
	defer output.Close()

	cols := float64(mat.Cols())
	rows := float64(mat.Rows())

	// rows of [batch_id, class_id, confidence, x1, y1, x2, y2], coordinates normalized
	reshaped := output.Reshape(1, output.Total()/7)
	defer reshaped.Close()

	results := []model.RawDetection{}
	for i := 0; i < reshaped.Rows(); i++ {
		confidence := float64(reshaped.GetFloatAt(i, 2))
		if confidence <= DetectionThreshold {
			continue
		}
		classID := int(reshaped.GetFloatAt(i, 1))
		results = append(results, model.RawDetection{
			Label: ClassLabel(classID),
			Score: confidence,
			Box: model.Box{
				XMin: clamp(float64(reshaped.GetFloatAt(i, 3))*cols, cols),
				YMin: clamp(float64(reshaped.GetFloatAt(i, 4))*rows, rows),
				XMax: clamp(float64(reshaped.GetFloatAt(i, 5))*cols, cols),
				YMax: clamp(float64(reshaped.GetFloatAt(i, 6))*rows, rows),
			},
		})
	}
	return results, nil
}

// Close releases the network.
func (s *DetectorService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return nil
	}
	s.loaded = false
	return s.net.Close()
}

func clamp(v, limit float64) float64 {
	if v < 0 {
		return 0
	}
	if v > limit {
		return limit
	}
	return v
}
