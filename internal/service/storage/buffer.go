package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"potholewatch/internal/config"
	"potholewatch/internal/logger"
	"potholewatch/internal/model"
)

const timestampLayout = "2006-01-02_15-04_05.000"

// ErrInvalidName is returned for snapshot names that could escape the image directory.
var ErrInvalidName = errors.New("invalid snapshot name")

var validName = regexp.MustCompile(`^[A-Za-z0-9._-]+\.jpg$`)

type bufferedSnapshot struct {
	name    string
	vehicle string
	data    []byte
}

// BufferService buffers annotated frames in memory and periodically flushes them to disk.
type BufferService struct {
	imagesDir     string
	limit         int
	flushInterval time.Duration
	snapshots     []bufferedSnapshot
	bufferCount   map[string]int
	mu            sync.Mutex
	logger        *logger.Logger
}

// NewBufferService creates a new BufferService with the target directory and logger.
func NewBufferService(cfg *config.Config, logger *logger.Logger) *BufferService {
	return &BufferService{
		imagesDir:     cfg.ImageDirectory,
		limit:         cfg.ImageBufferLimit,
		flushInterval: time.Duration(cfg.ImageBufferFlushInterval) * time.Second,
		snapshots:     make([]bufferedSnapshot, 0),
		bufferCount:   make(map[string]int),
		logger:        logger,
	}
}

// Run flushes on a ticker until ctx is cancelled, then flushes once more.
func (s *BufferService) Run(ctx context.Context) {
	interval := s.flushInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Flush()
			return
		case <-ticker.C:
			s.Flush()
		}
	}
}

// Add buffers a snapshot for a vehicle and returns its file name. When the
// vehicle already has limit snapshots waiting, the frame is dropped and ok is false.
func (s *BufferService) Add(data []byte, vehicleID string, severity model.Severity) (name string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.limit > 0 && s.bufferCount[vehicleID] >= s.limit {
		return "", false
	}

	name = fmt.Sprintf("%s_%s_%s_%s.jpg",
		time.Now().UTC().Format(timestampLayout), sanitize(vehicleID), severity, uuid.NewString()[:8])
	s.snapshots = append(s.snapshots, bufferedSnapshot{name: name, vehicle: vehicleID, data: data})
	s.bufferCount[vehicleID]++
	s.logger.Info("Buffer size for vehicle %s: %d/%d", vehicleID, s.bufferCount[vehicleID], s.limit)
	return name, true
}

// Flush writes buffered snapshots to disk and resets the buffer and per-vehicle counters.
func (s *BufferService) Flush() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.snapshots) == 0 {
		return 0
	}
	if err := os.MkdirAll(s.imagesDir, 0755); err != nil {
		s.logger.Error("Error creating directory: %v", err)
		return 0
	}

	saved := 0
	for _, snap := range s.snapshots {
		if err := os.WriteFile(filepath.Join(s.imagesDir, snap.name), snap.data, 0644); err != nil {
			s.logger.Error("Error saving snapshot %s: %v", snap.name, err)
			continue
		}
		saved++
	}

	s.logger.Info("Flushed %d snapshots to disk", saved)
	s.snapshots = s.snapshots[:0]
	s.bufferCount = make(map[string]int)
	return saved
}

// Read returns a snapshot whether it is still buffered or already on disk.
func (s *BufferService) Read(name string) ([]byte, error) {
	if !validName.MatchString(name) || strings.Contains(name, "..") {
		return nil, ErrInvalidName
	}

	s.mu.Lock()
	for _, snap := range s.snapshots {
		if snap.name == name {
			data := snap.data
			s.mu.Unlock()
			return data, nil
		}
	}
	s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.imagesDir, name))
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Pending returns the number of snapshots waiting for the next flush.
func (s *BufferService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snapshots)
}

// SnapshotURL is the API path serving the named snapshot.
func SnapshotURL(name string) string {
	return "/api/snapshots/view?image=" + url.QueryEscape(name)
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		}
		return '-'
	}, s)
}
