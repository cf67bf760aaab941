// Package live drives the camera capture loop: it samples a frame source at
// a fixed cadence, classifies each frame, keeps a short trailing history of
// detections and turns confident ones into pothole records.
package live

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"potholewatch/internal/classify"
	"potholewatch/internal/inference"
	"potholewatch/internal/logger"
	"potholewatch/internal/model"
	"potholewatch/internal/service/pothole"
	"potholewatch/internal/service/realtime"
	"potholewatch/internal/service/storage"
)

const (
	DefaultCadence   = 200 * time.Millisecond
	DefaultVehicleID = "DASHCAM-001"

	// HistoryLimit bounds the trailing history after a frame with detections.
	HistoryLimit = 10
	// FadeLimit is what the history shrinks to after an empty frame.
	FadeLimit = 5
	// RecordConfidence is the confidence above which a detection becomes a record.
	RecordConfidence = 0.6

	recordTitle = "Pothole detected via live camera"
)

var ErrNoSource = errors.New("no frame source configured")

// FrameSource yields the most recent camera frame. ok is false while no
// frame is ready.
type FrameSource interface {
	Next(ctx context.Context) (frame model.Frame, ok bool, err error)
	Close() error
}

// SourceFactory opens a fresh source for each streaming session.
type SourceFactory func() (FrameSource, error)

// BackendFunc returns the backend to use for the next frame, so settings
// changes apply without restarting the stream.
type BackendFunc func() inference.Backend

type RecordCreator interface {
	Create(in pothole.CreateInput) (*model.Pothole, error)
}

type SnapshotStore interface {
	Add(data []byte, vehicleID string, severity model.Severity) (name string, ok bool)
}

type Annotator interface {
	Annotate(data []byte, detections []model.ClassifiedDetection) ([]byte, error)
}

type Broadcaster interface {
	Broadcast(topic string, payload []byte)
}

// Options wires the controller. Source, Backend and Logger are required.
type Options struct {
	Cadence   time.Duration
	VehicleID string
	Source    SourceFactory
	Backend   BackendFunc
	Records   RecordCreator
	Snapshots SnapshotStore
	Annotator Annotator
	Viewers   Broadcaster
	Location  *LocationTracker
	Logger    *logger.Logger
}

// Stats counts what the loop has done since the process started.
type Stats struct {
	Frames        int64      `json:"frames"`
	Detections    int64      `json:"detections"`
	Records       int64      `json:"records"`
	BackendErrors int64      `json:"backend_errors"`
	LastFrameAt   *time.Time `json:"last_frame_at,omitempty"`
}

// State is the controller snapshot served to the dashboard.
type State struct {
	Streaming bool                        `json:"streaming"`
	Cadence   int64                       `json:"cadence_ms"`
	VehicleID string                      `json:"vehicle_id"`
	History   []model.ClassifiedDetection `json:"history"`
	Location  Location                    `json:"location"`
	Stats     Stats                       `json:"stats"`
}

// Frame is the payload pushed to live viewers after every processed frame.
type Frame struct {
	Image      string                      `json:"image"`
	Width      int                         `json:"width"`
	Height     int                         `json:"height"`
	VehicleID  string                      `json:"vehicle_id"`
	Detections []model.ClassifiedDetection `json:"detections"`
	History    []model.ClassifiedDetection `json:"history"`
	CapturedAt time.Time                   `json:"captured_at"`
}

// Controller runs at most one capture loop at a time. The next tick is only
// scheduled once the previous frame is fully processed.
type Controller struct {
	opts Options

	mu         sync.Mutex
	streaming  bool
	generation uint64
	cancel     context.CancelFunc
	history    []model.ClassifiedDetection
	stats      Stats

	loops sync.WaitGroup
}

func NewController(opts Options) *Controller {
	if opts.Cadence <= 0 {
		opts.Cadence = DefaultCadence
	}
	if opts.VehicleID == "" {
		opts.VehicleID = DefaultVehicleID
	}
	if opts.Location == nil {
		opts.Location = NewLocationTracker(0, 0)
	}
	return &Controller{opts: opts, history: []model.ClassifiedDetection{}}
}

// Start opens a source and begins sampling. The loop is detached from ctx
// cancellation (ctx is usually an HTTP request) and runs until Stop.
// Starting an already streaming controller is a no-op.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.streaming {
		return nil
	}
	if c.opts.Source == nil {
		return ErrNoSource
	}
	source, err := c.opts.Source()
	if err != nil {
		return fmt.Errorf("open frame source: %w", err)
	}

	parent := context.WithoutCancel(ctx)
	loopCtx, cancel := context.WithCancel(parent)
	c.streaming = true
	c.generation++
	c.cancel = cancel

	c.loops.Add(1)
	go c.run(parent, loopCtx, c.generation, source)
	c.opts.Logger.Info("Live capture started (cadence %s)", c.opts.Cadence)
	return nil
}

// Stop ends the loop. A classification already in flight finishes but its
// result is discarded.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.streaming {
		return
	}
	c.streaming = false
	c.cancel()
	c.cancel = nil
	c.opts.Logger.Info("Live capture stopped")
}

// Shutdown stops the loop and waits for it to exit, including a frame that
// was still being classified. It gives up when ctx is done.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.Stop()

	done := make(chan struct{})
	go func() {
		c.loops.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streaming
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return State{
		Streaming: c.streaming,
		Cadence:   c.opts.Cadence.Milliseconds(),
		VehicleID: c.opts.VehicleID,
		History:   append([]model.ClassifiedDetection{}, c.history...),
		Location:  c.opts.Location.Current(),
		Stats:     c.stats,
	}
}

// SetLocation updates the position used for new records.
func (c *Controller) SetLocation(lat, lng float64) error {
	return c.opts.Location.Update(lat, lng)
}

func (c *Controller) active(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streaming && c.generation == gen
}

// run is the capture loop. parent outlives Stop so in-flight backend calls
// complete; loopCtx only gates the wait between ticks.
func (c *Controller) run(parent, loopCtx context.Context, gen uint64, source FrameSource) {
	defer c.loops.Done()
	defer func() {
		if err := source.Close(); err != nil {
			c.opts.Logger.Warning("Error closing frame source: %v", err)
		}
	}()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-loopCtx.Done():
			return
		case <-timer.C:
		}
		if !c.active(gen) {
			return
		}

		c.tick(parent, gen, source)

		if !c.active(gen) {
			return
		}
		timer.Reset(c.opts.Cadence)
	}
}

func (c *Controller) tick(ctx context.Context, gen uint64, source FrameSource) {
	frame, ok, err := source.Next(ctx)
	if err != nil {
		c.opts.Logger.Warning("Frame source error: %v", err)
		return
	}
	if !ok {
		return
	}

	backend := c.opts.Backend()
	raw, err := backend.Detect(ctx, inference.ImageFromBytes(frame.Data))
	backendFailed := err != nil
	if backendFailed {
		c.opts.Logger.Warning("%s backend failed, treating frame as empty: %v", backend.Name(), err)
		raw = nil
	}
	detections := classify.Classify(raw, frame.Width, frame.Height)

	if !c.active(gen) {
		return
	}

	image := frame.Data
	if len(detections) > 0 && c.opts.Annotator != nil {
		if annotated, err := c.opts.Annotator.Annotate(frame.Data, detections); err != nil {
			c.opts.Logger.Warning("Failed to annotate frame: %v", err)
		} else {
			image = annotated
		}
	}

	history := c.advance(frame.CapturedAt, detections, backendFailed)

	vehicleID := frame.VehicleID
	if vehicleID == "" {
		vehicleID = c.opts.VehicleID
	}
	if len(detections) > 0 {
		c.record(detections, image, vehicleID)
	}
	c.broadcast(frame, image, vehicleID, detections, history)
}

// advance folds a frame's detections into the trailing history and returns
// a copy of it.
func (c *Controller) advance(capturedAt time.Time, detections []model.ClassifiedDetection, backendFailed bool) []model.ClassifiedDetection {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.Frames++
	if backendFailed {
		c.stats.BackendErrors++
	}
	if !capturedAt.IsZero() {
		at := capturedAt.UTC()
		c.stats.LastFrameAt = &at
	}

	if len(detections) > 0 {
		c.stats.Detections += int64(len(detections))
		c.history = NextHistory(c.history, detections)
	} else {
		c.history = FadeHistory(c.history)
	}
	return append([]model.ClassifiedDetection{}, c.history...)
}

func (c *Controller) record(detections []model.ClassifiedDetection, image []byte, vehicleID string) {
	if c.opts.Records == nil {
		return
	}

	var confident []model.ClassifiedDetection
	for _, d := range detections {
		if d.Confidence > RecordConfidence {
			confident = append(confident, d)
		}
	}
	if len(confident) == 0 {
		return
	}

	var imageURL *string
	if c.opts.Snapshots != nil {
		if name, ok := c.opts.Snapshots.Add(image, vehicleID, worst(confident)); ok {
			u := storage.SnapshotURL(name)
			imageURL = &u
		}
	}

	loc := c.opts.Location.Current()
	for _, d := range confident {
		_, err := c.opts.Records.Create(pothole.CreateInput{
			Latitude:    loc.Latitude,
			Longitude:   loc.Longitude,
			Severity:    RecordSeverity(d.Confidence),
			Title:       recordTitle,
			Description: fmt.Sprintf("AI detected pothole with %.1f%% confidence", d.Confidence*100),
			ImageURL:    imageURL,
			VehicleID:   vehicleID,
		})
		if err != nil {
			c.opts.Logger.Error("Failed to record live detection: %v", err)
			continue
		}
		c.mu.Lock()
		c.stats.Records++
		c.mu.Unlock()
	}
}

func (c *Controller) broadcast(frame model.Frame, image []byte, vehicleID string, detections, history []model.ClassifiedDetection) {
	if c.opts.Viewers == nil {
		return
	}
	ev, err := realtime.NewEvent(realtime.TopicLive, realtime.EventFrame, Frame{
		Image:      base64.StdEncoding.EncodeToString(image),
		Width:      frame.Width,
		Height:     frame.Height,
		VehicleID:  vehicleID,
		Detections: detections,
		History:    history,
		CapturedAt: frame.CapturedAt,
	}, nil)
	if err != nil {
		c.opts.Logger.Error("Failed to encode live frame: %v", err)
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		c.opts.Logger.Error("Failed to encode live frame: %v", err)
		return
	}
	c.opts.Viewers.Broadcast(realtime.TopicLive, payload)
}

// NextHistory keeps the last HistoryLimit-1 entries, appends the new
// detections and bounds the result to HistoryLimit.
func NextHistory(history, detections []model.ClassifiedDetection) []model.ClassifiedDetection {
	next := make([]model.ClassifiedDetection, 0, HistoryLimit+len(detections))
	next = append(next, lastN(history, HistoryLimit-1)...)
	next = append(next, detections...)
	return lastN(next, HistoryLimit)
}

// FadeHistory drops all but the last FadeLimit entries.
func FadeHistory(history []model.ClassifiedDetection) []model.ClassifiedDetection {
	return append([]model.ClassifiedDetection{}, lastN(history, FadeLimit)...)
}

func lastN(in []model.ClassifiedDetection, n int) []model.ClassifiedDetection {
	if len(in) <= n {
		return in
	}
	return in[len(in)-n:]
}

// RecordSeverity maps a live detection confidence to the stored severity.
func RecordSeverity(confidence float64) model.Severity {
	switch {
	case confidence > 0.9:
		return model.SeverityHigh
	case confidence > 0.8:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

func worst(detections []model.ClassifiedDetection) model.Severity {
	severity := model.SeverityLow
	for _, d := range detections {
		switch RecordSeverity(d.Confidence) {
		case model.SeverityHigh:
			return model.SeverityHigh
		case model.SeverityMedium:
			severity = model.SeverityMedium
		}
	}
	return severity
}
