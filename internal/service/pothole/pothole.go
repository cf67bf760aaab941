// Package pothole owns the pothole record lifecycle: creation from
// detections or manual reports, status changes and proximity queries.
package pothole

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"potholewatch/internal/geo"
	"potholewatch/internal/logger"
	"potholewatch/internal/model"
	"potholewatch/internal/repository"
	"potholewatch/internal/service/realtime"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid pothole")

type Publisher interface {
	Publish(table string, typ realtime.EventType, newRecord, oldRecord interface{})
}

// Notifier records a dashboard notification.
type Notifier interface {
	Notify(potholeID string, typ model.NotificationType, message string) (*model.Notification, error)
}

// CreateInput is a new pothole report.
type CreateInput struct {
	Latitude    float64        `json:"latitude"`
	Longitude   float64        `json:"longitude"`
	Severity    model.Severity `json:"severity"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	ImageURL    *string        `json:"image_url"`
	VehicleID   string         `json:"vehicle_id"`
	ReportedAt  time.Time      `json:"reported_at"`
}

func (in CreateInput) validate() error {
	if !geo.ValidCoordinate(in.Latitude, in.Longitude) {
		return fmt.Errorf("%w: coordinates out of range", ErrInvalid)
	}
	if !in.Severity.Valid() {
		return fmt.Errorf("%w: unknown severity %q", ErrInvalid, in.Severity)
	}
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalid)
	}
	return nil
}

type Service struct {
	repo      repository.PotholeRepository
	notifier  Notifier
	publisher Publisher
	logger    *logger.Logger
	now       func() time.Time
}

func NewService(repo repository.PotholeRepository, notifier Notifier, publisher Publisher, logger *logger.Logger) *Service {
	return &Service{repo: repo, notifier: notifier, publisher: publisher, logger: logger, now: time.Now}
}

// Create validates and stores a report, then publishes it and raises a
// detection notification. A failed notification does not fail the create.
func (s *Service) Create(in CreateInput) (*model.Pothole, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	reportedAt := in.ReportedAt
	if reportedAt.IsZero() {
		reportedAt = now
	}

	p := &model.Pothole{
		ID:          uuid.NewString(),
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		Severity:    in.Severity,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		ImageURL:    in.ImageURL,
		VehicleID:   in.VehicleID,
		Status:      model.StatusPending,
		ReportedAt:  reportedAt.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(p); err != nil {
		return nil, err
	}
	s.publisher.Publish(realtime.TablePotholes, realtime.EventInsert, p, nil)

	msg := fmt.Sprintf("New pothole detected: %s - Severity: %s", p.Title, p.Severity)
	if _, err := s.notifier.Notify(p.ID, model.NotificationDetection, msg); err != nil {
		s.logger.Warning("Failed to create notification for pothole %s: %v", p.ID, err)
	}
	return p, nil
}

func (s *Service) Get(id string) (*model.Pothole, error) {
	return s.repo.GetByID(id)
}

func (s *Service) List(filter model.PotholeFilter) ([]model.Pothole, error) {
	return s.repo.List(filter)
}

// UpdateStatus moves a pothole through pending, verified and repaired.
// Marking a pothole repaired raises a repair notification.
func (s *Service) UpdateStatus(id string, status model.Status) (*model.Pothole, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalid, status)
	}

	old, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	updated, err := s.repo.UpdateStatus(id, status, s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(realtime.TablePotholes, realtime.EventUpdate, updated, old)

	if status == model.StatusRepaired && old.Status != model.StatusRepaired {
		msg := fmt.Sprintf("Pothole repaired: %s", updated.Title)
		if _, err := s.notifier.Notify(updated.ID, model.NotificationRepair, msg); err != nil {
			s.logger.Warning("Failed to create repair notification for pothole %s: %v", updated.ID, err)
		}
	}
	return updated, nil
}

// Nearby returns potholes within radiusMeters of the point, closest first.
func (s *Service) Nearby(lat, lng, radiusMeters float64) ([]geo.NearbyPothole, error) {
	if !geo.ValidCoordinate(lat, lng) {
		return nil, fmt.Errorf("%w: coordinates out of range", ErrInvalid)
	}
	if radiusMeters <= 0 {
		return nil, fmt.Errorf("%w: radius must be positive", ErrInvalid)
	}
	candidates, err := s.repo.ListInBounds(geo.BoundsAround(lat, lng, radiusMeters))
	if err != nil {
		return nil, err
	}
	return geo.Nearby(candidates, lat, lng, radiusMeters), nil
}
