// Package vehicle tracks the dashcam-equipped vehicles reporting potholes.
package vehicle

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"potholewatch/internal/model"
	"potholewatch/internal/repository"
	"potholewatch/internal/service/realtime"
)

// ErrInvalid marks a rejected registration.
var ErrInvalid = errors.New("invalid vehicle")

type Publisher interface {
	Publish(table string, typ realtime.EventType, newRecord, oldRecord interface{})
}

type Service struct {
	repo      repository.VehicleRepository
	publisher Publisher
	now       func() time.Time
}

func NewService(repo repository.VehicleRepository, publisher Publisher) *Service {
	return &Service{repo: repo, publisher: publisher, now: time.Now}
}

// Register adds a vehicle. Name defaults to the vehicle id.
func (s *Service) Register(vehicleID, name string, active bool) (*model.Vehicle, error) {
	vehicleID = strings.TrimSpace(vehicleID)
	if vehicleID == "" {
		return nil, fmt.Errorf("%w: vehicle_id is required", ErrInvalid)
	}
	if strings.TrimSpace(name) == "" {
		name = vehicleID
	}

	now := s.now().UTC()
	v := &model.Vehicle{
		ID:        uuid.NewString(),
		VehicleID: vehicleID,
		Name:      name,
		IsActive:  active,
		LastPing:  now,
		CreatedAt: now,
	}
	if err := s.repo.Insert(v); err != nil {
		return nil, err
	}
	s.publisher.Publish(realtime.TableVehicles, realtime.EventInsert, v, nil)
	return v, nil
}

// List returns vehicles ordered by name.
func (s *Service) List() ([]model.Vehicle, error) {
	return s.repo.List()
}

// UpdateStatus sets the active flag and refreshes last_ping.
func (s *Service) UpdateStatus(id string, active bool) (*model.Vehicle, error) {
	v, err := s.repo.UpdateStatus(id, active, s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(realtime.TableVehicles, realtime.EventUpdate, v, nil)
	return v, nil
}
