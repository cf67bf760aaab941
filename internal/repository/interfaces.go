package repository

import (
	"errors"
	"time"

	"potholewatch/internal/geo"
	"potholewatch/internal/model"
)

// ErrNotFound is returned when a lookup by id matches no row.
var ErrNotFound = errors.New("record not found")

// PotholeRepository defines the interface for pothole data operations.
// Records are never deleted.
type PotholeRepository interface {
	// Create operations
	Insert(p *model.Pothole) error

	// Read operations
	GetByID(id string) (*model.Pothole, error)
	List(filter model.PotholeFilter) ([]model.Pothole, error)
	ListInBounds(bounds geo.Bounds) ([]model.Pothole, error)
	Count(filter model.PotholeFilter) (int, error)

	// Update operations
	UpdateStatus(id string, status model.Status, at time.Time) (*model.Pothole, error)
}

// VehicleRepository defines the interface for vehicle data operations.
type VehicleRepository interface {
	Insert(v *model.Vehicle) error
	GetByID(id string) (*model.Vehicle, error)
	List() ([]model.Vehicle, error)
	UpdateStatus(id string, active bool, at time.Time) (*model.Vehicle, error)
}

// NotificationRepository defines the interface for notification data operations.
type NotificationRepository interface {
	Insert(n *model.Notification) error
	List(limit int) ([]model.Notification, error)
	UnreadCount() (int, error)
	MarkRead(id string) (*model.Notification, error)
	// MarkAllRead returns the notifications that changed.
	MarkAllRead() ([]model.Notification, error)
}

// SettingsRepository persists the single model settings row.
type SettingsRepository interface {
	GetModelSettings() (*model.ModelSettings, error)
	SaveModelSettings(s *model.ModelSettings) error
}
