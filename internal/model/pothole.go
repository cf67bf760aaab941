package model

import "time"

// Status is the repair lifecycle of a pothole record.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusRepaired Status = "repaired"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusVerified, StatusRepaired:
		return true
	}
	return false
}

// Pothole represents a persisted pothole report.
type Pothole struct {
	ID          string    `json:"id"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Severity    Severity  `json:"severity"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ImageURL    *string   `json:"image_url"`
	VehicleID   string    `json:"vehicle_id"`
	Status      Status    `json:"status"`
	ReportedAt  time.Time `json:"reported_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PotholeFilter narrows pothole listings. Zero values are ignored.
type PotholeFilter struct {
	Severity  Severity
	Status    Status
	VehicleID string
	Since     time.Time
	Limit     int
	Offset    int
}
