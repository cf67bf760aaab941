package model

import "time"

// Vehicle is a detection-capable vehicle (dashcam) reporting potholes.
type Vehicle struct {
	ID        string    `json:"id"`
	VehicleID string    `json:"vehicle_id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	LastPing  time.Time `json:"last_ping"`
	CreatedAt time.Time `json:"created_at"`
}
