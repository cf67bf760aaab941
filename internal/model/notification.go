package model

import "time"

type NotificationType string

const (
	NotificationDetection NotificationType = "detection"
	NotificationRepair    NotificationType = "repair"
	NotificationAlert     NotificationType = "alert"
)

// Notification is a dashboard message tied to a pothole.
type Notification struct {
	ID        string           `json:"id"`
	PotholeID string           `json:"pothole_id"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}
