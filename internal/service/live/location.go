package live

import (
	"fmt"
	"sync"
	"time"

	"potholewatch/internal/geo"
)

// Location is the last known position of the capturing vehicle.
type Location struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LocationTracker holds the position stamped onto live detections. It starts
// at a configured default until the client reports a fix.
type LocationTracker struct {
	mu      sync.RWMutex
	current Location
}

func NewLocationTracker(lat, lng float64) *LocationTracker {
	return &LocationTracker{current: Location{Latitude: lat, Longitude: lng}}
}

// Update replaces the current position. Out of range coordinates are rejected.
func (t *LocationTracker) Update(lat, lng float64) error {
	if !geo.ValidCoordinate(lat, lng) {
		return fmt.Errorf("invalid coordinates %f,%f", lat, lng)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = Location{Latitude: lat, Longitude: lng, UpdatedAt: time.Now().UTC()}
	return nil
}

func (t *LocationTracker) Current() Location {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}
