package model

import "time"

// Frame is one encoded camera image with its pixel dimensions.
type Frame struct {
	Data   []byte
	Width  int
	Height int
	Source string
	// VehicleID is set by sources that know which vehicle sent the frame.
	VehicleID  string
	CapturedAt time.Time
}
