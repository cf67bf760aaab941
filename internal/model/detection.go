package model

// Severity is the three-tier rating attached to a detected pothole.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Valid reports whether s is one of the known tiers.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// Box is a frame-relative bounding box in pixels.
type Box struct {
	XMin float64 `json:"xmin"`
	YMin float64 `json:"ymin"`
	XMax float64 `json:"xmax"`
	YMax float64 `json:"ymax"`
}

// Width of the box.
func (b Box) Width() float64 { return b.XMax - b.XMin }

// Height of the box.
func (b Box) Height() float64 { return b.YMax - b.YMin }

// Area of the box in square pixels.
func (b Box) Area() float64 { return b.Width() * b.Height() }

// RawDetection is an unfiltered box emitted by an inference backend.
type RawDetection struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
	Box   Box     `json:"box"`
}

// ClassifiedDetection is a raw detection re-scored into a severity tier.
type ClassifiedDetection struct {
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Width      float64  `json:"width"`
	Height     float64  `json:"height"`
	Confidence float64  `json:"confidence"`
	Severity   Severity `json:"severity"`
}
