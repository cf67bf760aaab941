// Package classify turns generic object-detector output into severity-tagged
// pothole candidates.
//
// The upstream detectors are general purpose, so labels are re-ranked with a
// fixed vocabulary heuristic. A primary pass keeps anything that looks like a
// road anomaly or an unusual object; when it keeps nothing, a looser fallback
// pass returns the top few non-person detections so callers are never left
// with an empty frame while the backend is still seeing something.
package classify

import (
	"strings"

	"potholewatch/internal/model"
)

const (
	// MinScore applies to every primary-pass survivor.
	MinScore = 0.25
	// UnusualObjectScore is the score above which an unlabelled object counts.
	UnusualObjectScore = 0.3
	// FallbackScore is the minimum score in the fallback pass.
	FallbackScore = 0.3
	// FallbackLimit bounds the fallback pass output.
	FallbackLimit = 5
)

var (
	anomalyKeywords = []string{"pothole", "hole", "crack", "damage", "bump", "construction", "barrier", "cone", "manhole", "cover"}
	surfaceKeywords = []string{"surface", "ground", "road", "pavement", "asphalt"}
	commonObjects   = []string{"person", "people", "man", "woman", "car", "truck", "bus", "motorcycle",
		"bicycle", "traffic light", "stop sign", "tree", "building", "sky", "cloud"}

	fallbackExcluded = []string{"person", "people", "man", "woman", "face"}
)

// Frame carries the dimensions used to normalize box areas.
type Frame struct {
	Width  int
	Height int
}

// Area of the frame in square pixels.
func (f Frame) Area() float64 {
	return float64(f.Width) * float64(f.Height)
}

// Classify runs the primary pass and, only when it keeps nothing, the
// fallback pass. Empty input and degenerate frames yield an empty result.
func Classify(raw []model.RawDetection, frameWidth, frameHeight int) []model.ClassifiedDetection {
	if len(raw) == 0 || frameWidth <= 0 || frameHeight <= 0 {
		return []model.ClassifiedDetection{}
	}
	frame := Frame{Width: frameWidth, Height: frameHeight}

	if primary := Primary(raw, frame); len(primary) > 0 {
		return primary
	}
	return Fallback(raw, frame)
}

// Primary keeps road anomalies, surface irregularities and unusual objects.
func Primary(raw []model.RawDetection, frame Frame) []model.ClassifiedDetection {
	kept := NewPrimaryFilter()(raw)
	return toClassified(kept, frame, PrimarySeverity)
}

// Fallback keeps the highest scoring non-person detections.
func Fallback(raw []model.RawDetection, frame Frame) []model.ClassifiedDetection {
	kept := Chain(NewFallbackFilter(), SortByScore, NewTopN(FallbackLimit))(raw)
	return toClassified(kept, frame, FallbackSeverity)
}

// PrimarySeverity is the strict high -> medium -> low cascade of the primary pass.
func PrimarySeverity(score, normalizedArea float64) model.Severity {
	if score > 0.7 && normalizedArea > 0.01 {
		return model.SeverityHigh
	}
	if score > 0.5 || normalizedArea > 0.005 {
		return model.SeverityMedium
	}
	return model.SeverityLow
}

// FallbackSeverity is the looser cascade used for fallback detections.
func FallbackSeverity(score, normalizedArea float64) model.Severity {
	severity := model.SeverityLow
	if score > 0.8 {
		severity = model.SeverityMedium
	}
	if score > 0.85 && normalizedArea > 0.01 {
		severity = model.SeverityHigh
	}
	return severity
}

// NormalizedArea is the box area as a fraction of the frame area.
func NormalizedArea(box model.Box, frame Frame) float64 {
	area := frame.Area()
	if area <= 0 {
		return 0
	}
	return box.Area() / area
}

func toClassified(raw []model.RawDetection, frame Frame, severity func(score, normalizedArea float64) model.Severity) []model.ClassifiedDetection {
	out := make([]model.ClassifiedDetection, 0, len(raw))
	for _, d := range raw {
		out = append(out, model.ClassifiedDetection{
			X:          d.Box.XMin,
			Y:          d.Box.YMin,
			Width:      d.Box.Width(),
			Height:     d.Box.Height(),
			Confidence: d.Score,
			Severity:   severity(d.Score, NormalizedArea(d.Box, frame)),
		})
	}
	return out
}

func containsAny(label string, words []string) bool {
	for _, w := range words {
		if strings.Contains(label, w) {
			return true
		}
	}
	return false
}

// IsRoadAnomaly reports whether the label matches the anomaly vocabulary.
func IsRoadAnomaly(label string) bool {
	return containsAny(strings.ToLower(label), anomalyKeywords)
}

// IsSurface reports whether the label matches the road-surface vocabulary.
func IsSurface(label string) bool {
	return containsAny(strings.ToLower(label), surfaceKeywords)
}

// IsCommonObject reports whether the label names an everyday street object.
func IsCommonObject(label string) bool {
	return containsAny(strings.ToLower(label), commonObjects)
}
