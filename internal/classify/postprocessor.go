package classify

import (
	"sort"
	"strings"

	"potholewatch/internal/model"
)

// Postprocessor filters or reorders an incoming slice of raw detections.
// Implementations never modify their input.
type Postprocessor func([]model.RawDetection) []model.RawDetection

// Chain applies the postprocessors left to right.
func Chain(steps ...Postprocessor) Postprocessor {
	return func(in []model.RawDetection) []model.RawDetection {
		out := in
		for _, step := range steps {
			out = step(out)
		}
		return out
	}
}

// NewFilter keeps the detections for which keep returns true.
func NewFilter(keep func(model.RawDetection) bool) Postprocessor {
	return func(in []model.RawDetection) []model.RawDetection {
		out := make([]model.RawDetection, 0, len(in))
		for _, d := range in {
			if keep(d) {
				out = append(out, d)
			}
		}
		return out
	}
}

// NewPrimaryFilter keeps a detection when any of the three signals fires and
// its score clears MinScore.
func NewPrimaryFilter() Postprocessor {
	return NewFilter(func(d model.RawDetection) bool {
		label := strings.ToLower(d.Label)
		isAnomaly := containsAny(label, anomalyKeywords)
		isSurface := containsAny(label, surfaceKeywords)
		isUnusual := d.Score > UnusualObjectScore && !containsAny(label, commonObjects)
		return (isAnomaly || isSurface || isUnusual) && d.Score > MinScore
	})
}

// NewFallbackFilter keeps anything above FallbackScore that is not a person.
func NewFallbackFilter() Postprocessor {
	return NewFilter(func(d model.RawDetection) bool {
		return d.Score > FallbackScore && !containsAny(strings.ToLower(d.Label), fallbackExcluded)
	})
}

// SortByScore orders by descending score; ties keep their input order.
func SortByScore(in []model.RawDetection) []model.RawDetection {
	out := make([]model.RawDetection, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// NewTopN truncates to at most n detections.
func NewTopN(n int) Postprocessor {
	return func(in []model.RawDetection) []model.RawDetection {
		if len(in) <= n {
			return in
		}
		return in[:n]
	}
}
