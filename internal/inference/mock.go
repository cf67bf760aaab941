package inference

import (
	"context"
	"math/rand"
	"sync"

	"potholewatch/internal/model"
)

// Mock returns the same single pothole for every image. It is the
// fallback when no other backend can be built.
type Mock struct{}

func (Mock) Name() string { return string(model.ModelMock) }

func (Mock) Detect(context.Context, Image) ([]model.RawDetection, error) {
	return []model.RawDetection{{
		Label: "pothole",
		Score: 0.8,
		Box:   model.Box{XMin: 100, YMin: 100, XMax: 200, YMax: 150},
	}}, nil
}

// Simulated draws one to four random pothole boxes inside a frame of the
// given size. Used by the simulation live source for demos without a camera.
type Simulated struct {
	Width  int
	Height int

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSimulated(width, height int, seed int64) *Simulated {
	return &Simulated{Width: width, Height: height, rnd: rand.New(rand.NewSource(seed))}
}

func (s *Simulated) Name() string { return "simulated" }

func (s *Simulated) Detect(context.Context, Image) ([]model.RawDetection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.rnd.Intn(4) + 1
	out := make([]model.RawDetection, 0, n)
	for i := 0; i < n; i++ {
		w := s.rnd.Float64()*100 + 50
		h := s.rnd.Float64()*80 + 40
		x := s.rnd.Float64() * max(float64(s.Width)-w, 0)
		y := s.rnd.Float64() * max(float64(s.Height)-h, 0)
		out = append(out, model.RawDetection{
			Label: "pothole",
			Score: s.rnd.Float64()*0.4 + 0.6,
			Box:   model.Box{XMin: x, YMin: y, XMax: x + w, YMax: y + h},
		})
	}
	return out, nil
}
