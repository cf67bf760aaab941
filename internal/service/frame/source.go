package frame

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"potholewatch/internal/model"
)

// DeviceSource reads frames from a local camera index or a stream URL.
type DeviceSource struct {
	mu      sync.Mutex
	device  string
	capture *gocv.VideoCapture
	mat     gocv.Mat
	codec   *Codec
}

// OpenDevice opens a numeric camera index ("0") or any URL OpenCV understands.
func OpenDevice(device string) (*DeviceSource, error) {
	var id interface{} = device
	if n, err := strconv.Atoi(device); err == nil {
		id = n
	}
	capture, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, fmt.Errorf("open video capture %s: %w", device, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("video capture %s is not opened", device)
	}
	return &DeviceSource{
		device:  device,
		capture: capture,
		mat:     gocv.NewMat(),
		codec:   NewCodec(),
	}, nil
}

// Next grabs the current frame. ok is false while the device has no frame yet.
func (s *DeviceSource) Next(ctx context.Context) (model.Frame, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return model.Frame{}, false, err
	}
	if s.capture == nil {
		return model.Frame{}, false, fmt.Errorf("device %s closed", s.device)
	}
	if ok := s.capture.Read(&s.mat); !ok || s.mat.Empty() {
		return model.Frame{}, false, nil
	}

	data, err := s.codec.Encode(s.mat)
	if err != nil {
		return model.Frame{}, false, err
	}
	return model.Frame{
		Data:       data,
		Width:      s.mat.Cols(),
		Height:     s.mat.Rows(),
		Source:     s.device,
		CapturedAt: time.Now(),
	}, true, nil
}

func (s *DeviceSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capture == nil {
		return nil
	}
	s.mat.Close()
	err := s.capture.Close()
	s.capture = nil
	return err
}

// BlankSource yields a constant dark frame. It pairs with the simulated
// backend to demo the live pipeline without a camera.
type BlankSource struct {
	frame model.Frame
}

func NewBlankSource(width, height int) (*BlankSource, error) {
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(40, 40, 40, 0), height, width, gocv.MatTypeCV8UC3)
	defer mat.Close()

	_ = gocv.PutText(&mat, "SIMULATION", image.Pt(10, 30), gocv.FontHersheySimplex, 0.8, color.RGBA{R: 200, G: 200, B: 200}, 2)

	data, err := NewCodec().Encode(mat)
	if err != nil {
		return nil, err
	}
	return &BlankSource{frame: model.Frame{Data: data, Width: width, Height: height, Source: "simulate"}}, nil
}

func (s *BlankSource) Next(ctx context.Context) (model.Frame, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.Frame{}, false, err
	}
	f := s.frame
	f.CapturedAt = time.Now()
	return f, true, nil
}

func (s *BlankSource) Close() error { return nil }
