// Package frame decodes, annotates and captures camera frames with OpenCV.
package frame

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"gocv.io/x/gocv"

	"potholewatch/internal/model"
)

var severityColors = map[model.Severity]color.RGBA{
	model.SeverityHigh:   {R: 0xef, G: 0x44, B: 0x44, A: 0},
	model.SeverityMedium: {R: 0xea, G: 0xb3, B: 0x08, A: 0},
	model.SeverityLow:    {R: 0x22, G: 0xc5, B: 0x5e, A: 0},
}

var white = color.RGBA{R: 255, G: 255, B: 255, A: 0}

// Codec implements frame decoding and overlay drawing.
type Codec struct {
	Quality int
}

func NewCodec() *Codec {
	return &Codec{Quality: 85}
}

// Dimensions decodes data and returns its width and height.
func (c *Codec) Dimensions(data []byte) (int, int, error) {
	mat, err := decode(data)
	if err != nil {
		return 0, 0, err
	}
	defer mat.Close()
	return mat.Cols(), mat.Rows(), nil
}

// Annotate draws every detection onto the image and returns a JPEG.
func (c *Codec) Annotate(data []byte, detections []model.ClassifiedDetection) ([]byte, error) {
	mat, err := decode(data)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	if err := DrawDetections(&mat, detections); err != nil {
		return nil, err
	}
	return c.Encode(mat)
}

// Encode writes mat as a JPEG.
func (c *Codec) Encode(mat gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{int(gocv.IMWriteJpegQuality), c.Quality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// DrawDetections draws one box per detection, colored by severity, with the
// confidence above the box and the severity inside it.
func DrawDetections(mat *gocv.Mat, detections []model.ClassifiedDetection) error {
	for _, d := range detections {
		col, ok := severityColors[d.Severity]
		if !ok {
			col = severityColors[model.SeverityLow]
		}
		x := int(math.Round(d.X))
		y := int(math.Round(d.Y))
		rect := image.Rect(x, y, x+int(math.Round(d.Width)), y+int(math.Round(d.Height)))

		if err := gocv.Rectangle(mat, rect, col, 3); err != nil {
			return fmt.Errorf("failed to draw rectangle: %w", err)
		}

		label := fmt.Sprintf("%.0f%%", d.Confidence*100)
		size := gocv.GetTextSize(label, gocv.FontHersheySimplex, 0.5, 1)
		background := image.Rect(x, y-20, x+size.X+10, y)
		if err := gocv.Rectangle(mat, background, col, -1); err != nil {
			return fmt.Errorf("failed to draw label background: %w", err)
		}
		if err := gocv.PutText(mat, label, image.Pt(x+5, y-6), gocv.FontHersheySimplex, 0.5, white, 1); err != nil {
			return fmt.Errorf("failed to draw text: %w", err)
		}
		if err := gocv.PutText(mat, strings.ToUpper(string(d.Severity)), image.Pt(x+5, y+15), gocv.FontHersheySimplex, 0.4, white, 1); err != nil {
			return fmt.Errorf("failed to draw text: %w", err)
		}
	}
	return nil
}

func decode(data []byte) (gocv.Mat, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return mat, fmt.Errorf("failed to decode image: %w", err)
	}
	if mat.Empty() {
		mat.Close()
		return mat, fmt.Errorf("decoded image is empty")
	}
	return mat, nil
}
