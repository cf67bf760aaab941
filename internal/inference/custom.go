package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"potholewatch/internal/httputil"
	"potholewatch/internal/model"
)

// Request body keys understood by custom model servers.
const (
	CustomFieldImage  = "image"
	CustomFieldInputs = "inputs"
)

// Custom calls a self-hosted model server (Flask/FastAPI style) with a JSON body.
type Custom struct {
	client   httputil.HTTPClient
	endpoint string
	apiKey   string
	field    string
}

// NewCustom builds a custom backend. apiKey is optional; field selects the
// request body key and defaults to CustomFieldImage.
func NewCustom(client httputil.HTTPClient, endpoint, apiKey, field string) (*Custom, error) {
	if endpoint == "" {
		return nil, NotConfigured("Custom model endpoint not configured")
	}
	if field == "" {
		field = CustomFieldImage
	}
	return &Custom{client: client, endpoint: endpoint, apiKey: apiKey, field: field}, nil
}

func (c *Custom) Name() string { return string(model.ModelCustom) }

func (c *Custom) Detect(ctx context.Context, img Image) ([]model.RawDetection, error) {
	payload, err := json.Marshal(map[string]string{c.field: img.Encoded()})
	if err != nil {
		return nil, fmt.Errorf("encode custom request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build custom request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("custom model request: %w", err)
	}
	raw, err := readBody(resp, "Custom model")
	if err != nil {
		return nil, err
	}
	return parseCustomResponse(raw)
}

type customBBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// customItem accepts the box shapes seen across model servers: flat
// x/y/width/height, a bbox object, or a corner-form box object.
type customItem struct {
	X          *float64    `json:"x"`
	Y          *float64    `json:"y"`
	Width      *float64    `json:"width"`
	Height     *float64    `json:"height"`
	BBox       *customBBox `json:"bbox"`
	Box        *model.Box  `json:"box"`
	Confidence *float64    `json:"confidence"`
	Score      *float64    `json:"score"`
	Label      string      `json:"label"`
	Class      string      `json:"class"`
}

func (it customItem) toRaw() model.RawDetection {
	d := model.RawDetection{Label: it.Label}
	if d.Label == "" {
		d.Label = it.Class
	}
	switch {
	case it.Confidence != nil:
		d.Score = *it.Confidence
	case it.Score != nil:
		d.Score = *it.Score
	}

	switch {
	case it.X != nil && it.Y != nil && it.Width != nil && it.Height != nil:
		d.Box = model.Box{XMin: *it.X, YMin: *it.Y, XMax: *it.X + *it.Width, YMax: *it.Y + *it.Height}
	case it.BBox != nil:
		b := it.BBox
		d.Box = model.Box{XMin: b.X, YMin: b.Y, XMax: b.X + b.Width, YMax: b.Y + b.Height}
	case it.Box != nil:
		d.Box = *it.Box
	}
	return d
}

func parseCustomResponse(raw []byte) ([]model.RawDetection, error) {
	var items []customItem

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode custom response: %w", err)
		}
	} else {
		var envelope struct {
			Detections  []customItem `json:"detections"`
			Predictions []customItem `json:"predictions"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("decode custom response: %w", err)
		}
		items = envelope.Detections
		if len(items) == 0 {
			items = envelope.Predictions
		}
	}

	out := make([]model.RawDetection, 0, len(items))
	for _, it := range items {
		out = append(out, it.toRaw())
	}
	return out, nil
}
