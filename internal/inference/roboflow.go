package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"potholewatch/internal/httputil"
	"potholewatch/internal/model"
)

const roboflowName = "Roboflow"

// RoboflowPrediction is one centered box as returned by the hosted API.
type RoboflowPrediction struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Confidence float64 `json:"confidence"`
	Class      string  `json:"class"`
}

// Box converts the centered prediction into top-left corner form.
func (p RoboflowPrediction) Box() model.Box {
	x := p.X - p.Width/2
	y := p.Y - p.Height/2
	return model.Box{XMin: x, YMin: y, XMax: x + p.Width, YMax: y + p.Height}
}

// RoboflowResult is the decoded API response. Image is echoed back verbatim.
type RoboflowResult struct {
	Predictions []RoboflowPrediction `json:"predictions"`
	Image       json.RawMessage      `json:"image,omitempty"`
}

// Roboflow calls a hosted Roboflow model. With ImageInQuery set the base64
// image travels in the "image" query parameter; otherwise it is the request body.
type Roboflow struct {
	client       httputil.HTTPClient
	endpoint     string
	apiKey       string
	imageInQuery bool
}

// NewRoboflow targets a full model endpoint URL and posts the image as the body.
func NewRoboflow(client httputil.HTTPClient, endpoint, apiKey string) (*Roboflow, error) {
	if apiKey == "" || endpoint == "" {
		return nil, NotConfigured("Roboflow API key or endpoint not configured")
	}
	return &Roboflow{client: client, endpoint: endpoint, apiKey: apiKey}, nil
}

// NewRoboflowHosted targets {baseURL}/{modelID}/{version} and sends the image as a query parameter.
func NewRoboflowHosted(client httputil.HTTPClient, baseURL, modelID, version, apiKey string) (*Roboflow, error) {
	if apiKey == "" {
		return nil, NotConfigured("ROBOFLOW_API_KEY not configured")
	}
	if modelID == "" || version == "" {
		return nil, NotConfigured("Model ID and version are required")
	}
	endpoint := fmt.Sprintf("%s/%s/%s", strings.TrimRight(baseURL, "/"), url.PathEscape(modelID), url.PathEscape(version))
	return &Roboflow{client: client, endpoint: endpoint, apiKey: apiKey, imageInQuery: true}, nil
}

func (r *Roboflow) Name() string { return string(model.ModelRoboflow) }

// Predict returns the untransformed API result.
func (r *Roboflow) Predict(ctx context.Context, img Image) (*RoboflowResult, error) {
	u, err := url.Parse(r.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse roboflow endpoint: %w", err)
	}
	q := u.Query()
	q.Set("api_key", r.apiKey)

	var body *strings.Reader
	if r.imageInQuery {
		q.Set("image", img.Encoded())
		body = strings.NewReader("")
	} else {
		body = strings.NewReader(img.Encoded())
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build roboflow request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("roboflow request: %w", err)
	}
	raw, err := readBody(resp, roboflowName)
	if err != nil {
		return nil, err
	}

	var result RoboflowResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode roboflow response: %w", err)
	}
	return &result, nil
}

func (r *Roboflow) Detect(ctx context.Context, img Image) ([]model.RawDetection, error) {
	result, err := r.Predict(ctx, img)
	if err != nil {
		return nil, err
	}
	out := make([]model.RawDetection, 0, len(result.Predictions))
	for _, p := range result.Predictions {
		out = append(out, model.RawDetection{Label: p.Class, Score: p.Confidence, Box: p.Box()})
	}
	return out, nil
}
