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

// HuggingFace calls an object-detection inference endpoint with the raw image bytes.
type HuggingFace struct {
	client   httputil.HTTPClient
	endpoint string
	apiKey   string
}

func NewHuggingFace(client httputil.HTTPClient, endpoint, apiKey string) (*HuggingFace, error) {
	if apiKey == "" || endpoint == "" {
		return nil, NotConfigured("Hugging Face API key or endpoint not configured")
	}
	return &HuggingFace{client: client, endpoint: endpoint, apiKey: apiKey}, nil
}

func (h *HuggingFace) Name() string { return string(model.ModelHuggingFace) }

func (h *HuggingFace) Detect(ctx context.Context, img Image) ([]model.RawDetection, error) {
	data, err := img.Bytes()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build huggingface request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+h.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("huggingface request: %w", err)
	}
	raw, err := readBody(resp, "Hugging Face")
	if err != nil {
		return nil, err
	}

	var out []model.RawDetection
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode huggingface response: %w", err)
	}
	if out == nil {
		out = []model.RawDetection{}
	}
	return out, nil
}
