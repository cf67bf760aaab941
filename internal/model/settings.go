package model

import "time"

// ModelType selects which inference backend serves detections.
type ModelType string

const (
	ModelLocal       ModelType = "local"
	ModelRoboflow    ModelType = "roboflow"
	ModelHuggingFace ModelType = "huggingface"
	ModelCustom      ModelType = "custom"
	ModelMock        ModelType = "mock"
)

// Valid reports whether t names a known backend.
func (t ModelType) Valid() bool {
	switch t {
	case ModelLocal, ModelRoboflow, ModelHuggingFace, ModelCustom, ModelMock:
		return true
	}
	return false
}

// ModelSettings is the persisted backend selection.
type ModelSettings struct {
	ModelType     ModelType `json:"model_type"`
	ModelEndpoint string    `json:"model_endpoint,omitempty"`
	APIKey        string    `json:"api_key,omitempty"`
	ModelID       string    `json:"model_id,omitempty"`
	Version       string    `json:"version,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}
