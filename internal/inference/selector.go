package inference

import (
	"potholewatch/internal/config"
	"potholewatch/internal/httputil"
	"potholewatch/internal/logger"
	"potholewatch/internal/model"
)

// Defaults are the server-side credentials used when a request or the
// persisted settings leave a value empty.
type Defaults struct {
	RoboflowAPIKey      string
	RoboflowEndpoint    string
	RoboflowBaseURL     string
	HuggingFaceAPIKey   string
	HuggingFaceEndpoint string
	CustomAPIKey        string
	CustomEndpoint      string
}

// DefaultsFromConfig copies the backend credentials out of cfg.
func DefaultsFromConfig(cfg *config.Config) Defaults {
	return Defaults{
		RoboflowAPIKey:      cfg.RoboflowAPIKey,
		RoboflowEndpoint:    cfg.RoboflowModelEndpoint,
		RoboflowBaseURL:     cfg.RoboflowBaseURL,
		HuggingFaceAPIKey:   cfg.HuggingFaceAPIKey,
		HuggingFaceEndpoint: cfg.HuggingFaceModelEndpoint,
		CustomAPIKey:        cfg.CustomModelAPIKey,
		CustomEndpoint:      cfg.CustomModelEndpoint,
	}
}

// Selector builds backends from a ModelSettings value.
type Selector struct {
	client   httputil.HTTPClient
	defaults Defaults
	local    Backend
	logger   *logger.Logger
}

// NewSelector creates a Selector. local may be nil when no on-box detector is available.
func NewSelector(client httputil.HTTPClient, defaults Defaults, local Backend, logger *logger.Logger) *Selector {
	return &Selector{client: client, defaults: defaults, local: local, logger: logger}
}

// Build constructs the backend named by settings, filling empty credentials
// from the server defaults. Missing configuration yields an error matching
// ErrNotConfigured.
func (s *Selector) Build(settings model.ModelSettings) (Backend, error) {
	switch settings.ModelType {
	case model.ModelRoboflow:
		if settings.ModelID != "" && settings.Version != "" && settings.ModelEndpoint == "" {
			return NewRoboflowHosted(s.client, s.defaults.RoboflowBaseURL, settings.ModelID, settings.Version,
				or(settings.APIKey, s.defaults.RoboflowAPIKey))
		}
		return NewRoboflow(s.client,
			or(settings.ModelEndpoint, s.defaults.RoboflowEndpoint),
			or(settings.APIKey, s.defaults.RoboflowAPIKey))
	case model.ModelHuggingFace:
		return NewHuggingFace(s.client,
			or(settings.ModelEndpoint, s.defaults.HuggingFaceEndpoint),
			or(settings.APIKey, s.defaults.HuggingFaceAPIKey))
	case model.ModelCustom:
		return NewCustom(s.client,
			or(settings.ModelEndpoint, s.defaults.CustomEndpoint),
			or(settings.APIKey, s.defaults.CustomAPIKey),
			CustomFieldImage)
	case model.ModelLocal:
		if s.local == nil {
			return nil, NotConfigured("local detector not loaded")
		}
		return s.local, nil
	case model.ModelMock:
		return Mock{}, nil
	default:
		return nil, NotConfigured("unknown model type " + string(settings.ModelType))
	}
}

// Resolve is Build that never fails: any construction error is logged and
// the mock backend is returned instead.
func (s *Selector) Resolve(settings model.ModelSettings) Backend {
	backend, err := s.Build(settings)
	if err != nil {
		if s.logger != nil {
			s.logger.Warning("Falling back to mock detector for %q: %v", settings.ModelType, err)
		}
		return Mock{}
	}
	return backend
}

func or(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
