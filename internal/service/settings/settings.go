// Package settings persists the inference backend selection and keeps the
// matching backend ready for the live loop and uploads.
package settings

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"potholewatch/internal/inference"
	"potholewatch/internal/logger"
	"potholewatch/internal/model"
	"potholewatch/internal/repository"
)

var ErrInvalid = errors.New("invalid model settings")

// Resolver turns settings into a backend that is always usable.
type Resolver interface {
	Resolve(settings model.ModelSettings) inference.Backend
}

type Service struct {
	repo     repository.SettingsRepository
	resolver Resolver
	fallback model.ModelSettings
	logger   *logger.Logger

	mu      sync.RWMutex
	current model.ModelSettings
	backend inference.Backend
	loaded  bool
	now     func() time.Time
}

// NewService uses fallback until settings have been saved once.
func NewService(repo repository.SettingsRepository, resolver Resolver, fallback model.ModelSettings, logger *logger.Logger) *Service {
	return &Service{repo: repo, resolver: resolver, fallback: fallback, logger: logger, now: time.Now}
}

// Get returns the persisted settings, or the configured defaults when none are stored.
func (s *Service) Get() (model.ModelSettings, error) {
	s.mu.RLock()
	if s.loaded {
		defer s.mu.RUnlock()
		return s.current, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return model.ModelSettings{}, err
	}
	return s.current, nil
}

func (s *Service) loadLocked() error {
	if s.loaded {
		return nil
	}
	stored, err := s.repo.GetModelSettings()
	switch {
	case errors.Is(err, repository.ErrNotFound):
		s.current = s.fallback
	case err != nil:
		return err
	default:
		s.current = *stored
	}
	s.backend = s.resolver.Resolve(s.current)
	s.loaded = true
	s.logger.Info("Inference backend: %s", s.backend.Name())
	return nil
}

// Save validates and stores settings, then swaps the active backend. An
// empty API key keeps the stored key when the model type is unchanged.
func (s *Service) Save(in model.ModelSettings) (model.ModelSettings, error) {
	in.ModelType = model.ModelType(strings.ToLower(strings.TrimSpace(string(in.ModelType))))
	if !in.ModelType.Valid() {
		return model.ModelSettings{}, fmt.Errorf("%w: unknown model type %q", ErrInvalid, in.ModelType)
	}
	in.ModelEndpoint = strings.TrimSpace(in.ModelEndpoint)
	in.UpdatedAt = s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return model.ModelSettings{}, fmt.Errorf("load stored settings: %w", err)
	}
	if in.APIKey == "" && s.current.ModelType == in.ModelType {
		in.APIKey = s.current.APIKey
	}
	if err := s.repo.SaveModelSettings(&in); err != nil {
		return model.ModelSettings{}, err
	}
	s.current = in
	s.backend = s.resolver.Resolve(in)
	s.loaded = true
	s.logger.Info("Model settings saved, inference backend: %s", s.backend.Name())
	return in, nil
}

// Backend returns the active backend. Load failures fall back to the
// configured defaults.
func (s *Service) Backend() inference.Backend {
	s.mu.RLock()
	if s.loaded {
		defer s.mu.RUnlock()
		return s.backend
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		s.logger.Error("Failed to load model settings: %v", err)
		return s.resolver.Resolve(s.fallback)
	}
	return s.backend
}
