package settings

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"potholewatch/internal/inference"
	"potholewatch/internal/logger"
	"potholewatch/internal/model"
	"potholewatch/internal/repository"
)

type memoryRepo struct {
	stored *model.ModelSettings
	getErr error
	saves  int
}

func (r *memoryRepo) GetModelSettings() (*model.ModelSettings, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	if r.stored == nil {
		return nil, repository.ErrNotFound
	}
	s := *r.stored
	return &s, nil
}

func (r *memoryRepo) SaveModelSettings(s *model.ModelSettings) error {
	copied := *s
	r.stored = &copied
	r.saves++
	return nil
}

type namedBackend struct {
	inference.Mock
	name string
}

func (b namedBackend) Name() string { return b.name }

type recordingResolver struct {
	calls []model.ModelSettings
}

func (r *recordingResolver) Resolve(s model.ModelSettings) inference.Backend {
	r.calls = append(r.calls, s)
	return namedBackend{name: string(s.ModelType)}
}

func newService(t *testing.T, repo *memoryRepo) (*Service, *recordingResolver) {
	t.Helper()
	l := logger.NewTestLogger(t.TempDir(), io.Discard)
	t.Cleanup(func() { l.Close() })
	resolver := &recordingResolver{}
	return NewService(repo, resolver, model.ModelSettings{ModelType: model.ModelMock}, l), resolver
}

func TestGet_FallsBackToDefaults(t *testing.T) {
	s, _ := newService(t, &memoryRepo{})

	got, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, model.ModelMock, got.ModelType)
	assert.Equal(t, "mock", s.Backend().Name())
}

func TestGet_UsesStoredSettings(t *testing.T) {
	repo := &memoryRepo{stored: &model.ModelSettings{ModelType: model.ModelRoboflow, ModelEndpoint: "https://x"}}
	s, resolver := newService(t, repo)

	got, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, model.ModelRoboflow, got.ModelType)
	assert.Equal(t, "roboflow", s.Backend().Name())
	assert.Len(t, resolver.calls, 1, "backend is resolved once and cached")
}

func TestGet_RepositoryError(t *testing.T) {
	s, _ := newService(t, &memoryRepo{getErr: errors.New("locked")})

	_, err := s.Get()
	assert.Error(t, err)
	assert.Equal(t, "mock", s.Backend().Name())
}

func TestSave_SwapsBackend(t *testing.T) {
	repo := &memoryRepo{}
	s, _ := newService(t, repo)
	require.Equal(t, "mock", s.Backend().Name())

	saved, err := s.Save(model.ModelSettings{ModelType: " HuggingFace ", ModelEndpoint: " https://hf ", APIKey: "k"})
	require.NoError(t, err)

	assert.Equal(t, model.ModelHuggingFace, saved.ModelType)
	assert.Equal(t, "https://hf", saved.ModelEndpoint)
	assert.False(t, saved.UpdatedAt.IsZero())
	assert.Equal(t, "huggingface", s.Backend().Name())
	assert.Equal(t, 1, repo.saves)
}

func TestSave_KeepsKeyForSameType(t *testing.T) {
	repo := &memoryRepo{stored: &model.ModelSettings{ModelType: model.ModelCustom, APIKey: "secret"}}
	s, _ := newService(t, repo)
	_, err := s.Get()
	require.NoError(t, err)

	saved, err := s.Save(model.ModelSettings{ModelType: model.ModelCustom, ModelEndpoint: "https://c"})
	require.NoError(t, err)
	assert.Equal(t, "secret", saved.APIKey)

	saved, err = s.Save(model.ModelSettings{ModelType: model.ModelRoboflow})
	require.NoError(t, err)
	assert.Empty(t, saved.APIKey)
}

func TestSave_KeepsStoredKeyWithoutPriorGet(t *testing.T) {
	repo := &memoryRepo{stored: &model.ModelSettings{ModelType: model.ModelCustom, APIKey: "secret"}}
	s, _ := newService(t, repo)

	saved, err := s.Save(model.ModelSettings{ModelType: model.ModelCustom, ModelEndpoint: "https://c"})
	require.NoError(t, err)

	assert.Equal(t, "secret", saved.APIKey)
	assert.Equal(t, "secret", repo.stored.APIKey)
}

func TestSave_LoadErrorDoesNotOverwrite(t *testing.T) {
	repo := &memoryRepo{getErr: errors.New("locked")}
	s, _ := newService(t, repo)

	_, err := s.Save(model.ModelSettings{ModelType: model.ModelCustom})
	assert.Error(t, err)
	assert.Zero(t, repo.saves)
}

func TestSave_RejectsUnknownType(t *testing.T) {
	repo := &memoryRepo{}
	s, _ := newService(t, repo)

	_, err := s.Save(model.ModelSettings{ModelType: "tensorflow"})
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Zero(t, repo.saves)
}
