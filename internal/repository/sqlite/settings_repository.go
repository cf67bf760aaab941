package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"potholewatch/internal/model"
	"potholewatch/internal/repository"
)

// SettingsRepository implements repository.SettingsRepository for SQLite.
type SettingsRepository struct {
	db *DB
}

func NewSettingsRepository(db *DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetModelSettings returns repository.ErrNotFound until settings are saved once.
func (r *SettingsRepository) GetModelSettings() (*model.ModelSettings, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var s model.ModelSettings
	err := r.db.Conn().QueryRow(`
		SELECT model_type, model_endpoint, api_key, model_id, version, updated_at
		FROM model_settings WHERE id = 1
	`).Scan(&s.ModelType, &s.ModelEndpoint, &s.APIKey, &s.ModelID, &s.Version, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query model settings: %w", err)
	}
	return &s, nil
}

// SaveModelSettings upserts the single settings row.
func (r *SettingsRepository) SaveModelSettings(s *model.ModelSettings) error {
	r.db.Lock()
	defer r.db.Unlock()

	_, err := r.db.Conn().Exec(`
		INSERT INTO model_settings (id, model_type, model_endpoint, api_key, model_id, version, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			model_type = excluded.model_type,
			model_endpoint = excluded.model_endpoint,
			api_key = excluded.api_key,
			model_id = excluded.model_id,
			version = excluded.version,
			updated_at = excluded.updated_at
	`, s.ModelType, s.ModelEndpoint, s.APIKey, s.ModelID, s.Version, utc(s.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save model settings: %w", err)
	}
	return nil
}
