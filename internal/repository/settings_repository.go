package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/internal/models"
)

// SettingsRepository manages the school-wide key/value settings.
type SettingsRepository struct {
	db *sqlx.DB
}

// NewSettingsRepository constructs a SettingsRepository.
func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// List returns every setting, ordered by key.
func (r *SettingsRepository) List(ctx context.Context) ([]models.Setting, error) {
	const query = `SELECT id, key, value, type, description, created_at, updated_at FROM settings ORDER BY key ASC`
	var settings []models.Setting
	if err := r.db.SelectContext(ctx, &settings, query); err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	return settings, nil
}

// FindByKey fetches one setting by its key.
func (r *SettingsRepository) FindByKey(ctx context.Context, key string) (*models.Setting, error) {
	const query = `SELECT id, key, value, type, description, created_at, updated_at FROM settings WHERE key = $1`
	var setting models.Setting
	if err := r.db.GetContext(ctx, &setting, query, key); err != nil {
		return nil, err
	}
	return &setting, nil
}

// Upsert writes a setting value, creating the row when the key is new.
func (r *SettingsRepository) Upsert(ctx context.Context, key, value string, settingType models.SettingType) error {
	const query = `INSERT INTO settings (id, key, value, type, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $5)
        ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, type = EXCLUDED.type, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), key, value, settingType, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert setting: %w", err)
	}
	return nil
}
