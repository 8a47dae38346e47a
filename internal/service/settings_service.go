package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/internal/models"
	appErrors "github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/pkg/errors"
)

type settingsRepository interface {
	List(ctx context.Context) ([]models.Setting, error)
	FindByKey(ctx context.Context, key string) (*models.Setting, error)
	Upsert(ctx context.Context, key, value string, settingType models.SettingType) error
}

// UpsertSettingRequest writes one setting value.
type UpsertSettingRequest struct {
	Key   string `json:"key" validate:"required"`
	Value string `json:"value" validate:"required"`
	Type  string `json:"type" validate:"omitempty,oneof=string number boolean json"`
}

// SettingsService exposes the school-wide key/value configuration.
type SettingsService struct {
	repo      settingsRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSettingsService constructs the settings service.
func NewSettingsService(repo settingsRepository, validate *validator.Validate, logger *zap.Logger) *SettingsService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{repo: repo, validator: validate, logger: logger}
}

// List returns every setting.
func (s *SettingsService) List(ctx context.Context) ([]models.Setting, error) {
	settings, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list settings")
	}
	return settings, nil
}

// Get returns one setting by key.
func (s *SettingsService) Get(ctx context.Context, key string) (*models.Setting, error) {
	setting, err := s.repo.FindByKey(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "setting not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load setting")
	}
	return setting, nil
}

// Upsert writes one setting value, validating number values parse as decimals.
func (s *SettingsService) Upsert(ctx context.Context, req UpsertSettingRequest) (*models.Setting, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid setting payload")
	}

	settingType := models.SettingType(req.Type)
	if settingType == "" {
		settingType = models.SettingTypeString
	}
	if settingType == models.SettingTypeNumber {
		if _, err := decimal.NewFromString(req.Value); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "setting value is not a valid number")
		}
	}

	if err := s.repo.Upsert(ctx, req.Key, req.Value, settingType); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save setting")
	}
	s.logger.Info("setting saved", zap.String("key", req.Key))
	return s.Get(ctx, req.Key)
}

// SchoolName returns the configured school display name, or the fallback.
func (s *SettingsService) SchoolName(ctx context.Context, fallback string) string {
	setting, err := s.repo.FindByKey(ctx, models.SettingKeySchoolName)
	if err != nil || setting.Value == "" {
		return fallback
	}
	return setting.Value
}
