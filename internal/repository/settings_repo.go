package repository

import (
	"context"
	"errors"

	"escrowledger/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrSettingNotFound = errors.New("setting not found")

// SettingsRepository handles the uniquely-keyed platform configuration
// rows. Writes are upserts; there is no cross-entity invariant to guard.
type SettingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

func (r *SettingsRepository) UpsertCategoryCommission(ctx context.Context, row *model.CategoryCommission) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "category"}},
			DoUpdates: clause.AssignmentColumns([]string{"rate_bps", "updated_at"}),
		}).
		Create(row).Error
}

func (r *SettingsRepository) GetCategoryCommission(ctx context.Context, category string) (*model.CategoryCommission, error) {
	var row model.CategoryCommission
	err := r.db.WithContext(ctx).Where("category = ?", category).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSettingNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (r *SettingsRepository) ListCategoryCommissions(ctx context.Context) ([]*model.CategoryCommission, error) {
	var rows []*model.CategoryCommission
	err := r.db.WithContext(ctx).Order("category ASC").Find(&rows).Error
	return rows, err
}

func (r *SettingsRepository) UpsertEscrowSettings(ctx context.Context, row *model.EscrowSettings) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "category"}},
			DoUpdates: clause.AssignmentColumns([]string{"required", "hold_days", "updated_at"}),
		}).
		Create(row).Error
}

func (r *SettingsRepository) GetEscrowSettings(ctx context.Context, category string) (*model.EscrowSettings, error) {
	var row model.EscrowSettings
	err := r.db.WithContext(ctx).Where("category = ?", category).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSettingNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (r *SettingsRepository) ListEscrowSettings(ctx context.Context) ([]*model.EscrowSettings, error) {
	var rows []*model.EscrowSettings
	err := r.db.WithContext(ctx).Order("category ASC").Find(&rows).Error
	return rows, err
}

func (r *SettingsRepository) UpsertGlobalSetting(ctx context.Context, row *model.GlobalSetting) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "setting_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"setting_value", "description", "updated_at"}),
		}).
		Create(row).Error
}

func (r *SettingsRepository) GetGlobalSetting(ctx context.Context, key string) (*model.GlobalSetting, error) {
	var row model.GlobalSetting
	err := r.db.WithContext(ctx).Where("setting_key = ?", key).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSettingNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (r *SettingsRepository) ListGlobalSettings(ctx context.Context) ([]*model.GlobalSetting, error) {
	var rows []*model.GlobalSetting
	err := r.db.WithContext(ctx).Order("setting_key ASC").Find(&rows).Error
	return rows, err
}

func (r *SettingsRepository) UpsertFeatureFlag(ctx context.Context, row *model.FeatureFlag) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "flag_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"enabled", "description", "updated_at"}),
		}).
		Create(row).Error
}

func (r *SettingsRepository) GetFeatureFlag(ctx context.Context, name string) (*model.FeatureFlag, error) {
	var row model.FeatureFlag
	err := r.db.WithContext(ctx).Where("flag_name = ?", name).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSettingNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (r *SettingsRepository) ListFeatureFlags(ctx context.Context) ([]*model.FeatureFlag, error) {
	var rows []*model.FeatureFlag
	err := r.db.WithContext(ctx).Order("flag_name ASC").Find(&rows).Error
	return rows, err
}
