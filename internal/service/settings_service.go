package service

import (
	"context"
	"strconv"
	"time"

	"escrowledger/internal/config"
	"escrowledger/internal/model"
	"escrowledger/internal/repository"

	"gorm.io/gorm"
)

// SettingsService reads and writes platform configuration: per-category
// commission rates, escrow hold rules, global key/value settings and
// feature flags. Rates are basis points so the split math stays in
// integers.
type SettingsService struct {
	cfg  *config.Config
	repo *repository.SettingsRepository
}

func NewSettingsService(db *gorm.DB, cfg *config.Config) *SettingsService {
	return &SettingsService{
		cfg:  cfg,
		repo: repository.NewSettingsRepository(db),
	}
}

// SellerAmount splits a gross order amount into the seller's share and
// the platform commission. VAT and gateway fee rates, when configured,
// also come out of the seller's share. Missing configuration rows mean a
// zero rate, never an error.
func (s *SettingsService) SellerAmount(ctx context.Context, gross int64, category string) (seller, commission int64, err error) {
	if category != "" {
		row, getErr := s.repo.GetCategoryCommission(ctx, category)
		if getErr != nil && getErr != repository.ErrSettingNotFound {
			return 0, 0, getErr
		}
		if row != nil {
			commission = gross * row.RateBps / 10000
		}
	}

	vat := gross * s.rateBps(ctx, model.SettingKeyVATRateBps) / 10000
	fee := gross * s.rateBps(ctx, model.SettingKeyGatewayFeeBps) / 10000

	seller = gross - commission - vat - fee
	if seller < 0 {
		seller = 0
	}
	return seller, commission, nil
}

// rateBps reads an integer basis-points value from the global settings
// table, treating absent or malformed rows as zero.
func (s *SettingsService) rateBps(ctx context.Context, key string) int64 {
	row, err := s.repo.GetGlobalSetting(ctx, key)
	if err != nil {
		return 0
	}
	bps, err := strconv.ParseInt(row.SettingValue, 10, 64)
	if err != nil || bps < 0 {
		return 0
	}
	return bps
}

// HoldUntil computes the escrow release time for a category. A category
// explicitly configured as not requiring escrow releases immediately;
// otherwise the category's hold days apply, falling back to the global
// setting and then the service-wide default.
func (s *SettingsService) HoldUntil(ctx context.Context, category string, from time.Time) time.Time {
	holdDays := s.defaultHoldDays(ctx)
	if category != "" {
		row, err := s.repo.GetEscrowSettings(ctx, category)
		if err == nil {
			if !row.Required {
				return from
			}
			holdDays = row.HoldDays
		}
	}
	return from.AddDate(0, 0, holdDays)
}

func (s *SettingsService) defaultHoldDays(ctx context.Context) int {
	row, err := s.repo.GetGlobalSetting(ctx, model.SettingKeyDefaultHoldDay)
	if err == nil {
		if days, parseErr := strconv.Atoi(row.SettingValue); parseErr == nil && days >= 0 {
			return days
		}
	}
	return s.cfg.Business.DefaultHoldDays
}

func (s *SettingsService) SetCategoryCommission(ctx context.Context, category string, rateBps int) (*model.CategoryCommission, error) {
	if category == "" {
		return nil, validationError("category is required")
	}
	if rateBps < 0 || rateBps > 10000 {
		return nil, validationError("rate_bps must be in [0, 10000]")
	}
	row := &model.CategoryCommission{Category: category, RateBps: int64(rateBps)}
	if err := s.repo.UpsertCategoryCommission(ctx, row); err != nil {
		return nil, err
	}
	return s.repo.GetCategoryCommission(ctx, category)
}

func (s *SettingsService) ListCategoryCommissions(ctx context.Context) ([]*model.CategoryCommission, error) {
	return s.repo.ListCategoryCommissions(ctx)
}

func (s *SettingsService) SetEscrowSettings(ctx context.Context, category string, required bool, holdDays int) (*model.EscrowSettings, error) {
	if category == "" {
		return nil, validationError("category is required")
	}
	if holdDays < 0 {
		return nil, validationError("hold_days must not be negative")
	}
	row := &model.EscrowSettings{Category: category, Required: required, HoldDays: holdDays}
	if err := s.repo.UpsertEscrowSettings(ctx, row); err != nil {
		return nil, err
	}
	return s.repo.GetEscrowSettings(ctx, category)
}

func (s *SettingsService) ListEscrowSettings(ctx context.Context) ([]*model.EscrowSettings, error) {
	return s.repo.ListEscrowSettings(ctx)
}

func (s *SettingsService) SetGlobalSetting(ctx context.Context, key, value, description string) (*model.GlobalSetting, error) {
	if key == "" {
		return nil, validationError("setting_key is required")
	}
	row := &model.GlobalSetting{SettingKey: key, SettingValue: value, Description: description}
	if err := s.repo.UpsertGlobalSetting(ctx, row); err != nil {
		return nil, err
	}
	return s.repo.GetGlobalSetting(ctx, key)
}

func (s *SettingsService) GetGlobalSetting(ctx context.Context, key string) (*model.GlobalSetting, error) {
	return s.repo.GetGlobalSetting(ctx, key)
}

func (s *SettingsService) ListGlobalSettings(ctx context.Context) ([]*model.GlobalSetting, error) {
	return s.repo.ListGlobalSettings(ctx)
}

func (s *SettingsService) SetFeatureFlag(ctx context.Context, name string, enabled bool, description string) (*model.FeatureFlag, error) {
	if name == "" {
		return nil, validationError("flag_name is required")
	}
	row := &model.FeatureFlag{FlagName: name, Enabled: enabled, Description: description}
	if err := s.repo.UpsertFeatureFlag(ctx, row); err != nil {
		return nil, err
	}
	return s.repo.GetFeatureFlag(ctx, name)
}

func (s *SettingsService) IsFeatureEnabled(ctx context.Context, name string) bool {
	row, err := s.repo.GetFeatureFlag(ctx, name)
	if err != nil {
		return false
	}
	return row.Enabled
}

func (s *SettingsService) ListFeatureFlags(ctx context.Context) ([]*model.FeatureFlag, error) {
	return s.repo.ListFeatureFlags(ctx)
}
