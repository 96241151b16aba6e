package service

import (
	"context"
	"testing"
	"time"

	"escrowledger/internal/model"

	"github.com/stretchr/testify/require"
)

func TestSellerAmount(t *testing.T) {
	db, _, cfg := newTestEnv(t)
	svc := NewSettingsService(db, cfg)
	ctx := context.Background()

	// no configuration at all: seller keeps everything
	seller, commission, err := svc.SellerAmount(ctx, 10000, "electronics")
	require.NoError(t, err)
	require.Equal(t, int64(10000), seller)
	require.Zero(t, commission)

	_, err = svc.SetCategoryCommission(ctx, "electronics", 1000) // 10%
	require.NoError(t, err)
	_, err = svc.SetGlobalSetting(ctx, model.SettingKeyVATRateBps, "500", "5% VAT")
	require.NoError(t, err)
	_, err = svc.SetGlobalSetting(ctx, model.SettingKeyGatewayFeeBps, "250", "2.5% gateway fee")
	require.NoError(t, err)

	seller, commission, err = svc.SellerAmount(ctx, 10000, "electronics")
	require.NoError(t, err)
	require.Equal(t, int64(1000), commission)
	require.Equal(t, int64(8250), seller) // 10000 - 1000 - 500 - 250

	// other categories only pay VAT and fee
	seller, commission, err = svc.SellerAmount(ctx, 10000, "books")
	require.NoError(t, err)
	require.Zero(t, commission)
	require.Equal(t, int64(9250), seller)
}

func TestSellerAmountMalformedRate(t *testing.T) {
	db, _, cfg := newTestEnv(t)
	svc := NewSettingsService(db, cfg)
	ctx := context.Background()

	_, err := svc.SetGlobalSetting(ctx, model.SettingKeyVATRateBps, "not-a-number", "")
	require.NoError(t, err)

	// malformed rates are treated as zero, not as an error
	seller, _, err := svc.SellerAmount(ctx, 10000, "")
	require.NoError(t, err)
	require.Equal(t, int64(10000), seller)
}

func TestHoldUntil(t *testing.T) {
	db, _, cfg := newTestEnv(t)
	svc := NewSettingsService(db, cfg)
	ctx := context.Background()
	from := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// unconfigured category falls back to the service default
	got := svc.HoldUntil(ctx, "electronics", from)
	require.Equal(t, from.AddDate(0, 0, cfg.Business.DefaultHoldDays), got)

	_, err := svc.SetEscrowSettings(ctx, "electronics", true, 3)
	require.NoError(t, err)
	got = svc.HoldUntil(ctx, "electronics", from)
	require.Equal(t, from.AddDate(0, 0, 3), got)

	// escrow not required releases immediately
	_, err = svc.SetEscrowSettings(ctx, "digital", false, 14)
	require.NoError(t, err)
	got = svc.HoldUntil(ctx, "digital", from)
	require.Equal(t, from, got)

	// a global default overrides the config fallback
	_, err = svc.SetGlobalSetting(ctx, model.SettingKeyDefaultHoldDay, "10", "")
	require.NoError(t, err)
	got = svc.HoldUntil(ctx, "books", from)
	require.Equal(t, from.AddDate(0, 0, 10), got)
}

func TestCategoryCommissionValidation(t *testing.T) {
	db, _, cfg := newTestEnv(t)
	svc := NewSettingsService(db, cfg)
	ctx := context.Background()

	_, err := svc.SetCategoryCommission(ctx, "", 500)
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.SetCategoryCommission(ctx, "electronics", -1)
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.SetCategoryCommission(ctx, "electronics", 10001)
	require.ErrorIs(t, err, ErrValidation)
}

func TestSettingsUpsert(t *testing.T) {
	db, _, cfg := newTestEnv(t)
	svc := NewSettingsService(db, cfg)
	ctx := context.Background()

	row, err := svc.SetCategoryCommission(ctx, "electronics", 500)
	require.NoError(t, err)
	require.Equal(t, int64(500), row.RateBps)

	row, err = svc.SetCategoryCommission(ctx, "electronics", 750)
	require.NoError(t, err)
	require.Equal(t, int64(750), row.RateBps)

	rows, err := svc.ListCategoryCommissions(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestFeatureFlags(t *testing.T) {
	db, _, cfg := newTestEnv(t)
	svc := NewSettingsService(db, cfg)
	ctx := context.Background()

	require.False(t, svc.IsFeatureEnabled(ctx, "auto_release"))

	_, err := svc.SetFeatureFlag(ctx, "auto_release", true, "release held escrow on schedule")
	require.NoError(t, err)
	require.True(t, svc.IsFeatureEnabled(ctx, "auto_release"))

	_, err = svc.SetFeatureFlag(ctx, "auto_release", false, "")
	require.NoError(t, err)
	require.False(t, svc.IsFeatureEnabled(ctx, "auto_release"))
}
