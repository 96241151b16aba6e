package service

import (
	"context"
	"testing"

	"escrowledger/internal/model"
	"escrowledger/internal/repository"

	"github.com/stretchr/testify/require"
)

func TestGetWalletCreatesOnFirstAccess(t *testing.T) {
	db, rdb, cfg := newTestEnv(t)
	svc := NewWalletService(db, rdb, cfg)
	ctx := context.Background()

	wallet, err := svc.GetWallet(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, int64(42), wallet.ShopID)
	require.Zero(t, wallet.AvailableBalance)
	require.Zero(t, wallet.LockedBalance)

	again, err := svc.GetWallet(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, wallet.ID, again.ID)
}

func TestApplyAdjustment(t *testing.T) {
	db, rdb, cfg := newTestEnv(t)
	svc := NewWalletService(db, rdb, cfg)
	ctx := context.Background()

	shopID := int64(10)
	entry, err := svc.ApplyAdjustment(ctx, &shopID, 5000, "goodwill credit", "admin-1")
	require.NoError(t, err)
	require.Equal(t, model.EntryTypeAdjustment, entry.TransactionType)
	require.Equal(t, int64(5000), entry.Amount)
	require.Equal(t, int64(5000), entry.BalanceAfter)
	require.NotNil(t, entry.ShopID)
	require.Equal(t, shopID, *entry.ShopID)

	entry, err = svc.ApplyAdjustment(ctx, &shopID, -2000, "partial clawback", "admin-1")
	require.NoError(t, err)
	require.Equal(t, int64(-2000), entry.Amount)
	require.Equal(t, int64(3000), entry.BalanceAfter)

	wallet, err := svc.GetWallet(ctx, shopID)
	require.NoError(t, err)
	require.Equal(t, int64(3000), wallet.AvailableBalance)
}

func TestApplyAdjustmentValidation(t *testing.T) {
	db, rdb, cfg := newTestEnv(t)
	svc := NewWalletService(db, rdb, cfg)
	ctx := context.Background()

	shopID := int64(10)
	_, err := svc.ApplyAdjustment(ctx, &shopID, 0, "noop", "admin-1")
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.ApplyAdjustment(ctx, &shopID, 100, "", "admin-1")
	require.ErrorIs(t, err, ErrValidation)
}

func TestApplyAdjustmentCannotOverdraw(t *testing.T) {
	db, rdb, cfg := newTestEnv(t)
	svc := NewWalletService(db, rdb, cfg)
	ctx := context.Background()

	shopID := int64(10)
	_, err := svc.ApplyAdjustment(ctx, &shopID, 1000, "seed", "admin-1")
	require.NoError(t, err)

	_, err = svc.ApplyAdjustment(ctx, &shopID, -5000, "too large", "admin-1")
	require.ErrorIs(t, err, repository.ErrInsufficientBalance)

	wallet, err := svc.GetWallet(ctx, shopID)
	require.NoError(t, err)
	require.Equal(t, int64(1000), wallet.AvailableBalance)
}

func TestApplyAdjustmentPlatformWallet(t *testing.T) {
	db, rdb, cfg := newTestEnv(t)
	svc := NewWalletService(db, rdb, cfg)
	ctx := context.Background()

	entry, err := svc.ApplyAdjustment(ctx, nil, 2500, "fee correction", "admin-1")
	require.NoError(t, err)
	require.Nil(t, entry.ShopID)

	platform, err := svc.GetWallet(ctx, model.PlatformShopID)
	require.NoError(t, err)
	require.Equal(t, int64(2500), platform.AvailableBalance)
}

func TestComputePlatformSummary(t *testing.T) {
	db, rdb, cfg := newTestEnv(t)
	escrowSvc := NewEscrowService(db, rdb, cfg)
	payoutSvc := NewPayoutService(db, rdb, cfg)
	svc := NewWalletService(db, rdb, cfg)
	ctx := context.Background()

	// order 1: held and released, then partially paid out
	held, err := escrowSvc.HoldEscrow(ctx, holdRequest("order-1", 10, 10000, 1000))
	require.NoError(t, err)
	_, err = escrowSvc.ReleaseEscrow(ctx, held.Transaction.TransactionNo, "admin-1")
	require.NoError(t, err)
	_, err = payoutSvc.ProcessPayout(ctx, 10, 2000, "bank_transfer", "", "admin-1")
	require.NoError(t, err)

	// order 2: still held
	_, err = escrowSvc.HoldEscrow(ctx, holdRequest("order-2", 20, 6000, 600))
	require.NoError(t, err)

	// order 3: refunded
	held3, err := escrowSvc.HoldEscrow(ctx, holdRequest("order-3", 20, 4000, 400))
	require.NoError(t, err)
	_, err = escrowSvc.RefundEscrow(ctx, held3.Transaction.TransactionNo, "buyer request", "admin-1")
	require.NoError(t, err)

	summary, err := svc.ComputePlatformSummary(ctx)
	require.NoError(t, err)

	require.Equal(t, int64(2000), summary.TotalCommissions) // 1000 + 600 + 400
	require.Equal(t, int64(2000), summary.TotalPayouts)
	require.Equal(t, int64(3600), summary.TotalRefunds)      // order 3 seller share
	require.Equal(t, int64(5400), summary.TotalLocked)       // order 2 seller share
	require.Equal(t, int64(2000), summary.PlatformAvailable) // commissions only
	require.Zero(t, summary.TotalAdjustments)
}

func TestReconcileShopConsistent(t *testing.T) {
	db, rdb, cfg := newTestEnv(t)
	escrowSvc := NewEscrowService(db, rdb, cfg)
	payoutSvc := NewPayoutService(db, rdb, cfg)
	svc := NewWalletService(db, rdb, cfg)
	ctx := context.Background()

	held, err := escrowSvc.HoldEscrow(ctx, holdRequest("order-1", 10, 10000, 1000))
	require.NoError(t, err)
	_, err = escrowSvc.ReleaseEscrow(ctx, held.Transaction.TransactionNo, "admin-1")
	require.NoError(t, err)
	_, err = payoutSvc.ProcessPayout(ctx, 10, 2000, "bank_transfer", "", "admin-1")
	require.NoError(t, err)
	_, err = escrowSvc.HoldEscrow(ctx, holdRequest("order-2", 10, 5000, 0))
	require.NoError(t, err)

	report, err := svc.ReconcileShop(ctx, 10)
	require.NoError(t, err)
	require.True(t, report.Consistent)
	require.Equal(t, int64(7000), report.ComputedAvailable) // 9000 released - 2000 paid out
	require.Equal(t, int64(5000), report.ComputedLocked)
	require.Equal(t, report.WalletAvailable, report.ComputedAvailable)
	require.Equal(t, report.WalletLocked, report.ComputedLocked)
}

func TestReconcilePlatformWallet(t *testing.T) {
	db, rdb, cfg := newTestEnv(t)
	escrowSvc := NewEscrowService(db, rdb, cfg)
	svc := NewWalletService(db, rdb, cfg)
	ctx := context.Background()

	_, err := escrowSvc.HoldEscrow(ctx, holdRequest("order-1", 10, 10000, 1000))
	require.NoError(t, err)

	report, err := svc.ReconcileShop(ctx, model.PlatformShopID)
	require.NoError(t, err)
	require.True(t, report.Consistent)
	require.Equal(t, int64(1000), report.ComputedAvailable)
	require.Zero(t, report.ComputedLocked)
}

func TestReconcileDetectsDrift(t *testing.T) {
	db, rdb, cfg := newTestEnv(t)
	escrowSvc := NewEscrowService(db, rdb, cfg)
	svc := NewWalletService(db, rdb, cfg)
	ctx := context.Background()

	_, err := escrowSvc.HoldEscrow(ctx, holdRequest("order-1", 10, 10000, 0))
	require.NoError(t, err)

	// corrupt the wallet row behind the ledger's back
	err = db.Model(&model.ShopWallet{}).
		Where("shop_id = ?", int64(10)).
		Update("locked_balance", 99999).Error
	require.NoError(t, err)

	report, err := svc.ReconcileShop(ctx, 10)
	require.NoError(t, err)
	require.False(t, report.Consistent)
	require.Equal(t, int64(99999), report.WalletLocked)
	require.Equal(t, int64(10000), report.ComputedLocked)
}

func TestListEntriesPagination(t *testing.T) {
	db, rdb, cfg := newTestEnv(t)
	svc := NewWalletService(db, rdb, cfg)
	ctx := context.Background()

	shopID := int64(10)
	for i := 0; i < 5; i++ {
		_, err := svc.ApplyAdjustment(ctx, &shopID, 100, "seed", "admin-1")
		require.NoError(t, err)
	}

	entries, total, err := svc.ListEntries(ctx, shopID, 1, 2)
	require.NoError(t, err)
	require.Equal(t, int64(5), total)
	require.Len(t, entries, 2)

	entries, _, err = svc.ListEntries(ctx, shopID, 3, 2)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
