package service

import (
	"context"
	"testing"

	"escrowledger/internal/model"
	"escrowledger/internal/repository"

	"github.com/stretchr/testify/require"
)

// fundShop runs an escrow hold and release so the shop has real,
// ledger-backed available balance.
func fundShop(t *testing.T, svc *EscrowService, shopID, amount int64, orderID string) {
	t.Helper()
	ctx := context.Background()

	held, err := svc.HoldEscrow(ctx, holdRequest(orderID, shopID, amount, 0))
	require.NoError(t, err)
	_, err = svc.ReleaseEscrow(ctx, held.Transaction.TransactionNo, "test-admin")
	require.NoError(t, err)
}

func TestProcessPayout(t *testing.T) {
	db, rdb, cfg := newTestEnv(t)
	escrowSvc := NewEscrowService(db, rdb, cfg)
	svc := NewPayoutService(db, rdb, cfg)
	ctx := context.Background()

	fundShop(t, escrowSvc, 10, 10000, "order-1")

	result, err := svc.ProcessPayout(ctx, 10, 4000, "bank_transfer", "ref-1", "test-admin")
	require.NoError(t, err)

	require.Equal(t, int64(6000), result.Wallet.AvailableBalance)
	require.Equal(t, model.EntryTypePayout, result.Entry.TransactionType)
	require.Equal(t, int64(-4000), result.Entry.Amount)
	require.Equal(t, int64(6000), result.Entry.BalanceAfter)
}

func TestProcessPayoutInsufficientBalance(t *testing.T) {
	db, rdb, cfg := newTestEnv(t)
	escrowSvc := NewEscrowService(db, rdb, cfg)
	svc := NewPayoutService(db, rdb, cfg)
	ctx := context.Background()

	fundShop(t, escrowSvc, 10, 1000, "order-1")

	_, err := svc.ProcessPayout(ctx, 10, 5000, "bank_transfer", "ref-1", "test-admin")
	require.ErrorIs(t, err, repository.ErrInsufficientBalance)

	// nothing moved and no entry was written
	walletRepo := repository.NewWalletRepository(db)
	wallet, err := walletRepo.GetByShopID(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, int64(1000), wallet.AvailableBalance)

	ledgerRepo := repository.NewLedgerRepository(db)
	sums, err := ledgerRepo.SumByTypeForShop(ctx, 10)
	require.NoError(t, err)
	require.Zero(t, sums[model.EntryTypePayout])
}

func TestProcessPayoutLockedNotSpendable(t *testing.T) {
	db, rdb, cfg := newTestEnv(t)
	escrowSvc := NewEscrowService(db, rdb, cfg)
	svc := NewPayoutService(db, rdb, cfg)
	ctx := context.Background()

	// funds are held, never released
	_, err := escrowSvc.HoldEscrow(ctx, holdRequest("order-1", 10, 10000, 0))
	require.NoError(t, err)

	_, err = svc.ProcessPayout(ctx, 10, 1000, "bank_transfer", "", "test-admin")
	require.ErrorIs(t, err, repository.ErrInsufficientBalance)
}

func TestProcessPayoutValidation(t *testing.T) {
	db, rdb, cfg := newTestEnv(t)
	svc := NewPayoutService(db, rdb, cfg)
	ctx := context.Background()

	_, err := svc.ProcessPayout(ctx, 0, 1000, "bank_transfer", "", "test-admin")
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.ProcessPayout(ctx, 10, 0, "bank_transfer", "", "test-admin")
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.ProcessPayout(ctx, 10, -100, "bank_transfer", "", "test-admin")
	require.ErrorIs(t, err, ErrValidation)
}

func TestWithdrawalLifecycle(t *testing.T) {
	db, rdb, cfg := newTestEnv(t)
	escrowSvc := NewEscrowService(db, rdb, cfg)
	svc := NewPayoutService(db, rdb, cfg)
	ctx := context.Background()

	fundShop(t, escrowSvc, 10, 10000, "order-1")

	req, err := svc.RequestWithdrawal(ctx, &RequestWithdrawalInput{
		ShopID: 10,
		Amount: 4000,
		Method: "bank_transfer",
	})
	require.NoError(t, err)
	require.Equal(t, model.WithdrawalStatusPending, req.Status)

	result, err := svc.ApproveWithdrawal(ctx, req.WithdrawalNo, "admin-1")
	require.NoError(t, err)

	require.Equal(t, model.WithdrawalStatusCompleted, result.Withdrawal.Status)
	require.Equal(t, "admin-1", result.Withdrawal.ProcessedBy)
	require.NotNil(t, result.Withdrawal.ProcessedAt)
	require.Equal(t, result.Entry.EntryNo, result.Withdrawal.PayoutEntryNo)

	require.Equal(t, int64(6000), result.Wallet.AvailableBalance)
	require.Equal(t, model.EntryTypePayout, result.Entry.TransactionType)
	require.Equal(t, model.ReferenceTypeWithdrawal, result.Entry.ReferenceType)
	require.Equal(t, req.WithdrawalNo, result.Entry.ReferenceID)
}

func TestApproveWithdrawalInsufficientLeavesPending(t *testing.T) {
	db, rdb, cfg := newTestEnv(t)
	escrowSvc := NewEscrowService(db, rdb, cfg)
	svc := NewPayoutService(db, rdb, cfg)
	ctx := context.Background()

	fundShop(t, escrowSvc, 10, 1000, "order-1")

	req, err := svc.RequestWithdrawal(ctx, &RequestWithdrawalInput{
		ShopID: 10,
		Amount: 5000,
		Method: "bank_transfer",
	})
	require.NoError(t, err)

	_, err = svc.ApproveWithdrawal(ctx, req.WithdrawalNo, "admin-1")
	require.ErrorIs(t, err, repository.ErrInsufficientBalance)

	// the whole approval rolled back; the request can be retried or rejected
	after, err := svc.GetWithdrawal(ctx, req.WithdrawalNo)
	require.NoError(t, err)
	require.Equal(t, model.WithdrawalStatusPending, after.Status)

	walletRepo := repository.NewWalletRepository(db)
	wallet, err := walletRepo.GetByShopID(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, int64(1000), wallet.AvailableBalance)
}

func TestApproveWithdrawalTwice(t *testing.T) {
	db, rdb, cfg := newTestEnv(t)
	escrowSvc := NewEscrowService(db, rdb, cfg)
	svc := NewPayoutService(db, rdb, cfg)
	ctx := context.Background()

	fundShop(t, escrowSvc, 10, 10000, "order-1")

	req, err := svc.RequestWithdrawal(ctx, &RequestWithdrawalInput{
		ShopID: 10,
		Amount: 4000,
		Method: "bank_transfer",
	})
	require.NoError(t, err)

	_, err = svc.ApproveWithdrawal(ctx, req.WithdrawalNo, "admin-1")
	require.NoError(t, err)

	_, err = svc.ApproveWithdrawal(ctx, req.WithdrawalNo, "admin-1")
	require.ErrorIs(t, err, repository.ErrInvalidState)

	// no double debit
	walletRepo := repository.NewWalletRepository(db)
	wallet, err := walletRepo.GetByShopID(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, int64(6000), wallet.AvailableBalance)
}

func TestRejectWithdrawal(t *testing.T) {
	db, rdb, cfg := newTestEnv(t)
	escrowSvc := NewEscrowService(db, rdb, cfg)
	svc := NewPayoutService(db, rdb, cfg)
	ctx := context.Background()

	fundShop(t, escrowSvc, 10, 10000, "order-1")

	req, err := svc.RequestWithdrawal(ctx, &RequestWithdrawalInput{
		ShopID: 10,
		Amount: 4000,
		Method: "bank_transfer",
	})
	require.NoError(t, err)

	result, err := svc.RejectWithdrawal(ctx, req.WithdrawalNo, "missing bank details", "admin-1")
	require.NoError(t, err)
	require.Equal(t, model.WithdrawalStatusFailed, result.Status)
	require.Equal(t, "missing bank details", result.RejectionReason)

	// balance untouched
	walletRepo := repository.NewWalletRepository(db)
	wallet, err := walletRepo.GetByShopID(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, int64(10000), wallet.AvailableBalance)

	// a rejected request cannot be approved afterwards
	_, err = svc.ApproveWithdrawal(ctx, req.WithdrawalNo, "admin-1")
	require.ErrorIs(t, err, repository.ErrInvalidState)
}

func TestRejectWithdrawalRequiresReason(t *testing.T) {
	db, rdb, cfg := newTestEnv(t)
	svc := NewPayoutService(db, rdb, cfg)
	ctx := context.Background()

	_, err := svc.RejectWithdrawal(ctx, "whatever", "", "admin-1")
	require.ErrorIs(t, err, ErrValidation)
}

func TestCancelWithdrawal(t *testing.T) {
	db, rdb, cfg := newTestEnv(t)
	svc := NewPayoutService(db, rdb, cfg)
	ctx := context.Background()

	req, err := svc.RequestWithdrawal(ctx, &RequestWithdrawalInput{
		ShopID: 10,
		Amount: 4000,
		Method: "bank_transfer",
	})
	require.NoError(t, err)

	result, err := svc.CancelWithdrawal(ctx, req.WithdrawalNo, "shop-10")
	require.NoError(t, err)
	require.Equal(t, model.WithdrawalStatusCancelled, result.Status)

	_, err = svc.ApproveWithdrawal(ctx, req.WithdrawalNo, "admin-1")
	require.ErrorIs(t, err, repository.ErrInvalidState)
}

func TestRequestWithdrawalValidation(t *testing.T) {
	db, rdb, cfg := newTestEnv(t)
	svc := NewPayoutService(db, rdb, cfg)
	ctx := context.Background()

	_, err := svc.RequestWithdrawal(ctx, &RequestWithdrawalInput{ShopID: 0, Amount: 100, Method: "bank_transfer"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.RequestWithdrawal(ctx, &RequestWithdrawalInput{ShopID: 10, Amount: 0, Method: "bank_transfer"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.RequestWithdrawal(ctx, &RequestWithdrawalInput{ShopID: 10, Amount: 100, Method: ""})
	require.ErrorIs(t, err, ErrValidation)
}

func TestListWithdrawalsByStatus(t *testing.T) {
	db, rdb, cfg := newTestEnv(t)
	svc := NewPayoutService(db, rdb, cfg)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.RequestWithdrawal(ctx, &RequestWithdrawalInput{
			ShopID: 10,
			Amount: 1000,
			Method: "bank_transfer",
		})
		require.NoError(t, err)
	}

	pending, total, err := svc.ListWithdrawals(ctx, model.WithdrawalStatusPending, 1, 10)
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, pending, 3)

	completed, total, err := svc.ListWithdrawals(ctx, model.WithdrawalStatusCompleted, 1, 10)
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, completed)
}
