package service

import (
	"context"
	"fmt"
	"time"

	"escrowledger/internal/config"
	"escrowledger/internal/infrastructure/lock"
	"escrowledger/internal/logger"
	"escrowledger/internal/model"
	"escrowledger/internal/repository"
	"escrowledger/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PayoutService converts available balance into external payouts, either
// directly or through the withdrawal-request lifecycle. The balance check
// and the decrement are one conditional UPDATE inside the payout
// transaction, so a wallet cannot go negative under concurrent attempts.
type PayoutService struct {
	db             *gorm.DB
	redisClient    *redis.Client
	cfg            *config.Config
	walletRepo     *repository.WalletRepository
	ledgerRepo     *repository.LedgerRepository
	withdrawalRepo *repository.WithdrawalRepository
	outboxRepo     *repository.OutboxRepository
}

func NewPayoutService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *PayoutService {
	return &PayoutService{
		db:             db,
		redisClient:    redisClient,
		cfg:            cfg,
		walletRepo:     repository.NewWalletRepository(db),
		ledgerRepo:     repository.NewLedgerRepository(db),
		withdrawalRepo: repository.NewWithdrawalRepository(db),
		outboxRepo:     repository.NewOutboxRepository(db),
	}
}

type PayoutResult struct {
	Wallet     *model.ShopWallet        `json:"wallet"`
	Entry      *model.LedgerEntry       `json:"entry"`
	Withdrawal *model.WithdrawalRequest `json:"withdrawal,omitempty"`
}

// ProcessPayout debits a shop's available balance and records the payout
// entry. Fails with the insufficient-balance error when the amount
// exceeds the available balance at execution time; balances are left
// unchanged in that case.
func (s *PayoutService) ProcessPayout(ctx context.Context, shopID, amount int64, method, reference, actorID string) (result *PayoutResult, err error) {
	defer func() { recordOperation("process_payout", err) }()

	if shopID <= 0 {
		return nil, validationError("shop_id is required")
	}
	if amount <= 0 {
		return nil, validationError("payout amount must be positive")
	}

	walletLock := lock.NewWalletLock(s.redisClient, shopID, uuid.NewString())
	if err = walletLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("acquire wallet lock: %w", err)
	}
	defer walletLock.Unlock(ctx)

	var entry *model.LedgerEntry
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		entry, txErr = s.executePayout(ctx, tx, shopID, amount, method, reference, model.ReferenceTypeManual, actorID)
		if txErr != nil {
			return txErr
		}

		return enqueueEvent(ctx, tx, s.outboxRepo, s.cfg.Kafka.Topic.LedgerEvents, entry.EntryNo, map[string]interface{}{
			"event":    "payout.processed",
			"entry_no": entry.EntryNo,
			"shop_id":  shopID,
			"amount":   amount,
			"method":   method,
			"actor_id": actorID,
		})
	})
	if err != nil {
		return nil, err
	}

	wallet, err := s.walletRepo.GetByShopID(ctx, shopID)
	if err != nil {
		return nil, err
	}

	logger.Info("payout processed: shop=%d amount=%d method=%s actor=%s", shopID, amount, method, actorID)

	return &PayoutResult{Wallet: wallet, Entry: entry}, nil
}

// executePayout runs the debit and the payout entry inside the caller's
// transaction. Platform payout totals are derived from these entries, not
// from a separately-incremented counter.
func (s *PayoutService) executePayout(ctx context.Context, tx *gorm.DB, shopID, amount int64, method, referenceID, referenceType, actorID string) (*model.LedgerEntry, error) {
	wallet, err := s.walletRepo.GetInTx(ctx, tx, shopID)
	if err != nil {
		return nil, err
	}

	if err := s.walletRepo.DebitAvailable(ctx, tx, shopID, amount, wallet.Version); err != nil {
		return nil, err
	}

	wallet, err = s.walletRepo.GetInTx(ctx, tx, shopID)
	if err != nil {
		return nil, err
	}

	entry := &model.LedgerEntry{
		EntryNo:         idgen.GenerateEntryNo(),
		ShopID:          &shopID,
		TransactionType: model.EntryTypePayout,
		Amount:          -amount,
		ReferenceID:     referenceID,
		ReferenceType:   referenceType,
		BalanceAfter:    wallet.AvailableBalance,
		Status:          model.EntryStatusCompleted,
		Description:     fmt.Sprintf("payout via %s", method),
		ActorID:         actorID,
	}
	if err := s.ledgerRepo.Create(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("record payout entry: %w", err)
	}

	return entry, nil
}

type RequestWithdrawalInput struct {
	ShopID      int64  `json:"shop_id" binding:"required"`
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Method      string `json:"method" binding:"required"`
	BankDetails string `json:"bank_details"`
}

// RequestWithdrawal files a pending withdrawal request. The balance is
// not reserved: approval re-checks it atomically, so a request can
// legitimately exceed the balance by the time an admin looks at it.
func (s *PayoutService) RequestWithdrawal(ctx context.Context, input *RequestWithdrawalInput) (req *model.WithdrawalRequest, err error) {
	defer func() { recordOperation("request_withdrawal", err) }()

	if input.ShopID <= 0 {
		return nil, validationError("shop_id is required")
	}
	if input.Amount <= 0 {
		return nil, validationError("withdrawal amount must be positive")
	}
	if input.Method == "" {
		return nil, validationError("withdrawal method is required")
	}

	if _, err = s.walletRepo.GetOrCreate(ctx, input.ShopID); err != nil {
		return nil, err
	}

	req = &model.WithdrawalRequest{
		WithdrawalNo: idgen.GenerateWithdrawalNo(),
		ShopID:       input.ShopID,
		Amount:       input.Amount,
		Status:       model.WithdrawalStatusPending,
		Method:       input.Method,
		BankDetails:  input.BankDetails,
	}
	if err = s.withdrawalRepo.Create(ctx, nil, req); err != nil {
		return nil, err
	}

	logger.Info("withdrawal requested: no=%s shop=%d amount=%d", req.WithdrawalNo, input.ShopID, input.Amount)
	return req, nil
}

// ApproveWithdrawal executes the payout recorded on the request and
// completes it, all in one transaction. If the balance has dropped below
// the requested amount since filing, the whole transaction rolls back and
// the request stays pending so an admin can retry or reject.
func (s *PayoutService) ApproveWithdrawal(ctx context.Context, withdrawalNo, actorID string) (result *PayoutResult, err error) {
	defer func() { recordOperation("approve_withdrawal", err) }()

	req, err := s.withdrawalRepo.GetByWithdrawalNo(ctx, withdrawalNo)
	if err != nil {
		return nil, err
	}
	if req.Status != model.WithdrawalStatusPending {
		return nil, fmt.Errorf("%w: withdrawal is %s, not pending", repository.ErrInvalidState, req.Status)
	}

	walletLock := lock.NewWalletLock(s.redisClient, req.ShopID, uuid.NewString())
	if err = walletLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("acquire wallet lock: %w", err)
	}
	defer walletLock.Unlock(ctx)

	var entry *model.LedgerEntry
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		entry, txErr = s.executePayout(ctx, tx, req.ShopID, req.Amount, req.Method, req.WithdrawalNo, model.ReferenceTypeWithdrawal, actorID)
		if txErr != nil {
			return txErr
		}

		now := time.Now()
		if txErr := s.withdrawalRepo.UpdateStatus(ctx, tx, withdrawalNo,
			model.WithdrawalStatusPending, model.WithdrawalStatusCompleted,
			map[string]interface{}{
				"payout_entry_no": entry.EntryNo,
				"processed_by":    actorID,
				"processed_at":    &now,
			}); txErr != nil {
			return txErr
		}

		return enqueueEvent(ctx, tx, s.outboxRepo, s.cfg.Kafka.Topic.LedgerEvents, withdrawalNo, map[string]interface{}{
			"event":         "withdrawal.approved",
			"withdrawal_no": withdrawalNo,
			"shop_id":       req.ShopID,
			"amount":        req.Amount,
			"actor_id":      actorID,
		})
	})
	if err != nil {
		return nil, err
	}

	wallet, err := s.walletRepo.GetByShopID(ctx, req.ShopID)
	if err != nil {
		return nil, err
	}
	req, err = s.withdrawalRepo.GetByWithdrawalNo(ctx, withdrawalNo)
	if err != nil {
		return nil, err
	}

	logger.Info("withdrawal approved: no=%s shop=%d amount=%d actor=%s", withdrawalNo, req.ShopID, req.Amount, actorID)

	return &PayoutResult{Wallet: wallet, Entry: entry, Withdrawal: req}, nil
}

// RejectWithdrawal fails a pending request without touching the balance.
func (s *PayoutService) RejectWithdrawal(ctx context.Context, withdrawalNo, reason, actorID string) (req *model.WithdrawalRequest, err error) {
	defer func() { recordOperation("reject_withdrawal", err) }()

	if reason == "" {
		return nil, validationError("rejection reason is required")
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		if txErr := s.withdrawalRepo.UpdateStatus(ctx, tx, withdrawalNo,
			model.WithdrawalStatusPending, model.WithdrawalStatusFailed,
			map[string]interface{}{
				"rejection_reason": reason,
				"processed_by":     actorID,
				"processed_at":     &now,
			}); txErr != nil {
			return txErr
		}

		return enqueueEvent(ctx, tx, s.outboxRepo, s.cfg.Kafka.Topic.LedgerEvents, withdrawalNo, map[string]interface{}{
			"event":         "withdrawal.rejected",
			"withdrawal_no": withdrawalNo,
			"reason":        reason,
			"actor_id":      actorID,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info("withdrawal rejected: no=%s reason=%q actor=%s", withdrawalNo, reason, actorID)
	return s.withdrawalRepo.GetByWithdrawalNo(ctx, withdrawalNo)
}

// CancelWithdrawal cancels a pending request on behalf of its owner.
func (s *PayoutService) CancelWithdrawal(ctx context.Context, withdrawalNo, actorID string) (req *model.WithdrawalRequest, err error) {
	defer func() { recordOperation("cancel_withdrawal", err) }()

	now := time.Now()
	err = s.withdrawalRepo.UpdateStatus(ctx, nil, withdrawalNo,
		model.WithdrawalStatusPending, model.WithdrawalStatusCancelled,
		map[string]interface{}{
			"processed_by": actorID,
			"processed_at": &now,
		})
	if err != nil {
		return nil, err
	}

	logger.Info("withdrawal cancelled: no=%s actor=%s", withdrawalNo, actorID)
	return s.withdrawalRepo.GetByWithdrawalNo(ctx, withdrawalNo)
}

func (s *PayoutService) GetWithdrawal(ctx context.Context, withdrawalNo string) (*model.WithdrawalRequest, error) {
	return s.withdrawalRepo.GetByWithdrawalNo(ctx, withdrawalNo)
}

func (s *PayoutService) ListWithdrawals(ctx context.Context, status string, page, pageSize int) ([]*model.WithdrawalRequest, int64, error) {
	return s.withdrawalRepo.ListByStatus(ctx, status, page, pageSize)
}
