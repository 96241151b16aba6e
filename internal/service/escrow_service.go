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

// EscrowService owns the escrow lifecycle of the seller share of a paid
// order: hold, release, refund, dispute. Every mutation runs as one
// database transaction wrapping the guarded state transition, the wallet
// balance change, exactly one ledger entry per wallet touched, and the
// outbox event. A failure anywhere rolls back everything, so a reader can
// never observe an entry without its balance effect or vice versa.
type EscrowService struct {
	db          *gorm.DB
	redisClient *redis.Client
	cfg         *config.Config
	walletRepo  *repository.WalletRepository
	txnRepo     *repository.TransactionRepository
	ledgerRepo  *repository.LedgerRepository
	outboxRepo  *repository.OutboxRepository
	settings    *SettingsService
}

func NewEscrowService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *EscrowService {
	return &EscrowService{
		db:          db,
		redisClient: redisClient,
		cfg:         cfg,
		walletRepo:  repository.NewWalletRepository(db),
		txnRepo:     repository.NewTransactionRepository(db),
		ledgerRepo:  repository.NewLedgerRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
		settings:    NewSettingsService(db, cfg),
	}
}

type HoldEscrowRequest struct {
	OrderID          string     `json:"order_id" binding:"required"`
	ShopID           int64      `json:"shop_id" binding:"required"`
	Amount           int64      `json:"amount" binding:"required,gt=0"` // gross order amount
	CommissionAmount *int64     `json:"commission_amount"`              // nil means derive the split from configuration
	Category         string     `json:"category"`
	HoldUntil        *time.Time `json:"hold_until"`
	ActorID          string     `json:"-"`
}

// EscrowResult echoes the transaction and the updated seller wallet so
// the caller can render fresh balances without a re-fetch.
type EscrowResult struct {
	Transaction *model.EscrowTransaction `json:"transaction"`
	Wallet      *model.ShopWallet        `json:"wallet"`
	Entry       *model.LedgerEntry       `json:"entry,omitempty"`
}

// HoldEscrow is called by the payment subsystem once per successfully paid
// order. The seller share moves into the shop's locked balance and the
// platform commission is retained immediately. A second call for the same
// order fails with an invalid-state error rather than double-crediting.
func (s *EscrowService) HoldEscrow(ctx context.Context, req *HoldEscrowRequest) (result *EscrowResult, err error) {
	defer func() { recordOperation("hold_escrow", err) }()

	if req.OrderID == "" {
		return nil, validationError("order_id is required")
	}
	if req.ShopID <= 0 {
		return nil, validationError("shop_id is required")
	}
	if req.Amount <= 0 {
		return nil, validationError("amount must be positive")
	}

	var sellerAmount, commission int64
	if req.CommissionAmount != nil {
		commission = *req.CommissionAmount
		if commission < 0 || commission >= req.Amount {
			return nil, validationError("commission_amount must be in [0, amount)")
		}
		sellerAmount = req.Amount - commission
	} else {
		// Caller left the split to platform configuration. Commission,
		// VAT and gateway fee all come out of the held amount.
		sellerAmount, commission, err = s.settings.SellerAmount(ctx, req.Amount, req.Category)
		if err != nil {
			return nil, err
		}
		if sellerAmount <= 0 {
			return nil, validationError("configured rates leave no seller amount")
		}
	}

	var holdUntil time.Time
	if req.HoldUntil != nil {
		holdUntil = *req.HoldUntil
	} else {
		holdUntil = s.settings.HoldUntil(ctx, req.Category, time.Now())
	}

	existing, err := s.txnRepo.GetByOrderID(ctx, req.OrderID)
	if err != nil {
		return nil, fmt.Errorf("lookup order: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: order %s already escrowed", repository.ErrInvalidState, req.OrderID)
	}

	orderLock := lock.NewOrderLock(s.redisClient, req.OrderID, uuid.NewString())
	if err = orderLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("acquire order lock: %w", err)
	}
	defer orderLock.Unlock(ctx)

	// re-check under the lock
	existing, err = s.txnRepo.GetByOrderID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: order %s already escrowed", repository.ErrInvalidState, req.OrderID)
	}

	if _, err = s.walletRepo.GetOrCreate(ctx, req.ShopID); err != nil {
		return nil, fmt.Errorf("get shop wallet: %w", err)
	}
	if commission > 0 {
		if _, err = s.walletRepo.GetOrCreate(ctx, model.PlatformShopID); err != nil {
			return nil, fmt.Errorf("get platform wallet: %w", err)
		}
	}

	txn := &model.EscrowTransaction{
		TransactionNo:    idgen.GenerateTransactionNo(),
		OrderID:          req.OrderID,
		ShopID:           req.ShopID,
		Amount:           req.Amount,
		CommissionAmount: commission,
		SellerAmount:     sellerAmount,
		Status:           model.TxnStatusProcessing,
		EscrowStatus:     model.EscrowStatusHeld,
		EscrowHoldUntil:  holdUntil,
	}

	var holdEntry *model.LedgerEntry
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.txnRepo.Create(ctx, tx, txn); err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}

		if err := s.walletRepo.LockFunds(ctx, tx, req.ShopID, sellerAmount); err != nil {
			return fmt.Errorf("lock funds: %w", err)
		}

		wallet, err := s.walletRepo.GetInTx(ctx, tx, req.ShopID)
		if err != nil {
			return err
		}

		shopID := req.ShopID
		holdEntry = &model.LedgerEntry{
			EntryNo:         idgen.GenerateEntryNo(),
			ShopID:          &shopID,
			TransactionType: model.EntryTypeEscrowHold,
			Amount:          sellerAmount,
			ReferenceID:     req.OrderID,
			ReferenceType:   model.ReferenceTypeOrder,
			BalanceAfter:    wallet.AvailableBalance,
			Status:          model.EntryStatusCompleted,
			Description:     fmt.Sprintf("escrow hold for order %s", req.OrderID),
			ActorID:         req.ActorID,
		}
		if err := s.ledgerRepo.Create(ctx, tx, holdEntry); err != nil {
			return fmt.Errorf("record hold entry: %w", err)
		}

		if commission > 0 {
			if err := s.walletRepo.CreditAvailable(ctx, tx, model.PlatformShopID, commission); err != nil {
				return fmt.Errorf("credit commission: %w", err)
			}
			platformWallet, err := s.walletRepo.GetInTx(ctx, tx, model.PlatformShopID)
			if err != nil {
				return err
			}
			commissionEntry := &model.LedgerEntry{
				EntryNo:         idgen.GenerateEntryNo(),
				ShopID:          nil, // platform-level entry
				TransactionType: model.EntryTypeCommission,
				Amount:          commission,
				ReferenceID:     req.OrderID,
				ReferenceType:   model.ReferenceTypeOrder,
				BalanceAfter:    platformWallet.AvailableBalance,
				Status:          model.EntryStatusCompleted,
				Description:     fmt.Sprintf("commission for order %s", req.OrderID),
				ActorID:         req.ActorID,
			}
			if err := s.ledgerRepo.Create(ctx, tx, commissionEntry); err != nil {
				return fmt.Errorf("record commission entry: %w", err)
			}
		}

		return enqueueEvent(ctx, tx, s.outboxRepo, s.cfg.Kafka.Topic.LedgerEvents, txn.TransactionNo, map[string]interface{}{
			"event":          "escrow.held",
			"transaction_no": txn.TransactionNo,
			"order_id":       req.OrderID,
			"shop_id":        req.ShopID,
			"seller_amount":  sellerAmount,
			"commission":     commission,
			"hold_until":     holdUntil.Format(time.RFC3339),
		})
	})
	if err != nil {
		return nil, err
	}

	wallet, err := s.walletRepo.GetByShopID(ctx, req.ShopID)
	if err != nil {
		return nil, err
	}

	logger.Info("escrow held: txn=%s order=%s shop=%d seller=%d commission=%d",
		txn.TransactionNo, req.OrderID, req.ShopID, sellerAmount, commission)

	return &EscrowResult{Transaction: txn, Wallet: wallet, Entry: holdEntry}, nil
}

// ReleaseEscrow moves the held seller share from locked to available.
// Safe to call from an admin request or a scheduler: the escrow-status
// guard is a single conditional UPDATE, so a repeat call finds the row
// already released and fails with an invalid-state error without touching
// balances.
func (s *EscrowService) ReleaseEscrow(ctx context.Context, transactionNo, actorID string) (result *EscrowResult, err error) {
	defer func() { recordOperation("release_escrow", err) }()

	txn, err := s.txnRepo.GetByTransactionNo(ctx, transactionNo)
	if err != nil {
		return nil, err
	}
	if txn.EscrowStatus != model.EscrowStatusHeld && txn.EscrowStatus != model.EscrowStatusDisputed {
		return nil, fmt.Errorf("%w: escrow not releasable from %s", repository.ErrInvalidState, txn.EscrowStatus)
	}

	txnLock := lock.NewTransactionLock(s.redisClient, transactionNo, uuid.NewString())
	if err = txnLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("acquire transaction lock: %w", err)
	}
	defer txnLock.Unlock(ctx)

	txn, err = s.txnRepo.GetByTransactionNo(ctx, transactionNo)
	if err != nil {
		return nil, err
	}

	var releaseEntry *model.LedgerEntry
	err = s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		fromStatuses := []string{model.EscrowStatusHeld, model.EscrowStatusDisputed}
		if err := s.txnRepo.UpdateEscrowStatus(ctx, tx, transactionNo, fromStatuses, model.EscrowStatusReleased,
			map[string]interface{}{"released_at": &now}); err != nil {
			return err
		}
		if err := s.txnRepo.UpdateStatus(ctx, tx, transactionNo, txn.Status, model.TxnStatusCompleted, nil); err != nil {
			return err
		}

		if err := s.walletRepo.ReleaseLocked(ctx, tx, txn.ShopID, txn.SellerAmount); err != nil {
			return fmt.Errorf("release locked funds: %w", err)
		}

		wallet, err := s.walletRepo.GetInTx(ctx, tx, txn.ShopID)
		if err != nil {
			return err
		}

		shopID := txn.ShopID
		releaseEntry = &model.LedgerEntry{
			EntryNo:         idgen.GenerateEntryNo(),
			ShopID:          &shopID,
			TransactionType: model.EntryTypeEscrowRelease,
			Amount:          txn.SellerAmount,
			ReferenceID:     txn.OrderID,
			ReferenceType:   model.ReferenceTypeOrder,
			BalanceAfter:    wallet.AvailableBalance,
			Status:          model.EntryStatusCompleted,
			Description:     fmt.Sprintf("escrow release for order %s", txn.OrderID),
			ActorID:         actorID,
		}
		if err := s.ledgerRepo.Create(ctx, tx, releaseEntry); err != nil {
			return fmt.Errorf("record release entry: %w", err)
		}

		return enqueueEvent(ctx, tx, s.outboxRepo, s.cfg.Kafka.Topic.LedgerEvents, transactionNo, map[string]interface{}{
			"event":          "escrow.released",
			"transaction_no": transactionNo,
			"order_id":       txn.OrderID,
			"shop_id":        txn.ShopID,
			"seller_amount":  txn.SellerAmount,
			"actor_id":       actorID,
		})
	})
	if err != nil {
		return nil, err
	}

	wallet, err := s.walletRepo.GetByShopID(ctx, txn.ShopID)
	if err != nil {
		return nil, err
	}
	txn, err = s.txnRepo.GetByTransactionNo(ctx, transactionNo)
	if err != nil {
		return nil, err
	}

	logger.Info("escrow released: txn=%s shop=%d amount=%d actor=%s",
		transactionNo, txn.ShopID, txn.SellerAmount, actorID)

	return &EscrowResult{Transaction: txn, Wallet: wallet, Entry: releaseEntry}, nil
}

// RefundEscrow removes the held seller share from the locked balance
// without crediting available; the buyer-side gateway reversal is an
// external concern.
func (s *EscrowService) RefundEscrow(ctx context.Context, transactionNo, reason, actorID string) (result *EscrowResult, err error) {
	defer func() { recordOperation("refund_escrow", err) }()

	if reason == "" {
		return nil, validationError("refund reason is required")
	}

	txn, err := s.txnRepo.GetByTransactionNo(ctx, transactionNo)
	if err != nil {
		return nil, err
	}
	if txn.EscrowStatus != model.EscrowStatusHeld && txn.EscrowStatus != model.EscrowStatusDisputed {
		return nil, fmt.Errorf("%w: escrow not refundable from %s", repository.ErrInvalidState, txn.EscrowStatus)
	}

	txnLock := lock.NewTransactionLock(s.redisClient, transactionNo, uuid.NewString())
	if err = txnLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("acquire transaction lock: %w", err)
	}
	defer txnLock.Unlock(ctx)

	txn, err = s.txnRepo.GetByTransactionNo(ctx, transactionNo)
	if err != nil {
		return nil, err
	}

	var refundEntry *model.LedgerEntry
	err = s.db.Transaction(func(tx *gorm.DB) error {
		fromStatuses := []string{model.EscrowStatusHeld, model.EscrowStatusDisputed}
		if err := s.txnRepo.UpdateEscrowStatus(ctx, tx, transactionNo, fromStatuses, model.EscrowStatusRefunded, nil); err != nil {
			return err
		}
		if err := s.txnRepo.UpdateStatus(ctx, tx, transactionNo, txn.Status, model.TxnStatusRefunded,
			map[string]interface{}{"refund_reason": reason}); err != nil {
			return err
		}

		if err := s.walletRepo.DebitLocked(ctx, tx, txn.ShopID, txn.SellerAmount); err != nil {
			return fmt.Errorf("debit locked funds: %w", err)
		}

		wallet, err := s.walletRepo.GetInTx(ctx, tx, txn.ShopID)
		if err != nil {
			return err
		}

		shopID := txn.ShopID
		refundEntry = &model.LedgerEntry{
			EntryNo:         idgen.GenerateEntryNo(),
			ShopID:          &shopID,
			TransactionType: model.EntryTypeRefund,
			Amount:          -txn.SellerAmount,
			ReferenceID:     txn.OrderID,
			ReferenceType:   model.ReferenceTypeOrder,
			BalanceAfter:    wallet.AvailableBalance,
			Status:          model.EntryStatusCompleted,
			Description:     fmt.Sprintf("refund for order %s: %s", txn.OrderID, reason),
			ActorID:         actorID,
		}
		if err := s.ledgerRepo.Create(ctx, tx, refundEntry); err != nil {
			return fmt.Errorf("record refund entry: %w", err)
		}

		return enqueueEvent(ctx, tx, s.outboxRepo, s.cfg.Kafka.Topic.LedgerEvents, transactionNo, map[string]interface{}{
			"event":          "escrow.refunded",
			"transaction_no": transactionNo,
			"order_id":       txn.OrderID,
			"shop_id":        txn.ShopID,
			"seller_amount":  txn.SellerAmount,
			"reason":         reason,
			"actor_id":       actorID,
		})
	})
	if err != nil {
		return nil, err
	}

	wallet, err := s.walletRepo.GetByShopID(ctx, txn.ShopID)
	if err != nil {
		return nil, err
	}
	txn, err = s.txnRepo.GetByTransactionNo(ctx, transactionNo)
	if err != nil {
		return nil, err
	}

	logger.Info("escrow refunded: txn=%s shop=%d amount=%d reason=%q actor=%s",
		transactionNo, txn.ShopID, txn.SellerAmount, reason, actorID)

	return &EscrowResult{Transaction: txn, Wallet: wallet, Entry: refundEntry}, nil
}

// MarkDisputed flags a transaction. No funds move: disputed funds remain
// wherever they are (held or released) until a later release or refund
// resolves the dispute, so no ledger entry is produced.
func (s *EscrowService) MarkDisputed(ctx context.Context, transactionNo, reason, actorID string) (result *EscrowResult, err error) {
	defer func() { recordOperation("mark_disputed", err) }()

	if reason == "" {
		return nil, validationError("dispute reason is required")
	}

	txn, err := s.txnRepo.GetByTransactionNo(ctx, transactionNo)
	if err != nil {
		return nil, err
	}
	if txn.Status == model.TxnStatusRefunded || txn.Status == model.TxnStatusFailed {
		return nil, fmt.Errorf("%w: transaction is %s", repository.ErrInvalidState, txn.Status)
	}

	txnLock := lock.NewTransactionLock(s.redisClient, transactionNo, uuid.NewString())
	if err = txnLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("acquire transaction lock: %w", err)
	}
	defer txnLock.Unlock(ctx)

	txn, err = s.txnRepo.GetByTransactionNo(ctx, transactionNo)
	if err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.txnRepo.UpdateStatus(ctx, tx, transactionNo, txn.Status, model.TxnStatusDisputed,
			map[string]interface{}{"dispute_reason": reason}); err != nil {
			return err
		}
		if txn.EscrowStatus == model.EscrowStatusHeld {
			if err := s.txnRepo.UpdateEscrowStatus(ctx, tx, transactionNo,
				[]string{model.EscrowStatusHeld}, model.EscrowStatusDisputed, nil); err != nil {
				return err
			}
		}

		return enqueueEvent(ctx, tx, s.outboxRepo, s.cfg.Kafka.Topic.LedgerEvents, transactionNo, map[string]interface{}{
			"event":          "escrow.disputed",
			"transaction_no": transactionNo,
			"order_id":       txn.OrderID,
			"shop_id":        txn.ShopID,
			"reason":         reason,
			"actor_id":       actorID,
		})
	})
	if err != nil {
		return nil, err
	}

	wallet, err := s.walletRepo.GetOrCreate(ctx, txn.ShopID)
	if err != nil {
		return nil, err
	}
	txn, err = s.txnRepo.GetByTransactionNo(ctx, transactionNo)
	if err != nil {
		return nil, err
	}

	logger.Info("escrow disputed: txn=%s shop=%d reason=%q actor=%s", transactionNo, txn.ShopID, reason, actorID)

	return &EscrowResult{Transaction: txn, Wallet: wallet}, nil
}

func (s *EscrowService) GetTransaction(ctx context.Context, transactionNo string) (*model.EscrowTransaction, error) {
	return s.txnRepo.GetByTransactionNo(ctx, transactionNo)
}

func (s *EscrowService) ListTransactions(ctx context.Context, shopID int64, page, pageSize int) ([]*model.EscrowTransaction, int64, error) {
	return s.txnRepo.ListByShop(ctx, shopID, page, pageSize)
}

// ReleasableTransactions returns held transactions whose hold window has
// elapsed, for the auto-release job.
func (s *EscrowService) ReleasableTransactions(ctx context.Context, now time.Time, limit int) ([]*model.EscrowTransaction, error) {
	return s.txnRepo.GetReleasable(ctx, now, limit)
}
