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

// WalletService covers the read side of wallets and the ledger, manual
// adjustments, and the derived platform aggregates. Totals are always
// computed from ledger sums rather than stored counters.
type WalletService struct {
	db          *gorm.DB
	redisClient *redis.Client
	cfg         *config.Config
	walletRepo  *repository.WalletRepository
	ledgerRepo  *repository.LedgerRepository
	outboxRepo  *repository.OutboxRepository
}

func NewWalletService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *WalletService {
	return &WalletService{
		db:          db,
		redisClient: redisClient,
		cfg:         cfg,
		walletRepo:  repository.NewWalletRepository(db),
		ledgerRepo:  repository.NewLedgerRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
	}
}

// GetWallet returns the shop's wallet, creating a zero-balance row on
// first access.
func (s *WalletService) GetWallet(ctx context.Context, shopID int64) (*model.ShopWallet, error) {
	if shopID < 0 {
		return nil, validationError("shop_id must not be negative")
	}
	return s.walletRepo.GetOrCreate(ctx, shopID)
}

func (s *WalletService) GetEntry(ctx context.Context, entryNo string) (*model.LedgerEntry, error) {
	return s.ledgerRepo.GetByEntryNo(ctx, entryNo)
}

func (s *WalletService) ListEntries(ctx context.Context, shopID int64, page, pageSize int) ([]*model.LedgerEntry, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.ledgerRepo.ListByShop(ctx, shopID, page, pageSize)
}

// ApplyAdjustment credits or debits a wallet's available balance with a
// signed manual correction. A nil shopID targets the platform wallet and
// produces a platform-level entry. Negative adjustments are bounded by
// the available balance.
func (s *WalletService) ApplyAdjustment(ctx context.Context, shopID *int64, amount int64, description, actorID string) (entry *model.LedgerEntry, err error) {
	defer func() { recordOperation("apply_adjustment", err) }()

	if amount == 0 {
		return nil, validationError("adjustment amount must not be zero")
	}
	if description == "" {
		return nil, validationError("adjustment description is required")
	}

	targetShop := model.PlatformShopID
	var entryShopID *int64
	if shopID != nil && *shopID != model.PlatformShopID {
		targetShop = *shopID
		entryShopID = shopID
	}

	if _, err = s.walletRepo.GetOrCreate(ctx, targetShop); err != nil {
		return nil, err
	}

	walletLock := lock.NewWalletLock(s.redisClient, targetShop, uuid.NewString())
	if err = walletLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("acquire wallet lock: %w", err)
	}
	defer walletLock.Unlock(ctx)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if amount > 0 {
			if txErr := s.walletRepo.CreditAvailable(ctx, tx, targetShop, amount); txErr != nil {
				return txErr
			}
		} else {
			wallet, txErr := s.walletRepo.GetInTx(ctx, tx, targetShop)
			if txErr != nil {
				return txErr
			}
			if txErr := s.walletRepo.DebitAvailable(ctx, tx, targetShop, -amount, wallet.Version); txErr != nil {
				return txErr
			}
		}

		wallet, txErr := s.walletRepo.GetInTx(ctx, tx, targetShop)
		if txErr != nil {
			return txErr
		}

		entry = &model.LedgerEntry{
			EntryNo:         idgen.GenerateEntryNo(),
			ShopID:          entryShopID,
			TransactionType: model.EntryTypeAdjustment,
			Amount:          amount,
			ReferenceType:   model.ReferenceTypeManual,
			BalanceAfter:    wallet.AvailableBalance,
			Status:          model.EntryStatusCompleted,
			Description:     description,
			ActorID:         actorID,
		}
		if txErr := s.ledgerRepo.Create(ctx, tx, entry); txErr != nil {
			return fmt.Errorf("record adjustment entry: %w", txErr)
		}

		return enqueueEvent(ctx, tx, s.outboxRepo, s.cfg.Kafka.Topic.LedgerEvents, entry.EntryNo, map[string]interface{}{
			"event":    "adjustment.applied",
			"entry_no": entry.EntryNo,
			"shop_id":  targetShop,
			"amount":   amount,
			"actor_id": actorID,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info("adjustment applied: shop=%d amount=%d actor=%s", targetShop, amount, actorID)
	return entry, nil
}

// PlatformSummary aggregates platform-level figures straight from the
// ledger. Commission and payout totals come out of the entry sums, and
// the platform's own available balance is derived the same way.
type PlatformSummary struct {
	PlatformAvailable int64 `json:"platform_available"`
	TotalLocked       int64 `json:"total_locked"`
	TotalCommissions  int64 `json:"total_commissions"`
	TotalPayouts      int64 `json:"total_payouts"`
	TotalRefunds      int64 `json:"total_refunds"`
	TotalAdjustments  int64 `json:"total_adjustments"`
}

func (s *WalletService) ComputePlatformSummary(ctx context.Context) (*PlatformSummary, error) {
	all, err := s.ledgerRepo.SumByType(ctx)
	if err != nil {
		return nil, err
	}
	platform, err := s.ledgerRepo.SumByTypePlatform(ctx)
	if err != nil {
		return nil, err
	}

	var platformAvailable int64
	for entryType, total := range platform {
		if model.AffectsAvailable(entryType) {
			platformAvailable += total
		}
	}

	// Locked funds across all shops: holds in, releases out, refunds out
	// (refund amounts are stored negative).
	totalLocked := all[model.EntryTypeEscrowHold] - all[model.EntryTypeEscrowRelease] + all[model.EntryTypeRefund]

	return &PlatformSummary{
		PlatformAvailable: platformAvailable,
		TotalLocked:       totalLocked,
		TotalCommissions:  all[model.EntryTypeCommission],
		TotalPayouts:      -all[model.EntryTypePayout],
		TotalRefunds:      -all[model.EntryTypeRefund],
		TotalAdjustments:  all[model.EntryTypeAdjustment],
	}, nil
}

// ReconcileReport compares a wallet row against balances recomputed from
// that shop's ledger entries.
type ReconcileReport struct {
	ShopID            int64 `json:"shop_id"`
	WalletAvailable   int64 `json:"wallet_available"`
	WalletLocked      int64 `json:"wallet_locked"`
	ComputedAvailable int64 `json:"computed_available"`
	ComputedLocked    int64 `json:"computed_locked"`
	Consistent        bool  `json:"consistent"`
}

// ReconcileShop recomputes a shop's balances from its ledger entries and
// reports whether the wallet row agrees. The platform wallet is covered
// too: its entries carry a nil shop id, so they are summed separately.
func (s *WalletService) ReconcileShop(ctx context.Context, shopID int64) (*ReconcileReport, error) {
	wallet, err := s.walletRepo.GetByShopID(ctx, shopID)
	if err != nil {
		return nil, err
	}

	var sums map[string]int64
	if shopID == model.PlatformShopID {
		sums, err = s.ledgerRepo.SumByTypePlatform(ctx)
	} else {
		sums, err = s.ledgerRepo.SumByTypeForShop(ctx, shopID)
	}
	if err != nil {
		return nil, err
	}

	var available, locked int64
	for entryType, total := range sums {
		if model.AffectsAvailable(entryType) {
			available += total
		}
		locked += model.LockedDelta(entryType, total)
	}

	report := &ReconcileReport{
		ShopID:            shopID,
		WalletAvailable:   wallet.AvailableBalance,
		WalletLocked:      wallet.LockedBalance,
		ComputedAvailable: available,
		ComputedLocked:    locked,
		Consistent:        wallet.AvailableBalance == available && wallet.LockedBalance == locked,
	}
	if !report.Consistent {
		logger.Warn("wallet drift: shop=%d wallet=(%d,%d) ledger=(%d,%d)",
			shopID, wallet.AvailableBalance, wallet.LockedBalance, available, locked)
	}
	return report, nil
}

func (s *WalletService) ListWallets(ctx context.Context, limit, offset int) ([]*model.ShopWallet, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	return s.walletRepo.ListAll(ctx, limit, offset)
}
