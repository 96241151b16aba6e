package repository

import (
	"context"
	"errors"

	"escrowledger/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrInsufficientBalance = errors.New("insufficient available balance")
	ErrInsufficientLocked  = errors.New("insufficient locked balance")
	ErrOptimisticLock      = errors.New("wallet version conflict, retry")
)

type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) GetByShopID(ctx context.Context, shopID int64) (*model.ShopWallet, error) {
	var wallet model.ShopWallet
	err := r.db.WithContext(ctx).Where("shop_id = ?", shopID).First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

// GetInTx reads the wallet through the given transaction so balance
// snapshots taken for ledger entries see the transaction's own writes.
func (r *WalletRepository) GetInTx(ctx context.Context, tx *gorm.DB, shopID int64) (*model.ShopWallet, error) {
	if tx == nil {
		tx = r.db
	}
	var wallet model.ShopWallet
	err := tx.WithContext(ctx).Where("shop_id = ?", shopID).First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

func (r *WalletRepository) GetOrCreate(ctx context.Context, shopID int64) (*model.ShopWallet, error) {
	wallet, err := r.GetByShopID(ctx, shopID)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, ErrWalletNotFound) {
		return nil, err
	}

	newWallet := &model.ShopWallet{ShopID: shopID}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "shop_id"}},
			DoNothing: true,
		}).
		Create(newWallet).Error
	if err != nil {
		return nil, err
	}

	return r.GetByShopID(ctx, shopID)
}

// CreditAvailable adds amount to the available balance.
func (r *WalletRepository) CreditAvailable(ctx context.Context, tx *gorm.DB, shopID int64, amount int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.ShopWallet{}).
		Where("shop_id = ?", shopID).
		Updates(map[string]interface{}{
			"available_balance": gorm.Expr("available_balance + ?", amount),
			"version":           gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrWalletNotFound
	}
	return nil
}

// DebitAvailable subtracts amount from the available balance. The balance
// check and the decrement are one conditional UPDATE, so the balance can
// never go negative under concurrent debits. The version guard rejects
// writes based on a stale read.
func (r *WalletRepository) DebitAvailable(ctx context.Context, tx *gorm.DB, shopID int64, amount int64, version int) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.ShopWallet{}).
		Where("shop_id = ? AND available_balance >= ? AND version = ?", shopID, amount, version).
		Updates(map[string]interface{}{
			"available_balance": gorm.Expr("available_balance - ?", amount),
			"version":           gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		wallet, err := r.GetInTx(ctx, tx, shopID)
		if err != nil {
			return err
		}
		if wallet.AvailableBalance < amount {
			return ErrInsufficientBalance
		}
		return ErrOptimisticLock
	}
	return nil
}

// LockFunds adds amount to the locked balance (escrow hold).
func (r *WalletRepository) LockFunds(ctx context.Context, tx *gorm.DB, shopID int64, amount int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.ShopWallet{}).
		Where("shop_id = ?", shopID).
		Updates(map[string]interface{}{
			"locked_balance": gorm.Expr("locked_balance + ?", amount),
			"version":        gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrWalletNotFound
	}
	return nil
}

// ReleaseLocked moves amount from locked to available in one UPDATE.
func (r *WalletRepository) ReleaseLocked(ctx context.Context, tx *gorm.DB, shopID int64, amount int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.ShopWallet{}).
		Where("shop_id = ? AND locked_balance >= ?", shopID, amount).
		Updates(map[string]interface{}{
			"locked_balance":    gorm.Expr("locked_balance - ?", amount),
			"available_balance": gorm.Expr("available_balance + ?", amount),
			"version":           gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInsufficientLocked
	}
	return nil
}

// DebitLocked removes amount from the locked balance without crediting
// available (refund path: funds leave the seller wallet entirely).
func (r *WalletRepository) DebitLocked(ctx context.Context, tx *gorm.DB, shopID int64, amount int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.ShopWallet{}).
		Where("shop_id = ? AND locked_balance >= ?", shopID, amount).
		Updates(map[string]interface{}{
			"locked_balance": gorm.Expr("locked_balance - ?", amount),
			"version":        gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInsufficientLocked
	}
	return nil
}

func (r *WalletRepository) ListAll(ctx context.Context, limit, offset int) ([]*model.ShopWallet, error) {
	var wallets []*model.ShopWallet
	err := r.db.WithContext(ctx).
		Order("shop_id ASC").
		Limit(limit).
		Offset(offset).
		Find(&wallets).Error
	return wallets, err
}
