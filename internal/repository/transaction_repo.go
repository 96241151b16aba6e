package repository

import (
	"context"
	"errors"
	"time"

	"escrowledger/internal/model"

	"gorm.io/gorm"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrInvalidState is returned when a status or escrow transition is not
	// legal from the row's current state, including the case where a
	// concurrent request already performed the transition.
	ErrInvalidState = errors.New("invalid state transition")
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, txn *model.EscrowTransaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(txn).Error
}

func (r *TransactionRepository) GetByTransactionNo(ctx context.Context, transactionNo string) (*model.EscrowTransaction, error) {
	var txn model.EscrowTransaction
	err := r.db.WithContext(ctx).Where("transaction_no = ?", transactionNo).First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &txn, nil
}

// GetByOrderID returns (nil, nil) when no transaction exists for the
// order, which is how the hold path tests idempotency.
func (r *TransactionRepository) GetByOrderID(ctx context.Context, orderID string) (*model.EscrowTransaction, error) {
	var txn model.EscrowTransaction
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

// UpdateStatus performs a guarded status transition. Legality is checked
// against the transition map and then enforced with a conditional UPDATE,
// so a concurrent transition of the same row makes exactly one caller win.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, transactionNo string, fromStatus, toStatus string, extra map[string]interface{}) error {
	if !model.CanTransitionTo(fromStatus, toStatus) {
		return ErrInvalidState
	}
	if tx == nil {
		tx = r.db
	}

	updates := map[string]interface{}{"status": toStatus}
	for k, v := range extra {
		updates[k] = v
	}

	result := tx.WithContext(ctx).
		Model(&model.EscrowTransaction{}).
		Where("transaction_no = ? AND status = ?", transactionNo, fromStatus).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInvalidState
	}
	return nil
}

// UpdateEscrowStatus performs a guarded escrow-status transition from any
// of fromStatuses. The IN-clause guard is the double-release protection:
// once a concurrent request has moved the row to a terminal escrow state,
// RowsAffected is zero and the caller gets ErrInvalidState.
func (r *TransactionRepository) UpdateEscrowStatus(ctx context.Context, tx *gorm.DB, transactionNo string, fromStatuses []string, toStatus string, extra map[string]interface{}) error {
	for _, from := range fromStatuses {
		if !model.CanTransitionEscrowTo(from, toStatus) {
			return ErrInvalidState
		}
	}
	if tx == nil {
		tx = r.db
	}

	updates := map[string]interface{}{"escrow_status": toStatus}
	for k, v := range extra {
		updates[k] = v
	}

	result := tx.WithContext(ctx).
		Model(&model.EscrowTransaction{}).
		Where("transaction_no = ? AND escrow_status IN ?", transactionNo, fromStatuses).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInvalidState
	}
	return nil
}

// GetReleasable returns held transactions whose hold window has elapsed,
// for the auto-release job.
func (r *TransactionRepository) GetReleasable(ctx context.Context, now time.Time, limit int) ([]*model.EscrowTransaction, error) {
	var txns []*model.EscrowTransaction
	err := r.db.WithContext(ctx).
		Where("escrow_status = ? AND escrow_hold_until <= ?", model.EscrowStatusHeld, now).
		Order("escrow_hold_until ASC").
		Limit(limit).
		Find(&txns).Error
	return txns, err
}

func (r *TransactionRepository) ListByShop(ctx context.Context, shopID int64, page, pageSize int) ([]*model.EscrowTransaction, int64, error) {
	var txns []*model.EscrowTransaction
	var total int64

	query := r.db.WithContext(ctx).Model(&model.EscrowTransaction{}).Where("shop_id = ?", shopID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&txns).Error

	return txns, total, err
}
