package repository

import (
	"context"
	"errors"

	"escrowledger/internal/model"

	"gorm.io/gorm"
)

var ErrWithdrawalNotFound = errors.New("withdrawal request not found")

type WithdrawalRepository struct {
	db *gorm.DB
}

func NewWithdrawalRepository(db *gorm.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

func (r *WithdrawalRepository) Create(ctx context.Context, tx *gorm.DB, req *model.WithdrawalRequest) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(req).Error
}

func (r *WithdrawalRepository) GetByWithdrawalNo(ctx context.Context, withdrawalNo string) (*model.WithdrawalRequest, error) {
	var req model.WithdrawalRequest
	err := r.db.WithContext(ctx).Where("withdrawal_no = ?", withdrawalNo).First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}
	return &req, nil
}

// UpdateStatus performs a guarded request transition; only one of two
// concurrent approve/reject calls can win the pending row.
func (r *WithdrawalRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, withdrawalNo string, fromStatus, toStatus string, extra map[string]interface{}) error {
	if !model.CanTransitionWithdrawalTo(fromStatus, toStatus) {
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
		Model(&model.WithdrawalRequest{}).
		Where("withdrawal_no = ? AND status = ?", withdrawalNo, fromStatus).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInvalidState
	}
	return nil
}

func (r *WithdrawalRepository) ListByStatus(ctx context.Context, status string, page, pageSize int) ([]*model.WithdrawalRequest, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.WithdrawalRequest{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	return r.list(query, page, pageSize)
}

func (r *WithdrawalRepository) ListByShop(ctx context.Context, shopID int64, page, pageSize int) ([]*model.WithdrawalRequest, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.WithdrawalRequest{}).Where("shop_id = ?", shopID)
	return r.list(query, page, pageSize)
}

func (r *WithdrawalRepository) list(query *gorm.DB, page, pageSize int) ([]*model.WithdrawalRequest, int64, error) {
	var reqs []*model.WithdrawalRequest
	var total int64

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&reqs).Error

	return reqs, total, err
}
