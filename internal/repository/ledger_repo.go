package repository

import (
	"context"
	"errors"

	"escrowledger/internal/model"

	"gorm.io/gorm"
)

var ErrEntryNotFound = errors.New("ledger entry not found")

type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Create appends one entry. Entries are immutable; there is deliberately
// no update or delete method on this repository.
func (r *LedgerRepository) Create(ctx context.Context, tx *gorm.DB, entry *model.LedgerEntry) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(entry).Error
}

func (r *LedgerRepository) GetByEntryNo(ctx context.Context, entryNo string) (*model.LedgerEntry, error) {
	var entry model.LedgerEntry
	err := r.db.WithContext(ctx).Where("entry_no = ?", entryNo).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return &entry, nil
}

func (r *LedgerRepository) ListByShop(ctx context.Context, shopID int64, page, pageSize int) ([]*model.LedgerEntry, int64, error) {
	var entries []*model.LedgerEntry
	var total int64

	query := r.db.WithContext(ctx).Model(&model.LedgerEntry{}).Where("shop_id = ?", shopID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&entries).Error

	return entries, total, err
}

type typeSum struct {
	TransactionType string
	Total           int64
}

// SumByType returns the summed signed amounts grouped by entry type over
// the whole ledger. Platform aggregates are derived from this instead of
// separately-maintained counters, so they cannot drift from the log.
func (r *LedgerRepository) SumByType(ctx context.Context) (map[string]int64, error) {
	return r.sumByType(r.db.WithContext(ctx).Model(&model.LedgerEntry{}))
}

// SumByTypeForShop restricts the sums to one shop's entries.
func (r *LedgerRepository) SumByTypeForShop(ctx context.Context, shopID int64) (map[string]int64, error) {
	return r.sumByType(r.db.WithContext(ctx).Model(&model.LedgerEntry{}).Where("shop_id = ?", shopID))
}

// SumByTypePlatform restricts the sums to platform-level entries
// (shop_id IS NULL).
func (r *LedgerRepository) SumByTypePlatform(ctx context.Context) (map[string]int64, error) {
	return r.sumByType(r.db.WithContext(ctx).Model(&model.LedgerEntry{}).Where("shop_id IS NULL"))
}

func (r *LedgerRepository) sumByType(query *gorm.DB) (map[string]int64, error) {
	var rows []typeSum
	err := query.
		Select("transaction_type, COALESCE(SUM(amount), 0) as total").
		Group("transaction_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	sums := make(map[string]int64, len(rows))
	for _, row := range rows {
		sums[row.TransactionType] = row.Total
	}
	return sums, nil
}
