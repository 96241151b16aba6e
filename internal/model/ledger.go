package model

import (
	"time"
)

const (
	EntryTypeCommission    = "commission"
	EntryTypeEscrowHold    = "escrow_hold"
	EntryTypeEscrowRelease = "escrow_release"
	EntryTypePayout        = "payout"
	EntryTypeRefund        = "refund"
	EntryTypeAdjustment    = "adjustment"
)

const (
	EntryStatusCompleted = "completed"
)

const (
	ReferenceTypeOrder      = "order"
	ReferenceTypeWithdrawal = "withdrawal"
	ReferenceTypeManual     = "manual"
)

// LedgerEntry is one immutable record of a balance-affecting event.
//
// Entries are append-only: corrections are made with new offsetting
// entries, never by editing history.
//
// Sign and effect conventions, by entry type:
//
//	escrow_hold     +seller_amount  locked balance only
//	escrow_release  +seller_amount  locked -> available
//	refund          -seller_amount  leaves locked, available untouched
//	payout          -amount         available
//	adjustment      signed          available
//	commission      +commission     platform wallet available (ShopID nil)
//
// BalanceAfter snapshots the owning wallet's available balance immediately
// after the entry was applied, inside the same transaction.
type LedgerEntry struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	EntryNo         string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"entry_no"`
	ShopID          *int64    `gorm:"index" json:"shop_id"` // nil for platform-level entries
	TransactionType string    `gorm:"type:varchar(20);index;not null" json:"transaction_type"`
	Amount          int64     `gorm:"not null" json:"amount"`
	ReferenceID     string    `gorm:"type:varchar(64);index" json:"reference_id"`
	ReferenceType   string    `gorm:"type:varchar(20)" json:"reference_type"`
	BalanceAfter    int64     `gorm:"not null" json:"balance_after"`
	Status          string    `gorm:"type:varchar(20);not null;default:completed" json:"status"`
	Description     string    `gorm:"type:varchar(256)" json:"description"`
	ActorID         string    `gorm:"type:varchar(64)" json:"actor_id"`
	CreatedAt       time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entry"
}

// AffectsAvailable reports whether entries of the given type contribute to
// the available balance under the sign conventions above.
func AffectsAvailable(entryType string) bool {
	switch entryType {
	case EntryTypeEscrowRelease, EntryTypePayout, EntryTypeAdjustment, EntryTypeCommission:
		return true
	}
	return false
}

// LockedDelta returns the signed contribution of an entry of the given type
// and amount to the locked balance.
func LockedDelta(entryType string, amount int64) int64 {
	switch entryType {
	case EntryTypeEscrowHold:
		return amount // +seller_amount
	case EntryTypeEscrowRelease:
		return -amount // release moves the held amount out of locked
	case EntryTypeRefund:
		return amount // refund amounts are stored negative
	}
	return 0
}
