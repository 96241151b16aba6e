package model

import (
	"time"
)

const (
	WithdrawalStatusPending   = "pending"
	WithdrawalStatusCompleted = "completed"
	WithdrawalStatusFailed    = "failed"
	WithdrawalStatusCancelled = "cancelled"
)

var ValidWithdrawalTransitions = map[string][]string{
	WithdrawalStatusPending: {WithdrawalStatusCompleted, WithdrawalStatusFailed, WithdrawalStatusCancelled},
}

func CanTransitionWithdrawalTo(currentStatus, targetStatus string) bool {
	return contains(ValidWithdrawalTransitions[currentStatus], targetStatus)
}

// WithdrawalRequest is a shop's request to convert available balance into
// an external payout. Approval debits the wallet and records a payout
// entry in the same transaction that completes the request; the request
// never partially completes. Rejection leaves the balance untouched.
type WithdrawalRequest struct {
	ID              int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	WithdrawalNo    string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"withdrawal_no"`
	ShopID          int64      `gorm:"index;not null" json:"shop_id"`
	Amount          int64      `gorm:"not null" json:"amount"`
	Status          string     `gorm:"type:varchar(20);index;not null;default:pending" json:"status"`
	Method          string     `gorm:"type:varchar(32)" json:"method"`
	BankDetails     string     `gorm:"type:text" json:"bank_details,omitempty"`
	RejectionReason string     `gorm:"type:varchar(256)" json:"rejection_reason,omitempty"`
	PayoutEntryNo   string     `gorm:"type:varchar(64)" json:"payout_entry_no,omitempty"`
	ProcessedBy     string     `gorm:"type:varchar(64)" json:"processed_by,omitempty"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (WithdrawalRequest) TableName() string {
	return "withdrawal_request"
}
