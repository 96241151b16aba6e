package model

import (
	"time"
)

const (
	TxnStatusPending    = "pending"
	TxnStatusProcessing = "processing"
	TxnStatusCompleted  = "completed"
	TxnStatusFailed     = "failed"
	TxnStatusRefunded   = "refunded"
	TxnStatusDisputed   = "disputed"
)

const (
	EscrowStatusHeld     = "held"
	EscrowStatusReleased = "released"
	EscrowStatusRefunded = "refunded"
	EscrowStatusDisputed = "disputed"
)

// ValidStatusTransitions is the order-level status machine. refunded and
// failed are terminal. completed -> disputed is deliberately legal: a
// dispute can be raised after funds were released; the dispute is then
// resolved back to completed or on to refunded.
var ValidStatusTransitions = map[string][]string{
	TxnStatusPending:    {TxnStatusProcessing, TxnStatusFailed, TxnStatusDisputed},
	TxnStatusProcessing: {TxnStatusCompleted, TxnStatusRefunded, TxnStatusFailed, TxnStatusDisputed},
	TxnStatusCompleted:  {TxnStatusDisputed},
	TxnStatusDisputed:   {TxnStatusCompleted, TxnStatusRefunded},
}

// ValidEscrowTransitions is the escrow sub-state machine. released and
// refunded are terminal: funds that have left the locked bucket can never
// be double-released or double-refunded.
var ValidEscrowTransitions = map[string][]string{
	EscrowStatusHeld:     {EscrowStatusReleased, EscrowStatusRefunded, EscrowStatusDisputed},
	EscrowStatusDisputed: {EscrowStatusReleased, EscrowStatusRefunded},
}

func CanTransitionTo(currentStatus, targetStatus string) bool {
	return contains(ValidStatusTransitions[currentStatus], targetStatus)
}

func CanTransitionEscrowTo(currentStatus, targetStatus string) bool {
	return contains(ValidEscrowTransitions[currentStatus], targetStatus)
}

func contains(statuses []string, s string) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}

// EscrowTransaction is the order-level financial record: gross amount,
// commission split, and the escrow lifecycle of the seller's share.
//
// escrow_status = held implies SellerAmount is reflected in the seller
// wallet's locked balance, not its available balance.
type EscrowTransaction struct {
	ID               int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo    string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	OrderID          string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_id"`
	ShopID           int64      `gorm:"index;not null" json:"shop_id"`
	Amount           int64      `gorm:"not null" json:"amount"`            // gross order amount
	CommissionAmount int64      `gorm:"not null" json:"commission_amount"` // platform's cut, retained at hold time
	SellerAmount     int64      `gorm:"not null" json:"seller_amount"`     // seller share after commission and configured fees
	Status           string     `gorm:"type:varchar(20);index;not null" json:"status"`
	EscrowStatus     string     `gorm:"type:varchar(20);index;not null" json:"escrow_status"`
	EscrowHoldUntil  time.Time  `gorm:"not null;index" json:"escrow_hold_until"`
	RefundReason     string     `gorm:"type:varchar(256)" json:"refund_reason,omitempty"`
	DisputeReason    string     `gorm:"type:varchar(256)" json:"dispute_reason,omitempty"`
	ReleasedAt       *time.Time `json:"released_at,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (EscrowTransaction) TableName() string {
	return "escrow_transaction"
}
