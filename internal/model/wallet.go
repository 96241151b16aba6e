package model

import (
	"time"
)

// PlatformShopID is the distinguished owner of platform-level funds
// (commissions, platform adjustments). It is a real wallet row so that
// platform entries keep the same one-entry-one-balance-update discipline
// as shop entries.
const PlatformShopID int64 = 0

// ShopWallet holds a shop's funds in two buckets: available (withdrawable)
// and locked (held in escrow). All amounts are integer cents.
//
// Invariants:
//  1. Both balances are non-negative at all times.
//  2. Every mutation of either balance happens in the same database
//     transaction as the ledger entry that records it.
type ShopWallet struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ShopID           int64     `gorm:"uniqueIndex;not null" json:"shop_id"`
	AvailableBalance int64     `gorm:"not null;default:0" json:"available_balance"`
	LockedBalance    int64     `gorm:"not null;default:0" json:"locked_balance"`
	Version          int       `gorm:"not null;default:0" json:"version"` // optimistic lock counter
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ShopWallet) TableName() string {
	return "shop_wallet"
}
