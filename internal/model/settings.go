package model

import (
	"time"
)

// Global setting keys consumed when computing seller amounts. Rates are
// stored in basis points so the arithmetic stays in integers.
const (
	SettingKeyVATRateBps     = "vat_rate_bps"
	SettingKeyGatewayFeeBps  = "gateway_fee_bps"
	SettingKeyDefaultHoldDay = "default_escrow_hold_days"
)

// CategoryCommission is the platform's cut for one listing category,
// in basis points of the gross order amount.
type CategoryCommission struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Category  string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"category"`
	RateBps   int64     `gorm:"not null" json:"rate_bps"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CategoryCommission) TableName() string {
	return "category_commission"
}

// EscrowSettings controls whether orders in a category are escrowed and
// for how long the seller share stays locked.
type EscrowSettings struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Category  string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"category"`
	Required  bool      `gorm:"not null;default:true" json:"required"`
	HoldDays  int       `gorm:"not null;default:0" json:"hold_days"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (EscrowSettings) TableName() string {
	return "escrow_settings"
}

type GlobalSetting struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SettingKey   string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"setting_key"`
	SettingValue string    `gorm:"type:varchar(256);not null" json:"setting_value"`
	Description  string    `gorm:"type:varchar(256)" json:"description,omitempty"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (GlobalSetting) TableName() string {
	return "global_setting"
}

type FeatureFlag struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	FlagName    string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"flag_name"`
	Enabled     bool      `gorm:"not null;default:false" json:"enabled"`
	Description string    `gorm:"type:varchar(256)" json:"description,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (FeatureFlag) TableName() string {
	return "feature_flag"
}
