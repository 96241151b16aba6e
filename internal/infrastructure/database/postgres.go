package database

import (
	"fmt"
	"time"

	"escrowledger/internal/config"
	applog "escrowledger/internal/logger"
	"escrowledger/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func InitPostgres(cfg *config.PostgresConfig) *gorm.DB {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Database,
		cfg.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		applog.Fatal("failed to connect to postgres: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		applog.Fatal("failed to get underlying sql.DB: %v", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := AutoMigrate(db); err != nil {
		applog.Fatal("failed to auto-migrate schema: %v", err)
	}

	DB = db
	applog.Info("postgres connected: %s/%s", cfg.Host, cfg.Database)
	return db
}

// AutoMigrate creates or updates the ledger schema. Shared with the test
// harness, which runs it against an in-memory database.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.ShopWallet{},
		&model.LedgerEntry{},
		&model.EscrowTransaction{},
		&model.WithdrawalRequest{},
		&model.CategoryCommission{},
		&model.EscrowSettings{},
		&model.GlobalSetting{},
		&model.FeatureFlag{},
		&model.OutboxMessage{},
	)
}
