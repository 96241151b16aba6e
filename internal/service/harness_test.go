package service

import (
	"testing"

	"escrowledger/internal/config"
	"escrowledger/internal/infrastructure/database"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestEnv builds the full service environment on an in-memory
// database and redis. The single connection matters: every gorm session
// must see the same in-memory sqlite instance.
func newTestEnv(t *testing.T) (*gorm.DB, *redis.Client, *config.Config) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.AutoMigrate(db))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := &config.Config{
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{LedgerEvents: "ledger-events"},
		},
		Auth: config.AuthConfig{JWTSecret: "test-secret", TokenTTLHours: 1},
		Business: config.BusinessConfig{
			DefaultHoldDays:      7,
			MaxRetryCount:        3,
			AutoReleaseBatchSize: 100,
			AutoReleaseWorkers:   2,
		},
	}

	return db, rdb, cfg
}
