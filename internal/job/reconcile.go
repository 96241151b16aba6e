package job

import (
	"context"
	"time"

	"escrowledger/internal/config"
	"escrowledger/internal/logger"
	"escrowledger/internal/metrics"
	"escrowledger/internal/service"

	"github.com/go-co-op/gocron/v2"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// ReconcileJob sweeps all wallets and recomputes their balances from the
// ledger. Drift is reported, never auto-corrected: a disagreement means a
// code bug, and silently patching the wallet row would hide it.
type ReconcileJob struct {
	cfg           *config.Config
	walletService *service.WalletService
}

func NewReconcileJob(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *ReconcileJob {
	return &ReconcileJob{
		cfg:           cfg,
		walletService: service.NewWalletService(db, rdb, cfg),
	}
}

func (j *ReconcileJob) GetName() string {
	return "wallet_reconcile"
}

func (j *ReconcileJob) GetSchedule() gocron.JobDefinition {
	minutes := j.cfg.Business.ReconcileIntervalMinutes
	if minutes <= 0 {
		minutes = 60
	}
	return gocron.DurationJob(time.Duration(minutes) * time.Minute)
}

func (j *ReconcileJob) Execute() {
	ctx := context.Background()

	const pageSize = 200
	offset := 0
	checked, drifted := 0, 0

	for {
		wallets, err := j.walletService.ListWallets(ctx, pageSize, offset)
		if err != nil {
			logger.Error("[Reconcile] list wallets: %v", err)
			return
		}
		if len(wallets) == 0 {
			break
		}

		for _, wallet := range wallets {
			report, err := j.walletService.ReconcileShop(ctx, wallet.ShopID)
			if err != nil {
				logger.Error("[Reconcile] shop %d: %v", wallet.ShopID, err)
				continue
			}
			checked++
			if !report.Consistent {
				drifted++
				metrics.BalanceDriftTotal.Inc()
			}
		}

		offset += pageSize
	}

	logger.Info("[Reconcile] sweep done: checked=%d drifted=%d", checked, drifted)
}
