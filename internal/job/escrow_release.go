package job

import (
	"context"
	"errors"
	"sync"
	"time"

	"escrowledger/internal/config"
	"escrowledger/internal/logger"
	"escrowledger/internal/repository"
	"escrowledger/internal/service"

	"github.com/go-co-op/gocron/v2"
	"github.com/go-redis/redis/v8"
	"github.com/panjf2000/ants/v2"
	"gorm.io/gorm"
)

// EscrowReleaseJob releases transactions whose hold window has elapsed.
// Release itself is guarded by a conditional status UPDATE, so a batch
// overlapping with a manual release or a concurrent run is harmless.
type EscrowReleaseJob struct {
	cfg           *config.Config
	escrowService *service.EscrowService
}

// actor recorded on entries written by the scheduler
const autoReleaseActor = "system:auto-release"

func NewEscrowReleaseJob(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *EscrowReleaseJob {
	return &EscrowReleaseJob{
		cfg:           cfg,
		escrowService: service.NewEscrowService(db, rdb, cfg),
	}
}

func (j *EscrowReleaseJob) GetName() string {
	return "escrow_auto_release"
}

func (j *EscrowReleaseJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(time.Duration(j.cfg.Business.ReleaseIntervalSeconds) * time.Second)
}

func (j *EscrowReleaseJob) Execute() {
	ctx := context.Background()

	batchSize := j.cfg.Business.AutoReleaseBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	txns, err := j.escrowService.ReleasableTransactions(ctx, time.Now(), batchSize)
	if err != nil {
		logger.Error("[EscrowRelease] fetch releasable transactions: %v", err)
		return
	}
	if len(txns) == 0 {
		return
	}

	workers := j.cfg.Business.AutoReleaseWorkers
	if workers <= 0 {
		workers = 4
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		logger.Error("[EscrowRelease] create worker pool: %v", err)
		return
	}
	defer pool.Release()

	var wg sync.WaitGroup
	var released, skipped, failed int64
	var mu sync.Mutex

	for _, txn := range txns {
		txn := txn
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			_, err := j.escrowService.ReleaseEscrow(ctx, txn.TransactionNo, autoReleaseActor)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				released++
			case errors.Is(err, repository.ErrInvalidState):
				// already released or refunded since the batch was fetched
				skipped++
			default:
				failed++
				logger.Error("[EscrowRelease] release %s: %v", txn.TransactionNo, err)
			}
		}); err != nil {
			wg.Done()
			logger.Error("[EscrowRelease] submit task: %v", err)
		}
	}
	wg.Wait()

	logger.Info("[EscrowRelease] batch done: released=%d skipped=%d failed=%d", released, skipped, failed)
}
