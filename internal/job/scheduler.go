package job

import (
	"escrowledger/internal/config"
	"escrowledger/internal/logger"

	"github.com/go-co-op/gocron/v2"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

type scheduledJob interface {
	GetName() string
	GetSchedule() gocron.JobDefinition
	Execute()
}

// Scheduler runs the periodic jobs: escrow auto-release and wallet
// reconciliation.
type Scheduler struct {
	scheduler gocron.Scheduler
	jobs      []scheduledJob
}

func NewScheduler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Scheduler {
	s, err := gocron.NewScheduler()
	if err != nil {
		logger.Fatal("failed to create scheduler: %v", err)
	}

	return &Scheduler{
		scheduler: s,
		jobs: []scheduledJob{
			NewEscrowReleaseJob(db, rdb, cfg),
			NewReconcileJob(db, rdb, cfg),
		},
	}
}

func (m *Scheduler) Start() {
	for _, job := range m.jobs {
		_, err := m.scheduler.NewJob(
			job.GetSchedule(),
			gocron.NewTask(job.Execute),
			gocron.WithName(job.GetName()),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			logger.Error("failed to register job %s: %v", job.GetName(), err)
		}
	}

	m.scheduler.Start()
	logger.Info("scheduler started with %d jobs", len(m.jobs))
}

func (m *Scheduler) Stop() {
	if err := m.scheduler.Shutdown(); err != nil {
		logger.Error("failed to shutdown scheduler: %v", err)
	}
	logger.Info("scheduler stopped")
}
