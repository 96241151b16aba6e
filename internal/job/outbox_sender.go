package job

import (
	"context"
	"time"

	"escrowledger/internal/config"
	"escrowledger/internal/infrastructure/mq"
	"escrowledger/internal/logger"
	"escrowledger/internal/model"
	"escrowledger/internal/repository"

	"gorm.io/gorm"
)

// OutboxSender drains pending outbox rows into Kafka. A row is marked
// sent only after the broker acknowledged it; a crash between send and
// mark means the event is delivered again, so consumers must be
// idempotent on message key.
type OutboxSender struct {
	db         *gorm.DB
	outboxRepo *repository.OutboxRepository
	cfg        *config.Config
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
}

func NewOutboxSender(db *gorm.DB, cfg *config.Config) *OutboxSender {
	return &OutboxSender{
		db:         db,
		outboxRepo: repository.NewOutboxRepository(db),
		cfg:        cfg,
		stopCh:     make(chan struct{}),
		interval:   100 * time.Millisecond,
		batchSize:  100,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	logger.Info("[OutboxSender] started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("[OutboxSender] context cancelled, exiting")
			return
		case <-s.stopCh:
			logger.Info("[OutboxSender] stopped")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

func (s *OutboxSender) processPendingMessages(ctx context.Context) {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		logger.Error("[OutboxSender] query pending messages: %v", err)
		return
	}

	for _, msg := range messages {
		s.sendMessage(ctx, msg)
	}
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) {
	err := mq.SendMessage(msg.Topic, msg.MessageKey, msg.Payload)

	if err == nil {
		if updateErr := s.outboxRepo.MarkAsSent(ctx, msg.ID); updateErr != nil {
			logger.Error("[OutboxSender] mark sent failed: id=%d err=%v", msg.ID, updateErr)
		}
		return
	}

	logger.Warn("[OutboxSender] send failed: id=%d err=%v", msg.ID, err)

	if msg.RetryCount+1 >= s.cfg.Business.MaxRetryCount {
		if err := s.outboxRepo.MarkAsFailed(ctx, msg.ID); err != nil {
			logger.Error("[OutboxSender] mark failed: id=%d err=%v", msg.ID, err)
		} else {
			logger.Error("[OutboxSender] message exceeded retry limit: id=%d key=%s", msg.ID, msg.MessageKey)
		}
		return
	}

	if err := s.outboxRepo.IncrementRetryCount(ctx, msg.ID); err != nil {
		logger.Error("[OutboxSender] increment retry count: id=%d err=%v", msg.ID, err)
	}
}
