package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"escrowledger/internal/metrics"
	"escrowledger/internal/model"
	"escrowledger/internal/repository"

	"gorm.io/gorm"
)

// ErrValidation marks requests rejected before any storage mutation is
// attempted (empty descriptions, non-positive amounts). Callers match it
// with errors.Is.
var ErrValidation = errors.New("validation failed")

func validationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// enqueueEvent writes a ledger event into the outbox inside the caller's
// transaction, so the event commits if and only if the mutation does.
func enqueueEvent(ctx context.Context, tx *gorm.DB, outboxRepo *repository.OutboxRepository, topic, key string, payload map[string]interface{}) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	return outboxRepo.Create(ctx, tx, &model.OutboxMessage{
		MessageKey: key,
		Topic:      topic,
		Payload:    string(payloadBytes),
		Status:     model.OutboxStatusPending,
	})
}

func recordOperation(operation string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrInvalidState):
		result = "invalid_state"
	case errors.Is(err, repository.ErrInsufficientBalance):
		result = "insufficient_balance"
	case errors.Is(err, ErrValidation):
		result = "validation"
	default:
		result = "error"
	}
	metrics.LedgerOperationsTotal.WithLabelValues(operation, result).Inc()
}
