package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/mofad-energy/mofad-erp/internal/observability"
	"github.com/mofad-energy/mofad-erp/internal/shared"
)

// TaskTypeIdempotencyCleanup prunes expired idempotency keys.
const TaskTypeIdempotencyCleanup = "purchasing:idempotency_cleanup"

// IdempotencyCleanupPayload sets the retention window for the cleanup run.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours,omitempty"`
}

// NewIdempotencyCleanupTask builds a cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	payload := IdempotencyCleanupPayload{RetentionHours: int(retention.Hours())}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeIdempotencyCleanup, data, asynq.Queue(QueueDefault)), nil
}

// NewIdempotencyCleanupHandler returns the handler that prunes old keys.
func NewIdempotencyCleanupHandler(store *shared.IdempotencyStore, metrics *observability.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload IdempotencyCleanupPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		retention := time.Duration(payload.RetentionHours) * time.Hour
		if retention <= 0 {
			retention = 30 * 24 * time.Hour
		}
		if err := store.Cleanup(ctx, retention); err != nil {
			metrics.RecordJob(TaskTypeIdempotencyCleanup, "error")
			return err
		}
		logger.InfoContext(ctx, "idempotency keys pruned", slog.Duration("retention", retention))
		metrics.RecordJob(TaskTypeIdempotencyCleanup, "ok")
		return nil
	}
}
