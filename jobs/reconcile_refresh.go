package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/mofad-energy/mofad-erp/internal/observability"
	"github.com/mofad-energy/mofad-erp/internal/purchasing"
)

// ReconcileRefreshPayload selects which purchase orders get their snapshots rebuilt.
type ReconcileRefreshPayload struct {
	// PurchaseOrderID limits the refresh to a single order when set.
	PurchaseOrderID int64 `json:"purchase_order_id,omitempty"`
	// Limit caps how many deliverable orders a full sweep touches.
	Limit int `json:"limit,omitempty"`
}

// NewReconcileRefreshTask builds a snapshot refresh task.
func NewReconcileRefreshTask(payload ReconcileRefreshPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeReconcileRefresh, data, asynq.Queue(QueueDefault)), nil
}

// NewReconcileRefreshHandler returns the handler that recomputes reconciliation
// snapshots for orders still awaiting deliveries.
func NewReconcileRefreshHandler(svc *purchasing.Service, metrics *observability.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload ReconcileRefreshPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}

		if payload.PurchaseOrderID > 0 {
			if _, err := svc.RefreshReconciliation(ctx, payload.PurchaseOrderID); err != nil {
				metrics.RecordJob(TaskTypeReconcileRefresh, "error")
				return err
			}
			metrics.RecordJob(TaskTypeReconcileRefresh, "ok")
			return nil
		}

		limit := payload.Limit
		if limit <= 0 || limit > 500 {
			limit = 200
		}
		orders, _, err := svc.ListDeliverable(ctx, limit, 0)
		if err != nil {
			metrics.RecordJob(TaskTypeReconcileRefresh, "error")
			return err
		}
		refreshed := 0
		for _, po := range orders {
			if _, err := svc.RefreshReconciliation(ctx, po.ID); err != nil {
				logger.WarnContext(ctx, "reconciliation refresh",
					slog.Int64("purchase_order_id", po.ID),
					slog.Any("error", err),
				)
				continue
			}
			refreshed++
		}
		logger.InfoContext(ctx, "reconciliation sweep complete",
			slog.Int("candidates", len(orders)),
			slog.Int("refreshed", refreshed),
		)
		metrics.RecordJob(TaskTypeReconcileRefresh, "ok")
		return nil
	}
}
