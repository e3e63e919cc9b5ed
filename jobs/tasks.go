package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/mofad-energy/mofad-erp/internal/purchasing"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeStatusNotify fans out purchase order status change notifications.
	TaskTypeStatusNotify = "purchasing:notify"
	// TaskTypeReconcileRefresh rebuilds cached delivery reconciliation snapshots.
	TaskTypeReconcileRefresh = "purchasing:reconcile_refresh"
)

// StatusNotifyPayload carries the status change details for notification fan-out.
type StatusNotifyPayload struct {
	PurchaseOrderID int64  `json:"purchase_order_id"`
	Number          string `json:"number"`
	Supplier        string `json:"supplier"`
	Status          string `json:"status"`
	Operation       string `json:"operation"`
	OccurredAt      string `json:"occurred_at"`
}

// NewStatusNotifyTask constructs an Asynq task for a status change.
func NewStatusNotifyTask(payload StatusNotifyPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeStatusNotify, data, asynq.Queue(QueueDefault)), nil
}

// NewStatusNotifyHandler returns the handler that delivers status notifications.
// Delivery is a structured log entry until an outbound channel is configured.
func NewStatusNotifyHandler(logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload StatusNotifyPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		logger.InfoContext(ctx, "purchase order status notification",
			slog.Int64("purchase_order_id", payload.PurchaseOrderID),
			slog.String("number", payload.Number),
			slog.String("supplier", payload.Supplier),
			slog.String("status", payload.Status),
			slog.String("operation", payload.Operation),
		)
		return nil
	}
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueStatusNotify enqueues a status notification task.
func (c *Client) EnqueueStatusNotify(ctx context.Context, payload StatusNotifyPayload) (*asynq.TaskInfo, error) {
	task, err := NewStatusNotifyTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.MaxRetry(3))
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}

// StatusNotifier bridges purchase order status changes into the job queue.
type StatusNotifier struct {
	client *Client
	logger *slog.Logger
}

// NewStatusNotifier constructs a notifier backed by the Asynq client.
func NewStatusNotifier(client *Client, logger *slog.Logger) *StatusNotifier {
	return &StatusNotifier{client: client, logger: logger}
}

// NotifyStatusChange enqueues a notification for the given transition.
func (n *StatusNotifier) NotifyStatusChange(ctx context.Context, po purchasing.PurchaseOrder, operation string) error {
	if n == nil || n.client == nil {
		return nil
	}
	_, err := n.client.EnqueueStatusNotify(ctx, StatusNotifyPayload{
		PurchaseOrderID: po.ID,
		Number:          po.Number,
		Supplier:        po.Supplier,
		Status:          string(po.Status),
		Operation:       operation,
		OccurredAt:      time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		n.logger.WarnContext(ctx, "enqueue status notification", slog.Any("error", err))
	}
	return err
}
