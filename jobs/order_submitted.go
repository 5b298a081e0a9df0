package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/krishimarket/krishimarket/internal/jobs"
	"github.com/krishimarket/krishimarket/internal/orders"
	"github.com/krishimarket/krishimarket/internal/shared"
)

// OrderSubmittedJob records the receipt of a persisted invoice or sale.
type OrderSubmittedJob struct {
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewOrderSubmittedJob initialises the order-submitted handler.
func NewOrderSubmittedJob(logger *slog.Logger, metrics *jobmetrics.Metrics) *OrderSubmittedJob {
	return &OrderSubmittedJob{Logger: logger, Metrics: metrics}
}

// Handle processes one TaskOrderSubmitted task.
func (j *OrderSubmittedJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("order submitted: handler not configured")
	}
	var event orders.SubmittedEvent
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		return asynq.SkipRetry
	}
	if event.OrderID == "" || event.DocumentNumber == "" {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskOrderSubmitted)
	logger := j.logger().With(
		slog.String("workflow", event.Workflow),
		slog.String("order_id", event.OrderID),
		slog.String("document_number", event.DocumentNumber),
	)
	logger.Info("order receipt ready",
		slog.String("owner_id", event.OwnerID),
		slog.String("counterparty", event.CounterpartyName),
		slog.Int("items", event.ItemCount),
		slog.String("grand_total", shared.FormatRupees(event.GrandTotal)),
		slog.Time("submitted_at", event.SubmittedAt),
	)
	j.Metrics.AddReceipt(event.Workflow)
	return tracker.End(ctx.Err())
}

func (j *OrderSubmittedJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
