package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/shopcore/shopcore/internal/orders"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeOrderPlaced is the task type for post-placement processing.
	TaskTypeOrderPlaced = "order:placed"
)

// OrderPlacedPayload carries the order facts needed by the confirmation
// pipeline. Totals are snapshots taken at placement time.
type OrderPlacedPayload struct {
	OrderID     int64   `json:"order_id"`
	Code        string  `json:"code"`
	ActorID     int64   `json:"actor_id"`
	TotalAmount float64 `json:"total_amount"`
	LineCount   int     `json:"line_count"`
}

// NewOrderPlacedTask constructs an Asynq task for a placed order.
func NewOrderPlacedTask(payload OrderPlacedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeOrderPlaced, data), nil
}

// PayloadFromOrder maps a placed order to its task payload.
func PayloadFromOrder(o orders.Order) OrderPlacedPayload {
	return OrderPlacedPayload{
		OrderID:     o.ID,
		Code:        o.Code,
		ActorID:     o.ActorID,
		TotalAmount: o.TotalAmount,
		LineCount:   len(o.Lines),
	}
}

// NewOrderPlacedHandler returns the handler for TaskTypeOrderPlaced tasks.
// It emits the confirmation record; delivery integrations hang off this hook.
func NewOrderPlacedHandler(logger *slog.Logger) asynq.HandlerFunc {
	printer := message.NewPrinter(language.English)
	return func(ctx context.Context, t *asynq.Task) error {
		var payload OrderPlacedPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		logger.Info("order confirmation",
			slog.String("code", payload.Code),
			slog.Int64("actor_id", payload.ActorID),
			slog.Int("lines", payload.LineCount),
			slog.String("total", printer.Sprintf("%.2f", payload.TotalAmount)),
		)
		return nil
	}
}
