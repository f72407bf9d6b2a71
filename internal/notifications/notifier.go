package notifications

import (
	"context"
	"fmt"

	"github.com/angelmondragon/viylo-storefront/internal/orders"
	"github.com/angelmondragon/viylo-storefront/pkg/logger"
)

// Notifier delivers an order summary to the seller. One call per submission, no retries.
type Notifier interface {
	Send(ctx context.Context, payload orders.Payload) error
	Name() string
}

// LogNotifier writes the order to the structured log. Used in development.
type LogNotifier struct {
	logg *logger.Logger
}

func NewLogNotifier(logg *logger.Logger) (*LogNotifier, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &LogNotifier{logg: logg}, nil
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Send(ctx context.Context, payload orders.Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx = n.logg.WithFields(ctx, map[string]any{
		"order_id":    payload.OrderID,
		"order_lines": payload.OrderLines,
		"total":       payload.Total.StringFixed(2),
		"currency":    payload.Currency,
		"destination": payload.Destination,
	})
	n.logg.Info(ctx, "order notification")
	return nil
}
