package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/viylo-storefront/internal/orders"
	"github.com/angelmondragon/viylo-storefront/pkg/logger"
)

const orderSentEvent = "order.sent"

type messagePublisher interface {
	Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error)
}

// TopicPublisher adapts a Pub/Sub publisher to a blocking publish.
type TopicPublisher struct {
	publisher *pubsub.Publisher
}

func NewTopicPublisher(p *pubsub.Publisher) (*TopicPublisher, error) {
	if p == nil {
		return nil, fmt.Errorf("pubsub publisher required")
	}
	return &TopicPublisher{publisher: p}, nil
}

func (t *TopicPublisher) Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error) {
	result := t.publisher.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs})
	return result.Get(ctx)
}

// Stop flushes pending messages.
func (t *TopicPublisher) Stop() {
	t.publisher.Stop()
}

type orderMessage struct {
	EventType      string            `json:"event_type"`
	Order          orders.Payload    `json:"order"`
	TemplateParams map[string]string `json:"template_params"`
}

// PubSubNotifier publishes the order for a downstream mailer.
type PubSubNotifier struct {
	publisher messagePublisher
	logg      *logger.Logger
}

func NewPubSubNotifier(publisher messagePublisher, logg *logger.Logger) (*PubSubNotifier, error) {
	if publisher == nil {
		return nil, fmt.Errorf("publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &PubSubNotifier{publisher: publisher, logg: logg}, nil
}

func (n *PubSubNotifier) Name() string { return "pubsub" }

func (n *PubSubNotifier) Send(ctx context.Context, payload orders.Payload) error {
	data, err := json.Marshal(orderMessage{
		EventType:      orderSentEvent,
		Order:          payload,
		TemplateParams: payload.TemplateParams(),
	})
	if err != nil {
		return fmt.Errorf("encode order message: %w", err)
	}

	id, err := n.publisher.Publish(ctx, data, map[string]string{
		"event_type": orderSentEvent,
		"order_id":   payload.OrderID,
	})
	if err != nil {
		return fmt.Errorf("publish order message: %w", err)
	}

	n.logg.Info(n.logg.WithFields(ctx, map[string]any{"order_id": payload.OrderID, "message_id": id}), "order message published")
	return nil
}
