package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/Roohan-gm/shopblizz-backend/internal/platform/config"
	"github.com/Roohan-gm/shopblizz-backend/internal/platform/resilience"
	"github.com/Roohan-gm/shopblizz-backend/internal/services"
)

const (
	audienceCustomer   = "customer"
	audienceOperations = "operations"
)

// PubSubNotifier publishes order notices to the customer and operations topics. Delivery to
// email or chat happens in downstream subscribers.
type PubSubNotifier struct {
	customer   *pubsub.Topic
	operations *pubsub.Topic
	marshal    func(any) ([]byte, error)
	breaker    *resilience.Breaker[string]
}

var _ services.Notifier = (*PubSubNotifier)(nil)

// NewPubSubNotifier constructs a Pub/Sub backed notifier.
func NewPubSubNotifier(customer, operations *pubsub.Topic, breaker config.BreakerConfig, logger *zap.Logger) (*PubSubNotifier, error) {
	if customer == nil || operations == nil {
		return nil, errors.New("pubsub notifier: customer and operations topics are required")
	}
	return &PubSubNotifier{
		customer:   customer,
		operations: operations,
		marshal:    json.Marshal,
		breaker:    resilience.NewBreaker[string]("order-notifier", breaker, logger),
	}, nil
}

// NotifyCustomer publishes the notice for customer facing delivery.
func (p *PubSubNotifier) NotifyCustomer(ctx context.Context, notice services.OrderNotice) error {
	_, err := p.publish(ctx, p.customer, audienceCustomer, notice)
	return err
}

// NotifyOperations publishes the notice for the operations team.
func (p *PubSubNotifier) NotifyOperations(ctx context.Context, notice services.OrderNotice) error {
	_, err := p.publish(ctx, p.operations, audienceOperations, notice)
	return err
}

func (p *PubSubNotifier) publish(ctx context.Context, topic *pubsub.Topic, audience string, notice services.OrderNotice) (string, error) {
	if p == nil || topic == nil {
		return "", errors.New("pubsub notifier: not initialised")
	}

	data, err := p.marshal(notice)
	if err != nil {
		return "", fmt.Errorf("marshal order notice: %w", err)
	}

	attrs := map[string]string{"audience": audience}
	setAttr(attrs, "event", notice.Event)
	setAttr(attrs, "orderId", notice.OrderID)
	setAttr(attrs, "orderNo", notice.OrderNo)
	setAttr(attrs, "status", string(notice.Status))

	return p.breaker.Execute(func() (string, error) {
		result := topic.Publish(ctx, &pubsub.Message{
			Data:       data,
			Attributes: attrs,
		})
		id, err := result.Get(ctx)
		if err != nil {
			return "", fmt.Errorf("publish %s notice: %w", audience, err)
		}
		return id, nil
	})
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
