package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fileflowhq/fileflow-be/shared/rabbitmq"
)

// BrokerPublisher pushes events to RabbitMQ using the event type as the
// routing key, so consumers can bind to job.* or a single lifecycle step.
type BrokerPublisher struct {
	client *rabbitmq.Client
}

// NewBrokerPublisher creates a broker-backed event sink
func NewBrokerPublisher(client *rabbitmq.Client) *BrokerPublisher {
	return &BrokerPublisher{client: client}
}

// Publish marshals the event and hands it to the broker with retries
func (p *BrokerPublisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.client.PublishWithRetry(ctx, ev.Type, body, "application/json"); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", ev.Type, err)
	}

	return nil
}
