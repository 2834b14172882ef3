package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Producer routes each event type to its queue.
type Producer struct {
	sender           MessageSender
	eventsQueueURL   string
	overtimeQueueURL string
}

func NewProducer(sender MessageSender, eventsQueueURL, overtimeQueueURL string) *Producer {
	return &Producer{
		sender:           sender,
		eventsQueueURL:   eventsQueueURL,
		overtimeQueueURL: overtimeQueueURL,
	}
}

func NewSQSProducer(client SQSClient, eventsQueueURL, overtimeQueueURL string) *Producer {
	return NewProducer(&SQSSender{client: client}, eventsQueueURL, overtimeQueueURL)
}

func (p *Producer) PublishDayClosed(ctx context.Context, event DayClosedEvent) error {
	return p.send(ctx, p.eventsQueueURL, event.EmployeeID, event)
}

// PublishOvertimeSync enqueues a batch sync. An empty EmployeeID targets everyone.
func (p *Producer) PublishOvertimeSync(ctx context.Context, req OvertimeSyncRequest) error {
	return p.send(ctx, p.overtimeQueueURL, req.EmployeeID, req)
}

func (p *Producer) send(ctx context.Context, queueURL, employeeID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %T: %w", payload, err)
	}
	if employeeID != "" {
		trace.SpanFromContext(ctx).SetAttributes(attribute.String("app.employeeId", employeeID))
	}
	if err := p.sender.SendMessage(ctx, queueURL, body); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
