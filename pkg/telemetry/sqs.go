package telemetry

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const consumerTracer = "attendance.service/worker"

// attributeCarrier adapts SQS message attributes to propagation.TextMapCarrier.
type attributeCarrier map[string]types.MessageAttributeValue

func (c attributeCarrier) Get(key string) string {
	if v, ok := c[key]; ok && v.StringValue != nil {
		return *v.StringValue
	}
	return ""
}

func (c attributeCarrier) Set(key, value string) {
	c[key] = types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(value)}
}

func (c attributeCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// InjectMessageAttributes returns SQS attributes carrying the span in ctx.
func InjectMessageAttributes(ctx context.Context) map[string]types.MessageAttributeValue {
	carrier := attributeCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier
}

// StartConsumerSpan continues the producer's trace for one received message.
// When the body names an employee, the id is put on the span and the context.
func StartConsumerSpan(ctx context.Context, queueURL string, msg types.Message) (context.Context, trace.Span) {
	ctx = otel.GetTextMapPropagator().Extract(ctx, attributeCarrier(msg.MessageAttributes))

	attrs := []attribute.KeyValue{
		semconv.MessagingSystem("aws_sqs"),
		semconv.MessagingSourceName(queueURL),
		semconv.MessagingOperationProcess,
	}
	if msg.MessageId != nil {
		attrs = append(attrs, semconv.MessagingMessageID(*msg.MessageId))
	}
	ctx, span := otel.Tracer(consumerTracer).Start(ctx, "sqs process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(attrs...),
	)

	if msg.Body == nil {
		return ctx, span
	}
	var payload struct {
		EmployeeID string `json:"employeeId"`
	}
	if err := json.Unmarshal([]byte(*msg.Body), &payload); err == nil && payload.EmployeeID != "" {
		span.SetAttributes(attribute.String("app.employeeId", payload.EmployeeID))
		ctx = WithEmployeeID(ctx, payload.EmployeeID)
	}
	return ctx, span
}
