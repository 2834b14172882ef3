package telemetry

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestTraceContextSurvivesSQSRoundTrip(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	ctx, parent := tp.Tracer("test").Start(context.Background(), "publish")
	attrs := InjectMessageAttributes(ctx)
	parent.End()
	require.Contains(t, attrs, "traceparent")

	msg := types.Message{
		MessageId:         aws.String("m-1"),
		Body:              aws.String(`{"employeeId":"emp-3"}`),
		MessageAttributes: attrs,
	}
	ctx, span := StartConsumerSpan(context.Background(), "overtime-sync-queue", msg)
	defer span.End()

	assert.Equal(t, parent.SpanContext().TraceID(), trace.SpanFromContext(ctx).SpanContext().TraceID())
	assert.Equal(t, "emp-3", GetEmployeeIDFromContext(ctx))
}

func TestStartConsumerSpanWithoutEmployee(t *testing.T) {
	ctx, span := StartConsumerSpan(context.Background(), "overtime-sync-queue", types.Message{Body: aws.String(`{"month":3}`)})
	defer span.End()
	assert.Equal(t, "", GetEmployeeIDFromContext(ctx))

	ctx, span = StartConsumerSpan(context.Background(), "overtime-sync-queue", types.Message{})
	defer span.End()
	assert.Equal(t, "", GetEmployeeIDFromContext(ctx))
}
