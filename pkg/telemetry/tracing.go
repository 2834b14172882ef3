package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

type employeeKey struct{}

// InitTracer installs the global tracer provider and W3C propagators. Local
// runs print spans to stdout; otherwise spans go over OTLP/gRPC to endpoint.
// The returned func flushes and stops the provider.
func InitTracer(serviceName, endpoint string, isLocalDev bool) (func(context.Context) error, error) {
	ctx := context.Background()

	exporter, err := newExporter(ctx, endpoint, isLocalDev)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return provider.Shutdown, nil
}

func newExporter(ctx context.Context, endpoint string, isLocalDev bool) (sdktrace.SpanExporter, error) {
	if isLocalDev {
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	return otlptracegrpc.New(ctx, otlptracegrpc.WithInsecure(), otlptracegrpc.WithEndpoint(endpoint))
}

// WithEmployeeID records whose timer a request or message acts on.
func WithEmployeeID(ctx context.Context, employeeID string) context.Context {
	return context.WithValue(ctx, employeeKey{}, employeeID)
}

// GetEmployeeIDFromContext returns the employee set by WithEmployeeID, or "".
func GetEmployeeIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(employeeKey{}).(string)
	return id
}
