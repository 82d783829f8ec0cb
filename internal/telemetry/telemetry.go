package telemetry

import (
	"context"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/semconv/v1.26.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const instrumentationName = "kioskpos"

type Options struct {
	Endpoint string
	Insecure bool
}

// Setup installs a global tracer provider exporting over OTLP/gRPC. Without
// an endpoint tracing stays on the no-op provider.
func Setup(serviceName string, options Options) func(context.Context) error {
	if options.Endpoint == "" {
		return func(context.Context) error { return nil }
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(options.Endpoint)}
	if options.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(context.Background(), opts...)
	if err != nil {
		log.Printf("otel exporter error: %v", err)
		return func(context.Context) error { return nil }
	}

	res, err := resource.New(context.Background(), resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		log.Printf("otel resource error: %v", err)
	}

	provider := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown
}

// AnnotateOrder tags the active span with the order's identity.
func AnnotateOrder(ctx context.Context, orderID, turnNumber, status string) {
	span := oteltrace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(
		attribute.String("order.id", orderID),
		attribute.String("order.turn_number", turnNumber),
		attribute.String("order.status", status),
	)
}

// Start opens a child span from the global provider.
func Start(ctx context.Context, name string) (context.Context, oteltrace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name)
}
