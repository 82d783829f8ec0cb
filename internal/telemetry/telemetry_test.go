package telemetry

import (
	"context"
	"testing"
)

func TestSetupWithoutEndpointIsNoop(t *testing.T) {
	shutdown := Setup("test", Options{})
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("expected no-op shutdown, got %v", err)
	}

	ctx, span := Start(context.Background(), "noop")
	AnnotateOrder(ctx, "o1", "001", "PENDING_PAYMENT")
	span.End()
}
