package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestDisabledSpansAreNoops(t *testing.T) {
	shutdown, err := Setup(false)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	defer shutdown(context.Background())

	ctx, span := StartSpan(context.Background(), "backend.fetch_health")
	if trace.SpanFromContext(ctx).SpanContext().IsValid() {
		t.Fatalf("disabled tracing must not start a span")
	}
	span.End(errors.New("ignored"))

	var nilSpan *Span
	nilSpan.End(nil)
}

func TestEnabledSpansCarryContext(t *testing.T) {
	shutdown, err := Setup(true)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	t.Cleanup(func() {
		enabled.Store(false)
		_ = shutdown(context.Background())
	})

	ctx, span := StartSpan(context.Background(), "controller.run_experiment")
	if !trace.SpanFromContext(ctx).SpanContext().IsValid() {
		t.Fatalf("expected a recording span in the context")
	}
	span.End(errors.New("backend rejected"))
}
