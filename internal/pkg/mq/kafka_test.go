package mq

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestKafkaHeaderCarrier(t *testing.T) {
	var c KafkaHeaderCarrier
	c.Set("traceparent", "a")
	c.Set("baggage", "b")
	c.Set("traceparent", "c")

	if got := c.Get("traceparent"); got != "c" {
		t.Errorf("Set should overwrite, got %q", got)
	}
	if got := c.Get("missing"); got != "" {
		t.Errorf("Get(missing) = %q", got)
	}
	if keys := c.Keys(); len(keys) != 2 {
		t.Errorf("Keys = %v", keys)
	}
}

func TestKafkaHeaderCarrier_PropagatesTraceContext(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	prop := propagation.TraceContext{}
	var headers KafkaHeaderCarrier
	prop.Inject(ctx, &headers)

	got := trace.SpanContextFromContext(prop.Extract(context.Background(), &headers))
	if got.TraceID() != traceID || got.SpanID() != spanID || !got.IsRemote() {
		t.Errorf("extracted %+v", got)
	}
}
