package tracing

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func sampledContext(t *testing.T) context.Context {
	t.Helper()

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	return trace.ContextWithSpanContext(context.Background(), sc)
}

func TestKafkaHeaderRoundTrip(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	ctx := sampledContext(t)

	headers := InjectTraceContext(ctx, nil)
	require.NotEmpty(t, headers)

	var traceparent string
	for _, h := range headers {
		if h.Key == "traceparent" {
			traceparent = string(h.Value)
		}
	}
	require.NotEmpty(t, traceparent)

	extracted := ExtractTraceContext(context.Background(), headers)
	sc := trace.SpanContextFromContext(extracted)
	assert.Equal(t, trace.SpanContextFromContext(ctx).TraceID(), sc.TraceID())
	assert.True(t, sc.IsSampled())
}

func TestInjectPreservesExistingHeaders(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	existing := []kafka.Header{{Key: "content-type", Value: []byte("application/json")}}
	headers := InjectTraceContext(sampledContext(t), existing)

	keys := make([]string, 0, len(headers))
	for _, h := range headers {
		keys = append(keys, h.Key)
	}
	assert.Contains(t, keys, "content-type")
	assert.Contains(t, keys, "traceparent")
}
