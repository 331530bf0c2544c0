package tracer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"starkshield/internal/platform/tracer"
)

func TestNoopTracer_Start(t *testing.T) {
	tr := tracer.NewNoop()
	ctx := context.Background()

	newCtx, span := tr.Start(ctx, tracer.SpanGenerateProof,
		tracer.String(tracer.AttrPredicate, "age_verify"),
		tracer.Bool(tracer.AttrCacheHit, true),
	)

	assert.Equal(t, ctx, newCtx)
	require.NotNil(t, span)
	span.SetAttributes(tracer.Int(tracer.AttrSignalCount, 8))
	span.AddEvent("witness.ready", tracer.Duration("elapsed", time.Second))
	span.End(errors.New("boom"))
}

func TestOTelTracer_WithInjectedTracer(t *testing.T) {
	tr := tracer.NewOTel(tracer.WithOTelTracer(noop.NewTracerProvider().Tracer("test")))

	ctx, span := tr.Start(context.Background(), tracer.SpanChainCall,
		tracer.String(tracer.AttrMethod, "starknet_call"),
		tracer.Int64("attempt", 1),
	)
	require.NotNil(t, ctx)
	require.NotNil(t, span)
	span.SetAttributes(tracer.Attribute{Key: "ratio", Value: 0.5}, tracer.Attribute{Key: "ignored", Value: []int{1}})
	span.End(nil)
}

func TestDuration_Milliseconds(t *testing.T) {
	a := tracer.Duration("took", 1500*time.Millisecond)
	assert.Equal(t, int64(1500), a.Value)
}
