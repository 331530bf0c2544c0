// Package tracer is a small tracing abstraction so proving and chain code can emit
// spans without importing OpenTelemetry directly.
//
// Implementations:
//   - NoopTracer: tests and deployments without a collector
//   - OTelTracer: OpenTelemetry adapter
package tracer

import (
	"context"
	"time"
)

// Span is an active trace span. End must be called exactly once.
type Span interface {
	// End completes the span and marks it failed when err is non-nil.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute is a key-value pair attached to a span.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration records value in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// Span names.
const (
	SpanGenerateProof = "proof.generate"
	SpanExecute       = "proof.execute"
	SpanProve         = "proof.prove"
	SpanBuildCalldata = "calldata.build"
	SpanFetchVK       = "calldata.fetch_vk"
	SpanChainCall     = "chain.call"
	SpanSubmit        = "chain.submit"
)

// Attribute keys.
const (
	AttrRunID       = "run_id"
	AttrPredicate   = "predicate"
	AttrCircuitID   = "circuit_id"
	AttrNullifier   = "nullifier"
	AttrMethod      = "rpc.method"
	AttrCacheHit    = "cache.hit"
	AttrSignalCount = "public_signals"
	AttrFelts       = "calldata.felts"
	AttrTxHash      = "tx_hash"
)

// Event names.
const (
	EventLengthPrefixAdded = "calldata.length_prefix_added"
	EventLengthPrefixKept  = "calldata.length_prefix_kept"
)
