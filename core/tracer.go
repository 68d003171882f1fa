package core

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/hyperledger-labs/lane-relayer/core")

// WithChainAttributes returns a span option identifying a single chain.
func WithChainAttributes(chainID string) trace.SpanStartOption {
	return trace.WithAttributes(AttributeKeyChainID.String(chainID))
}

// WithLanePairAttributes returns a span option identifying the lane and its two chains.
func WithLanePairAttributes(src, dst Chain, lane LaneID) trace.SpanStartOption {
	return trace.WithAttributes(WithLaneAttributes(src, dst, lane)...)
}

// StartTraceWithQueryContext creates a span and a QueryContext containing the newly-created span.
func StartTraceWithQueryContext(tracer trace.Tracer, ctx QueryContext, spanName string, opts ...trace.SpanStartOption) (QueryContext, trace.Span) {
	opts = append(opts, trace.WithAttributes(AttributeGroup("query",
		AttributeKeyHeight.Int64(int64(ctx.Height())),
	)...))
	spanCtx, span := tracer.Start(ctx.Context(), spanName, opts...)
	ctx = NewQueryContext(spanCtx, ctx.Height())
	return ctx, span
}
