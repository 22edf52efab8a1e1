package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "logodeth"

// CacheOperation represents the type of cache operation being traced.
type CacheOperation string

const (
	// CacheOperationGet reads a cached result.
	CacheOperationGet CacheOperation = "get"
	// CacheOperationSet writes a result.
	CacheOperationSet CacheOperation = "set"
	// CacheOperationSimilar searches the fingerprint index.
	CacheOperationSimilar CacheOperation = "similar"
	// CacheOperationDelete removes results.
	CacheOperationDelete CacheOperation = "delete"
)

// StartCacheSpan creates a new span for a result cache operation.
// Returns the new context and a function to end the span.
//
// Example usage:
//
//	ctx, endSpan := tracing.StartCacheSpan(ctx, "redis", tracing.CacheOperationGet)
//	defer endSpan(err)
func StartCacheSpan(ctx context.Context, backend string, operation CacheOperation) (context.Context, func(error)) {
	tracer := otel.Tracer(tracerName + "/cache")

	spanName := "cache " + string(operation)

	attrs := []attribute.KeyValue{attribute.String("db.operation", string(operation))}
	if backend != "" {
		attrs = append(attrs, attribute.String("db.system", backend))
	}

	ctx, span := tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)

	return ctx, endFunc(span)
}

// StartModelSpan creates a new span for a call to a vision model provider.
func StartModelSpan(ctx context.Context, provider, model string) (context.Context, func(error)) {
	tracer := otel.Tracer(tracerName + "/llm")

	ctx, span := tracer.Start(ctx, "recognize "+provider,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gen_ai.system", provider),
			attribute.String("gen_ai.request.model", model),
		),
	)

	return ctx, endFunc(span)
}

// StartSpan creates a new span for a general operation.
// Returns the new context and a function to end the span.
//
// Example usage:
//
//	ctx, endSpan := tracing.StartSpan(ctx, "recognize_logo")
//	defer endSpan(err)
//	// ... perform operation ...
func StartSpan(ctx context.Context, name string) (context.Context, func(error)) {
	tracer := otel.Tracer(tracerName)

	ctx, span := tracer.Start(ctx, name)

	return ctx, endFunc(span)
}

func endFunc(span trace.Span) func(error) {
	return func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// AddEvent adds an event to the current span.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SetAttributes sets attributes on the current span.
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attrs...)
}
