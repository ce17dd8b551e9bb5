package observability

import (
	"context"
)

// Context keys for observability data.
type contextKey string

const (
	requestIDKey contextKey = "request_id"
	studyIDKey   contextKey = "study_id"
	traceIDKey   contextKey = "trace_id"
	spanIDKey    contextKey = "span_id"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if not present.
func RequestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// WithStudyID adds the study ID to the context.
func WithStudyID(ctx context.Context, studyID string) context.Context {
	return context.WithValue(ctx, studyIDKey, studyID)
}

// StudyIDFromContext retrieves the study ID from context.
// Returns empty string if not present.
func StudyIDFromContext(ctx context.Context) string {
	if v := ctx.Value(studyIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// WithTraceSpan adds trace and span IDs to the context.
func WithTraceSpan(ctx context.Context, traceID, spanID string) context.Context {
	ctx = context.WithValue(ctx, traceIDKey, traceID)
	ctx = context.WithValue(ctx, spanIDKey, spanID)
	return ctx
}

// TraceSpanFromContext retrieves trace and span IDs from context.
// Returns empty strings if not present.
func TraceSpanFromContext(ctx context.Context) (traceID, spanID string) {
	if v := ctx.Value(traceIDKey); v != nil {
		if id, ok := v.(string); ok {
			traceID = id
		}
	}
	if v := ctx.Value(spanIDKey); v != nil {
		if id, ok := v.(string); ok {
			spanID = id
		}
	}
	return traceID, spanID
}

// RequestContext contains all the context data for a recruitment request.
type RequestContext struct {
	RequestID string
	StudyID   string
	TraceID   string
	SpanID    string
}

// WithRequestContext adds all request context to the context.
func WithRequestContext(ctx context.Context, rc RequestContext) context.Context {
	if rc.RequestID != "" {
		ctx = WithRequestID(ctx, rc.RequestID)
	}
	if rc.StudyID != "" {
		ctx = WithStudyID(ctx, rc.StudyID)
	}
	if rc.TraceID != "" || rc.SpanID != "" {
		ctx = WithTraceSpan(ctx, rc.TraceID, rc.SpanID)
	}
	return ctx
}

// RequestContextFromContext extracts all request context from the context.
func RequestContextFromContext(ctx context.Context) RequestContext {
	traceID, spanID := TraceSpanFromContext(ctx)

	return RequestContext{
		RequestID: RequestIDFromContext(ctx),
		StudyID:   StudyIDFromContext(ctx),
		TraceID:   traceID,
		SpanID:    spanID,
	}
}
