package observability

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}

type headersKey struct{}

// WithEventHeaders attaches request and trace ids to ctx for messages published under it.
func WithEventHeaders(ctx context.Context, requestID, traceID string) context.Context {
	return context.WithValue(ctx, headersKey{}, BuildHeaders(requestID, traceID))
}

// HeadersFromContext returns the headers stored by WithEventHeaders. The trace id falls
// back to the active span.
func HeadersFromContext(ctx context.Context) map[string]string {
	headers := map[string]string{}
	if stored, ok := ctx.Value(headersKey{}).(map[string]string); ok {
		for k, v := range stored {
			headers[k] = v
		}
	}
	if _, ok := headers["trace_id"]; !ok {
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			headers["trace_id"] = sc.TraceID().String()
		}
	}
	return headers
}
