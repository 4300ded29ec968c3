package middleware

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sockframe-dev/sockframe/pkg/session"
)

// Default tracer name for sockframe applications.
const defaultTracerName = "sockframe"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "sockframe").
	TracerName string

	// IncludeUserID includes the principal ID in spans if available.
	// May contain sensitive information - disabled by default.
	IncludeUserID bool

	// Filter determines which invocations to trace.
	// If nil, all invocations are traced.
	Filter func(inv *session.Invocation) bool

	tracer trace.Tracer
}

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithIncludeUserID enables including the principal ID in spans.
func WithIncludeUserID(include bool) OTelOption {
	return func(c *OTelConfig) {
		c.IncludeUserID = include
	}
}

// WithFilter sets a filter function for invocations.
func WithFilter(filter func(inv *session.Invocation) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// OpenTelemetry creates middleware that opens a span per dispatched
// method call, records errors, and sets span status.
//
// The tracer uses the global OpenTelemetry tracer provider; configure it
// in main() before starting the server.
func OpenTelemetry(opts ...OTelOption) session.Middleware {
	config := OTelConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	config.tracer = otel.Tracer(config.TracerName)

	return func(ctx context.Context, inv *session.Invocation, next session.InvokeFunc) (any, error) {
		if config.Filter != nil && !config.Filter(inv) {
			return next(ctx)
		}

		attrs := []attribute.KeyValue{
			attribute.String("sockframe.namespace", inv.Namespace),
			attribute.String("sockframe.method", inv.Method),
			attribute.String("sockframe.session_id", inv.Session.ID()),
		}
		if config.IncludeUserID {
			if p := inv.Session.Principal(); p != nil {
				attrs = append(attrs, attribute.String("sockframe.user_id", p.ID))
			}
		}

		spanCtx, span := config.tracer.Start(
			ctx,
			fmt.Sprintf("sockframe.%s %s", inv.Namespace, inv.Method),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		result, err := next(spanCtx)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return result, err
	}
}
