package tracer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	dErrors "reloop/pkg/domain-errors"
)

const instrumentationName = "reloop"

// OTelTracer exports detector and export spans through OpenTelemetry.
type OTelTracer struct {
	tracer trace.Tracer
}

type OTelOption func(*OTelTracer)

// WithOTelTracer replaces the tracer taken from the global provider.
func WithOTelTracer(t trace.Tracer) OTelOption {
	return func(o *OTelTracer) {
		if t != nil {
			o.tracer = t
		}
	}
}

func NewOTel(opts ...OTelOption) *OTelTracer {
	t := &OTelTracer{tracer: otel.Tracer(instrumentationName)}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *OTelTracer) Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span) {
	kvs := make([]attribute.KeyValue, 0, len(attrs)+1)
	kvs = append(kvs, attribute.String(AttrComponent, Component(name)))
	kvs = appendKeyValues(kvs, attrs)
	ctx, span := t.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(kvs...),
	)
	return ctx, &otelSpan{span: span}
}

// Component is the span name up to its first dot: "security" for
// "security.detector.evaluate".
func Component(spanName string) string {
	component, _, _ := strings.Cut(spanName, ".")
	return component
}

type otelSpan struct {
	span trace.Span
}

// End records err and its domain code. Only server-side failures set the error status.
func (s *otelSpan) End(err error) {
	if err != nil {
		s.span.RecordError(err)
		code, coded := dErrors.CodeOf(err)
		if coded {
			s.span.SetAttributes(attribute.String(AttrErrorCode, string(code)))
		}
		if !coded || isFault(code) {
			s.span.SetStatus(codes.Error, err.Error())
		}
	}
	s.span.End()
}

func (s *otelSpan) SetAttributes(attrs ...Attribute) {
	s.span.SetAttributes(appendKeyValues(nil, attrs)...)
}

func (s *otelSpan) AddEvent(name string, attrs ...Attribute) {
	s.span.AddEvent(name, trace.WithAttributes(appendKeyValues(nil, attrs)...))
}

func isFault(code dErrors.Code) bool {
	switch code {
	case dErrors.CodeInternal, dErrors.CodeUnavailable, dErrors.CodeInvariantViolation:
		return true
	default:
		return false
	}
}

// appendKeyValues converts attrs onto dst. IDs and enums with a String method are
// recorded by name; values of any other type are dropped.
func appendKeyValues(dst []attribute.KeyValue, attrs []Attribute) []attribute.KeyValue {
	for _, a := range attrs {
		switch v := a.Value.(type) {
		case string:
			dst = append(dst, attribute.String(a.Key, v))
		case bool:
			dst = append(dst, attribute.Bool(a.Key, v))
		case int:
			dst = append(dst, attribute.Int(a.Key, v))
		case int64:
			dst = append(dst, attribute.Int64(a.Key, v))
		case float64:
			dst = append(dst, attribute.Float64(a.Key, v))
		case time.Duration:
			dst = append(dst, attribute.Int64(a.Key, v.Milliseconds()))
		case []string:
			dst = append(dst, attribute.StringSlice(a.Key, v))
		case fmt.Stringer:
			dst = append(dst, attribute.String(a.Key, v.String()))
		}
	}
	return dst
}

var (
	_ Tracer = (*OTelTracer)(nil)
	_ Span   = (*otelSpan)(nil)
)
