// Package tracer is a small tracing facade over OpenTelemetry.
//
// Detection and export code starts spans through the Tracer interface so tests can run
// with NoopTracer and production wires OTelTracer against the global provider.
package tracer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span. A non-nil err marks it failed. Call exactly once.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
//
//	ctx, span := t.Start(ctx, tracer.SpanDetectorEvaluate,
//	    tracer.String(tracer.AttrAction, "LOGIN"),
//	)
//	defer span.End(nil)
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
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

func Float64(key string, value float64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// HashIdentifier returns a short SHA-256 prefix of an identifier (IP address, user ID) so
// traces can be correlated without carrying the raw value.
func HashIdentifier(v string) string {
	if v == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(v))
	return hex.EncodeToString(hash[:8])
}

// Span names are "<component>.<...>"; OTelTracer tags each span with the component.
const (
	SpanDetectorEvaluate = "security.detector.evaluate"
	SpanDetectorRule     = "security.detector.rule"
	SpanActivityExport   = "activity.export"
)

// Attribute keys.
const (
	AttrUserHash    = "user.hash"
	AttrAction      = "activity.action"
	AttrActivityID  = "activity.id"
	AttrRule        = "rule"
	AttrRuleFired   = "rule.fired"
	AttrSignalType  = "signal.type"
	AttrSignalCount = "signal.count"
	AttrRows        = "export.rows"
	AttrComponent   = "reloop.component"
	AttrErrorCode   = "error.code"
)

// Event names.
const (
	EventSignalRaised   = "signal.raised"
	EventNotifyFailed   = "signal.notify_failed"
	EventRulePanicked   = "rule.panicked"
	EventExportPageRead = "export.page_read"
)
