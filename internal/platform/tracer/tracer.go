// Package tracer is a thin span abstraction over OpenTelemetry.
//
// Services depend on the Tracer interface so tests can run with NoopTracer
// and production code with OTelTracer on the global provider.
package tracer

import (
	"context"
	"time"
)

// Span is an active trace span. End must be called exactly once.
type Span interface {
	// End completes the span, marking it failed when err is non-nil.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

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

func Float64(key string, value float64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration records value in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// Span names.
const (
	SpanIssue          = "credential.issue"
	SpanRevoke         = "credential.revoke"
	SpanEnsureSequence = "credential.ensure_sequence"
	SpanListOffering   = "credential.list_offering"
	SpanRender         = "credential.render"
	SpanVerify         = "credential.verify"
)

// Attribute keys. Verification tokens are never recorded.
const (
	AttrCredentialID = "credential.id"
	AttrEnrollmentID = "enrollment.id"
	AttrOfferingID   = "offering.id"
	AttrCreated      = "credential.created"
	AttrAttempt      = "attempt"
	AttrVariant      = "document.variant"
	AttrSequenceNo   = "sequence.no"
	AttrValid        = "verify.valid"
	AttrRowCount     = "rows"
)

// Event names.
const (
	EventIssueRetry = "issue.retry"
	EventQRRendered = "qr.rendered"
)
