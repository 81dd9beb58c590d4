package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
)

// Attrs tags a span with the caller and the model serving it.
type Attrs struct {
	UserID   string
	OrgID    string
	Model    string
	Memories int
}

// Span is a nil-safe wrapper around a Sentry span.
type Span struct {
	inner *sentry.Span
}

// StartRequest opens the transaction for one HTTP request, continuing an
// incoming sentry-trace header when present. The returned context carries a
// hub cloned for this request.
func StartRequest(r *http.Request) (context.Context, *Span) {
	hub := sentry.GetHubFromContext(r.Context())
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}

	opts := []sentry.SpanOption{
		sentry.WithOpName("http.server"),
		sentry.WithTransactionSource(sentry.SourceRoute),
	}
	if trace := r.Header.Get(sentry.SentryTraceHeader); trace != "" {
		opts = append(opts, sentry.ContinueFromHeaders(trace, r.Header.Get(sentry.SentryBaggageHeader)))
	}

	ctx := sentry.SetHubOnContext(r.Context(), hub)
	tx := sentry.StartTransaction(ctx, r.Method+" "+r.URL.Path, opts...)
	hub.Scope().SetContext("request", sentry.Context{
		"method": r.Method,
		"path":   r.URL.Path,
	})
	return tx.Context(), &Span{inner: tx}
}

// Start opens a child of the span in ctx, or a new transaction when ctx
// carries none.
func Start(ctx context.Context, op string, attrs Attrs) (context.Context, *Span) {
	var span *sentry.Span
	if parent := sentry.SpanFromContext(ctx); parent != nil {
		span = parent.StartChild(op)
	} else {
		span = sentry.StartSpan(ctx, op, sentry.WithTransactionName(op))
	}

	if attrs.UserID != "" {
		span.SetTag("user_id", attrs.UserID)
	}
	if attrs.OrgID != "" {
		span.SetTag("org_id", attrs.OrgID)
	}
	if attrs.Model != "" {
		span.SetTag("model", attrs.Model)
	}
	if attrs.Memories > 0 {
		span.SetData("memories", attrs.Memories)
	}
	return span.Context(), &Span{inner: span}
}

// Tag sets a tag on the span and on the request scope.
func (s *Span) Tag(key, value string) {
	if s == nil || s.inner == nil || value == "" {
		return
	}
	s.inner.SetTag(key, value)
	if hub := sentry.GetHubFromContext(s.inner.Context()); hub != nil {
		hub.Scope().SetTag(key, value)
	}
}

// SetHTTPStatus records the response status on the span.
func (s *Span) SetHTTPStatus(status int) {
	if s == nil || s.inner == nil {
		return
	}
	s.inner.Status = HTTPSpanStatus(status)
	s.inner.SetData("http.response.status_code", status)
}

// Fail marks the span as failed and reports err.
func (s *Span) Fail(err error) {
	if s == nil || s.inner == nil || err == nil {
		return
	}
	s.inner.Status = sentry.SpanStatusInternalError
	CaptureError(s.inner.Context(), err)
}

// End finishes the span.
func (s *Span) End() {
	if s != nil && s.inner != nil {
		s.inner.Finish()
	}
}

// HTTPSpanStatus maps the statuses the chat API returns onto span statuses.
func HTTPSpanStatus(status int) sentry.SpanStatus {
	switch {
	case status < 400:
		return sentry.SpanStatusOK
	case status == http.StatusUnauthorized:
		return sentry.SpanStatusUnauthenticated
	case status == http.StatusPaymentRequired, status == http.StatusTooManyRequests:
		return sentry.SpanStatusResourceExhausted
	case status == http.StatusNotFound:
		return sentry.SpanStatusNotFound
	case status == 499:
		return sentry.SpanStatusCanceled
	case status < 500:
		return sentry.SpanStatusInvalidArgument
	case status == http.StatusServiceUnavailable, status == http.StatusBadGateway:
		return sentry.SpanStatusUnavailable
	case status == http.StatusGatewayTimeout:
		return sentry.SpanStatusDeadlineExceeded
	default:
		return sentry.SpanStatusInternalError
	}
}

// CaptureError reports err on the hub in ctx, falling back to the global hub.
func CaptureError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	sentry.CaptureException(err)
}

// Breadcrumb records a stream lifecycle step on the request scope.
func Breadcrumb(ctx context.Context, category, message string, data map[string]any) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		return
	}
	hub.AddBreadcrumb(&sentry.Breadcrumb{
		Type:      "default",
		Category:  category,
		Message:   message,
		Data:      data,
		Level:     sentry.LevelInfo,
		Timestamp: time.Now(),
	}, nil)
}
