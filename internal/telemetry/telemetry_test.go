package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInit_EmptyDSNIsNoop(t *testing.T) {
	flush, err := Init(Config{}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, flush)
	flush()
}

func TestClientOptions_Defaults(t *testing.T) {
	opts := clientOptions(Config{DSN: "https://key@example.com/1"})

	assert.Equal(t, "development", opts.Environment)
	assert.Equal(t, 1.0, opts.TracesSampleRate)
	assert.Equal(t, serverName, opts.ServerName)
	assert.True(t, opts.EnableTracing)

	opts = clientOptions(Config{DSN: "x", Environment: "production", TracesSampleRate: 0.1})
	assert.Equal(t, "production", opts.Environment)
	assert.Equal(t, 0.1, opts.TracesSampleRate)
}

func TestSampler(t *testing.T) {
	sample := sampler(0.25)

	assert.Equal(t, 0.25, sample(sentry.SamplingContext{}))
	assert.Equal(t, 0.0, sample(sentry.SamplingContext{Span: &sentry.Span{Name: "GET /health"}}))
	assert.Equal(t, 0.0, sample(sentry.SamplingContext{Span: &sentry.Span{Name: "GET /metrics"}}))
	assert.Equal(t, 0.25, sample(sentry.SamplingContext{Span: &sentry.Span{Name: "POST /chat"}}))

	sampled := &sentry.Span{Sampled: sentry.SampledTrue}
	dropped := &sentry.Span{Sampled: sentry.SampledFalse}
	assert.Equal(t, 1.0, sample(sentry.SamplingContext{Span: &sentry.Span{Name: "child"}, Parent: sampled}))
	assert.Equal(t, 0.0, sample(sentry.SamplingContext{Span: &sentry.Span{Name: "child"}, Parent: dropped}))
}

func TestHTTPSpanStatus(t *testing.T) {
	tests := []struct {
		status int
		want   sentry.SpanStatus
	}{
		{http.StatusOK, sentry.SpanStatusOK},
		{http.StatusBadRequest, sentry.SpanStatusInvalidArgument},
		{http.StatusRequestEntityTooLarge, sentry.SpanStatusInvalidArgument},
		{http.StatusUnauthorized, sentry.SpanStatusUnauthenticated},
		{http.StatusPaymentRequired, sentry.SpanStatusResourceExhausted},
		{http.StatusTooManyRequests, sentry.SpanStatusResourceExhausted},
		{http.StatusNotFound, sentry.SpanStatusNotFound},
		{499, sentry.SpanStatusCanceled},
		{http.StatusBadGateway, sentry.SpanStatusUnavailable},
		{http.StatusServiceUnavailable, sentry.SpanStatusUnavailable},
		{http.StatusGatewayTimeout, sentry.SpanStatusDeadlineExceeded},
		{http.StatusInternalServerError, sentry.SpanStatusInternalError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPSpanStatus(tt.status), "status %d", tt.status)
	}
}

func TestSpan_NilSafe(t *testing.T) {
	var span *Span
	assert.NotPanics(t, func() {
		span.Tag("k", "v")
		span.SetHTTPStatus(http.StatusOK)
		span.Fail(errors.New("boom"))
		span.End()
	})
}

func TestStartRequest_CarriesHub(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/chat", nil)

	ctx, tx := StartRequest(req)
	defer tx.End()

	assert.NotNil(t, sentry.GetHubFromContext(ctx))
	assert.NotNil(t, sentry.SpanFromContext(ctx))

	child, span := Start(ctx, "chat.open_stream", Attrs{UserID: "u1", Model: "m"})
	defer span.End()
	assert.NotNil(t, sentry.SpanFromContext(child))
}

func TestBreadcrumb_WithoutHubIsNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		Breadcrumb(context.Background(), "stream", "primed", nil)
		CaptureError(context.Background(), nil)
	})
}
