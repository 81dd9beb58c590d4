package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/cloo-solutions/signmaker/internal/api"
	"github.com/cloo-solutions/signmaker/internal/api/middleware"
	"github.com/cloo-solutions/signmaker/internal/domain"
	"github.com/cloo-solutions/signmaker/internal/metrics"
	"github.com/cloo-solutions/signmaker/internal/service"
	"github.com/cloo-solutions/signmaker/internal/streaming"
	"github.com/cloo-solutions/signmaker/internal/telemetry"
	"go.uber.org/zap"
)

type ChatService interface {
	Open(ctx context.Context, input *service.ChatInput, token string) (*service.ChatStream, error)
}

type ChatHandler struct {
	chat    ChatService
	metrics *metrics.StreamMetrics
	logger  *zap.Logger
}

func NewChatHandler(chat ChatService, m *metrics.StreamMetrics, logger *zap.Logger) *ChatHandler {
	if m == nil {
		m = metrics.NewStreamMetrics()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{chat: chat, metrics: m, logger: logger}
}

// Stream validates the request, opens the provider stream and relays it as
// server-sent events, preceded by the memory_context event when the caller
// has records. Every failure before the first relayed byte is a JSON error.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.metrics.Request(metrics.OutcomeInvalid)
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		api.HandleError(w, service.ErrInvalidRequestBody)
		return
	}

	input, err := service.ParseChatRequest(body)
	if err != nil {
		h.metrics.Request(metrics.OutcomeInvalid)
		api.HandleError(w, err)
		return
	}

	stream, err := h.chat.Open(ctx, input, middleware.GetToken(ctx))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if stream.Bundle != nil {
		middleware.SetUserID(ctx, stream.Bundle.UserID)
	}

	mux := streaming.NewMultiplexer(stream.Upstream, stream.Records)
	if err := mux.Prime(ctx); err != nil {
		h.fail(w, r, domain.NewDomainErrorWithCause(domain.ErrCodeUpstream, domain.ErrUpstreamUnavailable.Message, err))
		return
	}
	h.metrics.FirstByte(time.Since(start))
	h.countRecords(stream.Records)
	telemetry.Breadcrumb(ctx, "stream", "upstream primed", map[string]any{"records": len(stream.Records)})

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	finished := h.metrics.StreamStarted()
	defer finished()

	n, err := mux.Relay(ctx, w)
	h.metrics.Relayed(n)
	telemetry.Breadcrumb(ctx, "stream", "relay finished", map[string]any{"bytes": n})
	switch {
	case err == nil:
		h.metrics.Request(metrics.OutcomeCompleted)
	case ctx.Err() != nil:
		h.metrics.Request(metrics.OutcomeCancelled)
		h.logger.Debug("client disconnected mid-stream",
			zap.String("request_id", middleware.GetRequestID(ctx)),
			zap.Int64("relayed_bytes", n),
		)
	default:
		h.metrics.Request(metrics.OutcomeRelayError)
		h.logger.Warn("stream relay failed",
			zap.String("request_id", middleware.GetRequestID(ctx)),
			zap.Int64("relayed_bytes", n),
			zap.Error(err),
		)
	}
}

func (h *ChatHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		h.metrics.Request(metrics.OutcomeCancelled)
		return
	}

	switch domain.CodeOf(err) {
	case domain.ErrCodeRateLimited:
		h.metrics.Request(metrics.OutcomeRateLimited)
	case domain.ErrCodeQuotaExhausted:
		h.metrics.Request(metrics.OutcomeQuota)
	default:
		h.metrics.Request(metrics.OutcomeUpstreamError)
		telemetry.CaptureError(ctx, err)
	}
	h.logger.Warn("chat request failed",
		zap.String("request_id", middleware.GetRequestID(ctx)),
		zap.Error(err),
	)
	api.HandleError(w, err)
}

func (h *ChatHandler) countRecords(records []streaming.MemoryRecord) {
	var personal, company int
	for _, rec := range records {
		if rec.Scope == string(domain.ScopeCompany) {
			company++
		} else {
			personal++
		}
	}
	h.metrics.ContextRecords(string(domain.ScopePersonal), personal)
	h.metrics.ContextRecords(string(domain.ScopeCompany), company)
}
