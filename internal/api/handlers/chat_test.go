package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloo-solutions/signmaker/internal/api/middleware"
	"github.com/cloo-solutions/signmaker/internal/domain"
	"github.com/cloo-solutions/signmaker/internal/metrics"
	"github.com/cloo-solutions/signmaker/internal/provider"
	"github.com/cloo-solutions/signmaker/internal/service"
	"github.com/cloo-solutions/signmaker/internal/streaming"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const providerStream = "data: {\"choices\":[{\"delta\":{\"content\":\"Use 5in depth.\"}}]}\n\n" +
	"data: {\"choices\":[{\"delta\":{\"content\":\"<!-- memory:MEM-p1 -->\"}}]}\n\n" +
	"data: [DONE]\n\n"

type MockChatService struct {
	mock.Mock
}

func (m *MockChatService) Open(ctx context.Context, input *service.ChatInput, token string) (*service.ChatStream, error) {
	args := m.Called(ctx, input, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ChatStream), args.Error(1)
}

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func newChatStream(body io.ReadCloser, records ...streaming.MemoryRecord) *service.ChatStream {
	if records == nil {
		records = []streaming.MemoryRecord{}
	}
	return &service.ChatStream{
		Upstream: body,
		Records:  records,
		Bundle:   &service.ContextBundle{UserID: "user-1"},
	}
}

func chatRequest(body string, token string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func serveChat(handler *ChatHandler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	middleware.OptionalBearer(http.HandlerFunc(handler.Stream)).ServeHTTP(w, req)
	return w
}

func TestChatHandler_Stream_WithMemories(t *testing.T) {
	mockSvc := new(MockChatService)
	handler := NewChatHandler(mockSvc, metrics.NewStreamMetrics(), zap.NewNop())

	upstream := &closeTracker{Reader: strings.NewReader(providerStream)}
	record := streaming.MemoryRecord{
		ID: "p1", Content: "Always use 5in depth", MemoryType: "preference",
		Confidence: "strict", Tags: []string{}, Scope: "personal",
	}
	mockSvc.On("Open", mock.Anything, mock.MatchedBy(func(in *service.ChatInput) bool {
		return in.Message == "What depth for channel letters?"
	}), "smk_token").Return(newChatStream(upstream, record), nil)

	w := serveChat(handler, chatRequest(`{"message":"What depth for channel letters?","conversationHistory":[]}`, "smk_token"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	assert.Equal(t, "no", w.Header().Get("X-Accel-Buffering"))
	assert.True(t, w.Flushed)

	body := w.Body.String()
	metadata := `data: {"type":"memory_context","memories":[{"id":"p1","content":"Always use 5in depth","memory_type":"preference","confidence":"strict","tags":[],"scope":"personal"}]}` + "\n\n"
	assert.True(t, strings.HasPrefix(body, metadata), body)
	assert.Equal(t, providerStream, strings.TrimPrefix(body, metadata))
	assert.True(t, upstream.closed)
	mockSvc.AssertExpectations(t)
}

func TestChatHandler_Stream_Anonymous(t *testing.T) {
	mockSvc := new(MockChatService)
	handler := NewChatHandler(mockSvc, nil, nil)

	mockSvc.On("Open", mock.Anything, mock.Anything, "").
		Return(newChatStream(io.NopCloser(strings.NewReader(providerStream))), nil)

	w := serveChat(handler, chatRequest(`{"message":"hello"}`, ""))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, providerStream, w.Body.String())
	assert.NotContains(t, w.Body.String(), "memory_context")
}

func TestChatHandler_Stream_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"invalid json", `{"message":`, "Invalid request body"},
		{"empty message", `{"message":"   "}`, "Message cannot be empty"},
		{"too long", `{"message":"` + strings.Repeat("a", 10001) + `"}`, "Message too long (max 10000 characters)"},
		{"bad role", `{"message":"hi","conversationHistory":[{"role":"system","content":"x"}]}`, "Invalid message role in history"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := new(MockChatService)
			handler := NewChatHandler(mockSvc, nil, nil)

			w := serveChat(handler, chatRequest(tt.body, ""))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, `{"error":"`+tt.want+`"}`, w.Body.String())
			mockSvc.AssertNotCalled(t, "Open")
		})
	}
}

func TestChatHandler_Stream_BodyTooLarge(t *testing.T) {
	mockSvc := new(MockChatService)
	handler := NewChatHandler(mockSvc, nil, nil)

	req := chatRequest(`{"message":"`+strings.Repeat("a", 100)+`"}`, "")
	w := httptest.NewRecorder()
	req.Body = http.MaxBytesReader(w, req.Body, 16)

	handler.Stream(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	mockSvc.AssertNotCalled(t, "Open")
}

func TestChatHandler_Stream_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"rate limited", domain.NewDomainErrorWithCause(domain.ErrCodeRateLimited, domain.ErrUpstreamRateLimited.Message, &provider.UpstreamError{Kind: provider.KindRateLimited, Status: 429}),
			http.StatusTooManyRequests, `{"error":"Rate limit exceeded. Please wait a moment and try again."}`},
		{"quota", domain.NewDomainErrorWithCause(domain.ErrCodeQuotaExhausted, domain.ErrUpstreamQuota.Message, &provider.UpstreamError{Kind: provider.KindQuotaExhausted, Status: 402}),
			http.StatusPaymentRequired, `{"error":"AI credits exhausted. Please add credits to continue."}`},
		{"unavailable", domain.NewDomainErrorWithCause(domain.ErrCodeUpstream, domain.ErrUpstreamUnavailable.Message, errors.New("bad gateway: secret")),
			http.StatusInternalServerError, `{"error":"AI service temporarily unavailable."}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := new(MockChatService)
			handler := NewChatHandler(mockSvc, nil, nil)
			mockSvc.On("Open", mock.Anything, mock.Anything, "").Return(nil, tt.err)

			w := serveChat(handler, chatRequest(`{"message":"hi"}`, ""))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestChatHandler_Stream_EmptyUpstream(t *testing.T) {
	mockSvc := new(MockChatService)
	handler := NewChatHandler(mockSvc, nil, nil)

	upstream := &closeTracker{Reader: strings.NewReader("")}
	mockSvc.On("Open", mock.Anything, mock.Anything, "").Return(newChatStream(upstream), nil)

	w := serveChat(handler, chatRequest(`{"message":"hi"}`, ""))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"AI service temporarily unavailable."}`, w.Body.String())
	assert.True(t, upstream.closed)
}

func TestChatHandler_Stream_ClientGone(t *testing.T) {
	mockSvc := new(MockChatService)
	handler := NewChatHandler(mockSvc, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mockSvc.On("Open", mock.Anything, mock.Anything, "").Return(nil, context.Canceled)

	req := chatRequest(`{"message":"hi"}`, "").WithContext(ctx)
	w := serveChat(handler, req)

	assert.Empty(t, w.Body.String())
}

func TestChatHandler_Stream_RecordsUser(t *testing.T) {
	mockSvc := new(MockChatService)
	handler := NewChatHandler(mockSvc, nil, nil)
	mockSvc.On("Open", mock.Anything, mock.Anything, "smk_x").
		Return(newChatStream(io.NopCloser(strings.NewReader(providerStream))), nil)

	var userID string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.Stream(w, r)
		userID = middleware.GetUserID(r.Context())
	})
	w := httptest.NewRecorder()
	middleware.OptionalBearer(inner).ServeHTTP(w, chatRequest(`{"message":"hi"}`, "smk_x"))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", userID)
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

func TestHealthHandler(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewHealthHandler(fakePinger{}).Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	})

	t.Run("store down", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewHealthHandler(fakePinger{err: errors.New("down")}).Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("no store", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewHealthHandler(nil).Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
