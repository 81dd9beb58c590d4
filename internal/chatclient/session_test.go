package chatclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingServer struct {
	mu       sync.Mutex
	requests []Request
	reply    func(n int, w http.ResponseWriter, r *http.Request)
}

func (c *capturingServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req Request
	_ = json.NewDecoder(r.Body).Decode(&req)
	c.mu.Lock()
	c.requests = append(c.requests, req)
	n := len(c.requests)
	c.mu.Unlock()
	w.Header().Set("Content-Type", "text/event-stream")
	c.reply(n, w, r)
}

func (c *capturingServer) request(i int) Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requests[i]
}

func TestSession_CompletedTurnsBuildHistory(t *testing.T) {
	cs := &capturingServer{reply: func(n int, w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, metadataLine+deltaLine("answer <!-- memory:MEM-p1 -->")+"data: [DONE]\n\n")
	}}
	srv := httptest.NewServer(cs)
	defer srv.Close()

	s := NewSession(New(srv.URL, "", srv.Client()))

	first := s.Send(context.Background(), "first question", Callbacks{})
	require.NoError(t, first.Wait())
	assert.Equal(t, "answer", first.Message.DisplayText())
	assert.Equal(t, []string{"p1"}, first.Message.ReferencedIDs())
	assert.True(t, first.Message.Finished())

	second := s.Send(context.Background(), "second question", Callbacks{})
	require.NoError(t, second.Wait())

	assert.Empty(t, cs.request(0).ConversationHistory)
	assert.Equal(t, []HistoryMessage{
		{Role: "user", Content: "first question"},
		{Role: "assistant", Content: "answer <!-- memory:MEM-p1 -->"},
	}, cs.request(1).ConversationHistory)
	assert.Len(t, s.History(), 4)
}

func TestSession_SendCancelsActiveTurn(t *testing.T) {
	started := make(chan struct{}, 1)
	cs := &capturingServer{reply: func(n int, w http.ResponseWriter, r *http.Request) {
		if n == 1 {
			_, _ = io.WriteString(w, deltaLine("partial"))
			w.(http.Flusher).Flush()
			started <- struct{}{}
			<-r.Context().Done()
			return
		}
		_, _ = io.WriteString(w, deltaLine("fresh")+"data: [DONE]\n\n")
	}}
	srv := httptest.NewServer(cs)
	defer srv.Close()

	s := NewSession(New(srv.URL, "", srv.Client()))
	var errCalls int
	first := s.Send(context.Background(), "slow", Callbacks{OnError: func(*Error) { errCalls++ }})

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("first turn never started")
	}
	require.Eventually(t, func() bool { return first.Message.RawText() == "partial" }, 5*time.Second, 10*time.Millisecond)

	second := s.Send(context.Background(), "fast", Callbacks{})

	assert.True(t, IsCancelled(first.Wait()))
	assert.Zero(t, errCalls)
	assert.Equal(t, "partial", first.Message.DisplayText())
	assert.False(t, first.Message.Finished())

	require.NoError(t, second.Wait())
	assert.Equal(t, "fresh", second.Message.DisplayText())
	assert.Empty(t, cs.request(1).ConversationHistory)
	assert.Equal(t, []HistoryMessage{
		{Role: "user", Content: "fast"},
		{Role: "assistant", Content: "fresh"},
	}, s.History())
}

func TestSession_FailedTurnIsNotRecorded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":"Rate limit exceeded. Please wait a moment and try again."}`)
	}))
	defer srv.Close()

	s := NewSession(New(srv.URL, "", srv.Client()))
	var got *Error
	turn := s.Send(context.Background(), "hi", Callbacks{OnError: func(err *Error) { got = err }})

	require.Error(t, turn.Wait())
	require.NotNil(t, got)
	assert.Equal(t, http.StatusTooManyRequests, got.Status)
	assert.Empty(t, s.History())
}

func TestSession_RequestHistoryFitsServerLimits(t *testing.T) {
	s := NewSession(New("http://chat.invalid", "", nil))
	for i := 0; i < 30; i++ {
		s.record("question", strings.Repeat("é", MaxContentRunes+5))
	}

	h := s.requestHistory()
	require.Len(t, h, MaxHistoryMessages)
	assert.Equal(t, "user", h[0].Role)
	assert.Equal(t, MaxContentRunes, len([]rune(h[1].Content)))
	assert.Len(t, s.History(), 60)
}

func TestSession_Reset(t *testing.T) {
	s := NewSession(New("http://chat.invalid", "", nil))
	s.record("q", "a")
	s.Reset()
	assert.Empty(t, s.History())
}
