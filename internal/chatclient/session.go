package chatclient

import (
	"context"
	"sync"

	"github.com/cloo-solutions/signmaker/internal/streaming"
)

// Limits the server enforces on conversation history.
const (
	MaxHistoryMessages = 50
	MaxContentRunes    = 10000
)

// Turn is one in-flight or finished exchange of a Session.
type Turn struct {
	Message *AccumulatedMessage
	handle  *Handle
}

// Cancel aborts the turn. Text received so far stays in Message.
func (t *Turn) Cancel() {
	t.handle.Cancel()
}

// Wait blocks until the turn has finished.
func (t *Turn) Wait() error {
	return t.handle.Wait()
}

// Done is closed when the turn has finished.
func (t *Turn) Done() <-chan struct{} {
	return t.handle.Done()
}

// Session is one conversation. At most one turn streams at a time.
type Session struct {
	client *Client

	sendMu sync.Mutex
	active *Turn

	mu      sync.Mutex
	history []HistoryMessage
}

// NewSession creates a conversation using client.
func NewSession(client *Client) *Session {
	return &Session{client: client}
}

// History returns a copy of the completed turns.
func (s *Session) History() []HistoryMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]HistoryMessage(nil), s.history...)
}

// Reset forgets the conversation and cancels any active turn.
func (s *Session) Reset() {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	s.stopActive()
	s.mu.Lock()
	s.history = nil
	s.mu.Unlock()
}

// Send cancels any active turn, waits for it to finish and starts a new
// one. Callbacks in cb run after the message has been updated. Only turns
// that complete are added to the history; the assistant side keeps its
// reference markers.
func (s *Session) Send(ctx context.Context, text string, cb Callbacks) *Turn {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	s.stopActive()

	msg := NewAccumulatedMessage()
	req := Request{Message: text, ConversationHistory: s.requestHistory()}
	wrapped := Callbacks{
		OnMetadata: func(records []streaming.MemoryRecord) {
			msg.SetRecords(records)
			if cb.OnMetadata != nil {
				cb.OnMetadata(records)
			}
		},
		OnDelta: func(delta string) {
			msg.AppendDelta(delta)
			if cb.OnDelta != nil {
				cb.OnDelta(delta)
			}
		},
		OnDone: func() {
			msg.Finish()
			s.record(text, msg.RawText())
			if cb.OnDone != nil {
				cb.OnDone()
			}
		},
		OnError: func(err *Error) {
			msg.Finish()
			if cb.OnError != nil {
				cb.OnError(err)
			}
		},
	}

	turn := &Turn{Message: msg, handle: s.client.Start(ctx, req, wrapped)}
	s.active = turn
	return turn
}

func (s *Session) stopActive() {
	if s.active == nil {
		return
	}
	s.active.Cancel()
	_ = s.active.Wait()
	s.active = nil
}

func (s *Session) record(user, assistant string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history,
		HistoryMessage{Role: "user", Content: user},
		HistoryMessage{Role: "assistant", Content: assistant},
	)
}

// requestHistory returns the newest turns that fit the server limits.
func (s *Session) requestHistory() []HistoryMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.history
	if len(h) > MaxHistoryMessages {
		h = h[len(h)-MaxHistoryMessages:]
	}
	out := make([]HistoryMessage, 0, len(h))
	for _, m := range h {
		if runes := []rune(m.Content); len(runes) > MaxContentRunes {
			m.Content = string(runes[:MaxContentRunes])
		}
		out = append(out, m)
	}
	return out
}
