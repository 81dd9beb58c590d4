// Package chatclient talks to the chat endpoint and turns its event stream
// into callbacks, accumulated messages and conversation sessions.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/cloo-solutions/signmaker/internal/streaming"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 * 1024

// HistoryMessage is one prior conversation turn.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the chat request body.
type Request struct {
	Message             string           `json:"message"`
	ConversationHistory []HistoryMessage `json:"conversationHistory"`
}

// Callbacks receive the events of one request. Any field may be nil.
// Exactly one of OnDone or OnError fires unless the request is cancelled,
// in which case neither does.
type Callbacks struct {
	OnMetadata func(records []streaming.MemoryRecord)
	OnDelta    func(text string)
	OnDone     func()
	OnError    func(err *Error)
}

// Client sends chat requests to one endpoint.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// New creates a Client. An empty token sends anonymous requests, which
// get answers without memory context.
func New(endpoint, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{endpoint: endpoint, token: token, httpClient: httpClient}
}

// Endpoint returns the chat URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Handle controls a request started with Start.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Cancel aborts the request. Cancellation is not an error: no callback
// fires afterwards and any text already delivered stays as it is.
func (h *Handle) Cancel() {
	h.cancel()
}

// Done is closed when the request has finished.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the request has finished and returns its result:
// nil, a *Error, or the context error after cancellation.
func (h *Handle) Wait() error {
	<-h.done
	return h.err
}

// Start runs Do in the background and returns its handle.
func (c *Client) Start(ctx context.Context, req Request, cb Callbacks) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		defer cancel()
		h.err = c.Do(ctx, req, cb)
	}()
	return h
}

// Do sends the request and dispatches the streamed answer to cb. It
// returns once the stream is finished.
func (c *Client) Do(ctx context.Context, req Request, cb Callbacks) error {
	if req.ConversationHistory == nil {
		req.ConversationHistory = []HistoryMessage{}
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fail(ctx, cb, &Error{Kind: KindNetwork, Message: MsgNetwork, Err: err})
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fail(ctx, cb, &Error{
			Kind:    KindHTTP,
			Status:  resp.StatusCode,
			Message: errorMessage(resp),
		})
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		return fail(ctx, cb, &Error{Kind: KindNoBody, Status: resp.StatusCode, Message: MsgNoBody})
	}

	var streamErr *Error
	err = streaming.Consume(ctx, resp.Body, streaming.Handler{
		OnMetadata: cb.OnMetadata,
		OnDelta:    cb.OnDelta,
		OnDone:     cb.OnDone,
		OnError: func(err error) {
			streamErr = &Error{Kind: KindStream, Status: resp.StatusCode, Message: MsgNetwork, Err: err}
			if cb.OnError != nil {
				cb.OnError(streamErr)
			}
		},
	})
	if streamErr != nil {
		return streamErr
	}
	return err
}

func fail(ctx context.Context, cb Callbacks, e *Error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if cb.OnError != nil {
		cb.OnError(e)
	}
	return e
}

// errorMessage prefers the server's {"error": "..."} text.
func errorMessage(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return requestFailed(resp.StatusCode)
	}
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &body) != nil || strings.TrimSpace(body.Error) == "" {
		return requestFailed(resp.StatusCode)
	}
	return body.Error
}

// IsCancelled reports whether err is the result of cancelling a request.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}
