package streaming

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

const readBufferSize = 4096

// Handler receives the events of one stream. Any field may be nil.
type Handler struct {
	// OnMetadata is called at most once, with the memories of the first
	// memory_context event.
	OnMetadata func(records []MemoryRecord)
	// OnDelta is called with every non-empty text fragment, in order.
	OnDelta func(text string)
	// OnDone is called once when the stream completed normally.
	OnDone func()
	// OnError is called once when reading failed. OnDone is not called then.
	OnError func(err error)
}

// ReadError reports a failure of the underlying byte stream.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("stream read failed: %v", e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// Reader turns raw chunks into handler callbacks. It is not safe for
// concurrent use; one Reader serves one stream.
type Reader struct {
	lines        LineBuffer
	handler      Handler
	metadataSeen bool
	done         bool
}

// NewReader creates a Reader dispatching to h.
func NewReader(h Handler) *Reader {
	return &Reader{handler: h}
}

// Done reports whether the [DONE] sentinel has been seen.
func (r *Reader) Done() bool {
	return r.done
}

// Feed processes one chunk and reports whether the stream is logically
// complete. Once it returns true further chunks are ignored.
func (r *Reader) Feed(chunk []byte) bool {
	if r.done {
		return true
	}
	r.lines.Append(chunk)

	for {
		line, ok := r.lines.Next()
		if !ok {
			return false
		}

		kind, payload := ClassifyLine(line)
		switch kind {
		case LineSkip:
			continue
		case LineDone:
			r.done = true
			return true
		}

		event, err := DecodePayload(payload)
		if err != nil {
			// The JSON may continue in the next chunk.
			r.lines.Requeue(line)
			return false
		}
		r.dispatch(event)
	}
}

// Flush makes the final pass over buffered content after the byte stream
// ended. Lines that still do not parse are dropped.
func (r *Reader) Flush() {
	if r.done {
		return
	}
	rest := r.lines.Drain()
	if strings.TrimSpace(rest) == "" {
		return
	}

	for _, raw := range strings.Split(rest, "\n") {
		kind, payload := ClassifyLine(strings.TrimSuffix(raw, "\r"))
		switch kind {
		case LineSkip:
			continue
		case LineDone:
			r.done = true
			return
		}

		event, err := DecodePayload(payload)
		if err != nil {
			continue
		}
		r.dispatch(event)
	}
}

func (r *Reader) dispatch(event Event) {
	switch event.Kind {
	case EventMetadata:
		if r.metadataSeen {
			return
		}
		r.metadataSeen = true
		if r.handler.OnMetadata != nil {
			r.handler.OnMetadata(event.Memories)
		}
	case EventDelta:
		if r.handler.OnDelta != nil {
			r.handler.OnDelta(event.Delta)
		}
	}
}

// Consume reads body to completion and dispatches its events to h.
//
// Exactly one of OnDone or OnError fires, unless ctx is cancelled: then
// Consume returns ctx.Err() and no further callbacks fire. body should be
// bound to ctx (for example a response body of a request made with ctx) so
// that cancellation also interrupts a blocked read.
func Consume(ctx context.Context, body io.Reader, h Handler) error {
	guarded := guard(ctx, h)
	r := NewReader(guarded)
	buf := make([]byte, readBufferSize)

	for !r.Done() {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := body.Read(buf)
		if n > 0 {
			r.Feed(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			r.Flush()
			break
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			readErr := &ReadError{Err: err}
			if guarded.OnError != nil {
				guarded.OnError(readErr)
			}
			return readErr
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if guarded.OnDone != nil {
		guarded.OnDone()
	}
	return nil
}

// guard suppresses callbacks once ctx is cancelled.
func guard(ctx context.Context, h Handler) Handler {
	live := func() bool { return ctx.Err() == nil }
	var g Handler
	if h.OnMetadata != nil {
		g.OnMetadata = func(records []MemoryRecord) {
			if live() {
				h.OnMetadata(records)
			}
		}
	}
	if h.OnDelta != nil {
		g.OnDelta = func(text string) {
			if live() {
				h.OnDelta(text)
			}
		}
	}
	if h.OnDone != nil {
		g.OnDone = func() {
			if live() {
				h.OnDone()
			}
		}
	}
	if h.OnError != nil {
		g.OnError = func(err error) {
			if live() {
				h.OnError(err)
			}
		}
	}
	return g
}
