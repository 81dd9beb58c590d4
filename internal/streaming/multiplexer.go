package streaming

import (
	"context"
	"errors"
	"fmt"
	"io"
)

const relayBufferSize = 32 * 1024

// ErrEmptyUpstream is returned by Prime when the provider closed the stream
// without sending a single byte.
var ErrEmptyUpstream = errors.New("upstream stream ended before any data")

// UpstreamReadError wraps a provider read failure that happened before any
// byte was received.
type UpstreamReadError struct {
	Err error
}

func (e *UpstreamReadError) Error() string {
	return fmt.Sprintf("upstream read failed: %v", e.Err)
}

func (e *UpstreamReadError) Unwrap() error {
	return e.Err
}

type flusher interface {
	Flush()
}

// Multiplexer relays a provider byte stream, preceded by at most one
// synthetic memory_context event.
type Multiplexer struct {
	upstream io.ReadCloser
	records  []MemoryRecord
	first    []byte
	primed   bool
	eof      bool
}

// NewMultiplexer creates a Multiplexer. An empty records list means no
// metadata event is written.
func NewMultiplexer(upstream io.ReadCloser, records []MemoryRecord) *Multiplexer {
	return &Multiplexer{upstream: upstream, records: records}
}

// Prime waits for the first provider bytes. It lets the caller report an
// upstream that fails before producing anything as an error response
// instead of an empty stream. On error the upstream is closed.
func (m *Multiplexer) Prime(ctx context.Context) error {
	if m.primed {
		return nil
	}
	stop := context.AfterFunc(ctx, func() { _ = m.upstream.Close() })
	defer stop()

	buf := make([]byte, relayBufferSize)
	for {
		n, err := m.upstream.Read(buf)
		if n > 0 {
			m.first = append(m.first[:0], buf[:n]...)
			m.primed = true
			m.eof = errors.Is(err, io.EOF)
			return nil
		}
		if err == nil {
			continue
		}
		_ = m.upstream.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, io.EOF) {
			return ErrEmptyUpstream
		}
		return &UpstreamReadError{Err: err}
	}
}

// Relay writes the metadata event, then every provider byte in order, to w.
// If w implements Flush it is flushed after each write. Relay stops when the
// provider stream ends, when ctx is cancelled (the downstream went away) or
// when a write fails; the upstream is always closed on return. It returns
// the number of provider bytes relayed.
func (m *Multiplexer) Relay(ctx context.Context, w io.Writer) (int64, error) {
	defer m.upstream.Close()
	stop := context.AfterFunc(ctx, func() { _ = m.upstream.Close() })
	defer stop()

	f, _ := w.(flusher)
	write := func(p []byte) error {
		if _, err := w.Write(p); err != nil {
			return err
		}
		if f != nil {
			f.Flush()
		}
		return nil
	}

	if len(m.records) > 0 {
		event, err := EncodeMetadata(m.records)
		if err != nil {
			return 0, err
		}
		if err := write(event); err != nil {
			return 0, fmt.Errorf("failed to write metadata event: %w", err)
		}
	}

	var relayed int64
	if m.primed {
		if err := write(m.first); err != nil {
			return 0, fmt.Errorf("failed to relay upstream bytes: %w", err)
		}
		relayed += int64(len(m.first))
		m.first = nil
		if m.eof {
			return relayed, nil
		}
	}

	buf := make([]byte, relayBufferSize)
	for {
		n, err := m.upstream.Read(buf)
		if n > 0 {
			if werr := write(buf[:n]); werr != nil {
				return relayed, fmt.Errorf("failed to relay upstream bytes: %w", werr)
			}
			relayed += int64(n)
		}
		if errors.Is(err, io.EOF) {
			return relayed, nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return relayed, ctxErr
			}
			return relayed, fmt.Errorf("upstream read failed: %w", err)
		}
	}
}
