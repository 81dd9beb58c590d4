package streaming

import "bytes"

type lineState int

const (
	stateAwaitingLine lineState = iota
	stateLineExtracted
	stateRequeued
)

// LineBuffer reassembles newline-terminated lines from arbitrary chunks.
//
// Bytes are buffered undecoded and lines are only converted to strings once
// complete. A newline byte never occurs inside a multi-byte UTF-8 sequence,
// so a character split across chunks is always rejoined before decoding.
//
// A line that could not be used yet can be pushed back with Requeue. The
// buffer then refuses to yield lines until more input is appended, which
// gives the next chunk a chance to complete it.
type LineBuffer struct {
	buf   []byte
	state lineState
}

// Append adds a chunk of raw bytes.
func (b *LineBuffer) Append(p []byte) {
	b.buf = append(b.buf, p...)
	if b.state == stateRequeued {
		b.state = stateAwaitingLine
	}
}

// Next extracts the first complete line, without its terminator and one
// trailing carriage return.
func (b *LineBuffer) Next() (string, bool) {
	if b.state == stateRequeued {
		return "", false
	}
	i := bytes.IndexByte(b.buf, '\n')
	if i < 0 {
		b.state = stateAwaitingLine
		return "", false
	}
	line := string(bytes.TrimSuffix(b.buf[:i], []byte{'\r'}))
	b.buf = b.buf[i+1:]
	b.state = stateLineExtracted
	return line, true
}

// Requeue puts line back in front of the unconsumed input.
func (b *LineBuffer) Requeue(line string) {
	restored := make([]byte, 0, len(line)+1+len(b.buf))
	restored = append(restored, line...)
	restored = append(restored, '\n')
	restored = append(restored, b.buf...)
	b.buf = restored
	b.state = stateRequeued
}

// Drain returns and clears everything still buffered.
func (b *LineBuffer) Drain() string {
	rest := string(b.buf)
	b.buf = nil
	b.state = stateAwaitingLine
	return rest
}

// Len reports the number of buffered bytes.
func (b *LineBuffer) Len() int {
	return len(b.buf)
}
