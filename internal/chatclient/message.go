package chatclient

import (
	"strings"
	"sync"

	"github.com/cloo-solutions/signmaker/internal/refs"
	"github.com/cloo-solutions/signmaker/internal/streaming"
)

// AccumulatedMessage is the assistant message being built from one stream.
// It is safe for concurrent use, so a UI can read it while deltas arrive.
type AccumulatedMessage struct {
	mu       sync.RWMutex
	text     strings.Builder
	records  []streaming.MemoryRecord
	tracker  *refs.Tracker
	ids      []string
	finished bool
}

// NewAccumulatedMessage creates an empty message.
func NewAccumulatedMessage() *AccumulatedMessage {
	return &AccumulatedMessage{tracker: refs.NewTracker()}
}

// SetRecords stores the memories that were available to the assistant.
func (m *AccumulatedMessage) SetRecords(records []streaming.MemoryRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append([]streaming.MemoryRecord(nil), records...)
}

// AppendDelta adds a text fragment and refreshes the referenced ids.
func (m *AccumulatedMessage) AppendDelta(delta string) {
	if delta == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text.WriteString(delta)
	m.ids = m.tracker.Update(m.text.String())
}

// Finish rescans the complete text once the stream has ended.
func (m *AccumulatedMessage) Finish() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = refs.Referenced(m.text.String())
	m.finished = true
}

// Finished reports whether Finish has been called.
func (m *AccumulatedMessage) Finished() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.finished
}

// RawText returns the text including reference markers.
func (m *AccumulatedMessage) RawText() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.text.String()
}

// DisplayText returns the text with reference markers removed.
func (m *AccumulatedMessage) DisplayText() string {
	return refs.StripMarkers(m.RawText())
}

// Records returns the memories from the metadata event, or nil.
func (m *AccumulatedMessage) Records() []streaming.MemoryRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]streaming.MemoryRecord(nil), m.records...)
}

// ReferencedIDs returns the distinct ids cited so far, in order of first
// appearance.
func (m *AccumulatedMessage) ReferencedIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.ids...)
}

// Indicator summarizes which memories informed the message.
func (m *AccumulatedMessage) Indicator() Indicator {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Summarize(m.records, m.ids)
}
