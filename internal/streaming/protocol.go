// Package streaming implements both ends of the chat event stream.
//
// The server side prepends a single memory_context event to the model
// provider's SSE byte stream (Multiplexer). The client side reassembles
// the bytes into lines and dispatches metadata and text deltas (Reader).
package streaming

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloo-solutions/signmaker/internal/domain"
)

const (
	// DataPrefix starts every payload line.
	DataPrefix = "data: "
	// DoneSentinel is the payload of the terminal line.
	DoneSentinel = "[DONE]"
	// MemoryContextType discriminates the metadata event.
	MemoryContextType = "memory_context"
)

// ErrMalformedPayload is returned by DecodePayload when the payload is not
// syntactically complete JSON.
var ErrMalformedPayload = errors.New("malformed event payload")

// MemoryRecord is the wire form of a memory in the metadata event.
type MemoryRecord struct {
	ID         string   `json:"id"`
	Content    string   `json:"content"`
	MemoryType string   `json:"memory_type"`
	Confidence string   `json:"confidence"`
	Tags       []string `json:"tags"`
	Scope      string   `json:"scope"`
}

// MetadataEvent carries the memories that were available to the assistant.
type MetadataEvent struct {
	Type     string         `json:"type"`
	Memories []MemoryRecord `json:"memories"`
}

// deltaChunk is the subset of a provider chat completion chunk we read.
type deltaChunk struct {
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// RecordFromMemory converts a stored memory to its wire form.
func RecordFromMemory(m *domain.Memory) MemoryRecord {
	tags := m.Tags
	if tags == nil {
		tags = []string{}
	}
	return MemoryRecord{
		ID:         m.ID,
		Content:    m.Content,
		MemoryType: m.Type,
		Confidence: string(m.EffectiveConfidence()),
		Tags:       tags,
		Scope:      string(m.Scope),
	}
}

// RecordsFromMemories converts memories to wire records, preserving order.
func RecordsFromMemories(memories []*domain.Memory) []MemoryRecord {
	records := make([]MemoryRecord, 0, len(memories))
	for _, m := range memories {
		records = append(records, RecordFromMemory(m))
	}
	return records
}

// EncodeMetadata renders the metadata event as one SSE data line followed
// by a blank line.
func EncodeMetadata(records []MemoryRecord) ([]byte, error) {
	if records == nil {
		records = []MemoryRecord{}
	}
	payload, err := json.Marshal(MetadataEvent{Type: MemoryContextType, Memories: records})
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata event: %w", err)
	}
	line := make([]byte, 0, len(DataPrefix)+len(payload)+2)
	line = append(line, DataPrefix...)
	line = append(line, payload...)
	line = append(line, '\n', '\n')
	return line, nil
}

// LineKind classifies one logical line of the stream.
type LineKind int

const (
	// LineSkip covers blank lines, comments and non-data fields.
	LineSkip LineKind = iota
	// LineDone is the [DONE] sentinel.
	LineDone
	// LineData carries a JSON payload.
	LineData
)

// ClassifyLine decides what a line is and returns its trimmed payload for data lines.
func ClassifyLine(line string) (LineKind, string) {
	if strings.TrimSpace(line) == "" || strings.HasPrefix(line, ":") {
		return LineSkip, ""
	}
	if !strings.HasPrefix(line, DataPrefix) {
		return LineSkip, ""
	}
	payload := strings.TrimSpace(line[len(DataPrefix):])
	switch payload {
	case "":
		return LineSkip, ""
	case DoneSentinel:
		return LineDone, ""
	}
	return LineData, payload
}

// EventKind tags a decoded payload.
type EventKind int

const (
	// EventIgnored is valid JSON of neither known shape.
	EventIgnored EventKind = iota
	// EventMetadata is a memory_context event.
	EventMetadata
	// EventDelta is a text fragment.
	EventDelta
)

// Event is the decoded form of one data line.
type Event struct {
	Kind     EventKind
	Memories []MemoryRecord
	Delta    string
}

// DecodePayload decodes a data-line payload. It tries the metadata shape
// first, then the delta shape. Only syntactically invalid JSON is an error;
// well-formed JSON of an unknown shape yields EventIgnored.
func DecodePayload(payload string) (Event, error) {
	data := []byte(payload)
	if !json.Valid(data) {
		return Event{}, ErrMalformedPayload
	}

	var meta struct {
		Type     string          `json:"type"`
		Memories json.RawMessage `json:"memories"`
	}
	if err := json.Unmarshal(data, &meta); err == nil && meta.Type == MemoryContextType {
		var records []MemoryRecord
		if len(meta.Memories) > 0 && meta.Memories[0] == '[' && json.Unmarshal(meta.Memories, &records) == nil {
			if records == nil {
				records = []MemoryRecord{}
			}
			return Event{Kind: EventMetadata, Memories: records}, nil
		}
		return Event{Kind: EventIgnored}, nil
	}

	var chunk deltaChunk
	if err := json.Unmarshal(data, &chunk); err != nil || len(chunk.Choices) == 0 {
		return Event{Kind: EventIgnored}, nil
	}
	content := chunk.Choices[0].Delta.Content
	if content == nil || *content == "" {
		return Event{Kind: EventIgnored}, nil
	}
	return Event{Kind: EventDelta, Delta: *content}, nil
}
