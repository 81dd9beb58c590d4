package chatclient

import (
	"fmt"

	"github.com/cloo-solutions/signmaker/internal/streaming"
)

// Indicator describes the memories shown next to an assistant message.
type Indicator struct {
	// Label is empty when there is nothing to show.
	Label string
	// Records are the memories to display.
	Records []streaming.MemoryRecord
	// Referenced is true when the answer cited at least one of the records.
	Referenced bool
}

// Empty reports whether no indicator should be shown.
func (i Indicator) Empty() bool {
	return len(i.Records) == 0
}

// Summarize picks the memories to display. Cited records win; without any
// citation every available record is listed.
func Summarize(records []streaming.MemoryRecord, referencedIDs []string) Indicator {
	if len(records) == 0 {
		return Indicator{}
	}

	cited := make(map[string]struct{}, len(referencedIDs))
	for _, id := range referencedIDs {
		cited[id] = struct{}{}
	}
	var relevant []streaming.MemoryRecord
	for _, r := range records {
		if _, ok := cited[r.ID]; ok {
			relevant = append(relevant, r)
		}
	}

	if len(relevant) > 0 {
		return Indicator{
			Label:      fmt.Sprintf("%d saved %s informed this response", len(relevant), plural(len(relevant))),
			Records:    relevant,
			Referenced: true,
		}
	}
	return Indicator{
		Label:   fmt.Sprintf("%d %s available as context", len(records), plural(len(records))),
		Records: append([]streaming.MemoryRecord(nil), records...),
	}
}

func plural(n int) string {
	if n == 1 {
		return "memory"
	}
	return "memories"
}
