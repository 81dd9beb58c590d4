package refs

import "strings"

// Tracker extracts references from text that only ever grows by appending,
// as happens while an answer streams in. Each Update scans from the last
// offset that is known not to hold the start of an unfinished marker, so
// the total work stays linear in the length of the text.
//
// If the text passed to Update is not an extension of the previous one the
// tracker starts over.
type Tracker struct {
	text   string
	offset int
	ids    []string
	seen   map[string]struct{}
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{seen: make(map[string]struct{})}
}

// Update scans any new text and returns the distinct ids found so far.
// The returned slice must not be modified.
func (t *Tracker) Update(text string) []string {
	if !strings.HasPrefix(text, t.text) {
		t.Reset()
	}
	t.text = text

	tail := text[t.offset:]
	locs := markerPattern.FindAllStringSubmatchIndex(tail, -1)
	clean := t.offset
	for _, loc := range locs {
		t.add(tail[loc[2]:loc[3]])
		clean = t.offset + loc[1]
	}

	// Anything after the last complete marker may still become one.
	rest := text[clean:]
	if i := strings.LastIndex(rest, markerOpen); i >= 0 {
		t.offset = clean + i
		return t.ids
	}
	// A marker opening can be split as "<", "<!" or "<!-" at the very end.
	t.offset = clean
	for n := len(markerOpen) - 1; n > 0; n-- {
		if strings.HasSuffix(rest, markerOpen[:n]) {
			t.offset = len(text) - n
			return t.ids
		}
	}
	t.offset = len(text)
	return t.ids
}

// IDs returns the distinct ids found so far.
func (t *Tracker) IDs() []string {
	return t.ids
}

// Reset clears all tracked state.
func (t *Tracker) Reset() {
	t.text = ""
	t.offset = 0
	t.ids = nil
	t.seen = make(map[string]struct{})
}

func (t *Tracker) add(id string) {
	if _, ok := t.seen[id]; ok {
		return
	}
	t.seen[id] = struct{}{}
	t.ids = append(t.ids, id)
}
