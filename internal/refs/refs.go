// Package refs finds inline memory reference markers in assistant text.
//
// A marker has the form <!-- memory:MEM-<id> --> and is invisible when the
// text is rendered as HTML/markdown. It ties a span of the answer to the
// memory record that influenced it.
package refs

import (
	"regexp"
	"strings"
)

const markerOpen = "<!--"

var markerPattern = regexp.MustCompile(`<!--\s*memory:MEM-([A-Za-z0-9_-]+)\s*-->`)

// Extract returns every referenced id in order of appearance. Duplicates are kept.
func Extract(text string) []string {
	matches := markerPattern.FindAllStringSubmatch(text, -1)
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m[1])
	}
	return ids
}

// Unique de-duplicates ids, keeping the first occurrence of each.
func Unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Referenced returns the distinct ids cited in text, in order of first appearance.
func Referenced(text string) []string {
	return Unique(Extract(text))
}

// StripMarkers removes all markers from text for human display. Horizontal
// whitespace around a removed marker collapses to a single space and the
// result is trimmed.
func StripMarkers(text string) string {
	locs := markerPattern.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return strings.TrimSpace(text)
	}

	out := make([]byte, 0, len(text))
	pos := 0
	for _, loc := range locs {
		start := max(loc[0], pos)
		out = append(out, text[pos:start]...)

		before := len(out)
		for len(out) > 0 && isBlank(out[len(out)-1]) {
			out = out[:len(out)-1]
		}
		gap := len(out) < before

		end := loc[1]
		for end < len(text) && isBlank(text[end]) {
			end++
		}
		if end > loc[1] {
			gap = true
		}

		if gap && len(out) > 0 && end < len(text) {
			out = append(out, ' ')
		}
		pos = end
	}
	out = append(out, text[pos:]...)

	return strings.TrimSpace(string(out))
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t'
}
