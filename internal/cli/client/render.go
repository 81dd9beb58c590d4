package client

import (
	"fmt"
	"io"
	"strings"

	"github.com/cloo-solutions/signmaker/internal/chatclient"
	"github.com/cloo-solutions/signmaker/internal/refs"
)

const markerOpen = "<!--"

// stablePrefix cuts raw before anything that may still turn into a
// reference marker once more text arrives.
func stablePrefix(raw string) string {
	if i := strings.LastIndex(raw, markerOpen); i >= 0 && !strings.Contains(raw[i:], "-->") {
		return raw[:i]
	}
	for n := len(markerOpen) - 1; n > 0; n-- {
		if strings.HasSuffix(raw, markerOpen[:n]) {
			return raw[:len(raw)-n]
		}
	}
	return raw
}

// renderer writes the display text of a streaming message incrementally,
// never showing reference markers.
type renderer struct {
	out     io.Writer
	printed string
}

func (r *renderer) update(raw string) {
	r.emit(refs.StripMarkers(stablePrefix(raw)))
}

func (r *renderer) finish(raw string) {
	final := refs.StripMarkers(raw)
	if !strings.HasPrefix(final, r.printed) {
		fmt.Fprintf(r.out, "\n%s", final)
		r.printed = final
		return
	}
	r.emit(final)
}

func (r *renderer) emit(display string) {
	if len(display) <= len(r.printed) || !strings.HasPrefix(display, r.printed) {
		return
	}
	fmt.Fprint(r.out, display[len(r.printed):])
	r.printed = display
}

// writeIndicator prints the memory summary under an answer.
func writeIndicator(out io.Writer, ind chatclient.Indicator, verbose bool) {
	if ind.Empty() {
		return
	}
	fmt.Fprintf(out, "\n[%s]\n", ind.Label)
	if !verbose {
		return
	}
	for _, r := range ind.Records {
		detail := r.MemoryType
		if r.Confidence != "" {
			detail += ", " + r.Confidence
		}
		fmt.Fprintf(out, "  - [MEM-%s] %s (%s): %s\n", r.ID, r.Scope, detail, r.Content)
	}
}
