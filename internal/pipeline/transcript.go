package pipeline

import "strings"

// Transcript accumulates finalized segments for one session. Append-only:
// previously appended text is never reordered or removed.
type Transcript struct {
	text string
}

// Append adds a finalized segment, joined with a single space. Empty or
// whitespace-only segments are no-ops. Reports whether the transcript changed.
func (t *Transcript) Append(segment string) bool {
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return false
	}
	if t.text == "" {
		t.text = segment
		return true
	}
	t.text += " " + segment
	return true
}

// Current returns the full accumulated transcript.
func (t *Transcript) Current() string {
	return t.text
}

// WordCount returns the number of words accumulated so far.
func (t *Transcript) WordCount() int {
	return len(strings.Fields(t.text))
}
