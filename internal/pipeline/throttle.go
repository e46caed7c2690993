package pipeline

import (
	"strings"
	"time"
)

// Mode classifies an insight analysis request.
type Mode int

const (
	// ModeSkip means no analysis call is made (empty transcript).
	ModeSkip Mode = iota
	// ModeIncremental is the frequent, narrow-context analysis.
	ModeIncremental
	// ModeFull is the less-frequent, broader-context analysis.
	ModeFull
)

func (m Mode) String() string {
	switch m {
	case ModeIncremental:
		return "incremental"
	case ModeFull:
		return "full"
	default:
		return "skip"
	}
}

// Throttler paces full insight analyses for one session. State is owned by
// the session pipeline; never shared across sessions.
//
// lastFullAt is advanced via MarkFull only after a full analysis call
// succeeds, so a failed full analysis is retried on the next finalized
// segment instead of waiting out the interval.
type Throttler struct {
	lastFullAt      time.Time
	minFullInterval time.Duration
	wordLimit       int
	now             func() time.Time
}

// NewThrottler creates a throttler with lastFullAt initialized to now, so a
// fresh session starts with incremental analyses.
func NewThrottler(minFullInterval time.Duration, wordLimit int) *Throttler {
	t := &Throttler{
		minFullInterval: minFullInterval,
		wordLimit:       wordLimit,
		now:             time.Now,
	}
	t.lastFullAt = t.now()
	return t
}

// Decide classifies the next analysis for the full accumulated transcript and
// returns the excerpt to analyze: the last wordLimit words, bounding upstream
// cost regardless of session length.
func (t *Throttler) Decide(text string) (Mode, string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ModeSkip, ""
	}
	text = lastWords(text, t.wordLimit)
	if t.now().Sub(t.lastFullAt) > t.minFullInterval {
		return ModeFull, text
	}
	return ModeIncremental, text
}

// MarkFull records a completed full analysis.
func (t *Throttler) MarkFull() {
	t.lastFullAt = t.now()
}

// lastWords keeps the trailing limit words of text, dropping the head.
func lastWords(text string, limit int) string {
	words := strings.Fields(text)
	if limit <= 0 || len(words) <= limit {
		return text
	}
	return strings.Join(words[len(words)-limit:], " ")
}
