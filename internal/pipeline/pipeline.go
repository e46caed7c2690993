package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/echoscribe/gateway/internal/metrics"
)

// Store persists accumulated transcript snapshots. Implementations must be
// safe for concurrent use by many sessions.
type Store interface {
	SaveTranscription(ctx context.Context, text string, insights, questions []string) (int64, error)
}

// Config holds the collaborators for one session pipeline. Recognizer,
// transcript, and throttle state are owned exclusively by this session; the
// analyzer and store are process-wide and concurrency-safe.
type Config struct {
	Recognizer   Recognizer
	Analyzer     Analyzer
	Store        Store
	SessionID    string
	FullInterval time.Duration // min spacing between full analyses
	WordLimit    int           // transcript tail sent for analysis
}

// Event is an outbound message pushed to the session's client.
type Event struct {
	Type     string         `json:"type"`
	Text     string         `json:"text,omitempty"`
	Message  string         `json:"message,omitempty"`
	Insights *InsightResult `json:"insights,omitempty"`
}

// EventCallback pushes one event to the client. Best-effort, at-most-once.
type EventCallback func(Event)

// Pipeline orchestrates one session: feed audio to the recognizer, accumulate
// finalized text, generate throttled insights, persist snapshots, and push
// events. Processing is strictly sequential within a session; chunk N+1 is
// not consumed before chunk N's pipeline completes.
type Pipeline struct {
	cfg        Config
	transcript Transcript
	throttle   *Throttler
}

// New creates a pipeline for a single session.
func New(cfg Config) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		throttle: NewThrottler(cfg.FullInterval, cfg.WordLimit),
	}
}

// ProcessChunk runs one PCM16 audio chunk through the full
// feed → accumulate → analyze → persist → push sequence.
//
// Recognizer, analysis, and persistence failures are all non-fatal to the
// session: they degrade (no text this round, empty insights, update without
// insights) and are logged and counted. The returned error is reserved for
// faults the caller should surface without closing the session.
func (p *Pipeline) ProcessChunk(ctx context.Context, chunk []byte, onEvent EventCallback) error {
	metrics.AudioChunks.Inc()

	start := time.Now()
	res, err := p.cfg.Recognizer.Feed(chunk)
	metrics.StageDuration.WithLabelValues("recognize").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Errors.WithLabelValues("recognize", "feed").Inc()
		slog.Warn("recognizer feed failed", "session_id", p.cfg.SessionID, "error", err)
		return nil
	}

	if !res.Final {
		p.pushPartial(res.Text, onEvent)
		return nil
	}

	if !p.transcript.Append(res.Text) {
		return nil
	}
	metrics.Segments.Inc()

	full := p.transcript.Current()
	slog.Info("segment finalized", "session_id", p.cfg.SessionID, "segment", res.Text, "words", p.transcript.WordCount())

	insights := p.analyze(ctx, full)
	p.persist(ctx, full, insights, onEvent)
	return nil
}

// pushPartial pushes an in-progress decode prefixed with the accumulated
// transcript. Single-word and empty partials are suppressed to avoid UI
// flicker.
func (p *Pipeline) pushPartial(text string, onEvent EventCallback) {
	text = strings.TrimSpace(text)
	if len(strings.Fields(text)) < 2 {
		return
	}
	if cur := p.transcript.Current(); cur != "" {
		text = cur + " " + text
	}
	onEvent(Event{Type: "partial", Text: text})
}

// analyze runs the throttled insight call for the full transcript. Returns
// nil when analysis was skipped or failed; the full-analysis window advances
// only on success, so a failed full analysis is retried on the next segment.
func (p *Pipeline) analyze(ctx context.Context, full string) *InsightResult {
	mode, excerpt := p.throttle.Decide(full)
	if mode == ModeSkip {
		return nil
	}
	metrics.InsightRequests.WithLabelValues(mode.String()).Inc()

	start := time.Now()
	result, err := p.cfg.Analyzer.Analyze(ctx, excerpt, mode)
	metrics.StageDuration.WithLabelValues("analyze").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Errors.WithLabelValues("analyze", "request").Inc()
		slog.Warn("insight analysis failed", "session_id", p.cfg.SessionID, "mode", mode.String(), "error", err)
		return nil
	}

	if mode == ModeFull {
		p.throttle.MarkFull()
	}
	return &result
}

// persist saves the snapshot and pushes the update event. On store failure
// the session continues and the client still receives the text, degraded to
// an update without insights.
func (p *Pipeline) persist(ctx context.Context, full string, insights *InsightResult, onEvent EventCallback) {
	var ins, qs []string
	if insights != nil {
		ins, qs = insights.Insights, insights.Questions
	}

	start := time.Now()
	id, err := p.cfg.Store.SaveTranscription(ctx, full, ins, qs)
	metrics.StageDuration.WithLabelValues("persist").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Errors.WithLabelValues("persist", "save").Inc()
		slog.Error("save transcription failed", "session_id", p.cfg.SessionID, "error", err)
		onEvent(Event{Type: "update", Text: full})
		return
	}

	slog.Info("transcription saved", "session_id", p.cfg.SessionID, "record_id", id)
	onEvent(Event{Type: "update", Text: full, Insights: insights})
}

// Transcript returns the accumulated transcript so far.
func (p *Pipeline) Transcript() string {
	return p.transcript.Current()
}

// Close releases the session's recognizer. The last unfinalized partial is
// never persisted.
func (p *Pipeline) Close() error {
	return p.cfg.Recognizer.Close()
}
