package store

// Transcription is one persisted transcript snapshot. Insights and Questions
// are nil when the snapshot was saved without analysis.
type Transcription struct {
	ID        int64    `json:"id"`
	Timestamp string   `json:"timestamp"`
	Text      string   `json:"transcription_text"`
	Insights  []string `json:"ai_insights"`
	Questions []string `json:"ai_questions"`
}
