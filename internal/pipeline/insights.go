package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
)

// maxItems caps insights and questions per result regardless of what the
// model returns.
const maxItems = 3

// InsightResult holds AI-generated insights and follow-up questions for a
// transcript excerpt. Empty slices are a valid "no insight available" result.
type InsightResult struct {
	Insights  []string `json:"insights"`
	Questions []string `json:"questions"`
}

func (r InsightResult) clamp(n int) InsightResult {
	if len(r.Insights) > n {
		r.Insights = r.Insights[:n]
	}
	if len(r.Questions) > n {
		r.Questions = r.Questions[:n]
	}
	return r
}

// Analyzer produces insights for a transcript excerpt. Errors mean "could not
// analyze"; the pipeline degrades them to an empty result and never lets them
// block the transcription path.
type Analyzer interface {
	Analyze(ctx context.Context, text string, mode Mode) (InsightResult, error)
}

const insightSystemPrompt = "You are a real-time meeting assistant that provides quick, relevant insights and questions. Be concise and focus on actionable information."

const fullPromptTemplate = `As a real-time meeting assistant, analyze this transcript and provide key insights and follow-up questions. Focus on actionable points and important decisions.

Context: This is a live meeting transcript.
Transcript: %s

Requirements:
1. Provide 2-3 CONCISE key insights (max 15 words each)
2. Suggest 2-3 relevant follow-up questions
3. Focus on the most recent context while maintaining overall meeting coherence

Format response as JSON:
{
    "insights": ["insight1", "insight2", ...],
    "questions": ["question1", "question2", ...]
}`

const incrementalPromptTemplate = `As a real-time meeting assistant, provide quick insights on this new segment of conversation.
Focus only on new, important information.

New segment: %s

Requirements:
1. 1-2 VERY CONCISE insights about new information (max 10 words each)
2. 1 relevant follow-up question
3. Ignore redundant or filler content

Format response as JSON:
{
    "insights": ["insight1", "insight2"],
    "questions": ["question1"]
}`

func insightPrompt(text string, mode Mode) string {
	if mode == ModeFull {
		return fmt.Sprintf(fullPromptTemplate, text)
	}
	return fmt.Sprintf(incrementalPromptTemplate, text)
}

// GroqConfig configures the Groq-backed analyzer.
type GroqConfig struct {
	APIKey   string
	BaseURL  string // OpenAI-compatible base, e.g. https://api.groq.com/openai/v1
	Model    string
	Timeout  time.Duration // request budget; the pipeline blocks on this call
	PoolSize int
}

// GroqAnalyzer calls Groq's OpenAI-compatible chat completions endpoint.
// Safe for concurrent use by many sessions.
type GroqAnalyzer struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

// NewGroqAnalyzer creates an analyzer with a pooled HTTP transport. Retries
// are disabled: the per-request budget is small and a failed call is retried
// naturally on the next finalized segment.
func NewGroqAnalyzer(cfg GroqConfig) *GroqAnalyzer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 50
	}
	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        poolSize,
			MaxIdleConnsPerHost: poolSize,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		},
	}
	return &GroqAnalyzer{
		client: openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")+"/"),
			option.WithHTTPClient(httpClient),
			option.WithMaxRetries(0),
		),
		model:   cfg.Model,
		timeout: timeout,
	}
}

// Analyze requests insights for the excerpt under the configured timeout.
// The result is clamped to at most 3 insights and 3 questions.
func (g *GroqAnalyzer) Analyze(ctx context.Context, text string, mode Mode) (InsightResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	completion, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(insightSystemPrompt),
			openai.UserMessage(insightPrompt(text, mode)),
		},
		Temperature: openai.Float(0.3),
		MaxTokens:   openai.Int(150),
		TopP:        openai.Float(0.9),
	})
	if err != nil {
		return InsightResult{}, fmt.Errorf("insight completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return InsightResult{}, fmt.Errorf("insight completion: no choices")
	}

	var parsed InsightResult
	if err := json.Unmarshal([]byte(jsonBody(completion.Choices[0].Message.Content)), &parsed); err != nil {
		return InsightResult{}, fmt.Errorf("parse insight response: %w", err)
	}
	return parsed.clamp(maxItems), nil
}

// jsonBody strips any prose or code fencing the model wrapped around the
// JSON object.
func jsonBody(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		return content[start : end+1]
	}
	return content
}
