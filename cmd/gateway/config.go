package main

import (
	"os"
	"strconv"
	"time"
)

type config struct {
	port                  string
	voskServerURL         string
	sampleRate            int
	groqAPIKey            string
	groqAPIURL            string
	groqModel             string
	insightTimeout        time.Duration
	insightPoolSize       int
	fullAnalysisInterval  time.Duration
	contextWordLimit      int
	dbPath                string
	maxConcurrentSessions int
}

func loadConfig() config {
	return config{
		port:                  envStr("GATEWAY_PORT", "8000"),
		voskServerURL:         envStr("VOSK_SERVER_URL", "ws://localhost:2700"),
		sampleRate:            envInt("SAMPLE_RATE", 16000),
		groqAPIKey:            envStr("GROQ_API_KEY", ""),
		groqAPIURL:            envStr("GROQ_API_URL", "https://api.groq.com/openai/v1"),
		groqModel:             envStr("GROQ_MODEL", "llama-3.3-70b-versatile"),
		insightTimeout:        time.Duration(envInt("INSIGHT_TIMEOUT_MS", 5000)) * time.Millisecond,
		insightPoolSize:       envInt("INSIGHT_POOL_SIZE", 50),
		fullAnalysisInterval:  time.Duration(envInt("FULL_ANALYSIS_INTERVAL_SEC", 30)) * time.Second,
		contextWordLimit:      envInt("CONTEXT_WORD_LIMIT", 500),
		dbPath:                envStr("DB_PATH", "transcriptions.db"),
		maxConcurrentSessions: envInt("MAX_CONCURRENT_SESSIONS", 100),
	}
}

func envStr(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func envInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}
