package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/echoscribe/gateway/internal/pipeline"
	"github.com/echoscribe/gateway/internal/store"
	"github.com/echoscribe/gateway/internal/ws"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg := loadConfig()

	st, err := store.Open(cfg.dbPath)
	if err != nil {
		slog.Error("open store", "path", cfg.dbPath, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	if cfg.groqAPIKey == "" {
		slog.Warn("GROQ_API_KEY not set, insight calls will fail and degrade to empty results")
	}

	analyzer := pipeline.NewGroqAnalyzer(pipeline.GroqConfig{
		APIKey:   cfg.groqAPIKey,
		BaseURL:  cfg.groqAPIURL,
		Model:    cfg.groqModel,
		Timeout:  cfg.insightTimeout,
		PoolSize: cfg.insightPoolSize,
	})

	wsHandler := ws.NewHandler(ws.HandlerConfig{
		NewRecognizer: func() (pipeline.Recognizer, error) {
			return pipeline.DialVosk(cfg.voskServerURL, cfg.sampleRate)
		},
		Analyzer:      analyzer,
		Store:         st,
		FullInterval:  cfg.fullAnalysisInterval,
		WordLimit:     cfg.contextWordLimit,
		MaxConcurrent: cfg.maxConcurrentSessions,
	})

	mux := http.NewServeMux()
	registerRoutes(mux, deps{store: st, wsHandler: wsHandler})

	addr := ":" + cfg.port
	srv := &http.Server{Addr: addr, Handler: withCORS(mux)}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	slog.Info("gateway starting", "addr", addr, "vosk", cfg.voskServerURL, "model", cfg.groqModel, "max_concurrent", cfg.maxConcurrentSessions)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}

	slog.Info("gateway stopped")
}
