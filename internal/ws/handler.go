package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/echoscribe/gateway/internal/metrics"
	"github.com/echoscribe/gateway/internal/pipeline"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16384,
	WriteBufferSize: 16384,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// RecognizerFactory dials a fresh recognizer for one session.
type RecognizerFactory func() (pipeline.Recognizer, error)

// HandlerConfig holds the shared backends for all sessions.
type HandlerConfig struct {
	NewRecognizer RecognizerFactory
	Analyzer      pipeline.Analyzer
	Store         pipeline.Store
	FullInterval  time.Duration
	WordLimit     int
	MaxConcurrent int
}

// Handler manages WebSocket transcription sessions with admission control.
type Handler struct {
	cfg HandlerConfig
	sem chan struct{}
}

// NewHandler creates a WebSocket handler with shared backends and a
// concurrency limit.
func NewHandler(cfg HandlerConfig) *Handler {
	maxConc := cfg.MaxConcurrent
	if maxConc <= 0 {
		maxConc = 100
	}
	return &Handler{
		cfg: cfg,
		sem: make(chan struct{}, maxConc),
	}
}

// audioEnvelope is the inbound message shape. Anything else is ignored.
type audioEnvelope struct {
	Type string `json:"type"`
	Data string `json:"data"` // base64 PCM16LE mono
}

// ServeHTTP upgrades the connection and runs the session.
// Returns 503 at max concurrent session capacity.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case h.sem <- struct{}{}:
		defer func() { <-h.sem }()
	default:
		http.Error(w, "at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	metrics.SessionsActive.Inc()
	metrics.SessionsTotal.Inc()
	defer metrics.SessionsActive.Dec()

	h.runSession(conn)
}

func (h *Handler) runSession(conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessionID := uuid.NewString()

	rec, err := h.cfg.NewRecognizer()
	if err != nil {
		slog.Error("recognizer dial failed", "session_id", sessionID, "error", err)
		return
	}

	pipe := pipeline.New(pipeline.Config{
		Recognizer:   rec,
		Analyzer:     h.cfg.Analyzer,
		Store:        h.cfg.Store,
		SessionID:    sessionID,
		FullInterval: h.cfg.FullInterval,
		WordLimit:    h.cfg.WordLimit,
	})
	defer pipe.Close()

	slog.Info("session started", "session_id", sessionID)

	sendEvent := newEventSender(conn)
	processMessages(ctx, cancel, conn, pipe, sessionID, sendEvent)

	slog.Info("session ended", "session_id", sessionID)
}

// processMessages consumes inbound frames until the client disconnects.
// Reads happen on a separate goroutine so a disconnect cancels the session
// context even while a chunk is still in the pipeline; the unbuffered channel
// keeps chunk processing strictly sequential. A malformed message is dropped
// and the loop continues; a single bad frame never closes the session.
func processMessages(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, pipe *pipeline.Pipeline, sessionID string, sendEvent pipeline.EventCallback) {
	frames := make(chan []byte)
	go func() {
		defer cancel()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				slog.Info("connection closed", "session_id", sessionID, "error", err)
				return
			}
			select {
			case frames <- data:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		var data []byte
		select {
		case data = <-frames:
		case <-ctx.Done():
			return
		}

		chunk, ok := decodeEnvelope(data)
		if !ok {
			metrics.MalformedMessages.Inc()
			slog.Warn("ignoring malformed message", "session_id", sessionID)
			continue
		}

		if err := pipe.ProcessChunk(ctx, chunk, sendEvent); err != nil {
			slog.Error("process chunk", "session_id", sessionID, "error", err)
			sendEvent(pipeline.Event{Type: "error", Message: err.Error()})
		}
	}
}

// decodeEnvelope extracts the PCM payload from an inbound audio message.
func decodeEnvelope(data []byte) ([]byte, bool) {
	var env audioEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, false
	}
	if env.Type != "audio" || env.Data == "" {
		return nil, false
	}
	chunk, err := base64.StdEncoding.DecodeString(env.Data)
	if err != nil {
		return nil, false
	}
	return chunk, true
}

func newEventSender(conn *websocket.Conn) pipeline.EventCallback {
	var mu sync.Mutex
	return func(ev pipeline.Event) {
		mu.Lock()
		defer mu.Unlock()

		jsonBytes, err := json.Marshal(ev)
		if err != nil {
			return
		}
		if err = conn.WriteMessage(websocket.TextMessage, jsonBytes); err != nil {
			slog.Error("write event", "error", err)
		}
	}
}
