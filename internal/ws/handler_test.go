package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/echoscribe/gateway/internal/pipeline"
)

// scriptedRecognizer finalizes every chunk it is fed with a fixed text.
type scriptedRecognizer struct {
	text string
}

func (r *scriptedRecognizer) Feed(chunk []byte) (pipeline.DecodeResult, error) {
	return pipeline.DecodeResult{Text: r.text, Final: true}, nil
}

func (r *scriptedRecognizer) Reset() error { return nil }
func (r *scriptedRecognizer) Close() error { return nil }

type staticAnalyzer struct{}

func (staticAnalyzer) Analyze(ctx context.Context, text string, mode pipeline.Mode) (pipeline.InsightResult, error) {
	return pipeline.InsightResult{Insights: []string{"an insight"}}, nil
}

type memStore struct{}

func (memStore) SaveTranscription(ctx context.Context, text string, insights, questions []string) (int64, error) {
	return 1, nil
}

func newTestHandler(maxConcurrent int) *Handler {
	return NewHandler(HandlerConfig{
		NewRecognizer: func() (pipeline.Recognizer, error) {
			return &scriptedRecognizer{text: "hello there"}, nil
		},
		Analyzer:      staticAnalyzer{},
		Store:         memStore{},
		FullInterval:  30 * time.Second,
		WordLimit:     500,
		MaxConcurrent: maxConcurrent,
	})
}

func dialTestServer(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendAudio(t *testing.T, conn *websocket.Conn, pcm []byte) {
	t.Helper()
	msg, err := json.Marshal(map[string]string{
		"type": "audio",
		"data": base64.StdEncoding.EncodeToString(pcm),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) pipeline.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev pipeline.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	return ev
}

func TestAudioChunkProducesUpdate(t *testing.T) {
	srv := httptest.NewServer(newTestHandler(4))
	defer srv.Close()

	conn := dialTestServer(t, srv)
	sendAudio(t, conn, []byte{0, 0, 0, 0})

	ev := readEvent(t, conn)
	if ev.Type != "update" {
		t.Fatalf("event type = %q, want update", ev.Type)
	}
	if ev.Text != "hello there" {
		t.Errorf("event text = %q, want %q", ev.Text, "hello there")
	}
	if ev.Insights == nil || len(ev.Insights.Insights) != 1 {
		t.Errorf("event insights = %+v", ev.Insights)
	}
}

func TestMalformedMessagesTolerated(t *testing.T) {
	srv := httptest.NewServer(newTestHandler(4))
	defer srv.Close()

	conn := dialTestServer(t, srv)

	bad := []string{
		"not json at all",
		`{"type": "video", "data": "AAAA"}`,
		`{"type": "audio", "data": "%%%not-base64%%%"}`,
		`{"type": "audio"}`,
	}
	for _, msg := range bad {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			t.Fatalf("write %q: %v", msg, err)
		}
	}

	// The session survives the garbage and still processes real audio.
	sendAudio(t, conn, []byte{0, 0})
	ev := readEvent(t, conn)
	if ev.Type != "update" {
		t.Errorf("event type = %q, want update", ev.Type)
	}
}

func TestCapacityLimitRejectsExtraSessions(t *testing.T) {
	srv := httptest.NewServer(newTestHandler(1))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	first, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("first dial: %v", err)
	}
	defer first.Close()

	second, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		second.Close()
		t.Fatal("second dial succeeded, want rejection at capacity")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("second dial response = %+v, want 503", resp)
	}
}

func TestSlotReleasedAfterDisconnect(t *testing.T) {
	srv := httptest.NewServer(newTestHandler(1))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	first, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("first dial: %v", err)
	}
	first.Close()

	// The slot frees once the server notices the disconnect.
	deadline := time.Now().Add(2 * time.Second)
	for {
		second, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err == nil {
			second.Close()
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("slot never released: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// blockingAnalyzer parks inside Analyze until its context is cancelled.
type blockingAnalyzer struct {
	started   chan struct{}
	cancelled chan struct{}
}

func (a *blockingAnalyzer) Analyze(ctx context.Context, text string, mode pipeline.Mode) (pipeline.InsightResult, error) {
	close(a.started)
	<-ctx.Done()
	close(a.cancelled)
	return pipeline.InsightResult{}, ctx.Err()
}

func TestDisconnectCancelsInFlightAnalysis(t *testing.T) {
	analyzer := &blockingAnalyzer{
		started:   make(chan struct{}),
		cancelled: make(chan struct{}),
	}
	srv := httptest.NewServer(NewHandler(HandlerConfig{
		NewRecognizer: func() (pipeline.Recognizer, error) {
			return &scriptedRecognizer{text: "hello there"}, nil
		},
		Analyzer:      analyzer,
		Store:         memStore{},
		FullInterval:  30 * time.Second,
		WordLimit:     500,
		MaxConcurrent: 4,
	}))
	defer srv.Close()

	conn := dialTestServer(t, srv)
	sendAudio(t, conn, []byte{0, 0})

	select {
	case <-analyzer.started:
	case <-time.After(2 * time.Second):
		t.Fatal("analysis never started")
	}

	conn.Close()

	select {
	case <-analyzer.cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight analysis not cancelled by disconnect")
	}
}

func TestDecodeEnvelope(t *testing.T) {
	chunk, ok := decodeEnvelope([]byte(`{"type": "audio", "data": "AQID"}`))
	if !ok {
		t.Fatal("valid envelope rejected")
	}
	if len(chunk) != 3 || chunk[0] != 1 || chunk[2] != 3 {
		t.Errorf("chunk = %v, want [1 2 3]", chunk)
	}

	for _, raw := range []string{
		"",
		"{}",
		`{"type": "audio"}`,
		`{"type": "other", "data": "AQID"}`,
		`{"type": "audio", "data": "!!!"}`,
	} {
		if _, ok := decodeEnvelope([]byte(raw)); ok {
			t.Errorf("decodeEnvelope(%q) accepted, want rejection", raw)
		}
	}
}
