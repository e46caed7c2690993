package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
)

// DecodeResult is one recognizer response for a fed chunk. Text may be empty,
// meaning no update this round.
type DecodeResult struct {
	Text  string
	Final bool
}

// Recognizer converts PCM16LE mono audio chunks to text. Implementations hold
// decode state across calls and are owned by exactly one session; Feed must
// not be called after Close.
type Recognizer interface {
	Feed(chunk []byte) (DecodeResult, error)
	Reset() error
	Close() error
}

// VoskRecognizer streams audio to a Vosk server over WebSocket, one
// connection per session. Each binary audio frame is answered with a single
// JSON result frame carrying either a partial or a final decode.
type VoskRecognizer struct {
	serverURL  string
	sampleRate int
	conn       *websocket.Conn
}

// DialVosk connects a fresh recognizer to the Vosk server.
func DialVosk(serverURL string, sampleRate int) (*VoskRecognizer, error) {
	r := &VoskRecognizer{serverURL: serverURL, sampleRate: sampleRate}
	if err := r.dial(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *VoskRecognizer) dial() error {
	url := fmt.Sprintf("%s/ws?sample_rate=%d", r.serverURL, r.sampleRate)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("dial vosk server: %w", err)
	}
	r.conn = conn
	return nil
}

type voskResult struct {
	Text    string `json:"text"`
	Partial string `json:"partial"`
}

// Feed sends one audio chunk and reads the matching result frame. The chunk
// must already be PCM16LE mono at the configured sample rate; no resampling
// or format detection happens here. A dropped server connection is redialed
// once before the error is surfaced, so one drop costs at most one chunk.
func (r *VoskRecognizer) Feed(chunk []byte) (DecodeResult, error) {
	res, err := r.exchange(chunk)
	if err == nil {
		return res, nil
	}
	if rerr := r.Reset(); rerr != nil {
		return DecodeResult{}, err
	}
	return r.exchange(chunk)
}

func (r *VoskRecognizer) exchange(chunk []byte) (DecodeResult, error) {
	if err := r.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
		return DecodeResult{}, fmt.Errorf("send audio: %w", err)
	}
	_, msg, err := r.conn.ReadMessage()
	if err != nil {
		return DecodeResult{}, fmt.Errorf("read result: %w", err)
	}

	var res voskResult
	if err := json.Unmarshal(msg, &res); err != nil {
		// Undecodable result frame: swallow as an empty final rather than
		// failing the session.
		return DecodeResult{Final: true}, nil
	}
	if res.Partial != "" {
		return DecodeResult{Text: res.Partial}, nil
	}
	return DecodeResult{Text: res.Text, Final: true}, nil
}

// Reset discards all decode state. The Vosk WS protocol has no in-band reset,
// so the connection is torn down and redialed.
func (r *VoskRecognizer) Reset() error {
	r.conn.Close()
	return r.dial()
}

// Close flushes the server with an EOF marker and releases the connection.
func (r *VoskRecognizer) Close() error {
	// Best effort: the server returns a trailing final after EOF, but the
	// session is over and nobody is reading it.
	r.conn.WriteMessage(websocket.TextMessage, []byte(`{"eof": 1}`))
	return r.conn.Close()
}
