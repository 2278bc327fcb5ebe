package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/skaldy/rtspeak/internal/config"
	"github.com/skaldy/rtspeak/internal/realtime"
)

// scriptedSource feeds a fixed event sequence into the real assembler so the
// handler under test exercises the full progressive path.
type scriptedSource struct {
	events []realtime.Event
}

func (s *scriptedSource) Next(ctx context.Context) (realtime.Event, error) {
	if err := ctx.Err(); err != nil {
		return realtime.Event{}, err
	}
	if len(s.events) == 0 {
		return realtime.Event{}, io.EOF
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, nil
}

func testConfig() *config.AppConfig {
	return &config.AppConfig{Models: []config.ModelConfig{{
		ID:         "test",
		Name:       "Test Realtime",
		Endpoint:   "https://myresource.openai.azure.com",
		APIKey:     "key",
		Deployment: "gpt-4o-realtime-preview",
		APIVersion: "2024-10-01-preview",
		Voice:      "alloy",
	}}}
}

func newTestUI(t *testing.T, events []realtime.Event) *httptest.Server {
	t.Helper()

	srv := newServer(testConfig())
	srv.run = func(ctx context.Context, cfg config.ModelConfig, req realtime.Request, opts ...realtime.Option) (*realtime.Result, error) {
		return realtime.Assemble(ctx, &scriptedSource{events: events}, opts...)
	}

	e := echo.New()
	srv.register(e)
	ts := httptest.NewServer(e)
	t.Cleanup(ts.Close)
	return ts
}

func dialGenerate(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/generate?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

func TestHandleGenerate_StreamsFrames(t *testing.T) {
	ts := newTestUI(t, []realtime.Event{
		{Kind: realtime.KindTranscriptDelta, Text: "Hel"},
		{Kind: realtime.KindTranscriptDelta, Text: "lo!"},
		{Kind: realtime.KindAudioDelta, Audio: []byte{0x01, 0x02}},
		{Kind: realtime.KindDone},
	})
	conn := dialGenerate(t, ts, "model=test&prompt=Say+hello")

	if f := readFrame(t, conn); f.Type != "transcript.delta" || f.Text != "Hel" {
		t.Fatalf("unexpected first frame: %+v", f)
	}
	if f := readFrame(t, conn); f.Type != "transcript.delta" || f.Text != "lo!" {
		t.Fatalf("unexpected second frame: %+v", f)
	}

	audio := readFrame(t, conn)
	if audio.Type != "audio" {
		t.Fatalf("expected audio frame, got %+v", audio)
	}
	wavBytes, err := base64.StdEncoding.DecodeString(audio.WAV)
	if err != nil {
		t.Fatalf("audio frame not base64: %v", err)
	}
	if len(wavBytes) < 44 || string(wavBytes[:4]) != "RIFF" {
		t.Fatalf("audio frame is not a WAV container")
	}

	done := readFrame(t, conn)
	if done.Type != "done" || done.Transcript != "Hello!" {
		t.Fatalf("unexpected done frame: %+v", done)
	}
}

func TestHandleGenerate_RemoteErrorSurfaced(t *testing.T) {
	ts := newTestUI(t, []realtime.Event{
		{Kind: realtime.KindTranscriptDelta, Text: "Hi"},
		{Kind: realtime.KindError, Message: "rate limited"},
	})
	conn := dialGenerate(t, ts, "model=test&prompt=hello")

	if f := readFrame(t, conn); f.Type != "transcript.delta" {
		t.Fatalf("expected delta frame, got %+v", f)
	}
	f := readFrame(t, conn)
	if f.Type != "error" || f.Kind != "remote" {
		t.Fatalf("expected remote error frame, got %+v", f)
	}
	if !strings.Contains(f.Message, "rate limited") {
		t.Fatalf("expected remote message to be carried, got %q", f.Message)
	}
	if f.Transcript != "Hi" {
		t.Fatalf("expected partial transcript in error frame, got %q", f.Transcript)
	}
}

func TestHandleGenerate_IncompleteStream(t *testing.T) {
	ts := newTestUI(t, []realtime.Event{
		{Kind: realtime.KindTranscriptDelta, Text: "Hi"},
		// No terminal marker: scripted source ends with io.EOF.
	})
	conn := dialGenerate(t, ts, "model=test&prompt=hello")

	if f := readFrame(t, conn); f.Type != "transcript.delta" {
		t.Fatalf("expected delta frame, got %+v", f)
	}
	f := readFrame(t, conn)
	if f.Type != "error" || f.Kind != "incomplete" {
		t.Fatalf("expected incomplete error frame, got %+v", f)
	}
}

func TestHandleGenerate_RejectsMissingPrompt(t *testing.T) {
	ts := newTestUI(t, nil)
	resp, err := http.Get(ts.URL + "/ws/generate?model=test")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing prompt, got %d", resp.StatusCode)
	}
}

func TestHandleGenerate_UnknownModel(t *testing.T) {
	ts := newTestUI(t, nil)
	resp, err := http.Get(ts.URL + "/ws/generate?model=nope&prompt=hi")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown model, got %d", resp.StatusCode)
	}
}

func TestHandleIndex_ListsModels(t *testing.T) {
	ts := newTestUI(t, nil)
	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "Test Realtime") {
		t.Fatalf("expected model name in page")
	}
	if !strings.Contains(string(body), `value="test"`) {
		t.Fatalf("expected model id as option value")
	}
}

func TestHandleHealth(t *testing.T) {
	ts := newTestUI(t, nil)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{context.Canceled, "cancelled"},
		{fmt.Errorf("select model: %w", config.ErrMissingField), "configuration"},
		{fmt.Errorf("%w: dial tcp: refused", realtime.ErrConnect), "connection"},
		{realtime.ErrIncomplete, "incomplete"},
		{fmt.Errorf("%w: no event within 30s", realtime.ErrStalled), "stalled"},
		{fmt.Errorf("%w: rate limited", realtime.ErrRemote), "remote"},
		{io.ErrClosedPipe, "internal"},
	}
	for _, tt := range tests {
		if got := errorKind(tt.err); got != tt.want {
			t.Fatalf("errorKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
