package main

import (
	"context"
	"encoding/base64"
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/skaldy/rtspeak/internal/config"
	"github.com/skaldy/rtspeak/internal/logging"
	"github.com/skaldy/rtspeak/internal/realtime"
	"github.com/skaldy/rtspeak/internal/wavio"
)

// runFunc matches realtime.Run; tests substitute a scripted exchange.
type runFunc func(ctx context.Context, cfg config.ModelConfig, req realtime.Request, opts ...realtime.Option) (*realtime.Result, error)

type server struct {
	cfg      *config.AppConfig
	run      runFunc
	upgrader websocket.Upgrader
	page     *template.Template
}

func newServer(cfg *config.AppConfig) *server {
	return &server{
		cfg: cfg,
		run: realtime.Run,
		upgrader: websocket.Upgrader{
			// Demo UI, same-origin enforcement is left to a fronting proxy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		page: template.Must(template.New("index").Parse(indexPage)),
	}
}

func (s *server) register(e *echo.Echo) {
	e.GET("/", s.handleIndex)
	e.GET("/healthz", s.handleHealth)
	e.GET("/ws/generate", s.handleGenerate)
}

func (s *server) handleIndex(c echo.Context) error {
	var buf strings.Builder
	if err := s.page.Execute(&buf, map[string]any{"Models": s.cfg.Models}); err != nil {
		return err
	}
	return c.HTML(http.StatusOK, buf.String())
}

func (s *server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "rtspeak-webui",
	})
}

// frame is one JSON message pushed to the browser over the live socket.
type frame struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	WAV        string `json:"wav,omitempty"`
	Kind       string `json:"kind,omitempty"`
	Message    string `json:"message,omitempty"`
}

func (s *server) handleGenerate(c echo.Context) error {
	prompt := strings.TrimSpace(c.QueryParam("prompt"))
	if prompt == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "prompt is required"})
	}
	modelCfg, err := s.cfg.Lookup(c.QueryParam("model"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	if voice := strings.TrimSpace(c.QueryParam("voice")); voice != "" {
		modelCfg.Voice = voice
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	sessionID := logging.NewSessionID()
	logging.SetSessionID(sessionID)
	logging.Infof("live exchange started: model=%s prompt_len=%d", modelCfg.ID, len(prompt))

	// A closed browser tab must cancel the exchange promptly.
	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	push := func(f frame) bool {
		if err := conn.WriteJSON(f); err != nil {
			cancel()
			return false
		}
		return true
	}

	res, err := s.run(ctx, modelCfg, realtime.Request{Prompt: prompt, Voice: modelCfg.Voice},
		realtime.WithTranscriptHandler(func(fragment string) {
			push(frame{Type: "transcript.delta", Text: fragment})
		}),
	)
	if err != nil {
		f := frame{Type: "error", Kind: errorKind(err), Message: err.Error()}
		if res != nil {
			f.Transcript = res.Transcript
		}
		push(f)
		logging.Warnf("live exchange ended with %s: %v", f.Kind, err)
		return nil
	}

	if len(res.Audio) > 0 {
		wavBytes, err := wavio.Bytes(res.Audio)
		if err != nil {
			push(frame{Type: "error", Kind: "internal", Message: err.Error()})
			return nil
		}
		if !push(frame{Type: "audio", WAV: base64.StdEncoding.EncodeToString(wavBytes)}) {
			return nil
		}
	}
	push(frame{Type: "done", Transcript: res.Transcript})
	logging.Infof("live exchange done: %d transcript chars, %d audio bytes",
		len(res.Transcript), len(res.Audio))
	return nil
}

// errorKind names the failure category shown in the UI.
func errorKind(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, config.ErrMissingField):
		return "configuration"
	case errors.Is(err, realtime.ErrConnect):
		return "connection"
	case errors.Is(err, realtime.ErrIncomplete):
		return "incomplete"
	case errors.Is(err, realtime.ErrStalled):
		return "stalled"
	case errors.Is(err, realtime.ErrRemote):
		return "remote"
	default:
		return "internal"
	}
}
