package realtime

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// EventKind classifies one unit of the streamed reply.
type EventKind int

const (
	// KindOther covers server events the assembler has no use for
	// (session.created, rate_limits.updated, item lifecycle markers, ...).
	KindOther EventKind = iota
	KindTranscriptDelta
	KindAudioDelta
	KindDone
	KindError
)

func (k EventKind) String() string {
	switch k {
	case KindTranscriptDelta:
		return "transcript-delta"
	case KindAudioDelta:
		return "audio-delta"
	case KindDone:
		return "done"
	case KindError:
		return "error"
	default:
		return "other"
	}
}

// Event is one decoded chunk of the response stream. Exactly one payload
// field is populated depending on Kind.
type Event struct {
	Kind    EventKind
	Type    string // raw wire type tag
	Text    string // transcript fragment, KindTranscriptDelta
	Audio   []byte // decoded PCM16 fragment, KindAudioDelta
	Message string // remote error message, KindError
}

// Wire type tags, per the Azure OpenAI realtime API.
const (
	typeTranscriptDelta = "response.audio_transcript.delta"
	typeTextDelta       = "response.text.delta"
	typeAudioDelta      = "response.audio.delta"
	typeResponseDone    = "response.done"
	typeError           = "error"
)

type envelope struct {
	Type  string `json:"type"`
	Delta string `json:"delta"`
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func parseEvent(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}

	ev := Event{Type: env.Type}
	switch env.Type {
	case typeTranscriptDelta, typeTextDelta:
		ev.Kind = KindTranscriptDelta
		ev.Text = env.Delta
	case typeAudioDelta:
		audio, err := base64.StdEncoding.DecodeString(env.Delta)
		if err != nil {
			return Event{}, fmt.Errorf("decode audio delta: %w", err)
		}
		ev.Kind = KindAudioDelta
		ev.Audio = audio
	case typeResponseDone:
		ev.Kind = KindDone
	case typeError:
		ev.Kind = KindError
		ev.Message = env.Error.Message
		if ev.Message == "" {
			ev.Message = env.Error.Code
		}
	}
	return ev, nil
}

// Request describes one generation exchange: a prompt spoken back as both
// text and audio.
type Request struct {
	Prompt string
	Voice  string
}

type responseCreateMessage struct {
	EventID  string         `json:"event_id"`
	Type     string         `json:"type"`
	Response responseParams `json:"response"`
}

type responseParams struct {
	Modalities   []string `json:"modalities"`
	Instructions string   `json:"instructions"`
	Voice        string   `json:"voice,omitempty"`
}

func encodeResponseCreate(req Request) ([]byte, error) {
	msg := responseCreateMessage{
		EventID: uuid.NewString(),
		Type:    "response.create",
		Response: responseParams{
			Modalities:   []string{"text", "audio"},
			Instructions: req.Prompt,
			Voice:        req.Voice,
		},
	}
	return json.Marshal(msg)
}
