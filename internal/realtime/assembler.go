// Package realtime drives one request/response exchange against a realtime
// generation deployment and folds the streamed reply into a transcript and
// an audio buffer.
package realtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/skaldy/rtspeak/internal/config"
	"github.com/skaldy/rtspeak/internal/logging"
)

// DefaultIdleTimeout bounds the wait for the next event before the stream is
// treated as stalled.
const DefaultIdleTimeout = 30 * time.Second

var (
	// ErrIncomplete marks a stream that ended before the terminal marker.
	// The result still carries whatever was accumulated.
	ErrIncomplete = errors.New("response stream ended before completion")
	// ErrRemote marks an explicit error event reported by the far side.
	ErrRemote = errors.New("remote error")
	// ErrStalled marks a stream with no event within the idle timeout.
	ErrStalled = errors.New("response stream stalled")
)

// Status is the terminal disposition of one exchange.
type Status int

const (
	StatusDone Status = iota
	StatusIncomplete
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusDone:
		return "done"
	case StatusIncomplete:
		return "incomplete"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Result holds the two assembled artifacts. Transcript and Audio preserve
// arrival order exactly; on anything but StatusDone they hold whatever was
// accumulated before the exchange ended.
type Result struct {
	Transcript string
	Audio      []byte
	Status     Status
}

// EventSource yields response events in arrival order. Client implements it;
// tests substitute scripted sources.
type EventSource interface {
	Next(ctx context.Context) (Event, error)
}

type options struct {
	idleTimeout  time.Duration
	onTranscript func(string)
	onAudio      func([]byte)
}

type Option func(*options)

// WithIdleTimeout overrides the bound on the wait for each event.
func WithIdleTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.idleTimeout = d
		}
	}
}

// WithTranscriptHandler registers a callback invoked with each text fragment
// as it arrives, for progressive display. Called from the consuming
// goroutine, in arrival order.
func WithTranscriptHandler(fn func(string)) Option {
	return func(o *options) { o.onTranscript = fn }
}

// WithAudioHandler registers a callback invoked with each decoded audio
// fragment as it arrives.
func WithAudioHandler(fn func([]byte)) Option {
	return func(o *options) { o.onAudio = fn }
}

// Assemble consumes src until a terminal event, stream end, stall or
// cancellation, appending each fragment exactly once in arrival order.
// The returned Result is non-nil even on error so callers can keep partial
// artifacts; err is nil only when Result.Status is StatusDone.
func Assemble(ctx context.Context, src EventSource, opts ...Option) (*Result, error) {
	o := options{idleTimeout: DefaultIdleTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	var transcript strings.Builder
	var audio bytes.Buffer

	finish := func(status Status) *Result {
		return &Result{
			Transcript: transcript.String(),
			Audio:      audio.Bytes(),
			Status:     status,
		}
	}

	for {
		waitCtx, cancel := context.WithTimeout(ctx, o.idleTimeout)
		ev, err := src.Next(waitCtx)
		cancel()

		if err != nil {
			switch {
			case ctx.Err() != nil:
				return finish(StatusCancelled), ctx.Err()
			case errors.Is(err, context.DeadlineExceeded):
				return finish(StatusFailed), fmt.Errorf("%w: no event within %s", ErrStalled, o.idleTimeout)
			case errors.Is(err, io.EOF):
				return finish(StatusIncomplete), ErrIncomplete
			default:
				return finish(StatusFailed), err
			}
		}

		switch ev.Kind {
		case KindTranscriptDelta:
			transcript.WriteString(ev.Text)
			if o.onTranscript != nil {
				o.onTranscript(ev.Text)
			}
		case KindAudioDelta:
			audio.Write(ev.Audio)
			if o.onAudio != nil {
				o.onAudio(ev.Audio)
			}
		case KindDone:
			logging.Debugf("response complete: %d transcript chars, %d audio bytes",
				transcript.Len(), audio.Len())
			return finish(StatusDone), nil
		case KindError:
			msg := ev.Message
			if msg == "" {
				msg = "unspecified failure"
			}
			return finish(StatusFailed), fmt.Errorf("%w: %s", ErrRemote, msg)
		}
	}
}

// Run is the one-call form used by both front ends: dial, send the request,
// assemble the reply. The connection is released on every exit path.
func Run(ctx context.Context, cfg config.ModelConfig, req Request, opts ...Option) (*Result, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, errors.New("prompt is required")
	}

	client, err := Dial(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	if err := client.SendResponseCreate(ctx, req); err != nil {
		return nil, err
	}

	return Assemble(ctx, client, opts...)
}
