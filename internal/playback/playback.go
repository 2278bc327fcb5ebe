// Package playback streams PCM16 audio fragments to the default output
// device as they arrive, so the batch front end can speak the response live.
package playback

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/skaldy/rtspeak/internal/logging"
)

const framesPerBuffer = 1024

// Player owns one portaudio output stream. Write may be called repeatedly
// with arbitrarily sized fragments; Close drains the remainder and releases
// the device.
type Player struct {
	mu       sync.Mutex
	stream   *portaudio.Stream
	out      []int16
	leftover []byte
	closed   bool
}

func NewPlayer(sampleRate int) (*Player, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}

	out := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), len(out), &out)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("start output stream: %w", err)
	}

	logging.Debugf("playback stream opened at %d Hz", sampleRate)
	return &Player{stream: stream, out: out}, nil
}

// Write queues one PCM16 fragment for playback. Whole frames are written to
// the device immediately; a trailing partial sample is held for the next
// fragment.
func (p *Player) Write(pcm []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("player closed")
	}

	p.leftover = append(p.leftover, pcm...)
	frameBytes := len(p.out) * 2
	for len(p.leftover) >= frameBytes {
		fillFrame(p.out, p.leftover[:frameBytes])
		p.leftover = p.leftover[frameBytes:]
		if err := p.stream.Write(); err != nil {
			return fmt.Errorf("write to output stream: %w", err)
		}
	}
	return nil
}

// Close plays out any buffered remainder (zero-padded to a full frame) and
// releases the device.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if len(p.leftover) > 1 {
		for i := range p.out {
			p.out[i] = 0
		}
		fillFrame(p.out, p.leftover)
		if err := p.stream.Write(); err != nil {
			logging.Warnf("flush playback remainder: %v", err)
		}
	}
	p.leftover = nil

	if err := p.stream.Stop(); err != nil {
		logging.Warnf("stop playback stream: %v", err)
	}
	err := p.stream.Close()
	if termErr := portaudio.Terminate(); err == nil {
		err = termErr
	}
	return err
}

// fillFrame decodes little-endian PCM16 bytes into the output frame; a
// trailing odd byte is ignored.
func fillFrame(out []int16, pcm []byte) {
	n := len(pcm) / 2
	if n > len(out) {
		n = len(out)
	}
	for i := 0; i < n; i++ {
		out[i] = int16(uint16(pcm[i*2]) | uint16(pcm[i*2+1])<<8)
	}
}
