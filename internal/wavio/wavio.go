// Package wavio encodes the raw PCM16 stream returned by the realtime
// endpoint into a WAV container.
package wavio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Output format negotiated with the realtime endpoint: 24kHz mono PCM16.
const (
	SampleRate   = 24000
	Channels     = 1
	BitDepth     = 16
	audioFmtPCM  = 1
	bytesPerSamp = 2
)

// WriteFile encodes pcm into a WAV file at path. The file is removed again
// if encoding fails, so a failed run never leaves a truncated output behind.
func WriteFile(path string, pcm []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if err := encode(f, pcm); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// Bytes encodes pcm into an in-memory WAV container, for callers that ship
// the file over a socket instead of writing it to disk.
func Bytes(pcm []byte) ([]byte, error) {
	var buf bufferSeeker
	if err := encode(&buf, pcm); err != nil {
		return nil, err
	}
	return buf.data, nil
}

func encode(ws io.WriteSeeker, pcm []byte) error {
	if len(pcm)%bytesPerSamp != 0 {
		return errors.New("pcm payload not aligned to 16-bit samples")
	}

	buffer := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: Channels, SampleRate: SampleRate},
		SourceBitDepth: BitDepth,
		Data:           samplesFromPCM16(pcm),
	}

	enc := wav.NewEncoder(ws, SampleRate, BitDepth, Channels, audioFmtPCM)
	if err := enc.Write(buffer); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}

func samplesFromPCM16(pcm []byte) []int {
	samples := make([]int, len(pcm)/bytesPerSamp)
	for i := range samples {
		samples[i] = int(int16(uint16(pcm[i*2]) | uint16(pcm[i*2+1])<<8))
	}
	return samples
}

// bufferSeeker is the minimal io.WriteSeeker the wav encoder needs to patch
// chunk sizes in memory.
type bufferSeeker struct {
	data []byte
	pos  int
}

func (b *bufferSeeker) Write(p []byte) (int, error) {
	if need := b.pos + len(p); need > len(b.data) {
		if need > cap(b.data) {
			grown := make([]byte, need, need*2)
			copy(grown, b.data)
			b.data = grown
		} else {
			b.data = b.data[:need]
		}
	}
	copy(b.data[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *bufferSeeker) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = int64(b.pos) + offset
	case io.SeekEnd:
		pos = int64(len(b.data)) + offset
	default:
		return 0, errors.New("invalid whence")
	}
	if pos < 0 {
		return 0, errors.New("negative seek position")
	}
	b.pos = int(pos)
	return pos, nil
}
