package audio

import (
	"context"
	"fmt"
	"os"

	"github.com/go-audio/wav"
	"github.com/voaprotect/voaprotect-core/internal/config"
)

// wavSource replays a WAV file as a frame stream. Used for replaying
// captured sessions and as the file-backed path in integration tests.
type wavSource struct {
	cfg config.AudioConfig
}

func newWAVSource(cfg config.AudioConfig) Source {
	return &wavSource{cfg: cfg}
}

func (s *wavSource) Start(ctx context.Context) (<-chan Frame, error) {
	file, err := os.Open(s.cfg.WAVPath)
	if err != nil {
		return nil, &DeviceError{Device: s.cfg.WAVPath, Err: err}
	}

	decoder := wav.NewDecoder(file)
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		file.Close()
		return nil, &DeviceError{Device: s.cfg.WAVPath, Err: fmt.Errorf("decode wav: %w", err)}
	}
	file.Close()
	if buf.Format == nil || buf.Format.SampleRate != s.cfg.SampleRate {
		return nil, &DeviceError{Device: s.cfg.WAVPath, Err: fmt.Errorf("expected %d Hz wav input", s.cfg.SampleRate)}
	}

	pcm := make([]byte, len(buf.Data)*2)
	for i, sample := range buf.Data {
		pcm[i*2] = byte(uint16(int16(sample)))
		pcm[i*2+1] = byte(uint16(int16(sample)) >> 8)
	}

	out := make(chan Frame, 1)
	frameBytes := s.cfg.FrameSamples * 2 * s.cfg.Channels

	go func() {
		defer close(out)
		sequence := 0
		for offset := 0; offset < len(pcm); offset += frameBytes {
			end := offset + frameBytes
			if end > len(pcm) {
				end = len(pcm)
			}
			select {
			case out <- Frame{Sequence: sequence, PCM: pcm[offset:end]}:
				sequence++
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
