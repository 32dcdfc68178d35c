package audio

import (
	"context"
	"time"

	"github.com/voaprotect/voaprotect-core/internal/config"
)

// mockSource emits silence frames at the real-time frame cadence until
// cancelled. It lets the pipeline run end to end with no device attached.
type mockSource struct {
	cfg config.AudioConfig
}

func newMockSource(cfg config.AudioConfig) Source {
	return &mockSource{cfg: cfg}
}

func (s *mockSource) Start(ctx context.Context) (<-chan Frame, error) {
	out := make(chan Frame, 1)
	frameBytes := s.cfg.FrameSamples * 2 * s.cfg.Channels
	interval := time.Duration(s.cfg.FrameSamples) * time.Second / time.Duration(s.cfg.SampleRate)

	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		sequence := 0
		for {
			select {
			case <-ticker.C:
				select {
				case out <- Frame{Sequence: sequence, PCM: make([]byte, frameBytes)}:
					sequence++
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
