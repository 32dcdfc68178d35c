// Package audio provides PCM frame capture for one recording window.
//
// A Source emits fixed-size frames (mono s16le) on a channel until its
// context is cancelled or its input is exhausted, then closes the channel.
// A closed channel is the end-of-stream signal; the final frame may be
// shorter than the configured frame size.
package audio

import (
	"context"
	"fmt"

	"github.com/voaprotect/voaprotect-core/internal/config"
)

// Frame is one fixed-size chunk of raw audio samples.
type Frame struct {
	Sequence int
	PCM      []byte
}

// Samples returns the number of 16-bit samples in the frame.
func (f Frame) Samples() int {
	return len(f.PCM) / 2
}

// DeviceError indicates the capture device (or its stand-in) could not be
// opened or stopped producing before the first frame. Fatal to a session.
type DeviceError struct {
	Device string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("audio device %s: %v", e.Device, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// Source produces the frame stream for a single recording window. Each
// Start call opens a fresh stream; a Source may be started again for a
// later session.
type Source interface {
	Start(ctx context.Context) (<-chan Frame, error)
}

// NewSource builds a Source for the configured capture mode.
func NewSource(cfg config.AudioConfig) (Source, error) {
	switch cfg.Mode {
	case "exec":
		return newExecSource(cfg)
	case "wav":
		return newWAVSource(cfg), nil
	case "mock":
		return newMockSource(cfg), nil
	default:
		return nil, fmt.Errorf("unknown audio mode %q", cfg.Mode)
	}
}
