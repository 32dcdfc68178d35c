// Package tts speaks the localized instruction prompts before a
// recording window opens.
package tts

import (
	"context"
	"fmt"

	"github.com/voaprotect/voaprotect-core/internal/config"
)

// Speaker voices one prompt and returns when playback finishes.
type Speaker interface {
	Speak(ctx context.Context, text, language string) error
}

// NewSpeaker builds a Speaker for the configured mode. A disabled config
// yields a silent no-op speaker.
func NewSpeaker(cfg config.TTSConfig) (Speaker, error) {
	if !cfg.Enabled {
		return noopSpeaker{}, nil
	}
	switch cfg.Mode {
	case "exec":
		return newExecSpeaker(cfg)
	case "mock":
		return noopSpeaker{}, nil
	default:
		return nil, fmt.Errorf("unknown tts mode %q", cfg.Mode)
	}
}

type noopSpeaker struct{}

func (noopSpeaker) Speak(context.Context, string, string) error { return nil }
