// Package stt wraps a speech recognizer behind a per-session streaming
// decoder: frames go in, ordered transcript segments come out.
package stt

import (
	"context"
	"fmt"
	"os"

	"github.com/voaprotect/voaprotect-core/internal/audio"
	"github.com/voaprotect/voaprotect-core/internal/config"
)

// Segment is one unit of decoded transcript text. Sequence numbers are
// strictly increasing within a session; exactly one segment with
// Final=true closes the stream.
type Segment struct {
	Sequence int
	Text     string
	Final    bool
}

// ModelLoadError indicates the speech model for the active language is
// missing or unreadable. Fatal to the session before Recording begins.
type ModelLoadError struct {
	Language string
	Path     string
	Err      error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("speech model for %s at %s: %v", e.Language, e.Path, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// DecodeError indicates a single frame or utterance failed to decode.
// Non-fatal: the offending audio is dropped and decoding continues.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decoder consumes frames in order and emits transcript segments. One
// decoder is created per session and never reused; Close releases the
// recognizer state.
type Decoder interface {
	// Feed hands one frame to the recognizer. It returns a partial
	// segment when the recognizer judges an utterance boundary reached,
	// nil otherwise. A *DecodeError drops the frame without ending the
	// session.
	Feed(ctx context.Context, frame audio.Frame) (*Segment, error)

	// Flush forces the recognizer to emit its final segment. It always
	// returns a segment, possibly with empty text, so the transcript is
	// never silently truncated. It may additionally return a *DecodeError
	// if the trailing audio could not be decoded.
	Flush(ctx context.Context) (Segment, error)

	Close() error
}

// Open creates the decoder for one session, scoped to the active
// language's model.
func Open(cfg config.STTConfig, audioCfg config.AudioConfig, language string) (Decoder, error) {
	modelPath := cfg.ModelPaths[language]
	switch cfg.Mode {
	case "exec":
		if modelPath == "" {
			return nil, &ModelLoadError{Language: language, Path: modelPath, Err: fmt.Errorf("no model path configured")}
		}
		if _, err := os.Stat(modelPath); err != nil {
			return nil, &ModelLoadError{Language: language, Path: modelPath, Err: err}
		}
		return newExecDecoder(cfg, audioCfg, language, modelPath)
	case "mock":
		return newMockDecoder(), nil
	default:
		return nil, fmt.Errorf("unknown stt mode %q", cfg.Mode)
	}
}
