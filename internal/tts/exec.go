package tts

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-shellwords"
	"github.com/voaprotect/voaprotect-core/internal/config"
)

// execSpeaker shells out to a synthesis/playback command (say, espeak-ng,
// a gTTS wrapper, ...) with the prompt text on stdin.
type execSpeaker struct {
	cmd   []string
	voice string
	mu    sync.Mutex
}

func newExecSpeaker(cfg config.TTSConfig) (Speaker, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse tts command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("tts command is empty")
	}
	return &execSpeaker{cmd: args, voice: cfg.Voice}, nil
}

func (s *execSpeaker) Speak(ctx context.Context, text, language string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	speakCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	base := s.cmd[0]
	args := append([]string{}, s.cmd[1:]...)
	args = append(args, "--language", language)
	if s.voice != "" {
		args = append(args, "--voice", s.voice)
	}

	cmd := exec.CommandContext(speakCtx, base, args...)
	cmd.Stdin = strings.NewReader(text)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("tts command failed: %w: %s", err, out)
	}
	return nil
}
