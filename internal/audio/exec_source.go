package audio

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/mattn/go-shellwords"
	"github.com/voaprotect/voaprotect-core/internal/config"
)

// execSource shells out to a capture command (arecord, sox, rec, ...)
// expected to write raw s16le PCM at the configured rate on stdout.
type execSource struct {
	cmd []string
	cfg config.AudioConfig
}

func newExecSource(cfg config.AudioConfig) (Source, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse audio command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("audio command is empty")
	}
	return &execSource{cmd: args, cfg: cfg}, nil
}

func (s *execSource) Start(ctx context.Context) (<-chan Frame, error) {
	base := s.cmd[0]
	args := append([]string{}, s.cmd[1:]...)
	cmd := exec.CommandContext(ctx, base, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &DeviceError{Device: base, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return nil, &DeviceError{Device: base, Err: err}
	}

	out := make(chan Frame, 1)
	ready := make(chan struct{})
	frameBytes := s.cfg.FrameSamples * 2 * s.cfg.Channels

	go func() {
		defer close(out)
		defer cmd.Wait()

		sequence := 0
		opened := false
		for {
			buf := make([]byte, frameBytes)
			n, err := io.ReadFull(stdout, buf)
			if !opened {
				opened = true
				close(ready)
			}
			if n > 0 {
				select {
				case out <- Frame{Sequence: sequence, PCM: buf[:n]}:
					sequence++
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				// EOF, short final frame, or the capture command dying
				// mid-window all end the stream; queued frames still decode.
				return
			}
		}
	}()

	// The device must deliver something within the open timeout, otherwise
	// the session aborts instead of blocking in Recording.
	openTimeout := time.Duration(s.cfg.OpenTimeoutMS) * time.Millisecond
	select {
	case <-ready:
		return out, nil
	case <-time.After(openTimeout):
		_ = cmd.Process.Kill()
		return nil, &DeviceError{Device: base, Err: fmt.Errorf("no audio within %s", openTimeout)}
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		return nil, &DeviceError{Device: base, Err: ctx.Err()}
	}
}
