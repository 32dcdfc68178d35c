package audio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/voaprotect/voaprotect-core/internal/config"
)

func writeTestWAV(t *testing.T, path string, samples int) {
	t.Helper()
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	defer file.Close()

	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{NumChannels: 1, SampleRate: 16000},
		Data:   make([]int, samples),
	}
	for i := range buf.Data {
		buf.Data[i] = i % 128
	}
	enc := wav.NewEncoder(file, 16000, 16, 1, 1)
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav encoder: %v", err)
	}
}

func TestWAVSourceFraming(t *testing.T) {
	path := filepath.Join(t.TempDir(), "utterance.wav")
	writeTestWAV(t, path, 2500)

	cfg := config.AudioConfig{Mode: "wav", WAVPath: path, SampleRate: 16000, Channels: 1, FrameSamples: 1000}
	src, err := NewSource(cfg)
	if err != nil {
		t.Fatalf("new source: %v", err)
	}

	frames, err := src.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	var collected []Frame
	for f := range frames {
		collected = append(collected, f)
	}
	if len(collected) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(collected))
	}
	// All frames full-size except a final partial frame at stream close.
	if collected[0].Samples() != 1000 || collected[1].Samples() != 1000 {
		t.Fatalf("expected 1000-sample frames, got %d and %d", collected[0].Samples(), collected[1].Samples())
	}
	if collected[2].Samples() != 500 {
		t.Fatalf("expected 500-sample final frame, got %d", collected[2].Samples())
	}
	for i, f := range collected {
		if f.Sequence != i {
			t.Fatalf("expected sequence %d, got %d", i, f.Sequence)
		}
	}
}

func TestWAVSourceMissingFile(t *testing.T) {
	cfg := config.AudioConfig{Mode: "wav", WAVPath: "/nonexistent/input.wav", SampleRate: 16000, Channels: 1, FrameSamples: 1000}
	src, err := NewSource(cfg)
	if err != nil {
		t.Fatalf("new source: %v", err)
	}
	_, err = src.Start(context.Background())
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		t.Fatalf("expected DeviceError, got %v", err)
	}
}

func TestMockSourceStopsOnCancel(t *testing.T) {
	cfg := config.AudioConfig{Mode: "mock", SampleRate: 16000, Channels: 1, FrameSamples: 160}
	src, err := NewSource(cfg)
	if err != nil {
		t.Fatalf("new source: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	frames, err := src.Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	select {
	case f, ok := <-frames:
		if !ok {
			t.Fatal("stream closed before any frame")
		}
		if f.Samples() != 160 {
			t.Fatalf("expected 160-sample frame, got %d", f.Samples())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no frame within 2s")
	}

	cancel()
	for {
		select {
		case _, ok := <-frames:
			if !ok {
				return
			}
		case <-time.After(2 * time.Second):
			t.Fatal("stream did not close after cancel")
		}
	}
}

func TestNewSourceUnknownMode(t *testing.T) {
	if _, err := NewSource(config.AudioConfig{Mode: "pulse"}); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
