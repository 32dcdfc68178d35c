package stt

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mattn/go-shellwords"
	"github.com/voaprotect/voaprotect-core/internal/audio"
	"github.com/voaprotect/voaprotect-core/internal/config"
)

// execDecoder buffers PCM and shells out to a recognizer command at each
// utterance boundary. The command receives a temp WAV plus model and
// language flags and prints a JSON result on stdout.
type execDecoder struct {
	cmd       []string
	cfg       config.STTConfig
	audioCfg  config.AudioConfig
	language  string
	modelPath string

	mu        sync.Mutex
	buffer    []byte
	sequence  int
	flushed   bool
	utterance int // bytes per utterance window
}

type execResult struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

func newExecDecoder(cfg config.STTConfig, audioCfg config.AudioConfig, language, modelPath string) (Decoder, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse stt command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("stt command is empty")
	}
	utterance := cfg.UtteranceMS * audioCfg.SampleRate * 2 * audioCfg.Channels / 1000
	if utterance <= 0 {
		utterance = audioCfg.SampleRate * 2 * audioCfg.Channels
	}
	return &execDecoder{
		cmd:       args,
		cfg:       cfg,
		audioCfg:  audioCfg,
		language:  language,
		modelPath: modelPath,
		utterance: utterance,
	}, nil
}

func (d *execDecoder) Feed(ctx context.Context, frame audio.Frame) (*Segment, error) {
	if len(frame.PCM)%2 != 0 {
		return nil, &DecodeError{Err: fmt.Errorf("frame %d: pcm payload not sample-aligned", frame.Sequence)}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.flushed {
		return nil, &DecodeError{Err: fmt.Errorf("decoder already flushed")}
	}

	d.buffer = append(d.buffer, frame.PCM...)
	if len(d.buffer) < d.utterance {
		return nil, nil
	}

	pcm := d.buffer
	d.buffer = nil
	text, err := d.transcribe(ctx, pcm)
	if err != nil {
		// The utterance is dropped; decoding continues with later frames.
		return nil, &DecodeError{Err: err}
	}
	if text == "" {
		return nil, nil
	}
	seg := &Segment{Sequence: d.sequence, Text: text}
	d.sequence++
	return seg, nil
}

func (d *execDecoder) Flush(ctx context.Context) (Segment, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	seg := Segment{Sequence: d.sequence, Final: true}
	d.sequence++
	pcm := d.buffer
	d.buffer = nil
	d.flushed = true

	if len(pcm) == 0 {
		return seg, nil
	}

	timeout := time.Duration(d.cfg.FlushTimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	flushCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	text, err := d.transcribe(flushCtx, pcm)
	if err != nil {
		// The final segment is still emitted so the stream closes cleanly;
		// the caller counts the error.
		return seg, &DecodeError{Err: err}
	}
	seg.Text = text
	return seg, nil
}

func (d *execDecoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buffer = nil
	d.flushed = true
	return nil
}

func (d *execDecoder) transcribe(ctx context.Context, pcm []byte) (string, error) {
	file, err := os.CreateTemp(os.TempDir(), "voa_stt_*.wav")
	if err != nil {
		return "", fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(file.Name())
	defer file.Close()

	if err := writePCMToWav(file, pcm, d.audioCfg.SampleRate, d.audioCfg.Channels); err != nil {
		return "", err
	}

	base := d.cmd[0]
	args := append([]string{}, d.cmd[1:]...)
	args = append(args, "--audio", file.Name(), "--model", d.modelPath, "--language", d.language)

	command := exec.CommandContext(ctx, base, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return "", fmt.Errorf("stt command failed: %w: %s", err, stderr.String())
	}

	var resp execResult
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return "", fmt.Errorf("decode stt response: %w", err)
	}
	return resp.Text, nil
}

func writePCMToWav(file *os.File, pcm []byte, sampleRate int, channels int) error {
	if len(pcm)%2 != 0 {
		return fmt.Errorf("pcm payload not aligned")
	}
	buffer := &goaudio.IntBuffer{Format: &goaudio.Format{NumChannels: channels, SampleRate: sampleRate}}
	samples := make([]int, len(pcm)/2)
	for i := 0; i < len(samples); i++ {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	buffer.Data = samples

	enc := wav.NewEncoder(file, sampleRate, 16, channels, 1)
	if err := enc.Write(buffer); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}
