package stt

import (
	"context"
	"fmt"

	"github.com/voaprotect/voaprotect-core/internal/audio"
)

type mockDecoder struct {
	sequence int
	samples  int
	flushed  bool
}

func newMockDecoder() Decoder {
	return &mockDecoder{}
}

func (d *mockDecoder) Feed(_ context.Context, frame audio.Frame) (*Segment, error) {
	if len(frame.PCM)%2 != 0 {
		return nil, &DecodeError{Err: fmt.Errorf("frame %d: pcm payload not sample-aligned", frame.Sequence)}
	}
	d.samples += frame.Samples()
	return nil, nil
}

func (d *mockDecoder) Flush(context.Context) (Segment, error) {
	seg := Segment{
		Sequence: d.sequence,
		Text:     fmt.Sprintf("[mock transcript samples=%d]", d.samples),
		Final:    true,
	}
	d.sequence++
	d.flushed = true
	return seg, nil
}

func (d *mockDecoder) Close() error { return nil }
