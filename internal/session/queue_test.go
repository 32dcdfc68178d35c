package session

import (
	"context"
	"testing"
	"time"

	"github.com/voaprotect/voaprotect-core/internal/audio"
)

func feed(frames ...audio.Frame) <-chan audio.Frame {
	out := make(chan audio.Frame, len(frames))
	for _, f := range frames {
		out <- f
	}
	close(out)
	return out
}

func TestPumpBlockPolicyDeliversEverything(t *testing.T) {
	q := make(chan audio.Frame, 8)
	dropped := pumpFrames(context.Background(), feed(frames(5, 10)...), q, PolicyBlock)
	if dropped != 0 {
		t.Fatalf("block policy must not drop, got %d", dropped)
	}
	var got []audio.Frame
	for f := range q {
		got = append(got, f)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 frames, got %d", len(got))
	}
	for i, f := range got {
		if f.Sequence != i {
			t.Fatalf("expected in-order delivery, frame %d has sequence %d", i, f.Sequence)
		}
	}
}

func TestPumpBlockPolicyStopsOnWindowExpiry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	src := make(chan audio.Frame)
	go func() {
		for i := 0; ; i++ {
			select {
			case src <- audio.Frame{Sequence: i, PCM: make([]byte, 10)}:
			case <-ctx.Done():
				close(src)
				return
			}
		}
	}()

	// Queue of one with no consumer: the pump ends up blocked mid-push
	// and must still return promptly when the window expires.
	q := make(chan audio.Frame, 1)
	done := make(chan int, 1)
	go func() { done <- pumpFrames(ctx, src, q, PolicyBlock) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not stop after window expiry")
	}
	for range q {
		// drain; the closed queue may still hold a buffered frame
	}
}

func TestPumpDropOldestKeepsLatestFrames(t *testing.T) {
	q := make(chan audio.Frame, 2)
	dropped := pumpFrames(context.Background(), feed(frames(5, 10)...), q, PolicyDropOldest)
	if dropped != 3 {
		t.Fatalf("expected 3 dropped frames, got %d", dropped)
	}
	first, ok := <-q
	if !ok {
		t.Fatal("expected queued frame")
	}
	second, ok := <-q
	if !ok {
		t.Fatal("expected queued frame")
	}
	if first.Sequence != 3 || second.Sequence != 4 {
		t.Fatalf("drop_oldest must keep the newest frames, got %d and %d", first.Sequence, second.Sequence)
	}
	if _, ok := <-q; ok {
		t.Fatal("expected closed queue")
	}
}
