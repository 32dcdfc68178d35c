package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/voaprotect/voaprotect-core/internal/audio"
	"github.com/voaprotect/voaprotect-core/internal/config"
	"github.com/voaprotect/voaprotect-core/internal/stt"
	"github.com/voaprotect/voaprotect-core/internal/triage"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// scriptedSource replays fixed frames. With hold set it then keeps the
// stream open until the window cancels it, like a live microphone.
type scriptedSource struct {
	frames []audio.Frame
	hold   bool
}

func (s *scriptedSource) Start(ctx context.Context) (<-chan audio.Frame, error) {
	out := make(chan audio.Frame)
	go func() {
		defer close(out)
		for _, f := range s.frames {
			select {
			case out <- f:
			case <-ctx.Done():
				return
			}
		}
		if s.hold {
			<-ctx.Done()
		}
	}()
	return out, nil
}

type failingSource struct{}

func (failingSource) Start(context.Context) (<-chan audio.Frame, error) {
	return nil, &audio.DeviceError{Device: "mic0", Err: errors.New("permission denied")}
}

// scriptedDecoder emits one partial per scripted text, then the final on
// flush.
type scriptedDecoder struct {
	partials  []string
	finalText string
	sequence  int
	index     int
}

func (d *scriptedDecoder) Feed(_ context.Context, frame audio.Frame) (*stt.Segment, error) {
	if len(frame.PCM)%2 != 0 {
		return nil, &stt.DecodeError{Err: errors.New("misaligned frame")}
	}
	if d.index >= len(d.partials) {
		return nil, nil
	}
	seg := &stt.Segment{Sequence: d.sequence, Text: d.partials[d.index]}
	d.sequence++
	d.index++
	return seg, nil
}

func (d *scriptedDecoder) Flush(context.Context) (stt.Segment, error) {
	seg := stt.Segment{Sequence: d.sequence, Text: d.finalText, Final: true}
	d.sequence++
	return seg, nil
}

func (d *scriptedDecoder) Close() error { return nil }

func testOptions(t *testing.T, src audio.Source, dec stt.Decoder) Options {
	t.Helper()
	vocab, err := triage.VocabularyFor("en")
	if err != nil {
		t.Fatalf("vocabulary: %v", err)
	}
	return Options{
		Config: config.SessionConfig{
			Language:      "en",
			WindowSeconds: 1,
			QueueCapacity: 4,
			QueuePolicy:   PolicyBlock,
		},
		Source:      src,
		OpenDecoder: func() (stt.Decoder, error) { return dec, nil },
		Vocabulary:  vocab,
		Outbreak:    triage.StaticOutbreakScorer{Level: triage.RiskLow},
		Logger:      newLogger(),
	}
}

func frames(n, bytes int) []audio.Frame {
	out := make([]audio.Frame, n)
	for i := range out {
		out[i] = audio.Frame{Sequence: i, PCM: make([]byte, bytes)}
	}
	return out
}

func TestSessionModerateRisk(t *testing.T) {
	dec := &scriptedDecoder{
		partials:  []string{"i have a fever"},
		finalText: "and fatigue and nausea",
	}
	o, err := New(testOptions(t, &scriptedSource{frames: frames(3, 100)}, dec))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	report, err := o.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if report.Transcript != "i have a fever and fatigue and nausea" {
		t.Fatalf("unexpected transcript: %q", report.Transcript)
	}
	want := []string{"fever", "fatigue", "nausea"}
	if !reflect.DeepEqual(report.MatchedSymptoms, want) {
		t.Fatalf("expected %v, got %v", want, report.MatchedSymptoms)
	}
	if report.TriageRisk != triage.RiskModerate {
		t.Fatalf("3 matches must score moderate, got %v", report.TriageRisk)
	}
	if o.State() != StateReported {
		t.Fatalf("expected reported state, got %v", o.State())
	}
}

func TestSessionHighRiskIndependentOfOutbreak(t *testing.T) {
	dec := &scriptedDecoder{
		finalText: "fever chills headache vomiting fatigue nausea dizziness",
	}
	opts := testOptions(t, &scriptedSource{frames: frames(2, 100)}, dec)
	opts.Outbreak = triage.StaticOutbreakScorer{Level: triage.RiskLow}
	o, _ := New(opts)

	report, err := o.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(report.MatchedSymptoms) != 7 {
		t.Fatalf("expected 7 matches, got %v", report.MatchedSymptoms)
	}
	if report.TriageRisk != triage.RiskHigh {
		t.Fatalf("7 matches must score high, got %v", report.TriageRisk)
	}
	if report.OutbreakRisk != triage.RiskLow {
		t.Fatalf("outbreak risk must come from the outbreak scorer alone, got %v", report.OutbreakRisk)
	}
}

func TestSessionNoMatches(t *testing.T) {
	dec := &scriptedDecoder{finalText: "hello there"}
	o, _ := New(testOptions(t, &scriptedSource{frames: frames(1, 100)}, dec))

	report, err := o.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(report.MatchedSymptoms) != 0 {
		t.Fatalf("expected no matches, got %v", report.MatchedSymptoms)
	}
	if report.TriageRisk != triage.RiskLow {
		t.Fatalf("0 matches must score low, got %v", report.TriageRisk)
	}
}

func TestSessionFlushAlwaysYieldsFinalSegment(t *testing.T) {
	// No partials and empty final text: the transcript is empty but the
	// session still completes with exactly one report.
	dec := &scriptedDecoder{}
	o, _ := New(testOptions(t, &scriptedSource{frames: nil}, dec))

	report, err := o.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if report.Transcript != "" {
		t.Fatalf("expected empty transcript, got %q", report.Transcript)
	}
	if report.TriageRisk != triage.RiskLow {
		t.Fatalf("expected low risk, got %v", report.TriageRisk)
	}
}

func TestStartWhileRecordingIsRejected(t *testing.T) {
	dec := &scriptedDecoder{finalText: "fever"}
	o, _ := New(testOptions(t, &scriptedSource{hold: true}, dec))

	done := make(chan struct{})
	var report *Report
	go func() {
		defer close(done)
		report, _ = o.Start(context.Background())
	}()

	waitForState(t, o, StateRecording)

	_, err := o.Start(context.Background())
	var stateErr *StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected StateError, got %v", err)
	}
	if got := o.State(); got != StateRecording && got != StateDecoding {
		t.Fatalf("rejected start must not move the state machine, got %v", got)
	}

	<-done
	if report == nil {
		t.Fatal("first session must still produce its report")
	}
	if o.LastReport() != report {
		t.Fatal("exactly one report per cycle")
	}
}

func TestCancellationDiscardsSession(t *testing.T) {
	dec := &scriptedDecoder{finalText: "fever"}
	o, _ := New(testOptions(t, &scriptedSource{hold: true}, dec))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := o.Start(ctx)
		done <- err
	}()

	waitForState(t, o, StateRecording)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("cancelled session must not produce a report")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("session did not tear down after cancel")
	}
	if o.State() != StateIdle {
		t.Fatalf("expected idle after cancellation, got %v", o.State())
	}
	if o.LastReport() != nil {
		t.Fatal("cancelled session must discard partial state")
	}
}

func TestDeviceErrorAbortsBeforeRecording(t *testing.T) {
	dec := &scriptedDecoder{}
	o, _ := New(testOptions(t, failingSource{}, dec))

	_, err := o.Start(context.Background())
	var devErr *audio.DeviceError
	if !errors.As(err, &devErr) {
		t.Fatalf("expected DeviceError, got %v", err)
	}
	if o.State() != StateIdle {
		t.Fatalf("device failure must leave the session idle, got %v", o.State())
	}
}

func TestModelLoadErrorAbortsBeforeRecording(t *testing.T) {
	opts := testOptions(t, &scriptedSource{}, nil)
	opts.OpenDecoder = func() (stt.Decoder, error) {
		return nil, &stt.ModelLoadError{Language: "en", Path: "./model", Err: errors.New("missing")}
	}
	o, _ := New(opts)

	_, err := o.Start(context.Background())
	var modelErr *stt.ModelLoadError
	if !errors.As(err, &modelErr) {
		t.Fatalf("expected ModelLoadError, got %v", err)
	}
	if o.State() != StateIdle {
		t.Fatalf("model failure must leave the session idle, got %v", o.State())
	}
}

func TestDecodeErrorsAreNonFatal(t *testing.T) {
	dec := &scriptedDecoder{finalText: "fever and chills"}
	src := &scriptedSource{frames: []audio.Frame{
		{Sequence: 0, PCM: make([]byte, 100)},
		{Sequence: 1, PCM: make([]byte, 3)}, // misaligned, dropped
		{Sequence: 2, PCM: make([]byte, 100)},
	}}
	o, _ := New(testOptions(t, src, dec))

	report, err := o.Start(context.Background())
	if err != nil {
		t.Fatalf("decode errors must not abort the session: %v", err)
	}
	if report.DecodeErrors != 1 {
		t.Fatalf("expected 1 decode error recorded, got %d", report.DecodeErrors)
	}
	if !reflect.DeepEqual(report.MatchedSymptoms, []string{"fever", "chills"}) {
		t.Fatalf("expected report despite dropped frame, got %v", report.MatchedSymptoms)
	}
}

func TestResetTransitions(t *testing.T) {
	dec := &scriptedDecoder{finalText: "fever"}
	o, _ := New(testOptions(t, &scriptedSource{frames: frames(1, 100)}, dec))

	if err := o.Reset(); err == nil {
		t.Fatal("reset from idle must be rejected")
	}
	if _, err := o.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := o.Reset(); err != nil {
		t.Fatalf("reset from reported: %v", err)
	}
	if o.State() != StateIdle {
		t.Fatalf("expected idle after reset, got %v", o.State())
	}
}

func waitForState(t *testing.T, o *Orchestrator, want State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if o.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %v, still %v", want, o.State())
}
