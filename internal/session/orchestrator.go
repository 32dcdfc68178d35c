// Package session sequences one acquisition window: capture, streaming
// decode, symptom matching, risk scoring, and assembly of the final
// Report.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/voaprotect/voaprotect-core/internal/audio"
	"github.com/voaprotect/voaprotect-core/internal/config"
	"github.com/voaprotect/voaprotect-core/internal/stt"
	"github.com/voaprotect/voaprotect-core/internal/triage"
)

// LocateFunc resolves the device's area observation for the report. A
// nil LocateFunc leaves the location empty.
type LocateFunc func(ctx context.Context) triage.Observation

// Options wires the orchestrator's collaborators.
type Options struct {
	Config      config.SessionConfig
	Source      audio.Source
	OpenDecoder func() (stt.Decoder, error)
	Vocabulary  triage.Vocabulary
	Outbreak    triage.OutbreakScorer
	Locate      LocateFunc
	OnSegment   func(sessionID string, seg stt.Segment)
	Logger      *slog.Logger
}

// Orchestrator owns the session state machine. It is safe for concurrent
// use; a start request while a session is in flight is rejected with a
// StateError and changes nothing.
type Orchestrator struct {
	cfg       config.SessionConfig
	source    audio.Source
	openDec   func() (stt.Decoder, error)
	vocab     triage.Vocabulary
	outbreak  triage.OutbreakScorer
	locate    LocateFunc
	onSegment func(sessionID string, seg stt.Segment)
	logger    *slog.Logger

	framesConsumed metric.Int64Counter
	framesDropped  metric.Int64Counter
	decodeErrors   metric.Int64Counter
	sessionsDone   metric.Int64Counter

	mu       sync.Mutex
	state    State
	starting bool
	report   *Report
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Source == nil {
		return nil, errors.New("session: source is required")
	}
	if opts.OpenDecoder == nil {
		return nil, errors.New("session: decoder factory is required")
	}
	if opts.Outbreak == nil {
		return nil, errors.New("session: outbreak scorer is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	o := &Orchestrator{
		cfg:       opts.Config,
		source:    opts.Source,
		openDec:   opts.OpenDecoder,
		vocab:     opts.Vocabulary,
		outbreak:  opts.Outbreak,
		locate:    opts.Locate,
		onSegment: opts.OnSegment,
		logger:    opts.Logger.With(slog.String("component", "session")),
		state:     StateIdle,
	}
	o.initMetrics()
	return o, nil
}

func (o *Orchestrator) initMetrics() {
	meter := otel.Meter("github.com/voaprotect/voaprotect-core/session")
	var err error
	if o.framesConsumed, err = meter.Int64Counter("voa_frames_consumed_total"); err != nil {
		o.logger.Warn("failed to create frame counter", slog.String("error", err.Error()))
	}
	if o.framesDropped, err = meter.Int64Counter("voa_frames_dropped_total"); err != nil {
		o.logger.Warn("failed to create drop counter", slog.String("error", err.Error()))
	}
	if o.decodeErrors, err = meter.Int64Counter("voa_decode_errors_total"); err != nil {
		o.logger.Warn("failed to create decode error counter", slog.String("error", err.Error()))
	}
	if o.sessionsDone, err = meter.Int64Counter("voa_sessions_completed_total"); err != nil {
		o.logger.Warn("failed to create session counter", slog.String("error", err.Error()))
	}
}

func count(ctx context.Context, c metric.Int64Counter, n int64) {
	if c != nil {
		c.Add(ctx, n)
	}
}

// State reports the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// LastReport returns the report of the most recently completed session,
// or nil if none has completed.
func (o *Orchestrator) LastReport() *Report {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.report
}

// Reset returns the orchestrator to Idle after a report has been handed
// off. Any other state rejects the command.
func (o *Orchestrator) Reset() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateReported {
		return &StateError{State: o.state, Command: "reset"}
	}
	o.state = StateIdle
	return nil
}

// Start runs one full session and returns its Report. Fatal open errors
// (*audio.DeviceError, *stt.ModelLoadError) abort before the state
// leaves Idle; cancellation mid-session discards partial state and
// returns the context error. Exactly one Report is produced per
// successful cycle.
func (o *Orchestrator) Start(ctx context.Context) (*Report, error) {
	if err := o.begin(); err != nil {
		return nil, err
	}
	defer func() {
		o.mu.Lock()
		o.starting = false
		o.mu.Unlock()
	}()

	report, err := o.run(ctx)
	if err != nil {
		o.setState(StateIdle)
		return nil, err
	}
	return report, nil
}

func (o *Orchestrator) begin() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateIdle || o.starting {
		return &StateError{State: o.state, Command: "start"}
	}
	// The state stays Idle until capture is open so that open failures
	// abort without any transition; starting blocks a concurrent start.
	o.starting = true
	return nil
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

func (o *Orchestrator) run(ctx context.Context) (*Report, error) {
	sessionID := uuid.NewString()

	decoder, err := o.openDec()
	if err != nil {
		return nil, err
	}
	defer decoder.Close()

	window := time.Duration(o.cfg.WindowSeconds) * time.Second
	recCtx, cancelRec := context.WithTimeout(ctx, window)
	defer cancelRec()

	frames, err := o.source.Start(recCtx)
	if err != nil {
		return nil, err
	}

	o.setState(StateRecording)
	o.logger.Info("recording started",
		slog.String("language", o.cfg.Language),
		slog.Duration("window", window))

	// Flip to Decoding when the window elapses; the consumer below keeps
	// draining whatever the producer managed to queue.
	go func() {
		<-recCtx.Done()
		if ctx.Err() == nil {
			o.mu.Lock()
			if o.state == StateRecording {
				o.state = StateDecoding
			}
			o.mu.Unlock()
		}
	}()

	q := make(chan audio.Frame, o.cfg.QueueCapacity)
	droppedCh := make(chan int, 1)
	go func() {
		droppedCh <- pumpFrames(recCtx, frames, q, o.cfg.QueuePolicy)
	}()

	var segments []stt.Segment
	decodeErrs := 0
	consumed := 0
	for frame := range q {
		consumed++
		seg, err := decoder.Feed(ctx, frame)
		if err != nil {
			// Per-frame failures never abort the window.
			decodeErrs++
			o.logger.Warn("frame dropped", slog.Int("frame", frame.Sequence), slog.String("error", err.Error()))
			continue
		}
		if seg != nil {
			segments = append(segments, *seg)
			o.emitSegment(sessionID, *seg)
		}
	}
	dropped := <-droppedCh
	count(ctx, o.framesConsumed, int64(consumed))
	count(ctx, o.framesDropped, int64(dropped))

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("session cancelled: %w", err)
	}

	o.setState(StateDecoding)
	final, err := decoder.Flush(ctx)
	if err != nil {
		decodeErrs++
		o.logger.Warn("flush degraded", slog.String("error", err.Error()))
	}
	segments = append(segments, final)
	o.emitSegment(sessionID, final)
	count(ctx, o.decodeErrors, int64(decodeErrs))

	transcript := joinSegments(segments)
	matched := triage.Match(transcript, o.vocab)
	triageRisk := triage.TriageRisk(len(matched))

	var obs triage.Observation
	if o.locate != nil {
		obs = o.locate(ctx)
	}
	outbreakRisk := o.outbreak.Score(ctx, obs)
	o.setState(StateScored)

	report := &Report{
		SessionID:       sessionID,
		Location:        obs.Location,
		Language:        o.cfg.Language,
		Transcript:      transcript,
		MatchedSymptoms: matched,
		TriageRisk:      triageRisk,
		OutbreakRisk:    outbreakRisk,
		DecodeErrors:    decodeErrs,
		DroppedFrames:   dropped,
		Timestamp:       time.Now().UTC(),
	}

	o.mu.Lock()
	o.report = report
	o.state = StateReported
	o.mu.Unlock()
	count(ctx, o.sessionsDone, 1)

	o.logger.Info("session reported",
		slog.String("session_id", report.SessionID),
		slog.Int("matched", len(matched)),
		slog.String("triage_risk", triageRisk.String()),
		slog.String("outbreak_risk", outbreakRisk.String()))
	return report, nil
}

func (o *Orchestrator) emitSegment(sessionID string, seg stt.Segment) {
	if o.onSegment != nil {
		o.onSegment(sessionID, seg)
	}
}

func joinSegments(segments []stt.Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg.Text != "" {
			parts = append(parts, seg.Text)
		}
	}
	return strings.Join(parts, " ")
}
