// Package runtime wires the triage pipeline to its collaborators and
// serves the local HTTP surface.
package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voaprotect/voaprotect-core/internal/audio"
	"github.com/voaprotect/voaprotect-core/internal/bus"
	"github.com/voaprotect/voaprotect-core/internal/config"
	"github.com/voaprotect/voaprotect-core/internal/geo"
	"github.com/voaprotect/voaprotect-core/internal/natsserver"
	"github.com/voaprotect/voaprotect-core/internal/protocol"
	"github.com/voaprotect/voaprotect-core/internal/qr"
	"github.com/voaprotect/voaprotect-core/internal/reportstore"
	"github.com/voaprotect/voaprotect-core/internal/session"
	"github.com/voaprotect/voaprotect-core/internal/stt"
	"github.com/voaprotect/voaprotect-core/internal/triage"
	"github.com/voaprotect/voaprotect-core/internal/tts"
)

type Runtime struct {
	cfg          config.Config
	logger       *slog.Logger
	httpServer   *http.Server
	tracerClose  func(context.Context) error
	busClient    *bus.Client
	embeddedNATS *natsserver.EmbeddedServer
	store        *reportstore.Store
	speaker      tts.Speaker
	orchestrator *session.Orchestrator
	ready        atomic.Bool
	wg           sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start brings up telemetry, the bus, the report store, and the HTTP
// surface, then blocks until ctx is cancelled.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start embedded bus: %w", err)
	}
	r.embeddedNATS = embedded

	busClient, err := bus.Connect(r.cfg.Bus, r.logger)
	if err != nil {
		r.embeddedNATS.Shutdown()
		return fmt.Errorf("failed to connect to bus: %w", err)
	}
	r.busClient = busClient

	store, err := reportstore.Open(ctx, r.cfg.ReportStore, r.logger)
	if err != nil {
		r.busClient.Close()
		r.embeddedNATS.Shutdown()
		return fmt.Errorf("failed to open report store: %w", err)
	}
	r.store = store

	speaker, err := tts.NewSpeaker(r.cfg.TTS)
	if err != nil {
		return fmt.Errorf("failed to build tts speaker: %w", err)
	}
	r.speaker = speaker

	if err := r.buildOrchestrator(); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}
	mux.HandleFunc("POST /v1/session/start", r.handleSessionStart)
	mux.HandleFunc("POST /v1/session/reset", r.handleSessionReset)
	mux.HandleFunc("GET /v1/session/state", r.handleSessionState)
	mux.HandleFunc("GET /v1/reports", r.handleListReports)
	mux.HandleFunc("GET /v1/reports/{id}/qr.png", r.handleReportQR)
	mux.HandleFunc("POST /v1/reports/{id}/feedback", r.handleFeedback)

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.String("language", r.cfg.Session.Language))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	if err := r.store.Close(); err != nil {
		r.logger.Error("report store close error", slog.String("error", err.Error()))
	}
	r.busClient.Close()
	r.embeddedNATS.Shutdown()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (r *Runtime) buildOrchestrator() error {
	vocab, err := triage.VocabularyFor(r.cfg.Session.Language)
	if err != nil {
		return err
	}
	source, err := audio.NewSource(r.cfg.Audio)
	if err != nil {
		return fmt.Errorf("failed to build audio source: %w", err)
	}
	locator := geo.NewLocator(r.cfg.Geo)

	orchestrator, err := session.New(session.Options{
		Config: r.cfg.Session,
		Source: source,
		OpenDecoder: func() (stt.Decoder, error) {
			return stt.Open(r.cfg.STT, r.cfg.Audio, r.cfg.Session.Language)
		},
		Vocabulary: vocab,
		Outbreak:   triage.NewRandomOutbreakScorer(time.Now().UnixNano()),
		Locate:     locator.Locate,
		OnSegment: func(sessionID string, seg stt.Segment) {
			evt := protocol.TranscriptSegment{
				SessionID: sessionID,
				Sequence:  seg.Sequence,
				Text:      seg.Text,
				Final:     seg.Final,
				Timestamp: time.Now().UTC(),
			}
			if err := r.busClient.PublishSegment(evt); err != nil {
				r.logger.Warn("failed to publish segment", slog.String("error", err.Error()))
			}
		},
		Logger: r.logger,
	})
	if err != nil {
		return err
	}
	r.orchestrator = orchestrator
	return nil
}

// runSession speaks the prompts, runs one session, and hands the report
// to the log store and the bus.
func (r *Runtime) runSession(ctx context.Context) {
	defer r.wg.Done()

	language := r.cfg.Session.Language
	prompts := triage.PromptsFor(language)
	for _, text := range []string{prompts.SymptomsPrompt, prompts.ExamplePrompt, prompts.StartInstruction} {
		if err := r.speaker.Speak(ctx, text, language); err != nil {
			r.logger.Warn("prompt playback failed", slog.String("error", err.Error()))
			break
		}
	}

	report, err := r.orchestrator.Start(ctx)
	if err != nil {
		var stateErr *session.StateError
		if errors.As(err, &stateErr) {
			r.logger.Warn("session start ignored", slog.String("reason", stateErr.Error()))
			return
		}
		r.logger.Error("session failed", slog.String("error", err.Error()))
		return
	}

	if err := r.store.Append(ctx, *report); err != nil {
		r.logger.Error("failed to store report", slog.String("error", err.Error()))
	} else if err := r.store.Prune(ctx); err != nil {
		r.logger.Warn("report prune failed", slog.String("error", err.Error()))
	}

	evt := protocol.ReportEvent{
		SessionID:       report.SessionID,
		Location:        report.Location,
		Language:        report.Language,
		Transcript:      report.Transcript,
		MatchedSymptoms: report.MatchedSymptoms,
		TriageRisk:      report.TriageRisk.String(),
		OutbreakRisk:    report.OutbreakRisk.String(),
		Timestamp:       report.Timestamp,
	}
	if err := r.busClient.PublishReport(evt); err != nil {
		r.logger.Warn("failed to publish report", slog.String("error", err.Error()))
	}
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() && r.busClient.Healthy() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

func (r *Runtime) handleSessionStart(w http.ResponseWriter, req *http.Request) {
	if r.orchestrator.State() != session.StateIdle {
		writeJSON(w, http.StatusConflict, map[string]any{
			"state": r.orchestrator.State(),
			"error": "a session is already in progress",
		})
		return
	}
	r.wg.Add(1)
	go r.runSession(context.WithoutCancel(req.Context()))
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted"})
}

func (r *Runtime) handleSessionReset(w http.ResponseWriter, _ *http.Request) {
	if err := r.orchestrator.Reset(); err != nil {
		writeJSON(w, http.StatusConflict, map[string]any{
			"state": r.orchestrator.State(),
			"error": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": session.StateIdle})
}

func (r *Runtime) handleSessionState(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{"state": r.orchestrator.State()}
	if report := r.orchestrator.LastReport(); report != nil {
		payload["report"] = report
	}
	writeJSON(w, http.StatusOK, payload)
}

func (r *Runtime) handleListReports(w http.ResponseWriter, req *http.Request) {
	entries, err := r.store.List(req.Context(), 100)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (r *Runtime) handleReportQR(w http.ResponseWriter, req *http.Request) {
	entry, err := r.store.Get(req.Context(), req.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "report not found"})
		return
	}
	png, err := qr.EncodePNG(entry.Report, 256)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func (r *Runtime) handleFeedback(w http.ResponseWriter, req *http.Request) {
	var payload struct {
		Notes string `json:"notes"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid feedback payload"})
		return
	}
	if err := r.store.AddFeedback(req.Context(), req.PathValue("id"), payload.Notes); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "saved"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
