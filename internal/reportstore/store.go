// Package reportstore persists completed session reports for the local
// log view and for health-worker review. Raw audio and transcripts of
// in-flight sessions never land here; only the final Report does.
package reportstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/voaprotect/voaprotect-core/internal/config"
	"github.com/voaprotect/voaprotect-core/internal/session"
	"github.com/voaprotect/voaprotect-core/internal/triage"
)

// Entry is one stored report plus optional feedback notes.
type Entry struct {
	Report    session.Report
	Notes     string
	CreatedAt time.Time
}

// Store wraps a SQLite-backed report log.
type Store struct {
	db    *sql.DB
	cfg   config.ReportStoreConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the report store according to config. Ephemeral mode
// keeps nothing and is a no-op store.
func Open(ctx context.Context, cfg config.ReportStoreConfig, log *slog.Logger) (*Store, error) {
	if cfg.RetentionMode == "ephemeral" {
		return &Store{cfg: cfg, log: log, clock: time.Now}, nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.VacuumOnStart {
		if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
			log.Warn("report store vacuum failed", slog.String("error", err.Error()))
		}
	}

	if err := s.Prune(ctx); err != nil {
		log.Warn("report store prune on start failed", slog.String("error", err.Error()))
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	ddl := `
CREATE TABLE IF NOT EXISTS reports (
    session_id TEXT PRIMARY KEY,
    language TEXT NOT NULL,
    location TEXT,
    transcript TEXT,
    symptoms TEXT,
    triage_risk TEXT NOT NULL,
    outbreak_risk TEXT NOT NULL,
    notes TEXT,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reports_created ON reports(created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append writes one completed report.
func (s *Store) Append(ctx context.Context, report session.Report) error {
	if s.cfg.RetentionMode == "ephemeral" || s.db == nil {
		return nil
	}
	symptoms, err := json.Marshal(report.MatchedSymptoms)
	if err != nil {
		return fmt.Errorf("marshal symptoms: %w", err)
	}
	created := report.Timestamp
	if created.IsZero() {
		created = s.clock().UTC()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports(session_id, language, location, transcript, symptoms, triage_risk, outbreak_risk, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		report.SessionID, report.Language, report.Location, report.Transcript,
		string(symptoms), report.TriageRisk.String(), report.OutbreakRisk.String(), created)
	return err
}

// AddFeedback attaches free-text notes to a stored report.
func (s *Store) AddFeedback(ctx context.Context, sessionID, notes string) error {
	if s.cfg.RetentionMode == "ephemeral" || s.db == nil {
		return nil
	}
	res, err := s.db.ExecContext(ctx, `UPDATE reports SET notes = ? WHERE session_id = ?`, notes, sessionID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("no report with session id %s", sessionID)
	}
	return nil
}

// Get retrieves one stored report by session id.
func (s *Store) Get(ctx context.Context, sessionID string) (Entry, error) {
	if s.cfg.RetentionMode == "ephemeral" || s.db == nil {
		return Entry{}, errors.New("report store is ephemeral")
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, language, location, transcript, symptoms, triage_risk, outbreak_risk, notes, created_at
		 FROM reports WHERE session_id = ?`, sessionID)
	return scanEntry(row.Scan)
}

// List retrieves up to limit reports, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if s.cfg.RetentionMode == "ephemeral" || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, language, location, transcript, symptoms, triage_risk, outbreak_risk, notes, created_at
		 FROM reports ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanEntry(scan func(...any) error) (Entry, error) {
	var e Entry
	var symptoms string
	var notes sql.NullString
	var triageRisk, outbreakRisk, created string
	if err := scan(&e.Report.SessionID, &e.Report.Language, &e.Report.Location, &e.Report.Transcript,
		&symptoms, &triageRisk, &outbreakRisk, &notes, &created); err != nil {
		return Entry{}, err
	}
	if symptoms != "" {
		if err := json.Unmarshal([]byte(symptoms), &e.Report.MatchedSymptoms); err != nil {
			return Entry{}, fmt.Errorf("unmarshal symptoms: %w", err)
		}
	}
	e.Report.TriageRisk = parseRisk(triageRisk)
	e.Report.OutbreakRisk = parseRisk(outbreakRisk)
	e.Notes = notes.String
	if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
		e.CreatedAt = ts
		e.Report.Timestamp = ts
	}
	return e, nil
}

// Prune applies configured retention (called on startup and after each
// append from the runtime).
func (s *Store) Prune(ctx context.Context) error {
	if s.cfg.RetentionMode == "ephemeral" || s.db == nil {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if s.cfg.RetentionDays > 0 {
		cutoff := s.clock().Add(-time.Duration(s.cfg.RetentionDays) * 24 * time.Hour)
		if _, err = tx.ExecContext(ctx, `DELETE FROM reports WHERE created_at < ?`, cutoff.UTC()); err != nil {
			return err
		}
	}
	if s.cfg.MaxReports > 0 {
		_, err = tx.ExecContext(ctx, `DELETE FROM reports WHERE session_id IN (
			SELECT session_id FROM reports ORDER BY created_at DESC LIMIT -1 OFFSET ?
		)`, s.cfg.MaxReports)
		if err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}

func parseRisk(value string) triage.RiskLevel {
	switch value {
	case "high":
		return triage.RiskHigh
	case "moderate":
		return triage.RiskModerate
	default:
		return triage.RiskLow
	}
}
