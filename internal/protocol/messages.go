package protocol

import "time"

// TranscriptSegment is STT output broadcast on the bus for live
// presentation collaborators.
type TranscriptSegment struct {
	SessionID string    `json:"session_id"`
	Sequence  int       `json:"sequence"`
	Text      string    `json:"text"`
	Final     bool      `json:"final"`
	Timestamp time.Time `json:"timestamp"`
}

// ReportEvent is the completed session report broadcast on the bus for
// presentation, map rendering, and log collaborators.
type ReportEvent struct {
	SessionID       string    `json:"session_id"`
	Location        string    `json:"location"`
	Language        string    `json:"language"`
	Transcript      string    `json:"transcript"`
	MatchedSymptoms []string  `json:"matched_symptoms"`
	TriageRisk      string    `json:"triage_risk"`
	OutbreakRisk    string    `json:"outbreak_risk"`
	Timestamp       time.Time `json:"timestamp"`
}

// QRPayload is the compact report serialization embedded in the QR code
// handed to health workers.
type QRPayload struct {
	Location string   `json:"location"`
	Language string   `json:"language"`
	Symptoms []string `json:"symptoms"`
	Triage   string   `json:"triage"`
	Outbreak string   `json:"outbreak"`
}

const (
	SubjectSegmentPartial = "stt.segment.partial"
	SubjectSegmentFinal   = "stt.segment.final"
	SubjectReport         = "triage.report"
)
