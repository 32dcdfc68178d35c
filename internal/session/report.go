package session

import (
	"time"

	"github.com/voaprotect/voaprotect-core/internal/triage"
)

// Report is the immutable outcome of one completed session. Exactly one
// Report is produced per start-to-reported cycle.
type Report struct {
	SessionID       string            `json:"session_id"`
	Location        string            `json:"location"`
	Language        string            `json:"language"`
	Transcript      string            `json:"transcript"`
	MatchedSymptoms []string          `json:"matched_symptoms"`
	TriageRisk      triage.RiskLevel  `json:"triage_risk"`
	OutbreakRisk    triage.RiskLevel  `json:"outbreak_risk"`
	DecodeErrors    int               `json:"decode_errors,omitempty"`
	DroppedFrames   int               `json:"dropped_frames,omitempty"`
	Timestamp       time.Time         `json:"timestamp"`
}
