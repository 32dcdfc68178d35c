package qr

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/voaprotect/voaprotect-core/internal/session"
	"github.com/voaprotect/voaprotect-core/internal/triage"
)

func TestPayloadPreservesSymptomOrder(t *testing.T) {
	report := session.Report{
		Location:        "Antananarivo, MG",
		Language:        "en",
		MatchedSymptoms: []string{"fever", "fatigue", "nausea"},
		TriageRisk:      triage.RiskModerate,
		OutbreakRisk:    triage.RiskHigh,
	}
	payload := Payload(report)
	if !reflect.DeepEqual(payload.Symptoms, report.MatchedSymptoms) {
		t.Fatalf("expected %v, got %v", report.MatchedSymptoms, payload.Symptoms)
	}
	if payload.Triage != "moderate" || payload.Outbreak != "high" {
		t.Fatalf("unexpected risk serialization: %s / %s", payload.Triage, payload.Outbreak)
	}
}

func TestEncodePNG(t *testing.T) {
	report := session.Report{
		Language:        "en",
		MatchedSymptoms: []string{"fever"},
		TriageRisk:      triage.RiskLow,
		OutbreakRisk:    triage.RiskLow,
	}
	png, err := EncodePNG(report, 0)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Fatal("expected png output")
	}
}
