// Package qr serializes a report into the QR code handed to health
// workers for offline scanning.
package qr

import (
	"encoding/json"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/voaprotect/voaprotect-core/internal/protocol"
	"github.com/voaprotect/voaprotect-core/internal/session"
)

// Payload builds the compact QR payload for a report.
func Payload(report session.Report) protocol.QRPayload {
	return protocol.QRPayload{
		Location: report.Location,
		Language: report.Language,
		Symptoms: report.MatchedSymptoms,
		Triage:   report.TriageRisk.String(),
		Outbreak: report.OutbreakRisk.String(),
	}
}

// EncodePNG renders the report payload as a QR code PNG.
func EncodePNG(report session.Report, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	data, err := json.Marshal(Payload(report))
	if err != nil {
		return nil, fmt.Errorf("marshal qr payload: %w", err)
	}
	png, err := qrcode.Encode(string(data), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
