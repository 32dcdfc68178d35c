// Package geo resolves the device's approximate location from its public
// IP, for the area field of the report. Best-effort only: failures fall
// back to "Not available" rather than blocking a session.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/voaprotect/voaprotect-core/internal/config"
	"github.com/voaprotect/voaprotect-core/internal/triage"
)

// NotAvailable is the location placeholder used when lookup is disabled
// or fails.
const NotAvailable = "Not available"

// Locator resolves the device's area observation.
type Locator interface {
	Locate(ctx context.Context) triage.Observation
}

// NewLocator builds the IP-based locator, or a static fallback when geo
// lookup is disabled.
func NewLocator(cfg config.GeoConfig) Locator {
	if !cfg.Enabled {
		return staticLocator{}
	}
	return &ipLocator{
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond},
	}
}

type staticLocator struct{}

func (staticLocator) Locate(context.Context) triage.Observation {
	return triage.Observation{Location: NotAvailable}
}

type ipLocator struct {
	endpoint string
	client   *http.Client
}

type ipResponse struct {
	Status  string  `json:"status"`
	City    string  `json:"city"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

func (l *ipLocator) Locate(ctx context.Context) triage.Observation {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.endpoint, nil)
	if err != nil {
		return triage.Observation{Location: NotAvailable}
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return triage.Observation{Location: NotAvailable}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return triage.Observation{Location: NotAvailable}
	}

	var payload ipResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return triage.Observation{Location: NotAvailable}
	}
	if payload.Status != "" && payload.Status != "success" {
		return triage.Observation{Location: NotAvailable}
	}
	if payload.City == "" && payload.Country == "" {
		return triage.Observation{Location: NotAvailable}
	}
	return triage.Observation{
		Location:  fmt.Sprintf("%s, %s", payload.City, payload.Country),
		Latitude:  payload.Lat,
		Longitude: payload.Lon,
	}
}
