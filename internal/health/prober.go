// Package health probes backend service liveness. A probe is a cheap
// point-in-time check used to decide whether to attempt a heavier
// operation — it holds no state between calls and does not back off.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// healthPath is the well-known liveness path under each service base URL.
const healthPath = "/actuator/health"

// statusUp is the body value a live service reports.
const statusUp = "UP"

// Status is the outcome of one liveness probe.
type Status int

const (
	Down Status = iota
	Up
)

func (s Status) String() string {
	if s == Up {
		return "up"
	}

	return "down"
}

// Prober checks whether a backend service is live.
type Prober struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewProber creates a Prober. A nil httpClient falls back to
// http.DefaultClient.
func NewProber(httpClient *http.Client, logger *slog.Logger) *Prober {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Prober{httpClient: httpClient, logger: logger}
}

// Check issues a liveness request against the service at baseURL. Any
// non-success response, network failure, or malformed body is Down —
// Check never returns an error.
func (p *Prober) Check(ctx context.Context, baseURL string) Status {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+healthPath, http.NoBody)
	if err != nil {
		p.logger.Debug("health probe request construction failed",
			slog.String("base_url", baseURL),
			slog.String("error", err.Error()),
		)

		return Down
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Debug("health probe unreachable",
			slog.String("base_url", baseURL),
			slog.String("error", err.Error()),
		)

		return Down
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		p.logger.Debug("health probe non-success status",
			slog.String("base_url", baseURL),
			slog.Int("status", resp.StatusCode),
		)

		return Down
	}

	var body struct {
		Status string `json:"status"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		p.logger.Debug("health probe body malformed",
			slog.String("base_url", baseURL),
			slog.String("error", err.Error()),
		)

		return Down
	}

	if body.Status != statusUp {
		p.logger.Debug("health probe reports service not up",
			slog.String("base_url", baseURL),
			slog.String("status", body.Status),
		)

		return Down
	}

	return Up
}
