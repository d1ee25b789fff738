// Package insights posts finished session results to an external
// summary service and returns its free-text commentary. The session
// controller calls it out-of-band, so a slow or absent service never
// affects a measurement.
package insights

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/banshee-data/pulse.report/internal/httputil"
	"github.com/banshee-data/pulse.report/internal/session"
)

// maxResponseBytes caps the summary body read from the service.
const maxResponseBytes = 64 << 10

// Client implements session.InsightsProvider against an HTTP endpoint
// that accepts a JSON result and returns a JSON summary.
type Client struct {
	url    string
	client httputil.HTTPClient
}

// NewClient creates an insights client for the given endpoint URL.
// A nil httpClient falls back to http.DefaultClient.
func NewClient(url string, httpClient httputil.HTTPClient) *Client {
	if httpClient == nil {
		httpClient = httputil.NewStandardClient(nil)
	}
	return &Client{url: url, client: httpClient}
}

type summaryRequest struct {
	SessionID    string  `json:"session_id"`
	HeartRate    int     `json:"heart_rate"`
	OxygenLevel  int     `json:"oxygen_level"`
	Confidence   float64 `json:"confidence"`
	RMSSDMs      float64 `json:"rmssd_ms"`
	Zone         string  `json:"zone"`
	Synthetic    bool    `json:"synthetic"`
	Measurements []int   `json:"measurements"`
}

type summaryResponse struct {
	Summary string `json:"summary"`
}

// Summarize posts the result and returns the service's summary text.
func (c *Client) Summarize(ctx context.Context, r session.Result) (string, error) {
	payload, err := json.Marshal(summaryRequest{
		SessionID:    r.SessionID,
		HeartRate:    r.FinalHeartRate,
		OxygenLevel:  r.FinalOxygenLevel,
		Confidence:   r.Confidence,
		RMSSDMs:      r.RMSSDMs,
		Zone:         string(r.Zone),
		Synthetic:    r.Synthetic,
		Measurements: r.Measurements,
	})
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post result: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("insights service returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	var out summaryResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.Summary == "" {
		return "", fmt.Errorf("insights service returned an empty summary")
	}
	return out.Summary, nil
}
