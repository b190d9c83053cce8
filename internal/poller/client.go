// Package poller implements the client-side status polling protocol used by
// the editor UI: repeated GETs against the status API with exponential
// backoff on transport errors, resolving each session to exactly one
// terminal outcome.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrJobNotFound is returned when the server does not know the job ID. It is
// not retryable.
var ErrJobNotFound = errors.New("job not found")

// StatusResult mirrors the status endpoint's wire format.
type StatusResult struct {
	JobID                     string    `json:"job_id"`
	Status                    string    `json:"status"`
	Progress                  float64   `json:"progress"`
	ProgressPercent           int       `json:"progress_percent"`
	Message                   string    `json:"message"`
	Completed                 bool      `json:"completed"`
	Failed                    bool      `json:"failed"`
	Error                     *string   `json:"error"`
	ElapsedTime               float64   `json:"elapsed_time"`
	UpdatedAt                 time.Time `json:"updated_at"`
	EstimatedRemainingSeconds *float64  `json:"estimated_remaining_seconds"`
}

// HistoryResult mirrors the history endpoint's wire format.
type HistoryResult struct {
	JobID   string `json:"job_id"`
	History []struct {
		Stage              string            `json:"stage"`
		Progress           float64           `json:"progress"`
		Message            string            `json:"message"`
		Timestamp          time.Time         `json:"timestamp"`
		TimestampFormatted string            `json:"timestamp_formatted"`
		Error              string            `json:"error,omitempty"`
		Metadata           map[string]string `json:"metadata,omitempty"`
	} `json:"history"`
	Count int `json:"count"`
}

// Client is a thin wrapper over the status API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a status API client. A nil httpClient selects a default
// with a 10 second request timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

// GetStatus fetches the current snapshot for a job.
func (c *Client) GetStatus(ctx context.Context, jobID string) (*StatusResult, error) {
	var result StatusResult
	if err := c.getJSON(ctx, fmt.Sprintf("%s/status/%s", c.baseURL, jobID), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetHistory fetches the audit history for a job. A positive limit restricts
// the response to the most recent entries.
func (c *Client) GetHistory(ctx context.Context, jobID string, limit int) (*HistoryResult, error) {
	url := fmt.Sprintf("%s/history/%s", c.baseURL, jobID)
	if limit > 0 {
		url = fmt.Sprintf("%s?limit=%d", url, limit)
	}
	var result HistoryResult
	if err := c.getJSON(ctx, url, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	case http.StatusNotFound:
		return ErrJobNotFound
	default:
		return fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}
}
