package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Ticker calls the scheduler-trigger endpoints of a running API.
type Ticker struct {
	logger     *slog.Logger
	apiURL     string
	token      string
	batchSize  int
	httpClient *http.Client
}

func NewTicker(logger *slog.Logger, apiURL, token string, batchSize int) *Ticker {
	return &Ticker{
		logger:     logger,
		apiURL:     strings.TrimSuffix(apiURL, "/"),
		token:      token,
		batchSize:  batchSize,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// Tick triggers one scheduler run and one scheduled-send sweep.
func (t *Ticker) Tick(ctx context.Context) {
	for _, endpoint := range []string{"/scheduler/run", "/scheduler/sweep-scheduled"} {
		summary, err := t.trigger(ctx, endpoint)
		if err != nil {
			t.logger.ErrorContext(ctx, "Scheduler trigger failed", "endpoint", endpoint, "error", err)

			continue
		}

		t.logger.InfoContext(ctx, "Scheduler trigger finished", "endpoint", endpoint, "summary", summary)
	}
}

func (t *Ticker) trigger(ctx context.Context, endpoint string) (map[string]any, error) {
	url := t.apiURL + endpoint
	if t.batchSize > 0 {
		url = fmt.Sprintf("%s?batch_size=%d", url, t.batchSize)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+t.token)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var summary map[string]any
	if err := json.Unmarshal(body, &summary); err != nil {
		return nil, err
	}

	return summary, nil
}
