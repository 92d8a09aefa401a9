package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ScoreReporter is a stateless REST client for a remote leaderboard service.
// Used when the game server runs split from the leaderboard; failures are
// for the caller to log, never to retry.
type ScoreReporter struct {
	baseURL string
	client  *http.Client
}

// NewScoreReporter creates a reporter for the service at baseURL
// (e.g. "http://leaderboard:8080").
func NewScoreReporter(baseURL string) *ScoreReporter {
	return &ScoreReporter{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// PostScore submits a final tally and returns the saved record.
func (sr *ScoreReporter) PostScore(ctx context.Context, sum Summary) (*ScoreRecord, error) {
	payload, err := json.Marshal(map[string]any{
		"player_name":      sum.PlayerName,
		"score":            sum.Score,
		"snake_length":     sum.SnakeLength,
		"duration_seconds": sum.DurationSeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("encode score: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sr.baseURL+"/api/scores", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := sr.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post score: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("post score: %s", errorDetail(resp))
	}

	var rec ScoreRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode saved score: %w", err)
	}
	return &rec, nil
}

// FetchLeaderboard retrieves the ranked table, capped at limit entries.
func (sr *ScoreReporter) FetchLeaderboard(ctx context.Context, limit int) (*Leaderboard, error) {
	u := sr.baseURL + "/api/leaderboard"
	if limit > 0 {
		u += "?limit=" + strconv.Itoa(limit)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := sr.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch leaderboard: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch leaderboard: %s", errorDetail(resp))
	}

	var lb Leaderboard
	if err := json.NewDecoder(resp.Body).Decode(&lb); err != nil {
		return nil, fmt.Errorf("decode leaderboard: %w", err)
	}
	return &lb, nil
}

// FetchBest retrieves a player's best result.
func (sr *ScoreReporter) FetchBest(ctx context.Context, playerName string) (*PlayerBest, error) {
	u := sr.baseURL + "/api/scores/best?player_name=" + url.QueryEscape(playerName)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := sr.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch best score: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch best score: %s", errorDetail(resp))
	}

	var best PlayerBest
	if err := json.NewDecoder(resp.Body).Decode(&best); err != nil {
		return nil, fmt.Errorf("decode best score: %w", err)
	}
	return &best, nil
}

// errorDetail extracts the {"detail": …} body of a failed response, falling
// back to the HTTP status.
func errorDetail(resp *http.Response) string {
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Detail != "" {
		return body.Detail
	}
	return resp.Status
}
