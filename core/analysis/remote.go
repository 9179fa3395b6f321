package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"stemset/logger"
)

// RemoteProvider submits analysis jobs to the separation backend's chord
// endpoint and polls until they finish.
type RemoteProvider struct {
	BaseURL      string
	Client       *http.Client
	PollInterval time.Duration
	MaxAttempts  int
}

// NewRemoteProvider points at the backend serving /api/analyze-chords.
func NewRemoteProvider(baseURL string, pollInterval time.Duration, maxAttempts int) *RemoteProvider {
	return &RemoteProvider{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		Client:       &http.Client{Timeout: 30 * time.Second},
		PollInterval: pollInterval,
		MaxAttempts:  maxAttempts,
	}
}

type submitChordResponse struct {
	TaskID string `json:"task_id"`
}

type chordStatusResponse struct {
	Status string  `json:"status"`
	Result *Result `json:"result"`
	Error  string  `json:"error"`
}

func (p *RemoteProvider) Analyze(ctx context.Context, audioURL string) (*Result, error) {
	body, err := json.Marshal(map[string]string{"audio_url": audioURL})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.BaseURL+"/api/analyze-chords", strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit chord analysis: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return nil, fmt.Errorf("submit chord analysis: backend returned %d", resp.StatusCode)
	}

	var submit submitChordResponse
	if err := json.NewDecoder(resp.Body).Decode(&submit); err != nil {
		return nil, fmt.Errorf("submit chord analysis: %w", err)
	}

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := sleepCtx(ctx, p.PollInterval); err != nil {
			return nil, err
		}
		status, err := p.status(ctx, submit.TaskID)
		if err != nil {
			logger.Warn("chord analysis poll failed",
				logger.String("taskId", submit.TaskID),
				logger.ErrorField(err))
			continue
		}
		switch status.Status {
		case "completed":
			return status.Result, nil
		case "failed":
			return nil, fmt.Errorf("chord analysis failed: %s", status.Error)
		}
	}
	return nil, fmt.Errorf("chord analysis timed out after %d polls", p.MaxAttempts)
}

func (p *RemoteProvider) status(ctx context.Context, taskID string) (*chordStatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		p.BaseURL+"/api/chord-analysis/"+taskID, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("backend returned %d", resp.StatusCode)
	}
	var out chordStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}
