package separation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"stemset/logger"
)

// Task status values reported by the separation backend.
const (
	TaskPending    = "pending"
	TaskProcessing = "processing"
	TaskCompleted  = "completed"
	TaskFailed     = "failed"
)

// Request describes one separation job submission.
type Request struct {
	FileName       string
	File           io.Reader
	SeparationType string // e.g. "vocals-instrumental", "vocals-drums-bass-other"
	HiFi           bool
	SongID         string
	UserID         string
}

// SubmitResponse is the backend's answer to POST /separate.
type SubmitResponse struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// StatusResponse is the backend's answer to GET /status/{taskId}.
type StatusResponse struct {
	TaskID   string            `json:"task_id"`
	Status   string            `json:"status"`
	Progress int               `json:"progress"`
	Stems    map[string]string `json:"stems,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// Client talks to the external separation backend over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a separation backend client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		// Uploads carry whole audio files; give them room.
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// Upload pushes the original file into the backend's cache
// (POST /upload with file, user_id, song_id fields).
func (c *Client) Upload(ctx context.Context, req Request) (*SubmitResponse, error) {
	fields := map[string]string{
		"user_id": req.UserID,
		"song_id": req.SongID,
	}
	return c.postMultipart(ctx, "/upload", req.FileName, req.File, fields)
}

// Separate submits a separation job (POST /separate with file,
// separation_type, hi_fi, song_id, user_id fields).
func (c *Client) Separate(ctx context.Context, req Request) (*SubmitResponse, error) {
	fields := map[string]string{
		"separation_type": req.SeparationType,
		"hi_fi":           strconv.FormatBool(req.HiFi),
		"song_id":         req.SongID,
		"user_id":         req.UserID,
	}
	return c.postMultipart(ctx, "/separate", req.FileName, req.File, fields)
}

// Status fetches the state of a running job.
func (c *Client) Status(ctx context.Context, taskID string) (*StatusResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status/"+taskID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build status request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("status request failed for task %s: %w", taskID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("status request for task %s returned %d: %s", taskID, resp.StatusCode, string(body))
	}

	var status StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}
	return &status, nil
}

// Health probes GET /health. The backend reports either "OK" or "running".
func (c *Client) Health(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to build health request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("separation backend unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("separation backend unhealthy: status %d", resp.StatusCode)
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("failed to decode health response: %w", err)
	}
	if body.Status != "OK" && body.Status != "running" {
		return fmt.Errorf("separation backend reported status %q", body.Status)
	}
	return nil
}

func (c *Client) postMultipart(ctx context.Context, path, fileName string, file io.Reader, fields map[string]string) (*SubmitResponse, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	// Stream the multipart body so large uploads are never buffered whole.
	go func() {
		var err error
		defer func() { pw.CloseWithError(err) }()

		for key, val := range fields {
			if err = mw.WriteField(key, val); err != nil {
				return
			}
		}
		var part io.Writer
		if part, err = mw.CreateFormFile("file", fileName); err != nil {
			return
		}
		if _, err = io.Copy(part, file); err != nil {
			return
		}
		err = mw.Close()
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, pr)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, string(body))
	}

	var submit SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&submit); err != nil {
		return nil, fmt.Errorf("failed to decode response from %s: %w", path, err)
	}

	logger.Debug("separation request accepted",
		logger.String("path", path),
		logger.String("taskId", submit.TaskID))
	return &submit, nil
}
