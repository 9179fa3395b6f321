package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// separation progress entries expire on their own; a finished or abandoned
// job should not linger in Redis forever.
const progressTTL = time.Hour

// JobProgress is the live state of a separation job, published by the
// orchestrator on every poll and read by the song status endpoint.
type JobProgress struct {
	SongID    string `json:"songId"`
	TaskID    string `json:"taskId"`
	Status    string `json:"status"`
	Progress  int    `json:"progress"`
	Message   string `json:"message,omitempty"`
	UpdatedAt int64  `json:"updatedAt"`
}

// ProgressCache stores separation job progress keyed by song ID.
type ProgressCache struct {
	client *redis.Client
}

// NewProgressCache returns a progress cache over the shared Redis client.
func NewProgressCache() *ProgressCache {
	return &ProgressCache{client: RedisClient}
}

func progressKey(songID string) string {
	return fmt.Sprintf("separation:progress:%s", songID)
}

// Publish writes the current progress for a song.
func (c *ProgressCache) Publish(ctx context.Context, p JobProgress) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	p.UpdatedAt = time.Now().UnixMilli()
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal job progress: %w", err)
	}
	if err := c.client.Set(ctx, progressKey(p.SongID), data, progressTTL).Err(); err != nil {
		return fmt.Errorf("failed to store job progress: %w", err)
	}
	return nil
}

// Get reads the latest progress for a song. Returns (nil, nil) when no
// entry exists, which callers treat as "no job in flight".
func (c *ProgressCache) Get(ctx context.Context, songID string) (*JobProgress, error) {
	if c.client == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}
	data, err := c.client.Get(ctx, progressKey(songID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job progress: %w", err)
	}
	var p JobProgress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job progress: %w", err)
	}
	return &p, nil
}

// Clear removes the progress entry for a song.
func (c *ProgressCache) Clear(ctx context.Context, songID string) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	return c.client.Del(ctx, progressKey(songID)).Err()
}
