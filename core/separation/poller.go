package separation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stemset/logger"
)

// Terminal polling outcomes. ErrJobStuck and ErrJobTimeout are distinct:
// stuck means progress stopped moving, timeout means the attempt budget
// ran out while progress was still changing.
var (
	ErrJobFailed  = errors.New("separation job failed")
	ErrJobStuck   = errors.New("separation job stuck: progress not advancing")
	ErrJobTimeout = errors.New("separation job timed out")
)

// StatusFunc fetches the current state of a job. Split out from Client so
// the poller can be exercised without a live backend.
type StatusFunc func(ctx context.Context, taskID string) (*StatusResponse, error)

// Poller repeatedly queries a separation job until it reaches a terminal
// state. Every poll result is reported through OnProgress so callers can
// surface live progress to users.
type Poller struct {
	Status         StatusFunc
	Interval       time.Duration
	MaxAttempts    int
	StuckThreshold int
	// OnProgress is invoked after every successful poll. Optional.
	OnProgress func(status *StatusResponse)
}

// NewPoller builds a poller over a client with the given budgets.
func NewPoller(client *Client, interval time.Duration, maxAttempts, stuckThreshold int) *Poller {
	return &Poller{
		Status:         client.Status,
		Interval:       interval,
		MaxAttempts:    maxAttempts,
		StuckThreshold: stuckThreshold,
	}
}

// Wait polls until the job completes, fails, stalls, or the attempt budget
// is exhausted. On completion it returns the stem map reported by the
// backend. Cancelling the context stops polling immediately.
func (p *Poller) Wait(ctx context.Context, taskID string) (map[string]string, error) {
	lastProgress := -1
	sameCount := 0

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.Interval):
		}

		status, err := p.Status(ctx, taskID)
		if err != nil {
			// Transient fetch errors burn an attempt but do not kill the job.
			logger.Warn("separation status poll failed",
				logger.String("taskId", taskID),
				logger.Int("attempt", attempt),
				logger.ErrorField(err))
			continue
		}

		if p.OnProgress != nil {
			p.OnProgress(status)
		}

		switch status.Status {
		case TaskCompleted:
			return status.Stems, nil
		case TaskFailed:
			if status.Error != "" {
				return nil, fmt.Errorf("%w: %s", ErrJobFailed, status.Error)
			}
			return nil, ErrJobFailed
		}

		// Stuck detection: the same progress value observed StuckThreshold
		// polls in a row is terminal, independent of the attempt budget.
		if status.Progress == lastProgress {
			sameCount++
		} else {
			lastProgress = status.Progress
			sameCount = 1
		}
		if sameCount >= p.StuckThreshold {
			logger.Error("separation job stuck",
				logger.String("taskId", taskID),
				logger.Int("progress", status.Progress),
				logger.Int("polls", sameCount))
			return nil, ErrJobStuck
		}
	}

	return nil, ErrJobTimeout
}
