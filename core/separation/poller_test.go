package separation

import (
	"context"
	"errors"
	"testing"
	"time"
)

// scriptedStatus replays a fixed sequence of poll results and counts calls.
type scriptedStatus struct {
	responses []*StatusResponse
	errs      []error
	calls     int
}

func (s *scriptedStatus) fn(ctx context.Context, taskID string) (*StatusResponse, error) {
	i := s.calls
	s.calls++
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return s.responses[i], err
}

func testPoller(status StatusFunc, maxAttempts, stuckThreshold int) *Poller {
	return &Poller{
		Status:         status,
		Interval:       time.Millisecond,
		MaxAttempts:    maxAttempts,
		StuckThreshold: stuckThreshold,
	}
}

func processing(progress int) *StatusResponse {
	return &StatusResponse{TaskID: "t1", Status: TaskProcessing, Progress: progress}
}

func TestWaitReturnsStemsOnCompletion(t *testing.T) {
	stems := map[string]string{"vocals": "http://b/v.wav", "instrumental": "http://b/i.wav"}
	script := &scriptedStatus{responses: []*StatusResponse{
		processing(10),
		processing(60),
		{TaskID: "t1", Status: TaskCompleted, Progress: 100, Stems: stems},
	}}

	got, err := testPoller(script.fn, 120, 10).Wait(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(got) != 2 || got["vocals"] != stems["vocals"] {
		t.Errorf("stems = %v, want %v", got, stems)
	}
}

func TestWaitReportsBackendFailure(t *testing.T) {
	script := &scriptedStatus{responses: []*StatusResponse{
		processing(20),
		{TaskID: "t1", Status: TaskFailed, Error: "model exploded"},
	}}

	_, err := testPoller(script.fn, 120, 10).Wait(context.Background(), "t1")
	if !errors.Is(err, ErrJobFailed) {
		t.Fatalf("err = %v, want ErrJobFailed", err)
	}
	if err.Error() == ErrJobFailed.Error() {
		t.Error("backend error detail was dropped from the failure")
	}
}

func TestWaitDetectsStuckProgress(t *testing.T) {
	// Progress moves once, then freezes at 30. The tenth consecutive
	// observation of 30 must end the job as stuck.
	responses := []*StatusResponse{processing(10)}
	for i := 0; i < 20; i++ {
		responses = append(responses, processing(30))
	}
	script := &scriptedStatus{responses: responses}

	_, err := testPoller(script.fn, 120, 10).Wait(context.Background(), "t1")
	if !errors.Is(err, ErrJobStuck) {
		t.Fatalf("err = %v, want ErrJobStuck", err)
	}
	// One poll at 10 plus exactly ten at 30.
	if script.calls != 11 {
		t.Errorf("polled %d times, want 11", script.calls)
	}
}

func TestWaitMovingProgressIsNeverStuck(t *testing.T) {
	var responses []*StatusResponse
	for i := 0; i < 30; i++ {
		responses = append(responses, processing(i))
	}
	responses = append(responses, &StatusResponse{TaskID: "t1", Status: TaskCompleted, Stems: map[string]string{"vocals": "u"}})
	script := &scriptedStatus{responses: responses}

	if _, err := testPoller(script.fn, 120, 10).Wait(context.Background(), "t1"); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestWaitTimesOutWhenBudgetExhausted(t *testing.T) {
	// Progress keeps alternating so stuck detection never fires.
	script := &scriptedStatus{responses: []*StatusResponse{processing(10), processing(11)}}
	status := func(ctx context.Context, taskID string) (*StatusResponse, error) {
		return script.responses[script.calls%2], nil
	}
	counting := func(ctx context.Context, taskID string) (*StatusResponse, error) {
		r, err := status(ctx, taskID)
		script.calls++
		return r, err
	}

	_, err := testPoller(counting, 5, 10).Wait(context.Background(), "t1")
	if !errors.Is(err, ErrJobTimeout) {
		t.Fatalf("err = %v, want ErrJobTimeout", err)
	}
	if script.calls != 5 {
		t.Errorf("polled %d times, want 5", script.calls)
	}
}

func TestWaitTransientErrorsBurnAttempts(t *testing.T) {
	script := &scriptedStatus{
		responses: []*StatusResponse{nil, nil, {TaskID: "t1", Status: TaskCompleted, Stems: map[string]string{"vocals": "u"}}},
		errs:      []error{errors.New("conn refused"), errors.New("conn refused"), nil},
	}

	if _, err := testPoller(script.fn, 120, 10).Wait(context.Background(), "t1"); err != nil {
		t.Fatalf("Wait after transient errors: %v", err)
	}
	if script.calls != 3 {
		t.Errorf("polled %d times, want 3", script.calls)
	}
}

func TestWaitHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	script := &scriptedStatus{responses: []*StatusResponse{processing(10)}}
	_, err := testPoller(script.fn, 120, 10).Wait(ctx, "t1")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if script.calls != 0 {
		t.Errorf("polled %d times after cancel, want 0", script.calls)
	}
}

func TestWaitReportsProgressCallbacks(t *testing.T) {
	script := &scriptedStatus{responses: []*StatusResponse{
		processing(10),
		processing(50),
		{TaskID: "t1", Status: TaskCompleted, Progress: 100, Stems: map[string]string{"vocals": "u"}},
	}}

	var seen []int
	p := testPoller(script.fn, 120, 10)
	p.OnProgress = func(status *StatusResponse) {
		seen = append(seen, status.Progress)
	}

	if _, err := p.Wait(context.Background(), "t1"); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	want := []int{10, 50, 100}
	if len(seen) != len(want) {
		t.Fatalf("got %d progress callbacks, want %d", len(seen), len(want))
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("callback[%d] = %d, want %d", i, seen[i], want[i])
		}
	}
}
