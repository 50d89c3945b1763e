package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/evidence/internal/contracts"
	"github.com/wonny/evidence/pkg/logger"
)

type stubJob struct {
	name  string
	calls atomic.Int32
	errs  []error // i 번째 호출의 결과, 범위를 넘으면 nil
}

func (j *stubJob) Name() string { return j.name }
func (j *stubJob) Schedule() string { return "0 0 0 1 1 *" }

func (j *stubJob) Run(ctx context.Context) error {
	n := int(j.calls.Add(1)) - 1
	if n < len(j.errs) {
		return j.errs[n]
	}
	return nil
}

func newTestScheduler(retries int) *Scheduler {
	return New(Options{MaxRetries: retries, RetryDelay: time.Millisecond}, logger.NewNop())
}

func TestAddJobRejectsDuplicates(t *testing.T) {
	s := newTestScheduler(0)
	require.NoError(t, s.AddJob(&stubJob{name: "a"}))
	assert.Error(t, s.AddJob(&stubJob{name: "a"}))
	assert.Equal(t, []string{"a"}, s.GetAllJobs())
}

func TestAddJobInvalidSchedule(t *testing.T) {
	s := newTestScheduler(0)
	err := s.AddJob(badSchedule{})
	assert.Error(t, err)
	assert.Empty(t, s.GetAllJobs())
}

type badSchedule struct{}

func (badSchedule) Name() string { return "bad" }
func (badSchedule) Schedule() string { return "not a cron" }
func (badSchedule) Run(ctx context.Context) error { return nil }

func TestRunJobRetries(t *testing.T) {
	tests := []struct {
		name         string
		retries      int
		errs         []error
		wantAttempts int
		wantSuccess  bool
	}{
		{"success first try", 2, nil, 1, true},
		{"recovers on retry", 2, []error{errors.New("boom")}, 2, true},
		{"exhausts retries", 1, []error{errors.New("a"), errors.New("b"), errors.New("c")}, 2, false},
		{
			"configuration error not retried",
			3,
			[]error{contracts.NewConfigurationError("universe", "name", "required")},
			1,
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestScheduler(tt.retries)
			job := &stubJob{name: "job", errs: tt.errs}
			require.NoError(t, s.AddJob(job))

			result, err := s.RunJob(context.Background(), "job")
			require.NoError(t, err)
			assert.Equal(t, tt.wantAttempts, result.Attempts)
			assert.Equal(t, tt.wantSuccess, result.Success)
			assert.Equal(t, int32(tt.wantAttempts), job.calls.Load())
			if !tt.wantSuccess {
				assert.NotEmpty(t, result.Error)
			}
		})
	}
}

func TestRunJobCanceledContextStopsRetries(t *testing.T) {
	s := New(Options{MaxRetries: 5, RetryDelay: time.Hour}, logger.NewNop())
	job := &stubJob{name: "job", errs: []error{errors.New("x"), errors.New("y")}}
	require.NoError(t, s.AddJob(job))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	result, err := s.RunJob(ctx, "job")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Attempts)
	assert.Contains(t, result.Error, context.Canceled.Error())
}

func TestRunJobUnknown(t *testing.T) {
	s := newTestScheduler(0)
	_, err := s.RunJob(context.Background(), "missing")
	assert.Error(t, err)
}

func TestJobStats(t *testing.T) {
	s := newTestScheduler(0)
	job := &stubJob{name: "job", errs: []error{errors.New("first fails")}}
	require.NoError(t, s.AddJob(job))

	for i := 0; i < 4; i++ {
		_, err := s.RunJob(context.Background(), "job")
		require.NoError(t, err)
	}

	stats := s.GetJobStats()["job"]
	assert.Equal(t, 4, stats.TotalRuns)
	assert.Equal(t, 3, stats.SuccessCount)
	assert.Equal(t, 1, stats.FailureCount)
	assert.InDelta(t, 0.75, stats.SuccessRate, 1e-9)
	require.NotNil(t, stats.LastSuccess)
	assert.Nil(t, stats.LastFailure)

	history, err := s.GetJobHistory("job")
	require.NoError(t, err)
	assert.Len(t, history, 4)
	assert.False(t, history[0].Success)
}

func TestJobHistoryBounded(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < maxHistory+10; i++ {
		h.AddResult(JobResult{Success: i%2 == 0})
	}
	assert.Len(t, h.Results, maxHistory)
	assert.Len(t, h.GetLatestResults(5), 5)
	assert.Empty(t, h.GetLatestResults(0))
	assert.InDelta(t, 0.5, h.GetSuccessRate(), 1e-9)
	assert.Equal(t, 0.0, (&JobHistory{}).GetSuccessRate())
}

func TestStartStop(t *testing.T) {
	s := newTestScheduler(0)
	require.NoError(t, s.AddJob(&stubJob{name: "job"}))
	s.Start()
	s.Stop()
}
