package worker

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auraseo/aura_server/internal/model"
)

func TestJob_Lifecycle(t *testing.T) {
	var events []JobSnapshot
	job := NewJob("req-1", "https://example.com", "Our Site", 0, func(j *Job) {
		events = append(events, j.Snapshot())
	})

	snap := job.Snapshot()
	assert.Equal(t, model.StatusPending, snap.Status)
	assert.Equal(t, 0, snap.Progress)

	require.NoError(t, job.Start())
	snap = job.Snapshot()
	assert.Equal(t, model.StatusProcessing, snap.Status)
	assert.Equal(t, "starting", snap.Step)

	job.ReportProgress(35, "Analyzing SEO metrics")
	require.NoError(t, job.Complete(&JobResult{ResultID: "res-1"}))

	snap = job.Snapshot()
	assert.Equal(t, model.StatusCompleted, snap.Status)
	assert.Equal(t, 100, snap.Progress)
	assert.Equal(t, "done", snap.Step)
	require.NotNil(t, job.Result())
	assert.Equal(t, "res-1", job.Result().ResultID)

	// start + report + complete 各触发一次回调
	assert.Len(t, events, 3)
}

func TestJob_ProgressMonotonicAndClamped(t *testing.T) {
	job := NewJob("req-1", "https://example.com", "", 0, nil)
	require.NoError(t, job.Start())

	job.ReportProgress(60, "SEO analysis completed")
	assert.Equal(t, 60, job.Snapshot().Progress)

	// 进度不回退，但步骤描述更新
	job.ReportProgress(35, "stale update")
	snap := job.Snapshot()
	assert.Equal(t, 60, snap.Progress)
	assert.Equal(t, "stale update", snap.Step)

	job.ReportProgress(150, "overflow")
	assert.Equal(t, 100, job.Snapshot().Progress)

	job.ReportProgress(-5, "underflow")
	assert.Equal(t, 100, job.Snapshot().Progress)
}

func TestJob_ReportProgressIgnoredWhenNotProcessing(t *testing.T) {
	job := NewJob("req-1", "https://example.com", "", 0, nil)

	// Pending 阶段上报无效
	job.ReportProgress(50, "too early")
	assert.Equal(t, 0, job.Snapshot().Progress)

	require.NoError(t, job.Start())
	job.ReportProgress(40, "crawling")
	require.NoError(t, job.Fail(errors.New("crawl failed")))

	job.ReportProgress(90, "too late")
	assert.Equal(t, 40, job.Snapshot().Progress)
}

func TestJob_FailKeepsProgress(t *testing.T) {
	job := NewJob("req-1", "https://example.com", "", 0, nil)
	require.NoError(t, job.Start())
	job.ReportProgress(65, "Running AI analysis")

	require.NoError(t, job.Fail(errors.New("llm timeout")))

	snap := job.Snapshot()
	assert.Equal(t, model.StatusFailed, snap.Status)
	assert.Equal(t, 65, snap.Progress) // 不强制归 100
	assert.Equal(t, "llm timeout", snap.Error)
	assert.Equal(t, 100.0, job.EffectiveProgress()) // 聚合时终态记 100
}

func TestJob_FailFromPending(t *testing.T) {
	job := NewJob("req-1", "https://example.com", "", 0, nil)

	require.NoError(t, job.Fail(errors.New("cancelled before start")))
	assert.Equal(t, model.StatusFailed, job.Snapshot().Status)
}

func TestJob_SingleTerminalTransition(t *testing.T) {
	job := NewJob("req-1", "https://example.com", "", 0, nil)
	require.NoError(t, job.Start())
	require.NoError(t, job.Complete(&JobResult{}))

	assert.ErrorIs(t, job.Fail(errors.New("late failure")), ErrTerminalJob)
	assert.ErrorIs(t, job.Complete(&JobResult{}), ErrTerminalJob)
	assert.ErrorIs(t, job.Start(), ErrTerminalJob)

	// 终态不被后续调用破坏
	assert.Equal(t, model.StatusCompleted, job.Snapshot().Status)
}

func TestJob_StartRequiresPending(t *testing.T) {
	job := NewJob("req-1", "https://example.com", "", 0, nil)
	require.NoError(t, job.Start())
	assert.ErrorIs(t, job.Start(), ErrNotPending)
}

func TestJob_CompleteRequiresProcessing(t *testing.T) {
	job := NewJob("req-1", "https://example.com", "", 0, nil)
	assert.ErrorIs(t, job.Complete(&JobResult{}), ErrNotProcessing)
}
