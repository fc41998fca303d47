package worker

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/auraseo/aura_server/internal/crawler"
	"github.com/auraseo/aura_server/internal/llm"
	"github.com/auraseo/aura_server/internal/model"
	"github.com/auraseo/aura_server/internal/seo"
)

var (
	ErrNotPending    = errors.New("job is not pending")
	ErrTerminalJob   = errors.New("job already in terminal state")
	ErrNotProcessing = errors.New("job is not processing")
)

// JobResult 单个 URL 流水线的产出
type JobResult struct {
	ResultID string
	Facts    *crawler.PageFacts
	SEO      *seo.Result
	AEO      *llm.AEOResult
	Duration float64 // 秒
}

// Job 批次内单个 URL 的执行单元，状态变更全部串行在内部锁下
type Job struct {
	RequestID  string
	URL        string
	Label      string
	OrderIndex int

	mu          sync.Mutex
	status      string
	progress    int
	step        string
	errMsg      string
	startedAt   *time.Time
	completedAt *time.Time
	result      *JobResult

	onChange func(*Job)
}

// NewJob 创建 Pending 状态的 Job，onChange 在每次状态或进度变化后调用
func NewJob(requestID, url, label string, orderIndex int, onChange func(*Job)) *Job {
	return &Job{
		RequestID:  requestID,
		URL:        url,
		Label:      label,
		OrderIndex: orderIndex,
		status:     model.StatusPending,
		onChange:   onChange,
	}
}

// Start Pending -> Processing
func (j *Job) Start() error {
	j.mu.Lock()
	if j.status != model.StatusPending {
		status := j.status
		j.mu.Unlock()
		log.Printf("Job %s: start rejected, status is %s", j.RequestID, status)
		if model.IsTerminal(status) {
			return ErrTerminalJob
		}
		return ErrNotPending
	}
	now := time.Now()
	j.status = model.StatusProcessing
	j.startedAt = &now
	j.step = "starting"
	j.mu.Unlock()

	j.notify()
	return nil
}

// ReportProgress 仅在 Processing 状态有效。进度被钳制到 [0,100]，
// 低于已记录值时进度不回退，但步骤描述仍会更新。
func (j *Job) ReportProgress(pct int, step string) {
	j.mu.Lock()
	if j.status != model.StatusProcessing {
		j.mu.Unlock()
		return
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	if pct > j.progress {
		j.progress = pct
	}
	if step != "" {
		j.step = step
	}
	j.mu.Unlock()

	j.notify()
}

// Complete Processing -> Completed，进度固定为 100
func (j *Job) Complete(result *JobResult) error {
	j.mu.Lock()
	if j.status != model.StatusProcessing {
		status := j.status
		j.mu.Unlock()
		log.Printf("Job %s: complete rejected, status is %s", j.RequestID, status)
		if model.IsTerminal(status) {
			return ErrTerminalJob
		}
		return ErrNotProcessing
	}
	now := time.Now()
	j.status = model.StatusCompleted
	j.progress = 100
	j.step = "done"
	j.completedAt = &now
	j.result = result
	j.mu.Unlock()

	j.notify()
	return nil
}

// Fail Pending/Processing -> Failed，进度保持最后一次记录值
func (j *Job) Fail(err error) error {
	j.mu.Lock()
	if model.IsTerminal(j.status) {
		j.mu.Unlock()
		log.Printf("Job %s: fail rejected, already terminal", j.RequestID)
		return ErrTerminalJob
	}
	now := time.Now()
	j.status = model.StatusFailed
	j.errMsg = err.Error()
	j.completedAt = &now
	j.mu.Unlock()

	j.notify()
	return nil
}

func (j *Job) notify() {
	if j.onChange != nil {
		j.onChange(j)
	}
}

// JobSnapshot 某一时刻的只读状态
type JobSnapshot struct {
	RequestID  string
	URL        string
	Label      string
	OrderIndex int
	Status     string
	Progress   int
	Step       string
	Error      string
}

// Snapshot 加锁读取当前状态
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return JobSnapshot{
		RequestID:  j.RequestID,
		URL:        j.URL,
		Label:      j.Label,
		OrderIndex: j.OrderIndex,
		Status:     j.status,
		Progress:   j.progress,
		Step:       j.step,
		Error:      j.errMsg,
	}
}

// Result 终态后返回产出，未完成为 nil
func (j *Job) Result() *JobResult {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// EffectiveProgress 聚合用进度：终态一律记为 100
func (j *Job) EffectiveProgress() float64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	if model.IsTerminal(j.status) {
		return 100
	}
	return float64(j.progress)
}

// IsCompleted 是否成功完成
func (j *Job) IsCompleted() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status == model.StatusCompleted
}

// IsTerminal 是否已进入终态
func (j *Job) IsTerminal() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return model.IsTerminal(j.status)
}
