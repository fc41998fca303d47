package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/auraseo/aura_server/internal/compare"
	"github.com/auraseo/aura_server/internal/llm"
	"github.com/auraseo/aura_server/internal/model"
	"github.com/auraseo/aura_server/internal/repository"
)

var ErrBatchAlreadyStarted = errors.New("batch already started")

// 占位文案：AI 摘要失败时对比结果仍然产出
const insightsUnavailable = "AI-generated competitive insights are unavailable for this analysis."

// ProgressEvent 进度事件。RequestID 为空表示批次级事件。
type ProgressEvent struct {
	BatchID       string
	RequestID     string
	URL           string
	Status        string
	Step          string
	Progress      int
	BatchProgress float64
	Error         string
}

// Coordinator 批次协调器：并发驱动各 Job、聚合进度、执行阈值策略并生成对比
type Coordinator struct {
	batchRepo      *repository.BatchRepository
	analysisRepo   *repository.AnalysisRepository
	comparisonRepo *repository.ComparisonRepository
	pipeline       *Pipeline
	landscape      LandscapeAnalyzer

	maxConcurrent int
	minSuccess    int

	mu        sync.Mutex
	listeners []func(ProgressEvent)
}

func NewCoordinator(
	batchRepo *repository.BatchRepository,
	analysisRepo *repository.AnalysisRepository,
	comparisonRepo *repository.ComparisonRepository,
	pipeline *Pipeline,
	landscape LandscapeAnalyzer,
	maxConcurrent int,
	minSuccess int,
) *Coordinator {
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}
	if minSuccess <= 0 {
		minSuccess = 2
	}
	return &Coordinator{
		batchRepo:      batchRepo,
		analysisRepo:   analysisRepo,
		comparisonRepo: comparisonRepo,
		pipeline:       pipeline,
		landscape:      landscape,
		maxConcurrent:  maxConcurrent,
		minSuccess:     minSuccess,
	}
}

// AddListener 注册进度订阅者。传输层（WebSocket、Redis）只是其中一个订阅者。
func (c *Coordinator) AddListener(fn func(ProgressEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Coordinator) notify(ev ProgressEvent) {
	c.mu.Lock()
	listeners := make([]func(ProgressEvent), len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(ev)
	}
}

// progressTracker 聚合批次进度：全体 Job 进度的等权平均，终态 Job 记 100。
// published 只增不减，并发上报不会观察到回退。
type progressTracker struct {
	mu        sync.Mutex
	jobs      []*Job
	published float64
}

func (t *progressTracker) aggregate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var sum float64
	for _, job := range t.jobs {
		sum += job.EffectiveProgress()
	}
	mean := sum / float64(len(t.jobs))
	if mean > t.published {
		t.published = mean
	}
	return t.published
}

func (t *progressTracker) counts() (completed, failed int) {
	for _, job := range t.jobs {
		snap := job.Snapshot()
		switch snap.Status {
		case model.StatusCompleted:
			completed++
		case model.StatusFailed:
			failed++
		}
	}
	return
}

// Run 执行一个批次。每个批次只允许运行一次，重复调用返回错误。
func (c *Coordinator) Run(ctx context.Context, batchID string) error {
	start := time.Now()
	log.Printf("Batch %s: starting competitive analysis", batchID)

	batch, err := c.batchRepo.GetByID(batchID)
	if err != nil {
		return fmt.Errorf("failed to load batch %s: %w", batchID, err)
	}
	if batch.Status != model.StatusPending {
		log.Printf("Batch %s: run rejected, status is %s", batchID, batch.Status)
		return ErrBatchAlreadyStarted
	}
	if len(batch.URLs) == 0 {
		return c.finalize(batch, model.StatusFailed, 0, 0, "no URLs in batch")
	}

	now := time.Now()
	batch.Status = model.StatusProcessing
	batch.StartedAt = &now
	if err := c.batchRepo.Update(batch); err != nil {
		return fmt.Errorf("failed to mark batch processing: %w", err)
	}
	c.notify(ProgressEvent{
		BatchID: batchID,
		Status:  model.StatusProcessing,
		Step:    "starting",
	})

	// 创建 Job 并挂接进度聚合
	tracker := &progressTracker{}
	jobs := make([]*Job, 0, len(batch.URLs))
	// 聚合、落库、广播全程持锁，订阅者不会观察到回退的批次进度
	var publishMu sync.Mutex
	onChange := func(j *Job) {
		snap := j.Snapshot()
		publishMu.Lock()
		defer publishMu.Unlock()
		batchProgress := tracker.aggregate()
		completed, failed := tracker.counts()

		if err := c.batchRepo.UpdateProgress(batchID, int(math.Floor(batchProgress)), completed, failed); err != nil {
			log.Printf("Batch %s: failed to persist progress: %v", batchID, err)
		}
		c.notify(ProgressEvent{
			BatchID:       batchID,
			RequestID:     snap.RequestID,
			URL:           snap.URL,
			Status:        snap.Status,
			Step:          snap.Step,
			Progress:      snap.Progress,
			BatchProgress: batchProgress,
			Error:         snap.Error,
		})
	}
	for _, entry := range batch.URLs {
		url := ""
		if entry.Request != nil {
			url = entry.Request.URL
		}
		jobs = append(jobs, NewJob(entry.RequestID, url, entry.Label, entry.OrderIndex, onChange))
	}
	tracker.jobs = jobs

	// 有界并发执行全部 Job
	sem := make(chan struct{}, c.maxConcurrent)
	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(job *Job) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Printf("Batch %s: job %s panicked: %v", batchID, job.RequestID, r)
					cause := fmt.Errorf("internal error: %v", r)
					if err := c.analysisRepo.MarkFailed(job.RequestID, cause.Error()); err != nil {
						log.Printf("Job %s: failed to persist failure: %v", job.RequestID, err)
					}
					job.Fail(cause)
				}
			}()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				cause := fmt.Errorf("cancelled before start: %w", ctx.Err())
				if err := c.analysisRepo.MarkFailed(job.RequestID, cause.Error()); err != nil {
					log.Printf("Job %s: failed to persist failure: %v", job.RequestID, err)
				}
				job.Fail(cause)
				return
			}
			defer func() { <-sem }()

			if err := c.pipeline.Run(ctx, job); err != nil {
				log.Printf("Batch %s: job %s failed: %v", batchID, job.RequestID, err)
			}
		}(job)
	}
	wg.Wait()

	// 阈值策略：至少 minSuccess 个成功才算批次成功
	completed, failed := tracker.counts()
	log.Printf("Batch %s: all jobs terminal, %d completed, %d failed", batchID, completed, failed)

	if completed < c.minSuccess {
		msg := fmt.Sprintf("Insufficient successful analyses (minimum %d required)", c.minSuccess)
		if completed == 0 {
			msg = "All URL analyses failed"
		}
		if details := failureDetails(jobs); details != "" {
			msg = msg + ": " + details
		}
		return c.finalize(batch, model.StatusFailed, completed, failed, msg)
	}

	// 生成排名与对比，AI 摘要失败不影响批次成功
	if err := c.generateComparison(ctx, batchID, jobs); err != nil {
		return c.finalize(batch, model.StatusFailed, completed, failed,
			fmt.Sprintf("failed to generate comparison: %v", err))
	}

	err = c.finalize(batch, model.StatusCompleted, completed, failed, "")
	log.Printf("Batch %s: completed in %.2fs (%d/%d succeeded)",
		batchID, time.Since(start).Seconds(), completed, len(jobs))
	return err
}

// RunSingle 执行批次外的单 URL 分析，进度事件同样广播给订阅者
func (c *Coordinator) RunSingle(ctx context.Context, requestID string) error {
	req, err := c.analysisRepo.GetByID(requestID)
	if err != nil {
		return fmt.Errorf("failed to load request %s: %w", requestID, err)
	}
	if req.Status != model.StatusPending {
		log.Printf("Request %s: run rejected, status is %s", requestID, req.Status)
		return ErrBatchAlreadyStarted
	}

	job := NewJob(req.ID, req.URL, "", 0, func(j *Job) {
		snap := j.Snapshot()
		c.notify(ProgressEvent{
			RequestID: snap.RequestID,
			URL:       snap.URL,
			Status:    snap.Status,
			Step:      snap.Step,
			Progress:  snap.Progress,
			Error:     snap.Error,
		})
	})
	return c.pipeline.Run(ctx, job)
}

func failureDetails(jobs []*Job) string {
	var details []string
	for _, job := range jobs {
		snap := job.Snapshot()
		if snap.Status == model.StatusFailed {
			details = append(details, fmt.Sprintf("%s: %s", snap.URL, snap.Error))
		}
	}
	return strings.Join(details, "; ")
}

func (c *Coordinator) finalize(batch *model.CompetitiveBatch, status string, completed, failed int, errMsg string) error {
	now := time.Now()
	batch.Status = status
	batch.Progress = 100
	batch.CompletedCount = completed
	batch.FailedCount = failed
	batch.CompletedAt = &now
	if errMsg != "" {
		batch.ErrorMessage = errMsg
	}
	if err := c.batchRepo.Update(batch); err != nil {
		return fmt.Errorf("failed to finalize batch %s: %w", batch.ID, err)
	}

	c.notify(ProgressEvent{
		BatchID:       batch.ID,
		Status:        status,
		Step:          "done",
		Progress:      100,
		BatchProgress: 100,
		Error:         errMsg,
	})
	if errMsg != "" {
		return errors.New(errMsg)
	}
	return nil
}

// generateComparison 对成功的 Job 排名并做一次性 AI 摘要
func (c *Coordinator) generateComparison(ctx context.Context, batchID string, jobs []*Job) error {
	compStart := time.Now()

	type completedJob struct {
		job    *Job
		result *model.AnalysisResult
	}
	var completedJobs []completedJob
	for _, job := range jobs {
		if !job.IsCompleted() {
			continue
		}
		result, err := c.analysisRepo.GetResultByRequestID(job.RequestID)
		if err != nil {
			return fmt.Errorf("failed to load result for %s: %w", job.RequestID, err)
		}
		completedJobs = append(completedJobs, completedJob{job: job, result: result})
	}

	seoEntries := make([]compare.Entry, 0, len(completedJobs))
	aeoEntries := make([]compare.Entry, 0, len(completedJobs))
	for _, cj := range completedJobs {
		snap := cj.job.Snapshot()
		seoEntries = append(seoEntries, compare.Entry{
			URL:        snap.URL,
			Label:      snap.Label,
			OrderIndex: snap.OrderIndex,
			Score:      cj.result.SEOScore,
		})
		aeoEntries = append(aeoEntries, compare.Entry{
			URL:        snap.URL,
			Label:      snap.Label,
			OrderIndex: snap.OrderIndex,
			Score:      cj.result.AEOScore,
		})
	}

	seoAxis := compare.BuildAxis(seoEntries)
	aeoAxis := compare.BuildAxis(aeoEntries)

	// 汇总竞品数据，整批只调用一次摘要
	seoRanks := rankByURL(seoAxis)
	aeoRanks := rankByURL(aeoAxis)
	summaries := make([]llm.CompetitorSummary, 0, len(completedJobs))
	for _, cj := range completedJobs {
		snap := cj.job.Snapshot()
		summaries = append(summaries, llm.CompetitorSummary{
			URL:          snap.URL,
			Label:        snap.Label,
			SEOScore:     cj.result.SEOScore,
			AEOScore:     cj.result.AEOScore,
			SEORank:      seoRanks[snap.URL],
			AEORank:      aeoRanks[snap.URL],
			Issues:       topIssues(cj.result),
			Strengths:    topStrengths(cj.result),
			BrandSummary: brandSummary(cj.result),
		})
	}

	insights := insightsUnavailable
	opportunities := model.StringArray{}
	threats := model.StringArray{}

	landscape, err := c.landscape.AnalyzeLandscape(ctx, summaries)
	if err != nil {
		log.Printf("Batch %s: landscape analysis failed, keeping placeholder insights: %v", batchID, err)
	} else {
		insights = landscape.Insights
		opportunities = model.StringArray(landscape.Opportunities)
		threats = model.StringArray(landscape.Threats)
	}

	comparison := &model.ComparisonResult{
		ID:                 uuid.NewString(),
		BatchID:            batchID,
		SEOComparison:      model.JSONMap(seoAxis.ToMap()),
		AEOComparison:      model.JSONMap(aeoAxis.ToMap()),
		MarketLeader:       model.JSONMap(compare.MarketLeader(seoAxis, aeoAxis)),
		MarketAverage:      model.JSONMap(compare.MarketAverage(seoAxis, aeoAxis)),
		Insights:           insights,
		Opportunities:      opportunities,
		Threats:            threats,
		ComparisonDuration: math.Round(time.Since(compStart).Seconds()*100) / 100,
		CreatedAt:          time.Now(),
	}
	if err := c.comparisonRepo.Create(comparison); err != nil {
		return fmt.Errorf("failed to save comparison: %w", err)
	}

	log.Printf("Batch %s: comparison generated in %.2fs", batchID, comparison.ComparisonDuration)
	return nil
}

func rankByURL(axis compare.Axis) map[string]int {
	m := make(map[string]int, len(axis.Rankings))
	for _, r := range axis.Rankings {
		m[r.URL] = r.Rank
	}
	return m
}

// topIssues 提取最多 5 条问题：SEO 检测出的问题加上高优先级建议
func topIssues(result *model.AnalysisResult) []string {
	var issues []string

	if raw, ok := result.SEOMetrics["issues"].([]interface{}); ok {
		for _, item := range raw {
			if s, ok := item.(string); ok {
				issues = append(issues, s)
			}
		}
	}

	for _, item := range result.Recommendations {
		rec, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		priority, _ := rec["priority"].(string)
		if priority != "critical" && priority != "high" {
			continue
		}
		if desc, ok := rec["description"].(string); ok && desc != "" {
			issues = append(issues, desc)
		}
	}

	if len(issues) > 5 {
		issues = issues[:5]
	}
	return issues
}

// 优势类目的固定遍历顺序，与打分权重表一致，保证同样的输入产出同样的摘要
var strengthCategories = []string{"meta_tags", "headings", "performance", "mobile", "security", "structured_data"}

// topStrengths 提取最多 3 条优势：高分类目和页面硬指标
func topStrengths(result *model.AnalysisResult) []string {
	var strengths []string

	if scores, ok := result.SEOMetrics["category_scores"].(map[string]interface{}); ok {
		for _, category := range strengthCategories {
			score, ok := scores[category].(float64)
			if ok && score >= 90 {
				strengths = append(strengths, fmt.Sprintf("Excellent %s (%.0f/100)", strings.ReplaceAll(category, "_", " "), score))
			}
		}
	}

	if metrics, ok := result.SEOMetrics["metrics"].(map[string]interface{}); ok {
		if sd, ok := metrics["structured_data"].([]interface{}); ok && len(sd) > 0 {
			strengths = append(strengths, "Has structured data (Schema.org)")
		}
		if ssl, ok := metrics["ssl_enabled"].(bool); ok && ssl {
			strengths = append(strengths, "HTTPS enabled")
		}
		if mobile, ok := metrics["mobile_friendly"].(bool); ok && mobile {
			strengths = append(strengths, "Mobile-friendly")
		}
	}

	if len(strengths) > 3 {
		strengths = strengths[:3]
	}
	return strengths
}

func brandSummary(result *model.AnalysisResult) string {
	brand, ok := result.AEOMetrics["brand_recognition"].(map[string]interface{})
	if !ok {
		return ""
	}
	summary, _ := brand["what_it_does"].(string)
	return summary
}
