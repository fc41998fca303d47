package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/auraseo/aura_server/internal/crawler"
	"github.com/auraseo/aura_server/internal/llm"
	"github.com/auraseo/aura_server/internal/model"
	"github.com/auraseo/aura_server/internal/repository"
	"github.com/auraseo/aura_server/internal/seo"
)

// Fetcher 抓取单个页面
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*crawler.PageFacts, error)
}

// AEOAnalyzer 对单个页面做 AI 可读性分析
type AEOAnalyzer interface {
	AnalyzeAEO(ctx context.Context, url, pageText string, metaTags map[string]string) (*llm.AEOResult, error)
}

// LandscapeAnalyzer 对整个批次做一次性竞争格局分析
type LandscapeAnalyzer interface {
	AnalyzeLandscape(ctx context.Context, competitors []llm.CompetitorSummary) (*llm.LandscapeResult, error)
}

// Pipeline 单 URL 流水线：抓取 -> SEO 打分 -> AEO 分析 -> 入库
type Pipeline struct {
	fetcher      Fetcher
	scorer       *seo.Analyzer
	aeo          AEOAnalyzer
	analysisRepo *repository.AnalysisRepository
}

func NewPipeline(fetcher Fetcher, scorer *seo.Analyzer, aeo AEOAnalyzer, analysisRepo *repository.AnalysisRepository) *Pipeline {
	return &Pipeline{
		fetcher:      fetcher,
		scorer:       scorer,
		aeo:          aeo,
		analysisRepo: analysisRepo,
	}
}

// Run 驱动一个 Job 走完整个流水线，失败时将 Job 置为 Failed 并返回原因
func (p *Pipeline) Run(ctx context.Context, job *Job) error {
	start := time.Now()

	if err := job.Start(); err != nil {
		return err
	}
	if err := p.analysisRepo.MarkProcessing(job.RequestID); err != nil {
		return p.fail(job, fmt.Errorf("failed to mark processing: %w", err))
	}

	report := func(pct int, step string) {
		job.ReportProgress(pct, step)
		// 进度落库失败不中断流水线
		if err := p.analysisRepo.UpdateProgress(job.RequestID, pct, step); err != nil {
			log.Printf("Job %s: failed to persist progress: %v", job.RequestID, err)
		}
	}

	report(10, "Crawling website")
	facts, err := p.fetcher.Fetch(ctx, job.URL)
	if err != nil {
		return p.fail(job, fmt.Errorf("crawl failed: %w", err))
	}
	report(30, "Crawl completed")

	report(35, "Analyzing SEO metrics")
	seoResult := p.scorer.Analyze(facts)
	report(60, "SEO analysis completed")

	report(65, "Running AI analysis")
	aeoResult, err := p.aeo.AnalyzeAEO(ctx, job.URL, facts.Text, facts.MetaTags)
	if err != nil {
		return p.fail(job, fmt.Errorf("ai analysis failed: %w", err))
	}
	report(90, "AI analysis completed")

	report(95, "Saving results")
	duration := time.Since(start).Seconds()
	record := &model.AnalysisResult{
		ID:        uuid.NewString(),
		RequestID: job.RequestID,
		PageText:  facts.Text,
		SEOScore:  seoResult.Score,
		SEOMetrics: model.JSONMap{
			"category_scores": toJSONValue(seoResult.CategoryScores),
			"issues":          toJSONValue(seoResult.Issues),
			"metrics":         toJSONValue(seoResult.Metrics),
		},
		AEOScore: aeoResult.Score,
		AEOMetrics: model.JSONMap{
			"brand_recognition": toJSONValue(aeoResult.BrandRecognition),
			"llm_model":         aeoResult.Model,
		},
		Recommendations:  toRecommendations(seoResult.Recommendations, aeoResult.Recommendations),
		AnalysisDuration: seo.Round2(duration),
		CreatedAt:        time.Now(),
	}
	if err := p.analysisRepo.SaveResult(record); err != nil {
		return p.fail(job, fmt.Errorf("failed to save result: %w", err))
	}
	if err := p.analysisRepo.MarkCompleted(job.RequestID); err != nil {
		return p.fail(job, fmt.Errorf("failed to mark completed: %w", err))
	}

	return job.Complete(&JobResult{
		ResultID: record.ID,
		Facts:    facts,
		SEO:      seoResult,
		AEO:      aeoResult,
		Duration: record.AnalysisDuration,
	})
}

func (p *Pipeline) fail(job *Job, cause error) error {
	log.Printf("Job %s (%s): %v", job.RequestID, job.URL, cause)
	if err := p.analysisRepo.MarkFailed(job.RequestID, cause.Error()); err != nil {
		log.Printf("Job %s: failed to persist failure: %v", job.RequestID, err)
	}
	job.Fail(cause)
	return cause
}

// toJSONValue 经由 JSON 往返转成可入库的泛型结构
func toJSONValue(v interface{}) interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

func toRecommendations(groups ...[]seo.Recommendation) model.JSONArray {
	arr := model.JSONArray{}
	for _, group := range groups {
		for _, rec := range group {
			if v := toJSONValue(rec); v != nil {
				arr = append(arr, v)
			}
		}
	}
	return arr
}
