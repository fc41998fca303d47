package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/auraseo/aura_server/internal/crawler"
	"github.com/auraseo/aura_server/internal/llm"
	"github.com/auraseo/aura_server/internal/model"
	"github.com/auraseo/aura_server/internal/repository"
	"github.com/auraseo/aura_server/internal/seo"
	"github.com/auraseo/aura_server/internal/testutil"
)

// stubFetcher 可注入每个 URL 的结果，并记录最大并发数
type stubFetcher struct {
	delay       time.Duration
	fn          func(url string) (*crawler.PageFacts, error)
	inFlight    int32
	maxInFlight int32
}

func (f *stubFetcher) Fetch(ctx context.Context, url string) (*crawler.PageFacts, error) {
	current := atomic.AddInt32(&f.inFlight, 1)
	for {
		max := atomic.LoadInt32(&f.maxInFlight)
		if current <= max || atomic.CompareAndSwapInt32(&f.maxInFlight, max, current) {
			break
		}
	}
	defer atomic.AddInt32(&f.inFlight, -1)

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.fn(url)
}

func healthyPageFacts(url string) *crawler.PageFacts {
	return &crawler.PageFacts{
		URL:      url,
		FinalURL: url,
		LoadTime: 1.0,
		MetaTags: map[string]string{
			"title":       strings.Repeat("t", 45),
			"description": strings.Repeat("d", 140),
			"viewport":    "width=device-width",
			"canonical":   url,
			"og:title":    "x", "og:description": "x", "og:image": "x", "og:url": "x",
		},
		Headings:       map[string][]string{"h1": {"Main"}, "h2": {"Sub"}},
		StructuredData: []map[string]interface{}{{"@type": "Organization"}},
		MobileFriendly: true,
		SSLEnabled:     true,
		Text:           "We sell widgets to professionals.",
	}
}

type stubAEO struct {
	fn func(url string) (*llm.AEOResult, error)
}

func (s *stubAEO) AnalyzeAEO(ctx context.Context, url, pageText string, metaTags map[string]string) (*llm.AEOResult, error) {
	return s.fn(url)
}

func okAEO(score float64) *llm.AEOResult {
	return &llm.AEOResult{
		Score: score,
		BrandRecognition: map[string]interface{}{
			"what_it_does": "Sells widgets to professionals worldwide.",
		},
		Model: "stub-model",
	}
}

type stubLandscape struct {
	mu        sync.Mutex
	calls     int
	summaries []llm.CompetitorSummary
	result    *llm.LandscapeResult
	err       error
}

func (s *stubLandscape) AnalyzeLandscape(ctx context.Context, competitors []llm.CompetitorSummary) (*llm.LandscapeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.summaries = competitors
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type coordinatorFixture struct {
	db             *gorm.DB
	batchRepo      *repository.BatchRepository
	analysisRepo   *repository.AnalysisRepository
	comparisonRepo *repository.ComparisonRepository
	landscape      *stubLandscape
	coordinator    *Coordinator
}

func newFixture(t *testing.T, fetcher Fetcher, aeo AEOAnalyzer, landscape *stubLandscape, maxConcurrent int) *coordinatorFixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	batchRepo := repository.NewBatchRepository(db)
	analysisRepo := repository.NewAnalysisRepository(db)
	comparisonRepo := repository.NewComparisonRepository(db)

	pipeline := NewPipeline(fetcher, seo.NewAnalyzer(), aeo, analysisRepo)
	coordinator := NewCoordinator(batchRepo, analysisRepo, comparisonRepo, pipeline, landscape, maxConcurrent, 2)

	return &coordinatorFixture{
		db:             db,
		batchRepo:      batchRepo,
		analysisRepo:   analysisRepo,
		comparisonRepo: comparisonRepo,
		landscape:      landscape,
		coordinator:    coordinator,
	}
}

func defaultLandscape() *stubLandscape {
	return &stubLandscape{
		result: &llm.LandscapeResult{
			Insights:      "Competitor A leads the market.",
			Opportunities: []string{"Add structured data"},
			Threats:       []string{"Competitor A strong on AEO"},
			OverallWinner: llm.WinnerVerdict{URL: "https://site0.example"},
		},
	}
}

func TestCoordinator_Run_AllSucceed(t *testing.T) {
	fetcher := &stubFetcher{fn: func(url string) (*crawler.PageFacts, error) {
		return healthyPageFacts(url), nil
	}}
	scores := map[string]float64{
		"https://site0.example": 90,
		"https://site1.example": 70,
		"https://site2.example": 50,
	}
	aeo := &stubAEO{fn: func(url string) (*llm.AEOResult, error) {
		return okAEO(scores[url]), nil
	}}
	fix := newFixture(t, fetcher, aeo, defaultLandscape(), 3)

	batch := testutil.SeedBatch(t, fix.db, []string{
		"https://site0.example", "https://site1.example", "https://site2.example",
	})

	require.NoError(t, fix.coordinator.Run(context.Background(), batch.ID))

	got, err := fix.batchRepo.GetByID(batch.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, 3, got.CompletedCount)
	assert.Equal(t, 0, got.FailedCount)
	require.NotNil(t, got.CompletedAt)

	// 摘要整批只调用一次，包含全部竞品
	assert.Equal(t, 1, fix.landscape.calls)
	assert.Len(t, fix.landscape.summaries, 3)

	comparison, err := fix.comparisonRepo.GetByBatchID(batch.ID)
	require.NoError(t, err)
	assert.Equal(t, "Competitor A leads the market.", comparison.Insights)

	// AEO 排名按分数降序
	aeoComp := comparison.AEOComparison
	rankings := aeoComp["rankings"].([]interface{})
	first := rankings[0].(map[string]interface{})
	assert.Equal(t, "https://site0.example", first["url"])
	assert.Equal(t, 70.0, aeoComp["average"])
}

func TestCoordinator_ConcurrencyBound(t *testing.T) {
	fetcher := &stubFetcher{
		delay: 50 * time.Millisecond,
		fn: func(url string) (*crawler.PageFacts, error) {
			return healthyPageFacts(url), nil
		},
	}
	aeo := &stubAEO{fn: func(url string) (*llm.AEOResult, error) { return okAEO(75), nil }}
	fix := newFixture(t, fetcher, aeo, defaultLandscape(), 3)

	batch := testutil.SeedBatch(t, fix.db, []string{
		"https://s0.example", "https://s1.example", "https://s2.example",
		"https://s3.example", "https://s4.example",
	})

	require.NoError(t, fix.coordinator.Run(context.Background(), batch.ID))

	assert.LessOrEqual(t, atomic.LoadInt32(&fetcher.maxInFlight), int32(3))
	assert.Greater(t, atomic.LoadInt32(&fetcher.maxInFlight), int32(0))
}

func TestCoordinator_PartialSuccessIsSuccess(t *testing.T) {
	// 5 个 URL：2 个成功，3 个在不同阶段失败
	fetcher := &stubFetcher{fn: func(url string) (*crawler.PageFacts, error) {
		switch url {
		case "https://s2.example":
			return nil, errors.New("connection refused")
		case "https://s3.example":
			return nil, errors.New("status 500")
		}
		return healthyPageFacts(url), nil
	}}
	aeo := &stubAEO{fn: func(url string) (*llm.AEOResult, error) {
		if url == "https://s4.example" {
			return nil, errors.New("llm overloaded")
		}
		return okAEO(75), nil
	}}
	fix := newFixture(t, fetcher, aeo, defaultLandscape(), 3)

	batch := testutil.SeedBatch(t, fix.db, []string{
		"https://s0.example", "https://s1.example", "https://s2.example",
		"https://s3.example", "https://s4.example",
	})

	require.NoError(t, fix.coordinator.Run(context.Background(), batch.ID))

	got, err := fix.batchRepo.GetByID(batch.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, 2, got.CompletedCount)
	assert.Equal(t, 3, got.FailedCount)
	assert.Empty(t, got.ErrorMessage)

	// 对比只包含成功的两个
	assert.Len(t, fix.landscape.summaries, 2)
	_, err = fix.comparisonRepo.GetByBatchID(batch.ID)
	require.NoError(t, err)

	// 每个失败的请求带有各自的错误
	wantErrors := map[string]string{
		"https://s2.example": "connection refused",
		"https://s3.example": "status 500",
		"https://s4.example": "llm overloaded",
	}
	for _, entry := range got.URLs {
		req := entry.Request
		require.NotNil(t, req)
		if want, ok := wantErrors[req.URL]; ok {
			assert.Equal(t, model.StatusFailed, req.Status)
			assert.Contains(t, req.ErrorMessage, want)
		} else {
			assert.Equal(t, model.StatusCompleted, req.Status)
		}
	}
}

func TestCoordinator_InsufficientSuccesses(t *testing.T) {
	fetcher := &stubFetcher{fn: func(url string) (*crawler.PageFacts, error) {
		if url != "https://s0.example" {
			return nil, fmt.Errorf("unreachable: %s", url)
		}
		return healthyPageFacts(url), nil
	}}
	aeo := &stubAEO{fn: func(url string) (*llm.AEOResult, error) { return okAEO(75), nil }}
	fix := newFixture(t, fetcher, aeo, defaultLandscape(), 3)

	batch := testutil.SeedBatch(t, fix.db, []string{
		"https://s0.example", "https://s1.example", "https://s2.example",
		"https://s3.example", "https://s4.example",
	})

	err := fix.coordinator.Run(context.Background(), batch.ID)
	require.Error(t, err)

	got, getErr := fix.batchRepo.GetByID(batch.ID)
	require.NoError(t, getErr)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Equal(t, 1, got.CompletedCount)
	assert.Equal(t, 4, got.FailedCount)
	assert.Contains(t, got.ErrorMessage, "Insufficient successful analyses")
	assert.Contains(t, got.ErrorMessage, "https://s1.example")

	// 不生成对比，也不调用摘要
	assert.Equal(t, 0, fix.landscape.calls)
	_, err = fix.comparisonRepo.GetByBatchID(batch.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// 逐 URL 状态仍可查询
	for _, entry := range got.URLs {
		require.NotNil(t, entry.Request)
		assert.True(t, model.IsTerminal(entry.Request.Status))
	}
}

func TestCoordinator_AllFailed(t *testing.T) {
	fetcher := &stubFetcher{fn: func(url string) (*crawler.PageFacts, error) {
		return nil, errors.New("dns failure")
	}}
	aeo := &stubAEO{fn: func(url string) (*llm.AEOResult, error) { return okAEO(75), nil }}
	fix := newFixture(t, fetcher, aeo, defaultLandscape(), 3)

	batch := testutil.SeedBatch(t, fix.db, []string{"https://s0.example", "https://s1.example"})

	err := fix.coordinator.Run(context.Background(), batch.ID)
	require.Error(t, err)

	got, getErr := fix.batchRepo.GetByID(batch.ID)
	require.NoError(t, getErr)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "All URL analyses failed")
}

func TestCoordinator_SummarizerFailureKeepsBatchCompleted(t *testing.T) {
	fetcher := &stubFetcher{fn: func(url string) (*crawler.PageFacts, error) {
		return healthyPageFacts(url), nil
	}}
	aeo := &stubAEO{fn: func(url string) (*llm.AEOResult, error) { return okAEO(80), nil }}
	landscape := &stubLandscape{err: errors.New("llm timeout")}
	fix := newFixture(t, fetcher, aeo, landscape, 3)

	batch := testutil.SeedBatch(t, fix.db, []string{"https://s0.example", "https://s1.example"})

	require.NoError(t, fix.coordinator.Run(context.Background(), batch.ID))

	got, err := fix.batchRepo.GetByID(batch.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)

	// 排名仍在，文字洞察用占位符
	comparison, err := fix.comparisonRepo.GetByBatchID(batch.ID)
	require.NoError(t, err)
	assert.Equal(t, insightsUnavailable, comparison.Insights)
	assert.NotNil(t, comparison.Opportunities)
	assert.Empty(t, comparison.Opportunities)
	assert.NotEmpty(t, comparison.SEOComparison["rankings"])
}

func TestCoordinator_RunOnce(t *testing.T) {
	fetcher := &stubFetcher{fn: func(url string) (*crawler.PageFacts, error) {
		return healthyPageFacts(url), nil
	}}
	aeo := &stubAEO{fn: func(url string) (*llm.AEOResult, error) { return okAEO(75), nil }}
	fix := newFixture(t, fetcher, aeo, defaultLandscape(), 3)

	batch := testutil.SeedBatch(t, fix.db, []string{"https://s0.example", "https://s1.example"})

	require.NoError(t, fix.coordinator.Run(context.Background(), batch.ID))
	assert.ErrorIs(t, fix.coordinator.Run(context.Background(), batch.ID), ErrBatchAlreadyStarted)
}

func TestCoordinator_BatchProgressMonotonic(t *testing.T) {
	fetcher := &stubFetcher{
		delay: 10 * time.Millisecond,
		fn: func(url string) (*crawler.PageFacts, error) {
			if url == "https://s3.example" {
				return nil, errors.New("mid-fetch failure")
			}
			return healthyPageFacts(url), nil
		},
	}
	aeo := &stubAEO{fn: func(url string) (*llm.AEOResult, error) { return okAEO(75), nil }}
	fix := newFixture(t, fetcher, aeo, defaultLandscape(), 3)

	var mu sync.Mutex
	var observed []float64
	fix.coordinator.AddListener(func(ev ProgressEvent) {
		mu.Lock()
		observed = append(observed, ev.BatchProgress)
		mu.Unlock()
	})

	batch := testutil.SeedBatch(t, fix.db, []string{
		"https://s0.example", "https://s1.example", "https://s2.example",
		"https://s3.example", "https://s4.example",
	})

	require.NoError(t, fix.coordinator.Run(context.Background(), batch.ID))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, observed)
	for i := 1; i < len(observed); i++ {
		assert.GreaterOrEqual(t, observed[i], observed[i-1],
			"batch progress regressed at event %d: %v", i, observed)
	}
	assert.Equal(t, 100.0, observed[len(observed)-1])
}

func TestTopStrengths_DeterministicOrder(t *testing.T) {
	result := &model.AnalysisResult{
		SEOMetrics: model.JSONMap{
			"category_scores": map[string]interface{}{
				"meta_tags":       95.0,
				"headings":        95.0,
				"performance":     95.0,
				"mobile":          95.0,
				"security":        95.0,
				"structured_data": 95.0,
			},
		},
	}

	want := []string{
		"Excellent meta tags (95/100)",
		"Excellent headings (95/100)",
		"Excellent performance (95/100)",
	}
	// 同样的输入必须稳定产出同样的摘要素材
	for i := 0; i < 200; i++ {
		assert.Equal(t, want, topStrengths(result), "iteration %d", i)
	}
}
