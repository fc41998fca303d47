package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/auraseo/aura_server/internal/model"
	"github.com/auraseo/aura_server/internal/model/dto"
	"github.com/auraseo/aura_server/internal/pkg/queue"
	"github.com/auraseo/aura_server/internal/pkg/validate"
	"github.com/auraseo/aura_server/internal/repository"
)

var (
	ErrInvalidURLCount   = errors.New("url count must be between 2 and 5")
	ErrInvalidURL        = errors.New("invalid or disallowed url")
	ErrDuplicateURL      = errors.New("duplicate url in batch")
	ErrLabelMismatch     = errors.New("labels length must match urls length")
	ErrBatchNotFound     = errors.New("batch not found")
	ErrBatchNotCompleted = errors.New("batch is not completed yet")
	ErrComparisonMissing = errors.New("comparison not available")
)

const (
	minBatchURLs = 2
	maxBatchURLs = 5
)

// CompetitiveService 竞争分析批次服务
type CompetitiveService struct {
	batchRepo      *repository.BatchRepository
	comparisonRepo *repository.ComparisonRepository
	taskQueue      *queue.Queue
}

func NewCompetitiveService(
	batchRepo *repository.BatchRepository,
	comparisonRepo *repository.ComparisonRepository,
	taskQueue *queue.Queue,
) *CompetitiveService {
	return &CompetitiveService{
		batchRepo:      batchRepo,
		comparisonRepo: comparisonRepo,
		taskQueue:      taskQueue,
	}
}

// CreateBatch 校验提交并创建批次，执行由 worker 异步完成
func (s *CompetitiveService) CreateBatch(ctx context.Context, req *dto.CreateBatchRequest) (*dto.BatchStatusResponse, error) {
	if len(req.URLs) < minBatchURLs || len(req.URLs) > maxBatchURLs {
		return nil, ErrInvalidURLCount
	}
	// 提供了标签就必须逐一对应，不静默丢弃
	if len(req.Labels) > 0 && len(req.Labels) != len(req.URLs) {
		return nil, ErrLabelMismatch
	}

	seen := make(map[string]bool, len(req.URLs))
	for _, url := range req.URLs {
		if !validate.URL(url) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidURL, url)
		}
		if seen[url] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateURL, url)
		}
		seen[url] = true
	}

	now := time.Now()
	batch := &model.CompetitiveBatch{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Status:    model.StatusPending,
		TotalURLs: len(req.URLs),
		CreatedAt: now,
	}

	requests := make([]*model.AnalysisRequest, 0, len(req.URLs))
	for i, url := range req.URLs {
		request := &model.AnalysisRequest{
			ID:        uuid.NewString(),
			URL:       url,
			Status:    model.StatusPending,
			CreatedAt: now,
		}
		requests = append(requests, request)

		label := ""
		if len(req.Labels) > 0 {
			label = req.Labels[i]
		}
		batch.URLs = append(batch.URLs, model.BatchURL{
			ID:         uuid.NewString(),
			BatchID:    batch.ID,
			RequestID:  request.ID,
			Label:      label,
			IsPrimary:  i == 0,
			OrderIndex: i,
			CreatedAt:  now,
		})
	}

	if err := s.batchRepo.Create(batch, requests); err != nil {
		return nil, fmt.Errorf("failed to create batch: %w", err)
	}

	if err := s.taskQueue.Push(ctx, &queue.TaskMessage{BatchID: batch.ID}); err != nil {
		return nil, fmt.Errorf("failed to enqueue batch: %w", err)
	}

	created, err := s.batchRepo.GetByID(batch.ID)
	if err != nil {
		return nil, err
	}
	return toBatchStatus(created), nil
}

// GetStatus 批次状态快照，可与执行并发调用
func (s *CompetitiveService) GetStatus(batchID string) (*dto.BatchStatusResponse, error) {
	batch, err := s.batchRepo.GetByID(batchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBatchNotFound
		}
		return nil, err
	}
	return toBatchStatus(batch), nil
}

// GetResults 完整结果：批次状态、各竞品结果、对比，仅批次完成后可用
func (s *CompetitiveService) GetResults(batchID string) (*dto.BatchResultsResponse, error) {
	batch, err := s.batchRepo.GetByID(batchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBatchNotFound
		}
		return nil, err
	}
	if batch.Status != model.StatusCompleted {
		return nil, ErrBatchNotCompleted
	}

	resp := &dto.BatchResultsResponse{
		Batch:             *toBatchStatus(batch),
		IndividualResults: []dto.IndividualResult{},
	}

	for _, entry := range batch.URLs {
		req := entry.Request
		if req == nil || req.Result == nil {
			continue
		}
		resp.IndividualResults = append(resp.IndividualResults, dto.IndividualResult{
			URL:             req.URL,
			Label:           entry.Label,
			SEOScore:        req.Result.SEOScore,
			AEOScore:        req.Result.AEOScore,
			SEOMetrics:      req.Result.SEOMetrics,
			AEOMetrics:      req.Result.AEOMetrics,
			Recommendations: req.Result.Recommendations,
		})
	}

	comparison, err := s.comparisonRepo.GetByBatchID(batchID)
	if err == nil {
		resp.Comparison = *toComparisonResponse(comparison)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return resp, nil
}

// GetComparison 对比结果，仅批次完成后可用
func (s *CompetitiveService) GetComparison(batchID string) (*dto.ComparisonResponse, error) {
	batch, err := s.batchRepo.GetByID(batchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBatchNotFound
		}
		return nil, err
	}
	if batch.Status != model.StatusCompleted {
		return nil, ErrBatchNotCompleted
	}

	comparison, err := s.comparisonRepo.GetByBatchID(batchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrComparisonMissing
		}
		return nil, err
	}
	return toComparisonResponse(comparison), nil
}

// ListBatches 最近的批次列表
func (s *CompetitiveService) ListBatches(limit int) ([]*dto.BatchStatusResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	batches, err := s.batchRepo.ListRecent(limit)
	if err != nil {
		return nil, err
	}

	out := make([]*dto.BatchStatusResponse, 0, len(batches))
	for _, batch := range batches {
		out = append(out, toBatchStatus(batch))
	}
	return out, nil
}

func toBatchStatus(batch *model.CompetitiveBatch) *dto.BatchStatusResponse {
	resp := &dto.BatchStatusResponse{
		ID:             batch.ID,
		Name:           batch.Name,
		Status:         batch.Status,
		Progress:       batch.Progress,
		TotalURLs:      batch.TotalURLs,
		CompletedCount: batch.CompletedCount,
		FailedCount:    batch.FailedCount,
		ErrorMessage:   batch.ErrorMessage,
		CreatedAt:      formatTime(&batch.CreatedAt),
		StartedAt:      formatTime(batch.StartedAt),
		CompletedAt:    formatTime(batch.CompletedAt),
		URLs:           []dto.BatchURLStatus{},
	}

	for _, entry := range batch.URLs {
		status := dto.BatchURLStatus{
			Label:      entry.Label,
			RequestID:  entry.RequestID,
			IsPrimary:  entry.IsPrimary,
			OrderIndex: entry.OrderIndex,
		}
		if entry.Request != nil {
			status.URL = entry.Request.URL
			status.Status = entry.Request.Status
			status.Progress = entry.Request.Progress
			status.Step = entry.Request.CurrentStep
			status.Error = entry.Request.ErrorMessage
		}
		resp.URLs = append(resp.URLs, status)
	}
	return resp
}

func toComparisonResponse(comparison *model.ComparisonResult) *dto.ComparisonResponse {
	return &dto.ComparisonResponse{
		SEORankings:   toRankingEntries(comparison.SEOComparison),
		AEORankings:   toRankingEntries(comparison.AEOComparison),
		MarketLeader:  comparison.MarketLeader,
		MarketAverage: comparison.MarketAverage,
		Insights:      comparison.Insights,
		Opportunities: comparison.Opportunities,
		Threats:       comparison.Threats,
	}
}

func toRankingEntries(axis model.JSONMap) []dto.RankingEntryDTO {
	entries := []dto.RankingEntryDTO{}
	rankings, ok := axis["rankings"].([]interface{})
	if !ok {
		return entries
	}
	for _, raw := range rankings {
		item, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		entry := dto.RankingEntryDTO{}
		entry.URL, _ = item["url"].(string)
		entry.Label, _ = item["label"].(string)
		entry.Score = toFloat(item["score"])
		entry.Rank = int(toFloat(item["rank"]))
		entry.DeltaFromLeader = toFloat(item["delta_from_leader"])
		entry.DeltaFromAverage = toFloat(item["delta_from_average"])
		entries = append(entries, entry)
	}
	return entries
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
