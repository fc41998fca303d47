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
	ErrAnalysisNotFound = errors.New("analysis request not found")
	ErrResultNotReady   = errors.New("analysis result not ready")
)

// AnalysisService 单 URL 分析服务
type AnalysisService struct {
	analysisRepo *repository.AnalysisRepository
	taskQueue    *queue.Queue
}

func NewAnalysisService(analysisRepo *repository.AnalysisRepository, taskQueue *queue.Queue) *AnalysisService {
	return &AnalysisService{
		analysisRepo: analysisRepo,
		taskQueue:    taskQueue,
	}
}

// CreateAnalysis 创建单 URL 分析请求并入队
func (s *AnalysisService) CreateAnalysis(ctx context.Context, req *dto.CreateAnalysisRequest) (*dto.CreateAnalysisResponse, error) {
	if !validate.URL(req.URL) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidURL, req.URL)
	}

	request := &model.AnalysisRequest{
		ID:        uuid.NewString(),
		URL:       req.URL,
		Status:    model.StatusPending,
		CreatedAt: time.Now(),
	}
	if err := s.analysisRepo.Create(request); err != nil {
		return nil, fmt.Errorf("failed to create analysis request: %w", err)
	}

	if err := s.taskQueue.Push(ctx, &queue.TaskMessage{RequestID: request.ID}); err != nil {
		return nil, fmt.Errorf("failed to enqueue analysis: %w", err)
	}

	return &dto.CreateAnalysisResponse{
		RequestID: request.ID,
		Status:    request.Status,
	}, nil
}

// GetStatus 查询分析状态
func (s *AnalysisService) GetStatus(requestID string) (*dto.AnalysisStatusResponse, error) {
	req, err := s.analysisRepo.GetByID(requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAnalysisNotFound
		}
		return nil, err
	}

	return &dto.AnalysisStatusResponse{
		RequestID:    req.ID,
		URL:          req.URL,
		Status:       req.Status,
		Progress:     req.Progress,
		CurrentStep:  req.CurrentStep,
		ErrorMessage: req.ErrorMessage,
		StartedAt:    formatTime(req.StartedAt),
		CompletedAt:  formatTime(req.CompletedAt),
	}, nil
}

// GetResult 查询分析结果，仅完成后可用
func (s *AnalysisService) GetResult(requestID string) (*dto.AnalysisResultResponse, error) {
	req, err := s.analysisRepo.GetByID(requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAnalysisNotFound
		}
		return nil, err
	}
	if req.Status != model.StatusCompleted || req.Result == nil {
		return nil, ErrResultNotReady
	}

	return &dto.AnalysisResultResponse{
		RequestID:        req.ID,
		URL:              req.URL,
		SEOScore:         req.Result.SEOScore,
		AEOScore:         req.Result.AEOScore,
		SEOMetrics:       req.Result.SEOMetrics,
		AEOMetrics:       req.Result.AEOMetrics,
		Recommendations:  req.Result.Recommendations,
		AnalysisDuration: req.Result.AnalysisDuration,
	}, nil
}
