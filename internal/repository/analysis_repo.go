package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/auraseo/aura_server/internal/model"
)

type AnalysisRepository struct {
	db *gorm.DB
}

func NewAnalysisRepository(db *gorm.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

func (r *AnalysisRepository) Create(req *model.AnalysisRequest) error {
	return r.db.Create(req).Error
}

func (r *AnalysisRepository) GetByID(id string) (*model.AnalysisRequest, error) {
	var req model.AnalysisRequest
	err := r.db.Preload("Result").Where("id = ?", id).First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *AnalysisRepository) Update(req *model.AnalysisRequest) error {
	return r.db.Save(req).Error
}

func (r *AnalysisRepository) UpdateStatus(id string, status string) error {
	return r.db.Model(&model.AnalysisRequest{}).Where("id = ?", id).Update("status", status).Error
}

// UpdateProgress 同时更新进度和当前步骤
func (r *AnalysisRepository) UpdateProgress(id string, progress int, step string) error {
	return r.db.Model(&model.AnalysisRequest{}).Where("id = ?", id).Updates(map[string]interface{}{
		"progress":     progress,
		"current_step": step,
	}).Error
}

// MarkProcessing 标记开始处理并记录起始时间
func (r *AnalysisRepository) MarkProcessing(id string) error {
	return r.db.Model(&model.AnalysisRequest{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     model.StatusProcessing,
		"started_at": time.Now(),
	}).Error
}

// MarkCompleted 标记完成，进度固定为 100
func (r *AnalysisRepository) MarkCompleted(id string) error {
	return r.db.Model(&model.AnalysisRequest{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":       model.StatusCompleted,
		"progress":     100,
		"completed_at": time.Now(),
	}).Error
}

// MarkFailed 标记失败，保留最后一次进度
func (r *AnalysisRepository) MarkFailed(id string, errMsg string) error {
	return r.db.Model(&model.AnalysisRequest{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        model.StatusFailed,
		"error_message": errMsg,
		"completed_at":  time.Now(),
	}).Error
}

func (r *AnalysisRepository) SaveResult(result *model.AnalysisResult) error {
	return r.db.Create(result).Error
}

func (r *AnalysisRepository) GetResultByRequestID(requestID string) (*model.AnalysisResult, error) {
	var result model.AnalysisResult
	err := r.db.Where("request_id = ?", requestID).First(&result).Error
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ListRecent 按创建时间倒序列出最近的分析请求
func (r *AnalysisRepository) ListRecent(limit int) ([]*model.AnalysisRequest, error) {
	var reqs []*model.AnalysisRequest
	err := r.db.Preload("Result").
		Order("created_at DESC").
		Limit(limit).
		Find(&reqs).Error
	return reqs, err
}
