package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/auraseo/aura_server/internal/model"
)

type BatchRepository struct {
	db *gorm.DB
}

func NewBatchRepository(db *gorm.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// Create 在同一事务中创建批次、URL 条目和对应的分析请求
func (r *BatchRepository) Create(batch *model.CompetitiveBatch, requests []*model.AnalysisRequest) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		for _, req := range requests {
			if err := tx.Create(req).Error; err != nil {
				return err
			}
		}
		return tx.Create(batch).Error
	})
}

// GetByID 加载批次及其全部 URL 和分析结果
func (r *BatchRepository) GetByID(id string) (*model.CompetitiveBatch, error) {
	var batch model.CompetitiveBatch
	err := r.db.
		Preload("URLs", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index ASC")
		}).
		Preload("URLs.Request").
		Preload("URLs.Request.Result").
		Where("id = ?", id).
		First(&batch).Error
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *BatchRepository) Update(batch *model.CompetitiveBatch) error {
	return r.db.Save(batch).Error
}

func (r *BatchRepository) UpdateStatus(id string, status string) error {
	return r.db.Model(&model.CompetitiveBatch{}).Where("id = ?", id).Update("status", status).Error
}

// UpdateProgress 更新批次聚合进度与计数
func (r *BatchRepository) UpdateProgress(id string, progress, completedCount, failedCount int) error {
	return r.db.Model(&model.CompetitiveBatch{}).Where("id = ?", id).Updates(map[string]interface{}{
		"progress":        progress,
		"completed_count": completedCount,
		"failed_count":    failedCount,
	}).Error
}

// ListRecent 按创建时间倒序列出最近的批次
func (r *BatchRepository) ListRecent(limit int) ([]*model.CompetitiveBatch, error) {
	var batches []*model.CompetitiveBatch
	err := r.db.Order("created_at DESC").Limit(limit).Find(&batches).Error
	return batches, err
}

// ListStaleProcessing 找出超过截止时间仍在处理中的批次
func (r *BatchRepository) ListStaleProcessing(deadline time.Time) ([]*model.CompetitiveBatch, error) {
	var batches []*model.CompetitiveBatch
	err := r.db.
		Where("status = ? AND started_at IS NOT NULL AND started_at < ?", model.StatusProcessing, deadline).
		Find(&batches).Error
	return batches, err
}

// DeleteOlderThan 删除早于指定时间的批次及其关联数据，返回删除数量
func (r *BatchRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	var batches []*model.CompetitiveBatch
	if err := r.db.Preload("URLs").Where("created_at < ?", cutoff).Find(&batches).Error; err != nil {
		return 0, err
	}
	if len(batches) == 0 {
		return 0, nil
	}

	var deleted int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		for _, batch := range batches {
			requestIDs := make([]string, 0, len(batch.URLs))
			for _, u := range batch.URLs {
				requestIDs = append(requestIDs, u.RequestID)
			}

			if err := tx.Where("batch_id = ?", batch.ID).Delete(&model.ComparisonResult{}).Error; err != nil {
				return err
			}
			if err := tx.Where("batch_id = ?", batch.ID).Delete(&model.BatchURL{}).Error; err != nil {
				return err
			}
			if len(requestIDs) > 0 {
				if err := tx.Where("request_id IN ?", requestIDs).Delete(&model.AnalysisResult{}).Error; err != nil {
					return err
				}
				if err := tx.Where("id IN ?", requestIDs).Delete(&model.AnalysisRequest{}).Error; err != nil {
					return err
				}
			}
			if err := tx.Delete(batch).Error; err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}
