package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/auraseo/aura_server/internal/model"
)

// SeedBatch 插入一个批次及其 URL 和分析请求，返回批次
func SeedBatch(t *testing.T, db *gorm.DB, urls []string) *model.CompetitiveBatch {
	t.Helper()

	now := time.Now()
	batch := &model.CompetitiveBatch{
		ID:        uuid.NewString(),
		Status:    model.StatusPending,
		TotalURLs: len(urls),
		CreatedAt: now,
	}

	for i, url := range urls {
		req := &model.AnalysisRequest{
			ID:        uuid.NewString(),
			URL:       url,
			Status:    model.StatusPending,
			CreatedAt: now,
		}
		if err := db.Create(req).Error; err != nil {
			t.Fatalf("failed to seed request: %v", err)
		}

		batch.URLs = append(batch.URLs, model.BatchURL{
			ID:         uuid.NewString(),
			BatchID:    batch.ID,
			RequestID:  req.ID,
			Label:      fmt.Sprintf("Competitor %d", i+1),
			IsPrimary:  i == 0,
			OrderIndex: i,
			CreatedAt:  now,
		})
	}

	if err := db.Create(batch).Error; err != nil {
		t.Fatalf("failed to seed batch: %v", err)
	}
	return batch
}

// SeedResult 为请求写入完成状态和分析结果
func SeedResult(t *testing.T, db *gorm.DB, requestID string, seoScore, aeoScore float64) *model.AnalysisResult {
	t.Helper()

	now := time.Now()
	if err := db.Model(&model.AnalysisRequest{}).Where("id = ?", requestID).Updates(map[string]interface{}{
		"status":       model.StatusCompleted,
		"progress":     100,
		"completed_at": now,
	}).Error; err != nil {
		t.Fatalf("failed to mark request completed: %v", err)
	}

	result := &model.AnalysisResult{
		ID:        uuid.NewString(),
		RequestID: requestID,
		SEOScore:  seoScore,
		AEOScore:  aeoScore,
		SEOMetrics: model.JSONMap{
			"issues": []interface{}{"Missing meta description"},
			"category_scores": map[string]interface{}{
				"security": 100.0,
			},
		},
		AEOMetrics: model.JSONMap{
			"brand_recognition": map[string]interface{}{
				"what_it_does": "Sells widgets",
			},
		},
		CreatedAt: now,
	}
	if err := db.Create(result).Error; err != nil {
		t.Fatalf("failed to seed result: %v", err)
	}
	return result
}
