package model

import (
	"time"
)

// 分析状态
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// IsTerminal 是否为终态（completed / failed）
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// AnalysisRequest 单个 URL 的分析请求
type AnalysisRequest struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	URL          string     `gorm:"size:2048;not null;index" json:"url"`
	Status       string     `gorm:"size:20;default:pending;index" json:"status"` // pending, processing, completed, failed
	Progress     int        `gorm:"default:0" json:"progress"`                   // 0-100
	CurrentStep  string     `gorm:"size:100" json:"current_step,omitempty"`
	ErrorMessage string     `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`

	Result *AnalysisResult `gorm:"foreignKey:RequestID" json:"result,omitempty"`
}

func (AnalysisRequest) TableName() string {
	return "analysis_requests"
}

// AnalysisResult 分析结果（SEO + AEO）
type AnalysisResult struct {
	ID        string `gorm:"primaryKey;size:36" json:"id"`
	RequestID string `gorm:"size:36;not null;uniqueIndex" json:"request_id"`

	PageText string `gorm:"type:text" json:"page_text,omitempty"`

	SEOScore   float64 `json:"seo_score"` // 0-100
	SEOMetrics JSONMap `gorm:"type:json" json:"seo_metrics,omitempty"`

	AEOScore   float64 `json:"aeo_score"` // 0-100
	AEOMetrics JSONMap `gorm:"type:json" json:"aeo_metrics,omitempty"`

	Recommendations  JSONArray `gorm:"type:json" json:"recommendations,omitempty"`
	AnalysisDuration float64   `json:"analysis_duration"` // 秒

	CreatedAt time.Time `json:"created_at"`
}

func (AnalysisResult) TableName() string {
	return "analysis_results"
}
