package model

import (
	"time"
)

// CompetitiveBatch 一次竞争分析批次（2-5 个竞品 URL）
type CompetitiveBatch struct {
	ID       string `gorm:"primaryKey;size:36" json:"id"`
	Name     string `gorm:"size:255" json:"name,omitempty"`
	Status   string `gorm:"size:20;default:pending;index" json:"status"` // pending, processing, completed, failed
	Progress int    `gorm:"default:0" json:"progress"`                   // 0-100 聚合进度

	TotalURLs      int `gorm:"not null" json:"total_urls"`
	CompletedCount int `gorm:"default:0" json:"completed_count"`
	FailedCount    int `gorm:"default:0" json:"failed_count"`

	ErrorMessage string `gorm:"type:text" json:"error_message,omitempty"`

	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`

	URLs []BatchURL `gorm:"foreignKey:BatchID" json:"urls,omitempty"`
}

func (CompetitiveBatch) TableName() string {
	return "competitive_batches"
}

// BatchURL 批次内的单个 URL，关联其分析请求
type BatchURL struct {
	ID        string `gorm:"primaryKey;size:36" json:"id"`
	BatchID   string `gorm:"size:36;not null;index:idx_batch_order" json:"batch_id"`
	RequestID string `gorm:"size:36;not null;uniqueIndex" json:"request_id"`

	Label      string `gorm:"size:255" json:"label,omitempty"` // 例如 "Competitor A"、"Our Site"
	IsPrimary  bool   `gorm:"default:false" json:"is_primary"` // 第一个 URL 默认为用户自己的站点
	OrderIndex int    `gorm:"default:0;index:idx_batch_order" json:"order_index"`

	CreatedAt time.Time `json:"created_at"`

	Request *AnalysisRequest `gorm:"foreignKey:RequestID" json:"request,omitempty"`
}

func (BatchURL) TableName() string {
	return "competitive_batch_urls"
}

// ComparisonResult 批次的对比结论与基准数据
type ComparisonResult struct {
	ID      string `gorm:"primaryKey;size:36" json:"id"`
	BatchID string `gorm:"size:36;not null;uniqueIndex" json:"batch_id"`

	// 各维度对比：{rankings: [...], average, leader}
	SEOComparison JSONMap `gorm:"type:json" json:"seo_comparison,omitempty"`
	AEOComparison JSONMap `gorm:"type:json" json:"aeo_comparison,omitempty"`

	MarketLeader  JSONMap `gorm:"type:json" json:"market_leader,omitempty"`  // {seo: {url, score, label}, aeo: ...}
	MarketAverage JSONMap `gorm:"type:json" json:"market_average,omitempty"` // {seo: avg, aeo: avg}

	// AI 生成的竞争洞察
	Insights      string      `gorm:"type:text" json:"insights"`
	Opportunities StringArray `gorm:"type:json" json:"opportunities"`
	Threats       StringArray `gorm:"type:json" json:"threats"`

	ComparisonDuration float64   `json:"comparison_duration"` // 秒
	CreatedAt          time.Time `json:"created_at"`
}

func (ComparisonResult) TableName() string {
	return "comparison_results"
}
