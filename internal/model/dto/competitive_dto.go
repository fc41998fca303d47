package dto

// CreateBatchRequest 创建竞争分析批次请求
type CreateBatchRequest struct {
	URLs   []string `json:"urls" binding:"required,min=2,max=5"`
	Labels []string `json:"labels,omitempty"`
	Name   string   `json:"name,omitempty" binding:"omitempty,max=255"`
}

// BatchURLStatus 批次内单个 URL 的状态
type BatchURLStatus struct {
	URL        string `json:"url"`
	Label      string `json:"label,omitempty"`
	Status     string `json:"status"`
	Progress   int    `json:"progress"`
	Step       string `json:"current_step,omitempty"`
	Error      string `json:"error_message,omitempty"`
	RequestID  string `json:"request_id"`
	IsPrimary  bool   `json:"is_primary"`
	OrderIndex int    `json:"order_index"`
}

// BatchStatusResponse 批次状态快照
type BatchStatusResponse struct {
	ID             string           `json:"id"`
	Name           string           `json:"name,omitempty"`
	Status         string           `json:"status"`
	Progress       int              `json:"progress"`
	TotalURLs      int              `json:"total_urls"`
	CompletedCount int              `json:"completed_count"`
	FailedCount    int              `json:"failed_count"`
	ErrorMessage   string           `json:"error_message,omitempty"`
	CreatedAt      string           `json:"created_at"`
	StartedAt      string           `json:"started_at,omitempty"`
	CompletedAt    string           `json:"completed_at,omitempty"`
	URLs           []BatchURLStatus `json:"urls"`
}

// RankingEntryDTO 单个竞品的排名条目
type RankingEntryDTO struct {
	URL              string  `json:"url"`
	Label            string  `json:"label,omitempty"`
	Score            float64 `json:"score"`
	Rank             int     `json:"rank"`
	DeltaFromLeader  float64 `json:"delta_from_leader"`
	DeltaFromAverage float64 `json:"delta_from_average"`
}

// ComparisonResponse 对比结果（概要视图）
type ComparisonResponse struct {
	SEORankings   []RankingEntryDTO      `json:"seo_rankings"`
	AEORankings   []RankingEntryDTO      `json:"aeo_rankings"`
	MarketLeader  map[string]interface{} `json:"market_leader"`
	MarketAverage map[string]interface{} `json:"market_average"`
	Insights      string                 `json:"insights"`
	Opportunities []string               `json:"opportunities"`
	Threats       []string               `json:"threats"`
}

// IndividualResult 单个竞品的完整分析结果
type IndividualResult struct {
	URL             string                   `json:"url"`
	Label           string                   `json:"label,omitempty"`
	SEOScore        float64                  `json:"seo_score"`
	AEOScore        float64                  `json:"aeo_score"`
	SEOMetrics      map[string]interface{}   `json:"seo_metrics,omitempty"`
	AEOMetrics      map[string]interface{}   `json:"aeo_metrics,omitempty"`
	Recommendations []interface{}            `json:"recommendations,omitempty"`
}

// BatchResultsResponse 完整结果：批次状态 + 各竞品结果 + 对比
type BatchResultsResponse struct {
	Batch             BatchStatusResponse `json:"batch"`
	IndividualResults []IndividualResult  `json:"individual_results"`
	Comparison        ComparisonResponse  `json:"comparison"`
}
