package dto

// CreateAnalysisRequest 创建单 URL 分析请求
type CreateAnalysisRequest struct {
	URL string `json:"url" binding:"required,max=2048"`
}

// CreateAnalysisResponse 创建单 URL 分析响应
type CreateAnalysisResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

// AnalysisStatusResponse 单 URL 分析状态
type AnalysisStatusResponse struct {
	RequestID    string `json:"request_id"`
	URL          string `json:"url"`
	Status       string `json:"status"`
	Progress     int    `json:"progress"`
	CurrentStep  string `json:"current_step,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	StartedAt    string `json:"started_at,omitempty"`
	CompletedAt  string `json:"completed_at,omitempty"`
}

// AnalysisResultResponse 单 URL 分析结果
type AnalysisResultResponse struct {
	RequestID        string                 `json:"request_id"`
	URL              string                 `json:"url"`
	SEOScore         float64                `json:"seo_score"`
	AEOScore         float64                `json:"aeo_score"`
	SEOMetrics       map[string]interface{} `json:"seo_metrics,omitempty"`
	AEOMetrics       map[string]interface{} `json:"aeo_metrics,omitempty"`
	Recommendations  []interface{}          `json:"recommendations,omitempty"`
	AnalysisDuration float64                `json:"analysis_duration"`
}
