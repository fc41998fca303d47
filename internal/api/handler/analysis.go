package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/auraseo/aura_server/internal/model/dto"
	"github.com/auraseo/aura_server/internal/pkg/response"
	"github.com/auraseo/aura_server/internal/service"
)

type AnalysisHandler struct {
	analysisService *service.AnalysisService
}

func NewAnalysisHandler(analysisService *service.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{
		analysisService: analysisService,
	}
}

// Create 创建单 URL 分析
// POST /api/v1/analyses
func (h *AnalysisHandler) Create(c *gin.Context) {
	var req dto.CreateAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.analysisService.CreateAnalysis(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidURL) {
			response.ParamError(c, err.Error())
		} else {
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, resp)
}

// Get 查询分析状态
// GET /api/v1/analyses/:id
func (h *AnalysisHandler) Get(c *gin.Context) {
	resp, err := h.analysisService.GetStatus(c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrAnalysisNotFound) {
			response.NotFoundError(c, err.Error())
		} else {
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, resp)
}

// GetResult 查询分析结果
// GET /api/v1/analyses/:id/result
func (h *AnalysisHandler) GetResult(c *gin.Context) {
	resp, err := h.analysisService.GetResult(c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAnalysisNotFound):
			response.NotFoundError(c, err.Error())
		case errors.Is(err, service.ErrResultNotReady):
			response.NotReadyError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, resp)
}
