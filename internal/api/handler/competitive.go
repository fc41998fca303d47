package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/auraseo/aura_server/internal/model/dto"
	"github.com/auraseo/aura_server/internal/pkg/response"
	"github.com/auraseo/aura_server/internal/service"
)

type CompetitiveHandler struct {
	competitiveService *service.CompetitiveService
}

func NewCompetitiveHandler(competitiveService *service.CompetitiveService) *CompetitiveHandler {
	return &CompetitiveHandler{
		competitiveService: competitiveService,
	}
}

// Create 创建竞争分析批次
// POST /api/v1/competitive
func (h *CompetitiveHandler) Create(c *gin.Context) {
	var req dto.CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.competitiveService.CreateBatch(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidURLCount),
			errors.Is(err, service.ErrInvalidURL),
			errors.Is(err, service.ErrDuplicateURL),
			errors.Is(err, service.ErrLabelMismatch):
			response.ParamError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, resp)
}

// Get 查询批次状态
// GET /api/v1/competitive/:id
func (h *CompetitiveHandler) Get(c *gin.Context) {
	resp, err := h.competitiveService.GetStatus(c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrBatchNotFound) {
			response.NotFoundError(c, err.Error())
		} else {
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, resp)
}

// GetResults 查询批次完整结果
// GET /api/v1/competitive/:id/results
func (h *CompetitiveHandler) GetResults(c *gin.Context) {
	resp, err := h.competitiveService.GetResults(c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBatchNotFound):
			response.NotFoundError(c, err.Error())
		case errors.Is(err, service.ErrBatchNotCompleted):
			response.NotReadyError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, resp)
}

// GetComparison 查询批次对比结论
// GET /api/v1/competitive/:id/comparison
func (h *CompetitiveHandler) GetComparison(c *gin.Context) {
	resp, err := h.competitiveService.GetComparison(c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBatchNotFound):
			response.NotFoundError(c, err.Error())
		case errors.Is(err, service.ErrBatchNotCompleted):
			response.NotReadyError(c, err.Error())
		case errors.Is(err, service.ErrComparisonMissing):
			response.NotFoundError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, resp)
}

// List 最近的批次列表
// GET /api/v1/competitive?limit=20
func (h *CompetitiveHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	batches, err := h.competitiveService.ListBatches(limit)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.Success(c, batches)
}
