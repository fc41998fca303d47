package api

import (
	"github.com/gin-gonic/gin"

	"github.com/auraseo/aura_server/config"
	"github.com/auraseo/aura_server/internal/api/handler"
	"github.com/auraseo/aura_server/internal/api/middleware"
)

type Router struct {
	competitiveHandler *handler.CompetitiveHandler
	analysisHandler    *handler.AnalysisHandler
	websocketHandler   *handler.WebSocketHandler
	cfg                *config.Config
}

func NewRouter(
	competitiveHandler *handler.CompetitiveHandler,
	analysisHandler *handler.AnalysisHandler,
	websocketHandler *handler.WebSocketHandler,
	cfg *config.Config,
) *Router {
	return &Router{
		competitiveHandler: competitiveHandler,
		analysisHandler:    analysisHandler,
		websocketHandler:   websocketHandler,
		cfg:                cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	engine.GET("/health", handler.Health)

	api := engine.Group("/api/v1")
	{
		api.GET("/health", handler.Health)

		// 竞争分析批次
		competitive := api.Group("/competitive")
		{
			competitive.POST("", r.competitiveHandler.Create)
			competitive.GET("", r.competitiveHandler.List)
			competitive.GET("/:id", r.competitiveHandler.Get)
			competitive.GET("/:id/results", r.competitiveHandler.GetResults)
			competitive.GET("/:id/comparison", r.competitiveHandler.GetComparison)
			competitive.GET("/:id/ws", r.websocketHandler.Handle)
		}

		// 单 URL 分析
		analyses := api.Group("/analyses")
		{
			analyses.POST("", r.analysisHandler.Create)
			analyses.GET("/:id", r.analysisHandler.Get)
			analyses.GET("/:id/result", r.analysisHandler.GetResult)
		}
	}

	return engine
}
