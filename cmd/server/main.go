package main

import (
	"context"
	"fmt"
	"log"

	"github.com/auraseo/aura_server/config"
	"github.com/auraseo/aura_server/internal/api"
	"github.com/auraseo/aura_server/internal/api/handler"
	"github.com/auraseo/aura_server/internal/database"
	"github.com/auraseo/aura_server/internal/pkg/pubsub"
	"github.com/auraseo/aura_server/internal/pkg/queue"
	"github.com/auraseo/aura_server/internal/pkg/ws"
	"github.com/auraseo/aura_server/internal/repository"
	"github.com/auraseo/aura_server/internal/service"
)

func main() {
	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化数据库
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	log.Println("Database connected")

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Println("Redis connected")

	// 初始化 Queue
	taskQueue := queue.NewQueue(rdb, cfg.Queue.BatchQueue)

	// 初始化 WebSocket Hub
	wsHub := ws.NewHub()

	// 初始化 Repository
	batchRepo := repository.NewBatchRepository(db)
	analysisRepo := repository.NewAnalysisRepository(db)
	comparisonRepo := repository.NewComparisonRepository(db)

	// 初始化 Service
	competitiveService := service.NewCompetitiveService(batchRepo, comparisonRepo, taskQueue)
	analysisService := service.NewAnalysisService(analysisRepo, taskQueue)

	// 订阅 worker 发布的进度消息并转发到 WebSocket
	subscriber := pubsub.NewSubscriber(rdb)
	go func() {
		err := subscriber.Subscribe(context.Background(), func(msg *pubsub.ProgressMessage) {
			wsMsg := &ws.Message{Type: msg.Type, Data: msg}
			if err := wsHub.SendToBatch(msg.BatchID, wsMsg); err != nil {
				log.Printf("Failed to forward progress to websocket: %v", err)
			}
			// 单 URL 分析按 request_id 订阅
			if msg.RequestID != "" && msg.RequestID != msg.BatchID {
				_ = wsHub.SendToBatch(msg.RequestID, wsMsg)
			}
		})
		if err != nil {
			log.Printf("Progress subscriber stopped: %v", err)
		}
	}()
	log.Println("Progress subscriber started")

	// 初始化 Handler
	competitiveHandler := handler.NewCompetitiveHandler(competitiveService)
	analysisHandler := handler.NewAnalysisHandler(analysisService)
	websocketHandler := handler.NewWebSocketHandler(wsHub, competitiveService)

	// 初始化 Router
	router := api.NewRouter(
		competitiveHandler,
		analysisHandler,
		websocketHandler,
		cfg,
	)
	engine := router.Setup()

	// 启动服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on %s", addr)
	if err := engine.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
