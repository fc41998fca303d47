package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/auraseo/aura_server/config"
	"github.com/auraseo/aura_server/internal/crawler"
	"github.com/auraseo/aura_server/internal/database"
	"github.com/auraseo/aura_server/internal/llm"
	"github.com/auraseo/aura_server/internal/pkg/cron"
	"github.com/auraseo/aura_server/internal/pkg/pubsub"
	"github.com/auraseo/aura_server/internal/pkg/queue"
	"github.com/auraseo/aura_server/internal/repository"
	"github.com/auraseo/aura_server/internal/seo"
	"github.com/auraseo/aura_server/internal/worker"
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

	// 初始化 Queue 和 Pub/Sub
	taskQueue := queue.NewQueue(rdb, cfg.Queue.BatchQueue)
	publisher := pubsub.NewPublisher(rdb)

	// 初始化 Repository
	batchRepo := repository.NewBatchRepository(db)
	analysisRepo := repository.NewAnalysisRepository(db)
	comparisonRepo := repository.NewComparisonRepository(db)

	// 组装分析管线和批次协调器
	llmClient := llm.NewClient(&cfg.LLM)
	pipeline := worker.NewPipeline(crawler.New(&cfg.Crawler), seo.NewAnalyzer(), llmClient, analysisRepo)
	coordinator := worker.NewCoordinator(
		batchRepo,
		analysisRepo,
		comparisonRepo,
		pipeline,
		llmClient,
		cfg.Competitive.MaxConcurrent,
		cfg.Competitive.MinSuccess,
	)

	// 进度事件转发到 Redis 频道，由 API 进程推给 WebSocket 订阅者
	coordinator.AddListener(func(ev worker.ProgressEvent) {
		msg := &pubsub.ProgressMessage{
			BatchID:       ev.BatchID,
			RequestID:     ev.RequestID,
			URL:           ev.URL,
			Status:        ev.Status,
			Step:          ev.Step,
			Progress:      ev.Progress,
			BatchProgress: ev.BatchProgress,
			Error:         ev.Error,
		}
		if err := publisher.PublishProgress(context.Background(), msg); err != nil {
			log.Printf("Failed to publish progress: %v", err)
		}
	})

	// 超时批次兜底 + 历史数据清理
	cronService := cron.NewService(batchRepo, analysisRepo, cfg.Competitive.ProcessingTimeout, cfg.Competitive.RetentionDays)
	cronService.Start()
	defer cronService.Stop()

	// 创建 context 用于优雅关闭
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 监听退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Received shutdown signal")
		cancel()
	}()

	log.Printf("Worker started, max workers: %d", cfg.Queue.MaxWorkers)

	// 启动 worker 循环
	for i := 0; i < cfg.Queue.MaxWorkers; i++ {
		go func(workerID int) {
			for {
				select {
				case <-ctx.Done():
					log.Printf("Worker %d shutting down", workerID)
					return
				default:
					// 从队列获取任务
					msg, err := taskQueue.Pop(ctx, 5*time.Second)
					if err != nil {
						if ctx.Err() != nil {
							return
						}
						log.Printf("Worker %d: failed to pop task: %v", workerID, err)
						continue
					}

					if msg == nil {
						continue // 超时，继续等待
					}

					switch {
					case msg.BatchID != "":
						log.Printf("Worker %d: processing batch %s", workerID, msg.BatchID)
						if err := coordinator.Run(ctx, msg.BatchID); err != nil {
							log.Printf("Worker %d: batch %s failed: %v", workerID, msg.BatchID, err)
						}
					case msg.RequestID != "":
						log.Printf("Worker %d: processing analysis %s", workerID, msg.RequestID)
						if err := coordinator.RunSingle(ctx, msg.RequestID); err != nil {
							log.Printf("Worker %d: analysis %s failed: %v", workerID, msg.RequestID, err)
						}
					default:
						log.Printf("Worker %d: dropping empty task message", workerID)
					}
				}
			}
		}(i)
	}

	// 等待 context 取消
	<-ctx.Done()
	log.Println("Worker shutdown complete")
}
