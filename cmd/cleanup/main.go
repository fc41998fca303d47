package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/auraseo/aura_server/config"
	"github.com/auraseo/aura_server/internal/model"
	"github.com/auraseo/aura_server/internal/pkg/cron"
	"github.com/auraseo/aura_server/internal/repository"
)

var (
	dryRun         = flag.Bool("dry-run", true, "Dry run mode, don't actually delete or fail anything")
	retentionDays  = flag.Int("retention-days", 30, "Days to keep batch data")
	timeoutMinutes = flag.Int("timeout-minutes", 30, "Minutes before a processing batch is considered stuck")
	sweepStale     = flag.Bool("sweep-stale", true, "Fail batches stuck in processing")
	pruneOld       = flag.Bool("prune-old", true, "Delete batches past retention")
)

func main() {
	flag.Parse()

	log.Println("Starting cleanup task...")
	log.Printf("Mode: dry-run=%v", *dryRun)

	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 连接数据库
	db, err := connectDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	batchRepo := repository.NewBatchRepository(db)
	analysisRepo := repository.NewAnalysisRepository(db)
	svc := cron.NewService(batchRepo, analysisRepo, *timeoutMinutes, *retentionDays)

	// 1. 处理卡死的批次
	if *sweepStale {
		log.Printf("Sweeping batches stuck in processing for more than %d minutes...", *timeoutMinutes)
		if *dryRun {
			deadline := time.Now().Add(-time.Duration(*timeoutMinutes) * time.Minute)
			stale, err := batchRepo.ListStaleProcessing(deadline)
			if err != nil {
				log.Printf("Failed to list stale batches: %v", err)
			}
			for _, b := range stale {
				log.Printf("  - batch %s (started %s)", b.ID, b.StartedAt.Format(time.RFC3339))
			}
			log.Printf("Would fail %d stale batches", len(stale))
		} else {
			log.Printf("Failed %d stale batches", svc.SweepStale())
		}
	}

	// 2. 清理超过保留期的批次
	if *pruneOld {
		log.Printf("Pruning batches older than %d days...", *retentionDays)
		if *dryRun {
			cutoff := time.Now().AddDate(0, 0, -*retentionDays)
			var count int64
			if err := db.Model(&model.CompetitiveBatch{}).Where("created_at < ?", cutoff).Count(&count).Error; err != nil {
				log.Printf("Failed to count old batches: %v", err)
			}
			log.Printf("Would delete %d batches", count)
		} else {
			log.Printf("Deleted %d batches", svc.PruneOld())
		}
	}

	if *dryRun {
		log.Println("DRY RUN MODE - nothing was changed")
		log.Println("Run with -dry-run=false to apply")
	} else {
		log.Println("Cleanup completed")
	}
}

// connectDB 连接数据库
func connectDB(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Database.Username,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Database,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	return db, nil
}
