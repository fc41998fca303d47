package cron

import (
	"fmt"
	"log"
	"time"

	"github.com/auraseo/aura_server/internal/model"
	"github.com/auraseo/aura_server/internal/repository"
)

// Service 后台定时任务：超时批次兜底 + 历史数据清理
type Service struct {
	batchRepo    *repository.BatchRepository
	analysisRepo *repository.AnalysisRepository

	processingTimeout time.Duration // 批次处理超时
	retentionDays     int           // 0 表示不清理历史数据

	stopChan chan struct{}
}

func NewService(
	batchRepo *repository.BatchRepository,
	analysisRepo *repository.AnalysisRepository,
	processingTimeoutMinutes int,
	retentionDays int,
) *Service {
	if processingTimeoutMinutes <= 0 {
		processingTimeoutMinutes = 30
	}
	return &Service{
		batchRepo:         batchRepo,
		analysisRepo:      analysisRepo,
		processingTimeout: time.Duration(processingTimeoutMinutes) * time.Minute,
		retentionDays:     retentionDays,
		stopChan:          make(chan struct{}),
	}
}

// Start 启动定时任务
func (s *Service) Start() {
	go s.runStaleSweep()
	go s.runRetention()
	log.Println("Cron service started (stale batch sweep + retention)")
}

// Stop 停止定时任务
func (s *Service) Stop() {
	close(s.stopChan)
	log.Println("Cron service stopped")
}

// runStaleSweep 每 5 分钟扫描一次超时批次
func (s *Service) runStaleSweep() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			if n := s.SweepStale(); n > 0 {
				log.Printf("Stale sweep: failed %d timed-out batches", n)
			}
		}
	}
}

// runRetention 每天执行一次历史数据清理
func (s *Service) runRetention() {
	if s.retentionDays <= 0 {
		return
	}

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			if n := s.PruneOld(); n > 0 {
				log.Printf("Retention: deleted %d batches older than %d days", n, s.retentionDays)
			}
		}
	}
}

// SweepStale 将超过处理超时仍未结束的批次标记为失败，返回处理数量。
// 批次内未结束的分析请求一并标记失败。
func (s *Service) SweepStale() int {
	deadline := time.Now().Add(-s.processingTimeout)

	stale, err := s.batchRepo.ListStaleProcessing(deadline)
	if err != nil {
		log.Printf("Stale sweep: failed to list batches: %v", err)
		return 0
	}

	swept := 0
	for _, b := range stale {
		if err := s.failTimedOut(b.ID); err != nil {
			log.Printf("Stale sweep: failed to finalize batch %s: %v", b.ID, err)
			continue
		}
		swept++
	}
	return swept
}

func (s *Service) failTimedOut(batchID string) error {
	batch, err := s.batchRepo.GetByID(batchID)
	if err != nil {
		return err
	}

	completed, failed := 0, 0
	for _, entry := range batch.URLs {
		if entry.Request == nil {
			continue
		}
		switch entry.Request.Status {
		case model.StatusCompleted:
			completed++
		case model.StatusFailed:
			failed++
		default:
			// 未结束的请求随批次一起超时
			if err := s.analysisRepo.MarkFailed(entry.RequestID, "batch processing timed out"); err != nil {
				log.Printf("Stale sweep: failed to mark request %s: %v", entry.RequestID, err)
			} else {
				failed++
			}
		}
	}

	now := time.Now()
	batch.Status = model.StatusFailed
	batch.CompletedCount = completed
	batch.FailedCount = failed
	batch.ErrorMessage = fmt.Sprintf("Batch processing timed out after %s", s.processingTimeout)
	batch.CompletedAt = &now
	return s.batchRepo.Update(batch)
}

// PruneOld 删除超过保留期的批次数据，返回删除数量
func (s *Service) PruneOld() int64 {
	if s.retentionDays <= 0 {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)

	deleted, err := s.batchRepo.DeleteOlderThan(cutoff)
	if err != nil {
		log.Printf("Retention: failed to delete old batches: %v", err)
		return 0
	}
	return deleted
}
