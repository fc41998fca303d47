package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/auraseo/aura_server/internal/model"
)

var dbSeq int64

// NewTestDB 创建内存 SQLite 数据库并迁移全部表
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// 每个测试独立的共享内存库，连接池内的连接指向同一份数据
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", atomic.AddInt64(&dbSeq, 1))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	err = db.AutoMigrate(
		&model.AnalysisRequest{},
		&model.AnalysisResult{},
		&model.CompetitiveBatch{},
		&model.BatchURL{},
		&model.ComparisonResult{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return db
}
