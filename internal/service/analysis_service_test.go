package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/auraseo/aura_server/internal/model/dto"
	"github.com/auraseo/aura_server/internal/pkg/queue"
	"github.com/auraseo/aura_server/internal/repository"
	"github.com/auraseo/aura_server/internal/testutil"
)

func newAnalysisService(t *testing.T) (*AnalysisService, *queue.Queue, *gorm.DB) {
	t.Helper()
	db := testutil.NewTestDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	q := queue.NewQueue(client, "test_tasks")
	repo := repository.NewAnalysisRepository(db)
	return NewAnalysisService(repo, q), q, db
}

func TestAnalysisService_CreateAnalysis(t *testing.T) {
	svc, q, _ := newAnalysisService(t)
	ctx := context.Background()

	resp, err := svc.CreateAnalysis(ctx, &dto.CreateAnalysisRequest{URL: "https://example.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, "pending", resp.Status)

	msg, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, resp.RequestID, msg.RequestID)
	assert.Empty(t, msg.BatchID)
}

func TestAnalysisService_CreateAnalysis_InvalidURL(t *testing.T) {
	svc, _, _ := newAnalysisService(t)

	_, err := svc.CreateAnalysis(context.Background(), &dto.CreateAnalysisRequest{URL: "ftp://example.com"})
	assert.ErrorIs(t, err, ErrInvalidURL)

	_, err = svc.CreateAnalysis(context.Background(), &dto.CreateAnalysisRequest{URL: "http://127.0.0.1/admin"})
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestAnalysisService_GetStatusAndResult(t *testing.T) {
	svc, _, db := newAnalysisService(t)
	ctx := context.Background()

	resp, err := svc.CreateAnalysis(ctx, &dto.CreateAnalysisRequest{URL: "https://example.com"})
	require.NoError(t, err)

	status, err := svc.GetStatus(resp.RequestID)
	require.NoError(t, err)
	assert.Equal(t, "pending", status.Status)
	assert.Equal(t, "https://example.com", status.URL)

	// 未完成时结果不可用
	_, err = svc.GetResult(resp.RequestID)
	assert.ErrorIs(t, err, ErrResultNotReady)

	// 完成后可读取结果
	testutil.SeedResult(t, db, resp.RequestID, 82, 76)

	result, err := svc.GetResult(resp.RequestID)
	require.NoError(t, err)
	assert.Equal(t, 82.0, result.SEOScore)
	assert.Equal(t, 76.0, result.AEOScore)
}

func TestAnalysisService_GetStatus_NotFound(t *testing.T) {
	svc, _, _ := newAnalysisService(t)

	_, err := svc.GetStatus(uuid.NewString())
	assert.ErrorIs(t, err, ErrAnalysisNotFound)
}
