package handler

import (
	"net/http"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/auraseo/aura_server/internal/model/dto"
	"github.com/auraseo/aura_server/internal/pkg/queue"
	"github.com/auraseo/aura_server/internal/pkg/response"
	"github.com/auraseo/aura_server/internal/repository"
	"github.com/auraseo/aura_server/internal/service"
	"github.com/auraseo/aura_server/internal/testutil"
)

func setupAnalysisHandler(t *testing.T) (*AnalysisHandler, *gorm.DB) {
	t.Helper()

	db := testutil.NewTestDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	q := queue.NewQueue(client, "test_tasks")
	svc := service.NewAnalysisService(repository.NewAnalysisRepository(db), q)

	return NewAnalysisHandler(svc), db
}

func TestAnalysisHandler_Create_Success(t *testing.T) {
	handler, _ := setupAnalysisHandler(t)

	router := gin.New()
	router.POST("/analyses", handler.Create)

	w := performRequest(router, "POST", "/analyses", dto.CreateAnalysisRequest{
		URL: "https://example.com",
	})
	resp := parseResponse(t, w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeSuccess, resp.Code)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, data["request_id"])
	assert.Equal(t, "pending", data["status"])
}

func TestAnalysisHandler_Create_InvalidURL(t *testing.T) {
	handler, _ := setupAnalysisHandler(t)

	router := gin.New()
	router.POST("/analyses", handler.Create)

	w := performRequest(router, "POST", "/analyses", dto.CreateAnalysisRequest{
		URL: "ftp://example.com",
	})
	resp := parseResponse(t, w)

	assert.Equal(t, response.CodeParamError, resp.Code)
}

func TestAnalysisHandler_Get_NotFound(t *testing.T) {
	handler, _ := setupAnalysisHandler(t)

	router := gin.New()
	router.GET("/analyses/:id", handler.Get)

	w := performRequest(router, "GET", "/analyses/"+uuid.NewString(), nil)
	resp := parseResponse(t, w)

	assert.Equal(t, response.CodeResourceNotFound, resp.Code)
}

func TestAnalysisHandler_GetResult_NotReady(t *testing.T) {
	handler, db := setupAnalysisHandler(t)

	batch := testutil.SeedBatch(t, db, []string{"https://a.example", "https://b.example"})

	router := gin.New()
	router.GET("/analyses/:id/result", handler.GetResult)

	w := performRequest(router, "GET", "/analyses/"+batch.URLs[0].RequestID+"/result", nil)
	resp := parseResponse(t, w)

	assert.Equal(t, response.CodeNotReady, resp.Code)
}

func TestAnalysisHandler_GetResult_Success(t *testing.T) {
	handler, db := setupAnalysisHandler(t)

	batch := testutil.SeedBatch(t, db, []string{"https://a.example", "https://b.example"})
	testutil.SeedResult(t, db, batch.URLs[0].RequestID, 88, 72)

	router := gin.New()
	router.GET("/analyses/:id/result", handler.GetResult)

	w := performRequest(router, "GET", "/analyses/"+batch.URLs[0].RequestID+"/result", nil)
	resp := parseResponse(t, w)

	require.Equal(t, response.CodeSuccess, resp.Code)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 88.0, data["seo_score"])
	assert.Equal(t, 72.0, data["aeo_score"])
}
