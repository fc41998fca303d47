package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/auraseo/aura_server/internal/model"
	"github.com/auraseo/aura_server/internal/model/dto"
	"github.com/auraseo/aura_server/internal/pkg/queue"
	"github.com/auraseo/aura_server/internal/pkg/response"
	"github.com/auraseo/aura_server/internal/repository"
	"github.com/auraseo/aura_server/internal/service"
	"github.com/auraseo/aura_server/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupCompetitiveHandler(t *testing.T) (*CompetitiveHandler, *gorm.DB) {
	t.Helper()

	db := testutil.NewTestDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	q := queue.NewQueue(client, "test_tasks")
	batchRepo := repository.NewBatchRepository(db)
	compRepo := repository.NewComparisonRepository(db)
	svc := service.NewCompetitiveService(batchRepo, compRepo, q)

	return NewCompetitiveHandler(svc), db
}

func performRequest(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	return resp
}

func TestCompetitiveHandler_Create_Success(t *testing.T) {
	handler, _ := setupCompetitiveHandler(t)

	router := gin.New()
	router.POST("/competitive", handler.Create)

	req := dto.CreateBatchRequest{
		URLs:   []string{"https://ours.example", "https://rival.example"},
		Labels: []string{"Our Site", "Rival"},
	}

	w := performRequest(router, "POST", "/competitive", req)
	resp := parseResponse(t, w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeSuccess, resp.Code)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, data["id"])
	assert.Equal(t, "pending", data["status"])
	assert.Equal(t, 2.0, data["total_urls"])
}

func TestCompetitiveHandler_Create_InvalidBody(t *testing.T) {
	handler, _ := setupCompetitiveHandler(t)

	router := gin.New()
	router.POST("/competitive", handler.Create)

	// binding 层直接拒绝单个 URL
	w := performRequest(router, "POST", "/competitive", dto.CreateBatchRequest{
		URLs: []string{"https://only.example"},
	})
	resp := parseResponse(t, w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeParamError, resp.Code)
}

func TestCompetitiveHandler_Create_DuplicateURL(t *testing.T) {
	handler, _ := setupCompetitiveHandler(t)

	router := gin.New()
	router.POST("/competitive", handler.Create)

	w := performRequest(router, "POST", "/competitive", dto.CreateBatchRequest{
		URLs: []string{"https://a.example", "https://a.example"},
	})
	resp := parseResponse(t, w)

	assert.Equal(t, response.CodeParamError, resp.Code)
	assert.Contains(t, resp.Message, "duplicate")
}

func TestCompetitiveHandler_Get_NotFound(t *testing.T) {
	handler, _ := setupCompetitiveHandler(t)

	router := gin.New()
	router.GET("/competitive/:id", handler.Get)

	w := performRequest(router, "GET", "/competitive/"+uuid.NewString(), nil)
	resp := parseResponse(t, w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeResourceNotFound, resp.Code)
}

func TestCompetitiveHandler_Get_Success(t *testing.T) {
	handler, db := setupCompetitiveHandler(t)

	batch := testutil.SeedBatch(t, db, []string{"https://a.example", "https://b.example"})

	router := gin.New()
	router.GET("/competitive/:id", handler.Get)

	w := performRequest(router, "GET", "/competitive/"+batch.ID, nil)
	resp := parseResponse(t, w)

	assert.Equal(t, response.CodeSuccess, resp.Code)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, batch.ID, data["id"])

	urls, ok := data["urls"].([]interface{})
	require.True(t, ok)
	assert.Len(t, urls, 2)
}

func TestCompetitiveHandler_GetComparison_NotCompleted(t *testing.T) {
	handler, db := setupCompetitiveHandler(t)

	batch := testutil.SeedBatch(t, db, []string{"https://a.example", "https://b.example"})

	router := gin.New()
	router.GET("/competitive/:id/comparison", handler.GetComparison)

	w := performRequest(router, "GET", "/competitive/"+batch.ID+"/comparison", nil)
	resp := parseResponse(t, w)

	assert.Equal(t, response.CodeNotReady, resp.Code)
}

func TestCompetitiveHandler_GetComparison_Success(t *testing.T) {
	handler, db := setupCompetitiveHandler(t)

	batch := testutil.SeedBatch(t, db, []string{"https://a.example", "https://b.example"})
	require.NoError(t, db.Model(&model.CompetitiveBatch{}).Where("id = ?", batch.ID).
		Update("status", model.StatusCompleted).Error)

	comparison := &model.ComparisonResult{
		ID:      uuid.NewString(),
		BatchID: batch.ID,
		SEOComparison: model.JSONMap{
			"rankings": []interface{}{
				map[string]interface{}{"url": "https://a.example", "score": 90.0, "rank": 1.0},
			},
			"average": 90.0,
		},
		AEOComparison: model.JSONMap{"rankings": []interface{}{}, "average": 0.0},
		Insights:      "A leads the market.",
		Opportunities: model.StringArray{"Add FAQ schema"},
		Threats:       model.StringArray{},
		CreatedAt:     time.Now(),
	}
	require.NoError(t, repository.NewComparisonRepository(db).Create(comparison))

	router := gin.New()
	router.GET("/competitive/:id/comparison", handler.GetComparison)

	w := performRequest(router, "GET", "/competitive/"+batch.ID+"/comparison", nil)
	resp := parseResponse(t, w)

	require.Equal(t, response.CodeSuccess, resp.Code)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "A leads the market.", data["insights"])

	rankings, ok := data["seo_rankings"].([]interface{})
	require.True(t, ok)
	require.Len(t, rankings, 1)
}

func TestCompetitiveHandler_List(t *testing.T) {
	handler, db := setupCompetitiveHandler(t)

	testutil.SeedBatch(t, db, []string{"https://a.example", "https://b.example"})
	testutil.SeedBatch(t, db, []string{"https://c.example", "https://d.example"})

	router := gin.New()
	router.GET("/competitive", handler.List)

	w := performRequest(router, "GET", "/competitive?limit=10", nil)
	resp := parseResponse(t, w)

	assert.Equal(t, response.CodeSuccess, resp.Code)
	data, ok := resp.Data.([]interface{})
	require.True(t, ok)
	assert.Len(t, data, 2)
}
