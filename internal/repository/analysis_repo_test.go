package repository

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/auraseo/aura_server/internal/model"
	"github.com/auraseo/aura_server/internal/testutil"
)

func TestAnalysisRepository_CRUD(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewAnalysisRepository(db)

	req := &model.AnalysisRequest{
		ID:        uuid.NewString(),
		URL:       "https://example.com",
		Status:    model.StatusPending,
		CreatedAt: time.Now(),
	}
	require.NoError(t, repo.Create(req))

	require.NoError(t, repo.UpdateStatus(req.ID, model.StatusProcessing))
	require.NoError(t, repo.UpdateProgress(req.ID, 35, "seo_analysis"))

	got, err := repo.GetByID(req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, got.Status)
	assert.Equal(t, 35, got.Progress)
	assert.Equal(t, "seo_analysis", got.CurrentStep)
	assert.Nil(t, got.Result)
}

func TestAnalysisRepository_SaveResult(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewAnalysisRepository(db)

	req := &model.AnalysisRequest{
		ID:        uuid.NewString(),
		URL:       "https://example.com",
		Status:    model.StatusCompleted,
		CreatedAt: time.Now(),
	}
	require.NoError(t, repo.Create(req))

	result := &model.AnalysisResult{
		ID:        uuid.NewString(),
		RequestID: req.ID,
		SEOScore:  82.5,
		AEOScore:  74,
		SEOMetrics: model.JSONMap{
			"issues": []interface{}{"Missing H1 tag"},
		},
		Recommendations: model.JSONArray{
			map[string]interface{}{"title": "Add H1 Heading", "priority": "critical"},
		},
		CreatedAt: time.Now(),
	}
	require.NoError(t, repo.SaveResult(result))

	got, err := repo.GetByID(req.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Result)
	assert.Equal(t, 82.5, got.Result.SEOScore)

	// JSON 列往返
	issues, ok := got.Result.SEOMetrics["issues"].([]interface{})
	require.True(t, ok)
	assert.Equal(t, "Missing H1 tag", issues[0])
	require.Len(t, got.Result.Recommendations, 1)
}

func TestAnalysisRepository_GetByID_NotFound(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewAnalysisRepository(db)

	_, err := repo.GetByID(uuid.NewString())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestAnalysisRepository_ListRecent(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewAnalysisRepository(db)

	for i := 0; i < 3; i++ {
		req := &model.AnalysisRequest{
			ID:        uuid.NewString(),
			URL:       "https://example.com",
			Status:    model.StatusCompleted,
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, repo.Create(req))
	}

	got, err := repo.ListRecent(2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.True(t, got[0].CreatedAt.After(got[1].CreatedAt) || got[0].CreatedAt.Equal(got[1].CreatedAt))
}
