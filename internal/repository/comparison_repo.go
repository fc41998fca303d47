package repository

import (
	"gorm.io/gorm"

	"github.com/auraseo/aura_server/internal/model"
)

type ComparisonRepository struct {
	db *gorm.DB
}

func NewComparisonRepository(db *gorm.DB) *ComparisonRepository {
	return &ComparisonRepository{db: db}
}

func (r *ComparisonRepository) Create(result *model.ComparisonResult) error {
	return r.db.Create(result).Error
}

func (r *ComparisonRepository) GetByBatchID(batchID string) (*model.ComparisonResult, error) {
	var result model.ComparisonResult
	err := r.db.Where("batch_id = ?", batchID).First(&result).Error
	if err != nil {
		return nil, err
	}
	return &result, nil
}
