package persistence

import (
	"context"
	"errors"

	"github.com/erp/labelprint/internal/domain/printing"
	"github.com/erp/labelprint/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 500
)

// GormJobHistoryRepository implements JobHistoryRepository using GORM
type GormJobHistoryRepository struct {
	db *gorm.DB
}

// NewGormJobHistoryRepository creates a new GormJobHistoryRepository
func NewGormJobHistoryRepository(db *gorm.DB) *GormJobHistoryRepository {
	return &GormJobHistoryRepository{db: db}
}

// Save inserts the record or overwrites the existing row with the same ID
func (r *GormJobHistoryRepository) Save(ctx context.Context, record *printing.JobRecord) error {
	if record == nil || record.ID == uuid.Nil {
		return shared.ErrInvalidInput
	}
	var model JobRecordModel
	model.FromDomain(record)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&model).Error
}

// FindByID finds a record by job ID
func (r *GormJobHistoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*printing.JobRecord, error) {
	var model JobRecordModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindRecent returns the newest records first
func (r *GormJobHistoryRepository) FindRecent(ctx context.Context, storeID string, limit int) ([]printing.JobRecord, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	query := r.db.WithContext(ctx).Model(&JobRecordModel{})
	if storeID != "" {
		query = query.Where("store_id = ?", storeID)
	}

	var rows []JobRecordModel
	if err := query.Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]printing.JobRecord, len(rows))
	for i := range rows {
		records[i] = *rows[i].ToDomain()
	}
	return records, nil
}

var _ printing.JobHistoryRepository = (*GormJobHistoryRepository)(nil)
