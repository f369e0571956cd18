package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/spendaudit/backend/internal/domain/leakage"
	"github.com/spendaudit/backend/internal/domain/shared"
	"github.com/spendaudit/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormResultRepository implements leakage.ResultRepository using GORM
type GormResultRepository struct {
	db *gorm.DB
}

// NewGormResultRepository creates a new GormResultRepository
func NewGormResultRepository(db *gorm.DB) *GormResultRepository {
	return &GormResultRepository{db: db}
}

// Save inserts a result. Results are immutable once written.
func (r *GormResultRepository) Save(ctx context.Context, res *leakage.DiscrepancyResult) error {
	if err := r.db.WithContext(ctx).Create(models.DiscrepancyResultModelFromDomain(res)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.NewDomainErrorf(shared.CodeAlreadyExists, "Result %s already exists", res.ID)
		}
		return err
	}
	return nil
}

// FindByID finds a result by its ID
func (r *GormResultRepository) FindByID(ctx context.Context, id uuid.UUID) (*leakage.DiscrepancyResult, error) {
	var m models.DiscrepancyResultModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindAll finds all results matching the filter
func (r *GormResultRepository) FindAll(ctx context.Context, filter leakage.ResultFilter) ([]leakage.DiscrepancyResult, int64, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.DiscrepancyResultModel{}), filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	find := r.applyFilter(r.db.WithContext(ctx), filter).Order(orderClause(filter.OrderBy, filter.OrderDir, ResultSortFields, "evaluated_at"))
	if filter.PageSize > 0 {
		find = find.Offset(filter.Offset()).Limit(filter.PageSize)
	}
	var rows []models.DiscrepancyResultModel
	if err := find.Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	out := make([]leakage.DiscrepancyResult, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

func (r *GormResultRepository) applyFilter(query *gorm.DB, filter leakage.ResultFilter) *gorm.DB {
	if filter.Domain != "" {
		query = query.Where("domain = ?", filter.Domain)
	}
	if filter.Vendor != "" {
		query = query.Where("vendor = ?", filter.Vendor)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.From != nil {
		query = query.Where("evaluated_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("evaluated_at <= ?", *filter.To)
	}
	return query
}

var _ leakage.ResultRepository = (*GormResultRepository)(nil)
