package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spendaudit/backend/internal/domain/leakage"
	"github.com/spendaudit/backend/internal/domain/shared"
	"github.com/spendaudit/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCaseRepository implements leakage.CaseRepository using GORM
type GormCaseRepository struct {
	db *gorm.DB
}

// NewGormCaseRepository creates a new GormCaseRepository
func NewGormCaseRepository(db *gorm.DB) *GormCaseRepository {
	return &GormCaseRepository{db: db}
}

func (r *GormCaseRepository) withChildren(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Activities", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		Preload("Evidence", func(db *gorm.DB) *gorm.DB { return db.Order("uploaded_at ASC") })
}

func (r *GormCaseRepository) findOne(ctx context.Context, query string, args ...any) (*leakage.LeakageCase, error) {
	var m models.LeakageCaseModel
	if err := r.withChildren(ctx).Where(query, args...).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindByID finds a case by its ID
func (r *GormCaseRepository) FindByID(ctx context.Context, id uuid.UUID) (*leakage.LeakageCase, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByCaseNumber finds a case by its case number
func (r *GormCaseRepository) FindByCaseNumber(ctx context.Context, caseNumber string) (*leakage.LeakageCase, error) {
	return r.findOne(ctx, "case_number = ?", caseNumber)
}

// FindByResultID finds the case opened from a discrepancy result
func (r *GormCaseRepository) FindByResultID(ctx context.Context, resultID uuid.UUID) (*leakage.LeakageCase, error) {
	return r.findOne(ctx, "result_id = ?", resultID)
}

// FindAll finds all cases matching the filter
func (r *GormCaseRepository) FindAll(ctx context.Context, filter leakage.CaseFilter) ([]leakage.LeakageCase, int64, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.LeakageCaseModel{}), filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.LeakageCaseModel
	find := r.applyFilter(r.withChildren(ctx), filter).
		Order(orderClause(filter.OrderBy, filter.OrderDir, CaseSortFields, "created_at"))
	if filter.PageSize > 0 {
		find = find.Offset(filter.Offset()).Limit(filter.PageSize)
	}
	if err := find.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toDomainCases(rows), total, nil
}

// FindOpen returns every case that is not in a terminal status
func (r *GormCaseRepository) FindOpen(ctx context.Context) ([]leakage.LeakageCase, error) {
	var rows []models.LeakageCaseModel
	if err := r.withChildren(ctx).
		Where("status NOT IN ?", terminalStatuses()).
		Order("due_date ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainCases(rows), nil
}

// Create inserts a new case with its activities and evidence
func (r *GormCaseRepository) Create(ctx context.Context, c *leakage.LeakageCase) error {
	m := models.LeakageCaseModelFromDomain(c)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(m).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return shared.NewDomainErrorf(shared.CodeAlreadyExists, "Case already exists for result %s", c.ResultID)
			}
			return err
		}
		return insertChildren(tx, m)
	})
}

// SaveWithLock saves with optimistic locking (checks version).
// The SLA status column is owned by UpdateSLAStatus and never written here.
func (r *GormCaseRepository) SaveWithLock(ctx context.Context, c *leakage.LeakageCase) error {
	m := models.LeakageCaseModelFromDomain(c)
	related, err := jsonColumn(m.RelatedTransactions)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.LeakageCaseModel{}).
			Where("id = ? AND version = ?", c.ID, c.Version-1).
			Updates(map[string]any{
				"severity":             m.Severity,
				"priority":             m.Priority,
				"status":               m.Status,
				"sub_status":           m.SubStatus,
				"leakage_amount":       m.LeakageAmount,
				"recovered_amount":     m.RecoveredAmount,
				"title":                m.Title,
				"assignee":             m.Assignee,
				"due_date":             m.DueDate,
				"related_transactions": related,
				"recovered_at":         m.RecoveredAt,
				"closed_at":            m.ClosedAt,
				"version":              m.Version,
				"updated_at":           m.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.NewDomainErrorf(shared.CodeConcurrencyConflict, "Case %s was modified by another process", c.CaseNumber)
		}
		return insertChildren(tx, m)
	})
}

// UpdateSLAStatus writes only the SLA status column of a non-terminal case
func (r *GormCaseRepository) UpdateSLAStatus(ctx context.Context, id uuid.UUID, status leakage.SLAStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.LeakageCaseModel{}).
		Where("id = ?", id).
		Where("status NOT IN ?", terminalStatuses()).
		UpdateColumn("sla_status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.LeakageCaseModel{}).
		Where("id = ?", id).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return shared.ErrNotFound
	}
	return leakage.ErrCaseClosed
}

func (r *GormCaseRepository) applyFilter(query *gorm.DB, filter leakage.CaseFilter) *gorm.DB {
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Domain != "" {
		query = query.Where("domain = ?", filter.Domain)
	}
	if filter.Vendor != "" {
		query = query.Where("vendor = ?", filter.Vendor)
	}
	if filter.Assignee != "" {
		query = query.Where("assignee = ?", filter.Assignee)
	}
	if filter.SLAStatus != "" {
		query = query.Where("sla_status = ?", filter.SLAStatus)
	}
	if filter.OpenOnly {
		query = query.Where("status NOT IN ?", terminalStatuses())
	}
	return query
}

// insertChildren appends activities and evidence that are not stored yet.
// Both ledgers are append-only so existing rows are skipped.
func insertChildren(tx *gorm.DB, m *models.LeakageCaseModel) error {
	if len(m.Activities) > 0 {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&m.Activities).Error; err != nil {
			return fmt.Errorf("insert case activities: %w", err)
		}
	}
	if len(m.Evidence) > 0 {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&m.Evidence).Error; err != nil {
			return fmt.Errorf("insert case evidence: %w", err)
		}
	}
	return nil
}

func terminalStatuses() []string {
	var out []string
	for _, s := range leakage.AllCaseStatuses() {
		if s.IsTerminal() {
			out = append(out, string(s))
		}
	}
	return out
}

func toDomainCases(rows []models.LeakageCaseModel) []leakage.LeakageCase {
	out := make([]leakage.LeakageCase, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// jsonColumn encodes a value for a serializer:json column written through a map update
func jsonColumn(v []string) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json column: %w", err)
	}
	return string(b), nil
}

var _ leakage.CaseRepository = (*GormCaseRepository)(nil)
