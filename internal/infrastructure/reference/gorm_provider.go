package reference

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spendaudit/backend/internal/domain/leakage"
	"github.com/spendaudit/backend/internal/domain/shared"
	"github.com/spendaudit/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormProvider reads reference data from the ref_* tables
type GormProvider struct {
	db *gorm.DB
}

// NewGormProvider creates a provider backed by db
func NewGormProvider(db *gorm.DB) *GormProvider {
	return &GormProvider{db: db}
}

func norm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// GetRateCards implements leakage.ReferenceProvider
func (p *GormProvider) GetRateCards(ctx context.Context, vendor, route string) ([]leakage.RateCard, error) {
	var rows []models.RateCardModel
	if err := p.db.WithContext(ctx).
		Where("LOWER(vendor) = ? AND LOWER(route) = ?", norm(vendor), norm(route)).
		Order("valid_from ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, missing("No rate card for vendor %s on route %s", vendor, route)
	}
	out := make([]leakage.RateCard, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// GetSaaSContract implements leakage.ReferenceProvider
func (p *GormProvider) GetSaaSContract(ctx context.Context, vendor, product string) (*leakage.SaaSContract, error) {
	var rows []models.SaaSContractModel
	if err := p.db.WithContext(ctx).
		Where("LOWER(vendor) = ? AND LOWER(product) = ?", norm(vendor), norm(product)).
		Limit(2).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, missing("No SaaS contract for %s %s", vendor, product)
	case 1:
		return rows[0].ToDomain(), nil
	}
	return nil, shared.NewDomainErrorf(shared.CodeReferenceDataAmbiguous, "Multiple SaaS contracts match %s %s", vendor, product)
}

// GetFeeStructure implements leakage.ReferenceProvider
func (p *GormProvider) GetFeeStructure(ctx context.Context, vendor string) (*leakage.FeeStructure, error) {
	var rows []models.FeeSlabModel
	if err := p.db.WithContext(ctx).
		Where("LOWER(vendor) = ?", norm(vendor)).
		Order("seq ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, missing("No fee structure for vendor %s", vendor)
	}
	return models.FeeStructureFromModels(rows[0].Vendor, rows), nil
}

// GetStatementOfWork implements leakage.ReferenceProvider
func (p *GormProvider) GetStatementOfWork(ctx context.Context, vendor, projectRef string) (*leakage.StatementOfWork, error) {
	var rows []models.SOWDeliverableModel
	if err := p.db.WithContext(ctx).
		Where("LOWER(vendor) = ? AND LOWER(project_ref) = ?", norm(vendor), norm(projectRef)).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, missing("No statement of work for %s project %s", vendor, projectRef)
	}
	return models.StatementOfWorkFromModels(rows[0].Vendor, rows[0].ProjectRef, rows), nil
}

// GetHistoricalPrice implements leakage.ReferenceProvider
func (p *GormProvider) GetHistoricalPrice(ctx context.Context, itemCode string) (*leakage.HistoricalPrice, error) {
	var m models.HistoricalPriceModel
	if err := p.db.WithContext(ctx).
		Where("LOWER(item_code) = ?", norm(itemCode)).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, missing("No historical price for item %s", itemCode)
		}
		return nil, err
	}
	return &leakage.HistoricalPrice{ItemCode: m.ItemCode, AveragePrice: m.AveragePrice}, nil
}

// GetPaymentLedger implements leakage.ReferenceProvider. An empty ledger is not an error.
func (p *GormProvider) GetPaymentLedger(ctx context.Context, vendorCode string, from, to time.Time) ([]leakage.PaymentRecord, error) {
	var rows []models.PaymentModel
	if err := p.db.WithContext(ctx).
		Where("LOWER(vendor_code) = ? AND payment_date >= ? AND payment_date <= ?", norm(vendorCode), from, to).
		Order("payment_date ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]leakage.PaymentRecord, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// GetAddendumVersions implements leakage.ReferenceProvider
func (p *GormProvider) GetAddendumVersions(ctx context.Context, contractRef string) ([]leakage.AddendumVersion, error) {
	var rows []models.AddendumVersionModel
	if err := p.db.WithContext(ctx).
		Where("LOWER(contract_ref) = ?", norm(contractRef)).
		Order("effective_from ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, missing("No addendum versions for contract %s", contractRef)
	}
	out := make([]leakage.AddendumVersion, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// RecordPayment appends a settled payment to the ledger
func (p *GormProvider) RecordPayment(ctx context.Context, rec leakage.PaymentRecord) error {
	err := p.db.WithContext(ctx).Create(models.PaymentModelFromDomain(rec)).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return shared.NewDomainErrorf(shared.CodeAlreadyExists, "payment %s already recorded", rec.PaymentRef)
	}
	return err
}

// Seed upserts every record of ds into the reference tables in one transaction
func Seed(ctx context.Context, db *gorm.DB, ds Dataset) error {
	upsert := clause.OnConflict{UpdateAll: true}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, c := range ds.RateCards {
			if err := tx.Clauses(upsert).Create(models.RateCardModelFromDomain(c)).Error; err != nil {
				return fmt.Errorf("seed rate card %s: %w", c.ID, err)
			}
		}
		for _, c := range ds.SaaSContracts {
			if err := tx.Clauses(upsert).Create(models.SaaSContractModelFromDomain(c)).Error; err != nil {
				return fmt.Errorf("seed saas contract %s: %w", c.ContractRef, err)
			}
		}
		for _, fs := range ds.FeeStructures {
			if err := tx.Where("vendor = ?", fs.Vendor).Delete(&models.FeeSlabModel{}).Error; err != nil {
				return err
			}
			slabs := models.FeeSlabModelsFromDomain(fs)
			if len(slabs) > 0 {
				if err := tx.Create(&slabs).Error; err != nil {
					return fmt.Errorf("seed fee structure %s: %w", fs.Vendor, err)
				}
			}
		}
		for _, sow := range ds.StatementsOfWork {
			if err := tx.Where("vendor = ? AND project_ref = ?", sow.Vendor, sow.ProjectRef).Delete(&models.SOWDeliverableModel{}).Error; err != nil {
				return err
			}
			rows := models.SOWDeliverableModelsFromDomain(sow)
			if len(rows) > 0 {
				if err := tx.Create(&rows).Error; err != nil {
					return fmt.Errorf("seed statement of work %s: %w", sow.ProjectRef, err)
				}
			}
		}
		for _, h := range ds.HistoricalPrices {
			m := &models.HistoricalPriceModel{ItemCode: h.ItemCode, AveragePrice: h.AveragePrice}
			if err := tx.Clauses(upsert).Create(m).Error; err != nil {
				return fmt.Errorf("seed historical price %s: %w", h.ItemCode, err)
			}
		}
		for _, rec := range ds.Payments {
			if err := tx.Clauses(upsert).Create(models.PaymentModelFromDomain(rec)).Error; err != nil {
				return fmt.Errorf("seed payment %s: %w", rec.PaymentRef, err)
			}
		}
		for _, v := range ds.AddendumVersions {
			if err := tx.Clauses(upsert).Create(models.AddendumVersionModelFromDomain(v)).Error; err != nil {
				return fmt.Errorf("seed addendum %s %s: %w", v.ContractRef, v.Version, err)
			}
		}
		return nil
	})
}

var _ leakage.ReferenceProvider = (*GormProvider)(nil)
