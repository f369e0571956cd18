package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spendaudit/backend/internal/domain/leakage"
	"github.com/spendaudit/backend/internal/domain/shared/valueobject"
)

// DiscrepancyResultModel is the persistence model for an evaluation result.
// Filterable fields are columns; the breakdowns are stored as JSON.
type DiscrepancyResultModel struct {
	ID                  uuid.UUID                  `gorm:"type:uuid;primary_key"`
	InvoiceID           uuid.UUID                  `gorm:"type:uuid;not null;index"`
	InvoiceNumber       string                     `gorm:"type:varchar(100);not null;index"`
	Domain              leakage.Domain             `gorm:"type:varchar(30);not null;index"`
	Vendor              string                     `gorm:"type:varchar(200);not null;index"`
	Currency            valueobject.Currency       `gorm:"type:varchar(3);not null"`
	ExpectedAmount      decimal.Decimal            `gorm:"type:decimal(20,4);not null"`
	InvoicedAmount      decimal.Decimal            `gorm:"type:decimal(20,4);not null"`
	Discrepancy         decimal.Decimal            `gorm:"type:decimal(20,4);not null"`
	DiscrepancyPercent  *decimal.Decimal           `gorm:"type:decimal(20,6)"`
	Status              leakage.ResultStatus       `gorm:"type:varchar(30);not null;index"`
	LeakageAmount       decimal.Decimal            `gorm:"type:decimal(20,4);not null"`
	Lines               []leakage.LineDetail       `gorm:"type:text;serializer:json"`
	Metrics             map[string]decimal.Decimal `gorm:"type:text;serializer:json"`
	PendingVerification bool                       `gorm:"not null;default:false"`
	SeverityFloor       leakage.Severity           `gorm:"type:varchar(20)"`
	ReferenceError      string                     `gorm:"type:varchar(40)"`
	RelatedTransactions []string                   `gorm:"type:text;serializer:json"`
	Notes               []string                   `gorm:"type:text;serializer:json"`
	EvaluatedAt         time.Time                  `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (DiscrepancyResultModel) TableName() string {
	return "discrepancy_results"
}

// ToDomain converts the persistence model to a domain DiscrepancyResult
func (m *DiscrepancyResultModel) ToDomain() *leakage.DiscrepancyResult {
	return &leakage.DiscrepancyResult{
		ID:                  m.ID,
		InvoiceID:           m.InvoiceID,
		InvoiceNumber:       m.InvoiceNumber,
		Domain:              m.Domain,
		Vendor:              m.Vendor,
		Currency:            m.Currency,
		ExpectedAmount:      m.ExpectedAmount,
		InvoicedAmount:      m.InvoicedAmount,
		Discrepancy:         m.Discrepancy,
		DiscrepancyPercent:  m.DiscrepancyPercent,
		Status:              m.Status,
		LeakageAmount:       m.LeakageAmount,
		Lines:               m.Lines,
		Metrics:             m.Metrics,
		PendingVerification: m.PendingVerification,
		SeverityFloor:       m.SeverityFloor,
		ReferenceError:      m.ReferenceError,
		RelatedTransactions: m.RelatedTransactions,
		Notes:               m.Notes,
		EvaluatedAt:         m.EvaluatedAt,
	}
}

// DiscrepancyResultModelFromDomain creates a persistence model from a domain result
func DiscrepancyResultModelFromDomain(r *leakage.DiscrepancyResult) *DiscrepancyResultModel {
	return &DiscrepancyResultModel{
		ID:                  r.ID,
		InvoiceID:           r.InvoiceID,
		InvoiceNumber:       r.InvoiceNumber,
		Domain:              r.Domain,
		Vendor:              r.Vendor,
		Currency:            r.Currency,
		ExpectedAmount:      r.ExpectedAmount,
		InvoicedAmount:      r.InvoicedAmount,
		Discrepancy:         r.Discrepancy,
		DiscrepancyPercent:  r.DiscrepancyPercent,
		Status:              r.Status,
		LeakageAmount:       r.LeakageAmount,
		Lines:               r.Lines,
		Metrics:             r.Metrics,
		PendingVerification: r.PendingVerification,
		SeverityFloor:       r.SeverityFloor,
		ReferenceError:      r.ReferenceError,
		RelatedTransactions: r.RelatedTransactions,
		Notes:               r.Notes,
		EvaluatedAt:         r.EvaluatedAt,
	}
}
