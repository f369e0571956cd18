package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spendaudit/backend/internal/domain/leakage"
	"github.com/spendaudit/backend/internal/domain/shared/valueobject"
)

// LeakageCaseModel is the persistence model for the LeakageCase aggregate root
type LeakageCaseModel struct {
	AggregateModel
	CaseNumber          string                   `gorm:"type:varchar(40);not null;uniqueIndex"`
	Category            leakage.Category         `gorm:"type:varchar(40);not null;index"`
	Severity            leakage.Severity         `gorm:"type:varchar(20);not null;index"`
	Priority            leakage.Priority         `gorm:"type:varchar(20);not null"`
	Status              leakage.CaseStatus       `gorm:"type:varchar(30);not null;index"`
	SubStatus           leakage.SubStatus        `gorm:"type:varchar(30)"`
	LeakageAmount       decimal.Decimal          `gorm:"type:decimal(20,4);not null"`
	RecoveredAmount     decimal.Decimal          `gorm:"type:decimal(20,4);not null"`
	Currency            valueobject.Currency     `gorm:"type:varchar(3);not null"`
	Vendor              string                   `gorm:"type:varchar(200);not null;index"`
	Domain              leakage.Domain           `gorm:"type:varchar(30);not null;index"`
	InvoiceID           uuid.UUID                `gorm:"type:uuid;not null"`
	InvoiceNumber       string                   `gorm:"type:varchar(100);not null"`
	ResultID            uuid.UUID                `gorm:"type:uuid;not null;uniqueIndex"`
	Title               string                   `gorm:"type:varchar(300)"`
	Assignee            *string                  `gorm:"type:varchar(200);index"`
	DueDate             time.Time                `gorm:"not null;index"`
	SLAStatus           leakage.SLAStatus        `gorm:"type:varchar(20);not null;default:'on_track';index"`
	RelatedTransactions []string                 `gorm:"type:text;serializer:json"`
	RecoveredAt         *time.Time
	ClosedAt            *time.Time
	Activities          []CaseActivityModel `gorm:"foreignKey:CaseID;constraint:OnDelete:CASCADE"`
	Evidence            []CaseEvidenceModel `gorm:"foreignKey:CaseID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (LeakageCaseModel) TableName() string {
	return "leakage_cases"
}

// CaseActivityModel is one append-only ledger entry of a case
type CaseActivityModel struct {
	ID         uuid.UUID            `gorm:"type:uuid;primary_key"`
	CaseID     uuid.UUID            `gorm:"type:uuid;not null;index:idx_case_activity_seq,priority:1"`
	Seq        int                  `gorm:"not null;index:idx_case_activity_seq,priority:2"`
	Timestamp  time.Time            `gorm:"not null"`
	Action     string               `gorm:"type:varchar(200);not null"`
	User       string               `gorm:"column:actor;type:varchar(200);not null"`
	Details    string               `gorm:"type:text"`
	Type       leakage.ActivityType `gorm:"type:varchar(30);not null"`
	FromStatus leakage.CaseStatus   `gorm:"type:varchar(30)"`
	ToStatus   leakage.CaseStatus   `gorm:"type:varchar(30)"`
}

// TableName returns the table name for GORM
func (CaseActivityModel) TableName() string {
	return "case_activities"
}

// CaseEvidenceModel is a document attached to a case
type CaseEvidenceModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key"`
	CaseID      uuid.UUID `gorm:"type:uuid;not null;index"`
	Name        string    `gorm:"type:varchar(300);not null"`
	Type        string    `gorm:"type:varchar(50)"`
	URI         string    `gorm:"type:text"`
	Description string    `gorm:"type:text"`
	UploadedBy  string    `gorm:"type:varchar(200);not null"`
	UploadedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CaseEvidenceModel) TableName() string {
	return "case_evidence"
}

// ToDomain converts the persistence model to a domain LeakageCase
func (m *LeakageCaseModel) ToDomain() *leakage.LeakageCase {
	c := &leakage.LeakageCase{
		BaseAggregateRoot:   m.ToDomainAggregateRoot(),
		CaseNumber:          m.CaseNumber,
		Category:            m.Category,
		Severity:            m.Severity,
		Priority:            m.Priority,
		Status:              m.Status,
		SubStatus:           m.SubStatus,
		LeakageAmount:       m.LeakageAmount,
		RecoveredAmount:     m.RecoveredAmount,
		Currency:            m.Currency,
		Vendor:              m.Vendor,
		Domain:              m.Domain,
		InvoiceID:           m.InvoiceID,
		InvoiceNumber:       m.InvoiceNumber,
		ResultID:            m.ResultID,
		Title:               m.Title,
		Assignee:            m.Assignee,
		DueDate:             m.DueDate,
		SLAStatus:           m.SLAStatus,
		RelatedTransactions: m.RelatedTransactions,
		RecoveredAt:         m.RecoveredAt,
		ClosedAt:            m.ClosedAt,
	}
	c.Activities = make([]leakage.Activity, len(m.Activities))
	for i, a := range m.Activities {
		c.Activities[i] = leakage.Activity{
			ID:         a.ID,
			Timestamp:  a.Timestamp,
			Action:     a.Action,
			User:       a.User,
			Details:    a.Details,
			Type:       a.Type,
			FromStatus: a.FromStatus,
			ToStatus:   a.ToStatus,
		}
	}
	c.Evidence = make([]leakage.Evidence, len(m.Evidence))
	for i, e := range m.Evidence {
		c.Evidence[i] = leakage.Evidence{
			ID:          e.ID,
			Name:        e.Name,
			Type:        e.Type,
			URI:         e.URI,
			Description: e.Description,
			UploadedBy:  e.UploadedBy,
			UploadedAt:  e.UploadedAt,
		}
	}
	return c
}

// FromDomain populates the persistence model from a domain LeakageCase
func (m *LeakageCaseModel) FromDomain(c *leakage.LeakageCase) {
	m.FromDomainAggregateRoot(c.BaseAggregateRoot)
	m.CaseNumber = c.CaseNumber
	m.Category = c.Category
	m.Severity = c.Severity
	m.Priority = c.Priority
	m.Status = c.Status
	m.SubStatus = c.SubStatus
	m.LeakageAmount = c.LeakageAmount
	m.RecoveredAmount = c.RecoveredAmount
	m.Currency = c.Currency
	m.Vendor = c.Vendor
	m.Domain = c.Domain
	m.InvoiceID = c.InvoiceID
	m.InvoiceNumber = c.InvoiceNumber
	m.ResultID = c.ResultID
	m.Title = c.Title
	m.Assignee = c.Assignee
	m.DueDate = c.DueDate
	m.SLAStatus = c.SLAStatus
	m.RelatedTransactions = c.RelatedTransactions
	m.RecoveredAt = c.RecoveredAt
	m.ClosedAt = c.ClosedAt

	m.Activities = make([]CaseActivityModel, len(c.Activities))
	for i, a := range c.Activities {
		m.Activities[i] = CaseActivityModel{
			ID:         a.ID,
			CaseID:     c.ID,
			Seq:        i,
			Timestamp:  a.Timestamp,
			Action:     a.Action,
			User:       a.User,
			Details:    a.Details,
			Type:       a.Type,
			FromStatus: a.FromStatus,
			ToStatus:   a.ToStatus,
		}
	}
	m.Evidence = make([]CaseEvidenceModel, len(c.Evidence))
	for i, e := range c.Evidence {
		m.Evidence[i] = CaseEvidenceModel{
			ID:          e.ID,
			CaseID:      c.ID,
			Name:        e.Name,
			Type:        e.Type,
			URI:         e.URI,
			Description: e.Description,
			UploadedBy:  e.UploadedBy,
			UploadedAt:  e.UploadedAt,
		}
	}
}

// LeakageCaseModelFromDomain creates a new persistence model from a domain LeakageCase
func LeakageCaseModelFromDomain(c *leakage.LeakageCase) *LeakageCaseModel {
	m := &LeakageCaseModel{}
	m.FromDomain(c)
	return m
}
