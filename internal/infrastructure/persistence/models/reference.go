package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/spendaudit/backend/internal/domain/leakage"
)

// RateCardModel stores a contracted logistics rate
type RateCardModel struct {
	ID          string          `gorm:"type:varchar(60);primary_key"`
	Vendor      string          `gorm:"type:varchar(200);not null;index:idx_rate_card_lookup,priority:1"`
	Route       string          `gorm:"type:varchar(100);not null;index:idx_rate_card_lookup,priority:2"`
	VehicleType string          `gorm:"type:varchar(60);not null"`
	RatePerKm   decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	ValidFrom   time.Time       `gorm:"not null"`
	ValidTo     *time.Time
}

// TableName returns the table name for GORM
func (RateCardModel) TableName() string {
	return "ref_rate_cards"
}

// ToDomain converts the model to a domain RateCard
func (m *RateCardModel) ToDomain() leakage.RateCard {
	return leakage.RateCard{
		ID:          m.ID,
		Vendor:      m.Vendor,
		Route:       m.Route,
		VehicleType: m.VehicleType,
		RatePerKm:   m.RatePerKm,
		ValidFrom:   m.ValidFrom,
		ValidTo:     m.ValidTo,
	}
}

// RateCardModelFromDomain creates a model from a domain RateCard
func RateCardModelFromDomain(c leakage.RateCard) *RateCardModel {
	return &RateCardModel{
		ID:          c.ID,
		Vendor:      c.Vendor,
		Route:       c.Route,
		VehicleType: c.VehicleType,
		RatePerKm:   c.RatePerKm,
		ValidFrom:   c.ValidFrom,
		ValidTo:     c.ValidTo,
	}
}

// SaaSContractModel stores a software license contract
type SaaSContractModel struct {
	ContractRef        string          `gorm:"type:varchar(60);primary_key"`
	Vendor             string          `gorm:"type:varchar(200);not null;index:idx_saas_lookup,priority:1"`
	Product            string          `gorm:"type:varchar(200);not null;index:idx_saas_lookup,priority:2"`
	LicensesInContract int64           `gorm:"not null"`
	UnitPrice          decimal.Decimal `gorm:"type:decimal(20,4);not null"`
}

// TableName returns the table name for GORM
func (SaaSContractModel) TableName() string {
	return "ref_saas_contracts"
}

// ToDomain converts the model to a domain SaaSContract
func (m *SaaSContractModel) ToDomain() *leakage.SaaSContract {
	return &leakage.SaaSContract{
		ContractRef:        m.ContractRef,
		Vendor:             m.Vendor,
		Product:            m.Product,
		LicensesInContract: m.LicensesInContract,
		UnitPrice:          m.UnitPrice,
	}
}

// SaaSContractModelFromDomain creates a model from a domain SaaSContract
func SaaSContractModelFromDomain(c leakage.SaaSContract) *SaaSContractModel {
	return &SaaSContractModel{
		ContractRef:        c.ContractRef,
		Vendor:             c.Vendor,
		Product:            c.Product,
		LicensesInContract: c.LicensesInContract,
		UnitPrice:          c.UnitPrice,
	}
}

// FeeSlabModel stores one slab of a recruitment fee structure
type FeeSlabModel struct {
	ID         uint             `gorm:"primaryKey;autoIncrement"`
	Vendor     string           `gorm:"type:varchar(200);not null;index:idx_fee_slab_vendor,priority:1"`
	Seq        int              `gorm:"not null;index:idx_fee_slab_vendor,priority:2"`
	MinCTC     decimal.Decimal  `gorm:"column:min_ctc;type:decimal(20,4);not null"`
	MaxCTC     *decimal.Decimal `gorm:"column:max_ctc;type:decimal(20,4)"`
	FeePercent decimal.Decimal  `gorm:"type:decimal(10,4);not null"`
}

// TableName returns the table name for GORM
func (FeeSlabModel) TableName() string {
	return "ref_fee_slabs"
}

// FeeSlabModelsFromDomain flattens a fee structure into ordered slab rows
func FeeSlabModelsFromDomain(fs leakage.FeeStructure) []FeeSlabModel {
	out := make([]FeeSlabModel, len(fs.Slabs))
	for i, s := range fs.Slabs {
		out[i] = FeeSlabModel{
			Vendor:     fs.Vendor,
			Seq:        i,
			MinCTC:     s.Min,
			MaxCTC:     s.Max,
			FeePercent: s.FeePercent,
		}
	}
	return out
}

// FeeStructureFromModels assembles ordered slab rows into a fee structure
func FeeStructureFromModels(vendor string, rows []FeeSlabModel) *leakage.FeeStructure {
	fs := &leakage.FeeStructure{Vendor: vendor, Slabs: make([]leakage.SalarySlab, len(rows))}
	for i, r := range rows {
		fs.Slabs[i] = leakage.SalarySlab{Min: r.MinCTC, Max: r.MaxCTC, FeePercent: r.FeePercent}
	}
	return fs
}

// SOWDeliverableModel stores one deliverable of a statement of work
type SOWDeliverableModel struct {
	ID          uint            `gorm:"primaryKey;autoIncrement"`
	Vendor      string          `gorm:"type:varchar(200);not null;index:idx_sow_lookup,priority:1"`
	ProjectRef  string          `gorm:"type:varchar(100);not null;index:idx_sow_lookup,priority:2"`
	Code        string          `gorm:"type:varchar(100);not null"`
	Description string          `gorm:"type:varchar(300)"`
	Quantity    decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(20,4);not null"`
}

// TableName returns the table name for GORM
func (SOWDeliverableModel) TableName() string {
	return "ref_sow_deliverables"
}

// SOWDeliverableModelsFromDomain flattens a statement of work into deliverable rows
func SOWDeliverableModelsFromDomain(sow leakage.StatementOfWork) []SOWDeliverableModel {
	out := make([]SOWDeliverableModel, len(sow.Deliverables))
	for i, d := range sow.Deliverables {
		out[i] = SOWDeliverableModel{
			Vendor:      sow.Vendor,
			ProjectRef:  sow.ProjectRef,
			Code:        d.Code,
			Description: d.Description,
			Quantity:    d.Quantity,
			UnitPrice:   d.UnitPrice,
		}
	}
	return out
}

// StatementOfWorkFromModels assembles deliverable rows into a statement of work
func StatementOfWorkFromModels(vendor, projectRef string, rows []SOWDeliverableModel) *leakage.StatementOfWork {
	sow := &leakage.StatementOfWork{
		Vendor:       vendor,
		ProjectRef:   projectRef,
		Deliverables: make([]leakage.SOWDeliverable, len(rows)),
	}
	for i, r := range rows {
		sow.Deliverables[i] = leakage.SOWDeliverable{
			Code:        r.Code,
			Description: r.Description,
			Quantity:    r.Quantity,
			UnitPrice:   r.UnitPrice,
		}
	}
	return sow
}

// HistoricalPriceModel stores the historical average price of an item
type HistoricalPriceModel struct {
	ItemCode     string          `gorm:"type:varchar(100);primary_key"`
	AveragePrice decimal.Decimal `gorm:"type:decimal(20,4);not null"`
}

// TableName returns the table name for GORM
func (HistoricalPriceModel) TableName() string {
	return "ref_historical_prices"
}

// PaymentModel stores a settled vendor payment
type PaymentModel struct {
	PaymentRef    string          `gorm:"type:varchar(60);primary_key"`
	VendorCode    string          `gorm:"type:varchar(60);not null;index:idx_payment_vendor_date,priority:1"`
	InvoiceNumber string          `gorm:"type:varchar(100);not null"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	PaymentDate   time.Time       `gorm:"not null;index:idx_payment_vendor_date,priority:2"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "ref_payments"
}

// ToDomain converts the model to a domain PaymentRecord
func (m *PaymentModel) ToDomain() leakage.PaymentRecord {
	return leakage.PaymentRecord{
		PaymentRef:    m.PaymentRef,
		VendorCode:    m.VendorCode,
		InvoiceNumber: m.InvoiceNumber,
		Amount:        m.Amount,
		PaymentDate:   m.PaymentDate,
	}
}

// PaymentModelFromDomain creates a model from a domain PaymentRecord
func PaymentModelFromDomain(p leakage.PaymentRecord) *PaymentModel {
	return &PaymentModel{
		PaymentRef:    p.PaymentRef,
		VendorCode:    p.VendorCode,
		InvoiceNumber: p.InvoiceNumber,
		Amount:        p.Amount,
		PaymentDate:   p.PaymentDate,
	}
}

// AddendumVersionModel stores one version of a contract rate table
type AddendumVersionModel struct {
	ContractRef   string                     `gorm:"type:varchar(60);primary_key"`
	Version       string                     `gorm:"type:varchar(30);primary_key"`
	EffectiveFrom time.Time                  `gorm:"not null"`
	EffectiveTo   *time.Time
	Rates         map[string]decimal.Decimal `gorm:"type:text;serializer:json;not null"`
}

// TableName returns the table name for GORM
func (AddendumVersionModel) TableName() string {
	return "ref_addendum_versions"
}

// ToDomain converts the model to a domain AddendumVersion
func (m *AddendumVersionModel) ToDomain() leakage.AddendumVersion {
	return leakage.AddendumVersion{
		ContractRef:   m.ContractRef,
		Version:       m.Version,
		EffectiveFrom: m.EffectiveFrom,
		EffectiveTo:   m.EffectiveTo,
		Rates:         m.Rates,
	}
}

// AddendumVersionModelFromDomain creates a model from a domain AddendumVersion
func AddendumVersionModelFromDomain(v leakage.AddendumVersion) *AddendumVersionModel {
	return &AddendumVersionModel{
		ContractRef:   v.ContractRef,
		Version:       v.Version,
		EffectiveFrom: v.EffectiveFrom,
		EffectiveTo:   v.EffectiveTo,
		Rates:         v.Rates,
	}
}

// AllModels returns every model managed by this service, in dependency order
func AllModels() []any {
	return []any{
		&LeakageCaseModel{},
		&CaseActivityModel{},
		&CaseEvidenceModel{},
		&DiscrepancyResultModel{},
		&RateCardModel{},
		&SaaSContractModel{},
		&FeeSlabModel{},
		&SOWDeliverableModel{},
		&HistoricalPriceModel{},
		&PaymentModel{},
		&AddendumVersionModel{},
	}
}
