package leakage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// RateCard is a contracted per-km rate for a vendor, route and vehicle type
type RateCard struct {
	ID          string          `json:"id"`
	Vendor      string          `json:"vendor"`
	Route       string          `json:"route"`
	VehicleType string          `json:"vehicle_type"`
	RatePerKm   decimal.Decimal `json:"rate_per_km"`
	ValidFrom   time.Time       `json:"valid_from"`
	ValidTo     *time.Time      `json:"valid_to,omitempty"`
}

// ValidOn reports whether the card covers the given date (both bounds inclusive)
func (c RateCard) ValidOn(date time.Time) bool {
	if date.Before(c.ValidFrom) {
		return false
	}
	return c.ValidTo == nil || !date.After(*c.ValidTo)
}

// SaaSContract holds the contracted license count and unit price for a product
type SaaSContract struct {
	ContractRef        string          `json:"contract_ref"`
	Vendor             string          `json:"vendor"`
	Product            string          `json:"product"`
	LicensesInContract int64           `json:"licenses_in_contract"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
}

// SalarySlab maps the half-open CTC range [Min, Max) to a fee percent.
// A nil Max means the slab is unbounded.
type SalarySlab struct {
	Min        decimal.Decimal  `json:"min"`
	Max        *decimal.Decimal `json:"max,omitempty"`
	FeePercent decimal.Decimal  `json:"fee_percent"`
}

// Contains reports whether ctc falls inside the slab
func (s SalarySlab) Contains(ctc decimal.Decimal) bool {
	if ctc.LessThan(s.Min) {
		return false
	}
	return s.Max == nil || ctc.LessThan(*s.Max)
}

// FeeStructure is a recruitment agency's ordered slab table
type FeeStructure struct {
	Vendor string       `json:"vendor"`
	Slabs  []SalarySlab `json:"slabs"`
}

// SOWDeliverable is a contracted deliverable with quantity and unit price
type SOWDeliverable struct {
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// StatementOfWork lists the deliverables contracted for a marketing project
type StatementOfWork struct {
	Vendor       string           `json:"vendor"`
	ProjectRef   string           `json:"project_ref"`
	Deliverables []SOWDeliverable `json:"deliverables"`
}

// HistoricalPrice is the historical average unit price of an item
type HistoricalPrice struct {
	ItemCode     string          `json:"item_code"`
	AveragePrice decimal.Decimal `json:"average_price"`
}

// PaymentRecord is a settled payment on the vendor ledger
type PaymentRecord struct {
	PaymentRef    string          `json:"payment_ref"`
	VendorCode    string          `json:"vendor_code"`
	InvoiceNumber string          `json:"invoice_number"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentDate   time.Time       `json:"payment_date"`
}

// AddendumVersion is one version of a contract's rate table.
// The effective window is half-open [EffectiveFrom, EffectiveTo); a nil
// EffectiveTo leaves the version open-ended.
type AddendumVersion struct {
	ContractRef   string                     `json:"contract_ref"`
	Version       string                     `json:"version"`
	EffectiveFrom time.Time                  `json:"effective_from"`
	EffectiveTo   *time.Time                 `json:"effective_to,omitempty"`
	Rates         map[string]decimal.Decimal `json:"rates"`
}

// Covers reports whether the version's window contains [start, end)
func (v AddendumVersion) Covers(start, end time.Time) bool {
	if start.Before(v.EffectiveFrom) {
		return false
	}
	return v.EffectiveTo == nil || !end.After(*v.EffectiveTo)
}

// Overlaps reports whether the version's window intersects [start, end)
func (v AddendumVersion) Overlaps(start, end time.Time) bool {
	if !end.After(v.EffectiveFrom) {
		return false
	}
	return v.EffectiveTo == nil || start.Before(*v.EffectiveTo)
}

// ReferenceProvider resolves the read-only reference data the evaluators need.
// Lookups that find nothing return a REFERENCE_DATA_MISSING domain error.
type ReferenceProvider interface {
	GetRateCards(ctx context.Context, vendor, route string) ([]RateCard, error)
	GetSaaSContract(ctx context.Context, vendor, product string) (*SaaSContract, error)
	GetFeeStructure(ctx context.Context, vendor string) (*FeeStructure, error)
	GetStatementOfWork(ctx context.Context, vendor, projectRef string) (*StatementOfWork, error)
	GetHistoricalPrice(ctx context.Context, itemCode string) (*HistoricalPrice, error)
	GetPaymentLedger(ctx context.Context, vendorCode string, from, to time.Time) ([]PaymentRecord, error)
	GetAddendumVersions(ctx context.Context, contractRef string) ([]AddendumVersion, error)
}
