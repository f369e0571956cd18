package leakage

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spendaudit/backend/internal/domain/shared"
	"github.com/spendaudit/backend/internal/domain/shared/valueobject"
)

// Invoice is the common envelope for every domain payload.
// Exactly one payload pointer matching Domain must be set.
type Invoice struct {
	ID             uuid.UUID            `json:"id"`
	InvoiceNumber  string               `json:"invoice_number"`
	Vendor         string               `json:"vendor"`
	VendorCode     string               `json:"vendor_code"`
	Domain         Domain               `json:"domain"`
	InvoiceDate    time.Time            `json:"invoice_date"`
	InvoicedAmount decimal.Decimal      `json:"invoiced_amount"`
	Currency       valueobject.Currency `json:"currency"`

	Logistics      *LogisticsDetails      `json:"logistics,omitempty"`
	SaaS           *SaaSDetails           `json:"saas,omitempty"`
	Recruitment    *RecruitmentDetails    `json:"recruitment,omitempty"`
	Marketing      *MarketingDetails      `json:"marketing,omitempty"`
	Infrastructure *InfrastructureDetails `json:"infrastructure,omitempty"`
	Payment        *PaymentDetails        `json:"payment,omitempty"`
	Addendum       *AddendumDetails       `json:"addendum,omitempty"`
}

// LogisticsDetails carries trip-sheet data for a rate-card check
type LogisticsDetails struct {
	Route        string          `json:"route"`
	VehicleType  string          `json:"vehicle_type"`
	TripSheetKms decimal.Decimal `json:"trip_sheet_kms"`
}

// SaaSDetails carries license counts billed against a purchase order
type SaaSDetails struct {
	Product        string `json:"product"`
	LicensesInPO   int64  `json:"licenses_in_po"`
	LicensesBilled int64  `json:"licenses_billed"`
	LicensesUsed   int64  `json:"licenses_used"`
}

// RecruitmentDetails carries the placement being billed
type RecruitmentDetails struct {
	CandidateName  string          `json:"candidate_name"`
	Position       string          `json:"position"`
	CandidateCTC   decimal.Decimal `json:"candidate_ctc"`
	SalaryVerified bool            `json:"salary_verified"`
}

// MarketingDetails carries deliverable quantities billed against a SOW
type MarketingDetails struct {
	ProjectRef       string          `json:"project_ref"`
	DeliveryVerified bool            `json:"delivery_verified"`
	Lines            []MarketingLine `json:"lines"`
}

// MarketingLine is one billed deliverable
type MarketingLine struct {
	DeliverableCode string          `json:"deliverable_code"`
	QuantityBilled  decimal.Decimal `json:"quantity_billed"`
}

// InfrastructureDetails carries unit-priced items
type InfrastructureDetails struct {
	Items []InfrastructureItem `json:"items"`
}

// InfrastructureItem is one priced line of an infrastructure invoice
type InfrastructureItem struct {
	ItemCode    string          `json:"item_code"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// PaymentDetails describes a payment checked against the ledger for duplicates.
// The payment amount is the envelope InvoicedAmount.
type PaymentDetails struct {
	PaymentRef  string    `json:"payment_ref"`
	PaymentDate time.Time `json:"payment_date"`
}

// AddendumDetails names the addendum version a vendor applied to the invoice
type AddendumDetails struct {
	ContractRef        string         `json:"contract_ref"`
	AppliedVersion     string         `json:"applied_version"`
	ServicePeriodStart time.Time      `json:"service_period_start"`
	ServicePeriodEnd   time.Time      `json:"service_period_end"`
	Items              []AddendumItem `json:"items"`
}

// AddendumItem is a rated item on an addendum-governed invoice
type AddendumItem struct {
	ItemCode string          `json:"item_code"`
	Quantity decimal.Decimal `json:"quantity"`
}

// ServicePeriod returns the half-open service window [start, end).
// With no explicit period the invoice date is used as a single day.
func (d *AddendumDetails) ServicePeriod(invoiceDate time.Time) (time.Time, time.Time) {
	start := d.ServicePeriodStart
	if start.IsZero() {
		start = invoiceDate
	}
	end := d.ServicePeriodEnd
	if end.IsZero() || !end.After(start) {
		end = start.AddDate(0, 0, 1)
	}
	return start, end
}

func validationError(format string, args ...any) error {
	return shared.NewDomainErrorf(shared.CodeValidation, format, args...)
}

// Validate checks the envelope and the payload for the declared domain
func (inv *Invoice) Validate() error {
	if inv == nil {
		return validationError("invoice is required")
	}
	if !inv.Domain.IsValid() {
		return validationError("unsupported domain %q", inv.Domain)
	}
	if strings.TrimSpace(inv.Vendor) == "" && strings.TrimSpace(inv.VendorCode) == "" {
		return validationError("vendor is required")
	}
	if inv.InvoicedAmount.IsNegative() {
		return validationError("invoiced amount cannot be negative")
	}
	if inv.Currency != "" && !inv.Currency.IsValid() {
		return validationError("unsupported currency %q", inv.Currency)
	}
	if n := inv.payloadCount(); n != 1 {
		return validationError("invoice must carry exactly one domain payload, got %d", n)
	}
	return inv.validatePayload()
}

func (inv *Invoice) payloadCount() int {
	n := 0
	for _, set := range []bool{
		inv.Logistics != nil,
		inv.SaaS != nil,
		inv.Recruitment != nil,
		inv.Marketing != nil,
		inv.Infrastructure != nil,
		inv.Payment != nil,
		inv.Addendum != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

func (inv *Invoice) validatePayload() error {
	mismatch := func() error {
		return validationError("payload does not match domain %s", inv.Domain)
	}
	switch inv.Domain {
	case DomainLogistics:
		if inv.Logistics == nil {
			return mismatch()
		}
		if inv.Logistics.TripSheetKms.IsNegative() {
			return validationError("trip sheet kms cannot be negative")
		}
	case DomainSaaS:
		if inv.SaaS == nil {
			return mismatch()
		}
		s := inv.SaaS
		if s.LicensesInPO < 0 || s.LicensesBilled < 0 || s.LicensesUsed < 0 {
			return validationError("license counts cannot be negative")
		}
	case DomainRecruitment:
		if inv.Recruitment == nil {
			return mismatch()
		}
		if inv.Recruitment.CandidateCTC.IsNegative() {
			return validationError("candidate CTC cannot be negative")
		}
	case DomainMarketing:
		if inv.Marketing == nil {
			return mismatch()
		}
		seen := make(map[string]struct{}, len(inv.Marketing.Lines))
		for _, l := range inv.Marketing.Lines {
			if l.DeliverableCode == "" {
				return validationError("deliverable code is required")
			}
			if l.QuantityBilled.IsNegative() {
				return validationError("billed quantity for %s cannot be negative", l.DeliverableCode)
			}
			code := strings.ToUpper(l.DeliverableCode)
			if _, dup := seen[code]; dup {
				return validationError("deliverable %s appears more than once", l.DeliverableCode)
			}
			seen[code] = struct{}{}
		}
	case DomainInfrastructure:
		if inv.Infrastructure == nil {
			return mismatch()
		}
		if len(inv.Infrastructure.Items) == 0 {
			return validationError("infrastructure invoice has no items")
		}
		for _, it := range inv.Infrastructure.Items {
			if it.ItemCode == "" {
				return validationError("item code is required")
			}
			if it.Quantity.IsNegative() || it.UnitPrice.IsNegative() {
				return validationError("item %s has a negative quantity or price", it.ItemCode)
			}
		}
	case DomainDuplicate:
		if inv.Payment == nil {
			return mismatch()
		}
		if strings.TrimSpace(inv.InvoiceNumber) == "" {
			return validationError("invoice number is required for duplicate matching")
		}
		if inv.Payment.PaymentDate.IsZero() {
			return validationError("payment date is required")
		}
	case DomainAddendum:
		if inv.Addendum == nil {
			return mismatch()
		}
		a := inv.Addendum
		if a.ContractRef == "" || a.AppliedVersion == "" {
			return validationError("contract reference and applied version are required")
		}
		for _, it := range a.Items {
			if it.Quantity.IsNegative() {
				return validationError("item %s has a negative quantity", it.ItemCode)
			}
		}
	default:
		return fmt.Errorf("unhandled domain %s", inv.Domain)
	}
	return nil
}

// VendorKey returns the vendor code if present, otherwise the vendor name
func (inv *Invoice) VendorKey() string {
	if inv.VendorCode != "" {
		return inv.VendorCode
	}
	return inv.Vendor
}
