package handler

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spendaudit/backend/internal/domain/leakage"
	"github.com/spendaudit/backend/internal/domain/shared"
	"github.com/spendaudit/backend/internal/domain/shared/valueobject"
	"github.com/spendaudit/backend/internal/interfaces/http/dto"
)

// InvoiceRequest is an invoice submitted for evaluation. Exactly one payload
// object matching domain must be present; the domain checks that.
type InvoiceRequest struct {
	ID             *uuid.UUID      `json:"id"`
	InvoiceNumber  string          `json:"invoice_number" binding:"required,max=100" example:"FF-2024-0113"`
	Vendor         string          `json:"vendor" binding:"max=200" example:"FastFreight"`
	VendorCode     string          `json:"vendor_code" binding:"max=60" example:"V-FF"`
	Domain         string          `json:"domain" binding:"required,leakage_domain" example:"logistics"`
	InvoiceDate    string          `json:"invoice_date" binding:"required" example:"2024-03-15"`
	InvoicedAmount decimal.Decimal `json:"invoiced_amount" binding:"gte=0" example:"1500.00"`
	Currency       string          `json:"currency" binding:"omitempty,currency" example:"INR"`

	Logistics      *leakage.LogisticsDetails      `json:"logistics,omitempty"`
	SaaS           *leakage.SaaSDetails           `json:"saas,omitempty"`
	Recruitment    *leakage.RecruitmentDetails    `json:"recruitment,omitempty"`
	Marketing      *leakage.MarketingDetails      `json:"marketing,omitempty"`
	Infrastructure *leakage.InfrastructureDetails `json:"infrastructure,omitempty"`
	Payment        *leakage.PaymentDetails        `json:"payment,omitempty"`
	Addendum       *leakage.AddendumDetails       `json:"addendum,omitempty"`
}

// ToDomain converts the request to a domain invoice
func (r *InvoiceRequest) ToDomain() (*leakage.Invoice, error) {
	date, err := parseDateParam(r.InvoiceDate, false)
	if err != nil {
		return nil, shared.NewDomainErrorf(shared.CodeValidation, "invoice_date: %v", err)
	}
	inv := &leakage.Invoice{
		InvoiceNumber:  strings.TrimSpace(r.InvoiceNumber),
		Vendor:         strings.TrimSpace(r.Vendor),
		VendorCode:     strings.TrimSpace(r.VendorCode),
		Domain:         leakage.Domain(r.Domain),
		InvoiceDate:    *date,
		InvoicedAmount: r.InvoicedAmount,
		Currency:       valueobject.Currency(strings.ToUpper(r.Currency)),
		Logistics:      r.Logistics,
		SaaS:           r.SaaS,
		Recruitment:    r.Recruitment,
		Marketing:      r.Marketing,
		Infrastructure: r.Infrastructure,
		Payment:        r.Payment,
		Addendum:       r.Addendum,
	}
	if r.ID != nil {
		inv.ID = *r.ID
	}
	return inv, nil
}

// BatchRequest submits several invoices at once
type BatchRequest struct {
	Invoices []InvoiceRequest `json:"invoices" binding:"required,min=1,dive"`
}

// ToDomain converts every invoice, collecting a detail per bad invoice date
func (r *BatchRequest) ToDomain() ([]*leakage.Invoice, []dto.ValidationDetail) {
	out := make([]*leakage.Invoice, len(r.Invoices))
	var details []dto.ValidationDetail
	for i := range r.Invoices {
		inv, err := r.Invoices[i].ToDomain()
		if err != nil {
			details = append(details, dto.ValidationDetail{
				Field:   fmt.Sprintf("invoices[%d].invoice_date", i),
				Message: err.Error(),
			})
			continue
		}
		out[i] = inv
	}
	return out, details
}
