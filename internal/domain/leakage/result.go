package leakage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spendaudit/backend/internal/domain/shared/valueobject"
)

// LineDetail is a per-item breakdown of an evaluation
type LineDetail struct {
	Key             string           `json:"key"`
	Description     string           `json:"description,omitempty"`
	Quantity        decimal.Decimal  `json:"quantity"`
	Expected        decimal.Decimal  `json:"expected"`
	Actual          decimal.Decimal  `json:"actual"`
	Variance        decimal.Decimal  `json:"variance"`
	VariancePercent *decimal.Decimal `json:"variance_percent,omitempty"`
	Status          string           `json:"status"`
}

// DiscrepancyResult is the normalized, immutable outcome of evaluating one invoice.
// Re-evaluating an invoice produces a new result.
type DiscrepancyResult struct {
	ID                  uuid.UUID                  `json:"id"`
	InvoiceID           uuid.UUID                  `json:"invoice_id"`
	InvoiceNumber       string                     `json:"invoice_number"`
	Domain              Domain                     `json:"domain"`
	Vendor              string                     `json:"vendor"`
	Currency            valueobject.Currency       `json:"currency"`
	ExpectedAmount      decimal.Decimal            `json:"expected_amount"`
	InvoicedAmount      decimal.Decimal            `json:"invoiced_amount"`
	Discrepancy         decimal.Decimal            `json:"discrepancy"`
	DiscrepancyPercent  *decimal.Decimal           `json:"discrepancy_percent,omitempty"`
	Status              ResultStatus               `json:"status"`
	LeakageAmount       decimal.Decimal            `json:"leakage_amount"`
	Lines               []LineDetail               `json:"lines,omitempty"`
	Metrics             map[string]decimal.Decimal `json:"metrics,omitempty"`
	PendingVerification bool                       `json:"pending_verification"`
	SeverityFloor       Severity                   `json:"severity_floor,omitempty"`
	ReferenceError      string                     `json:"reference_error,omitempty"`
	RelatedTransactions []string                   `json:"related_transactions,omitempty"`
	Notes               []string                   `json:"notes,omitempty"`
	EvaluatedAt         time.Time                  `json:"evaluated_at"`
}

// Metric returns a named metric and whether it was recorded
func (r *DiscrepancyResult) Metric(key string) (decimal.Decimal, bool) {
	v, ok := r.Metrics[key]
	return v, ok
}

// IsUnresolved reports whether reference resolution failed for this result
func (r *DiscrepancyResult) IsUnresolved() bool {
	return r.ReferenceError != ""
}

// newResult normalizes an evaluation into a DiscrepancyResult
func newResult(inv *Invoice, ev *Evaluation, at time.Time) *DiscrepancyResult {
	discrepancy := inv.InvoicedAmount.Sub(ev.Expected)
	leakage := decimal.Max(discrepancy, decimal.Zero)
	if ev.Leakage != nil {
		leakage = decimal.Max(*ev.Leakage, decimal.Zero)
	}
	currency := inv.Currency
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}
	return &DiscrepancyResult{
		ID:                  uuid.New(),
		InvoiceID:           inv.ID,
		InvoiceNumber:       inv.InvoiceNumber,
		Domain:              inv.Domain,
		Vendor:              inv.Vendor,
		Currency:            currency,
		ExpectedAmount:      ev.Expected,
		InvoicedAmount:      inv.InvoicedAmount,
		Discrepancy:         discrepancy,
		DiscrepancyPercent:  valueobject.PercentOf(discrepancy, ev.Expected),
		Status:              ev.Status,
		LeakageAmount:       leakage,
		Lines:               ev.Lines,
		Metrics:             ev.Metrics,
		PendingVerification: ev.PendingVerification,
		SeverityFloor:       ev.SeverityFloor,
		RelatedTransactions: ev.RelatedTransactions,
		Notes:               ev.Notes,
		EvaluatedAt:         at,
	}
}
