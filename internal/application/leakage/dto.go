package leakage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spendaudit/backend/internal/domain/leakage"
)

// CaseResponse represents a leakage case in API responses
type CaseResponse struct {
	ID                  uuid.UUID          `json:"id"`
	CaseNumber          string             `json:"case_number"`
	Title               string             `json:"title"`
	Category            string             `json:"category"`
	Severity            string             `json:"severity"`
	Priority            string             `json:"priority"`
	Status              string             `json:"status"`
	SubStatus           string             `json:"sub_status,omitempty"`
	LeakageAmount       decimal.Decimal    `json:"leakage_amount"`
	RecoveredAmount     decimal.Decimal    `json:"recovered_amount"`
	OutstandingAmount   decimal.Decimal    `json:"outstanding_amount"`
	Currency            string             `json:"currency"`
	Vendor              string             `json:"vendor"`
	Domain              string             `json:"domain"`
	InvoiceID           uuid.UUID          `json:"invoice_id"`
	InvoiceNumber       string             `json:"invoice_number"`
	ResultID            uuid.UUID          `json:"result_id"`
	Assignee            *string            `json:"assignee,omitempty"`
	DueDate             time.Time          `json:"due_date"`
	SLAStatus           string             `json:"sla_status"`
	RelatedTransactions []string           `json:"related_transactions,omitempty"`
	AllowedTransitions  []string           `json:"allowed_transitions"`
	Activities          []leakage.Activity `json:"activities"`
	Evidence            []leakage.Evidence `json:"evidence"`
	RecoveredAt         *time.Time         `json:"recovered_at,omitempty"`
	ClosedAt            *time.Time         `json:"closed_at,omitempty"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
	Version             int                `json:"version"`
}

// ToCaseResponse converts a domain case to a response
func ToCaseResponse(c *leakage.LeakageCase) CaseResponse {
	next := c.Status.NextStatuses()
	allowed := make([]string, 0, len(next))
	for _, s := range next {
		allowed = append(allowed, s.String())
	}
	activities := c.Activities
	if activities == nil {
		activities = []leakage.Activity{}
	}
	evidence := c.Evidence
	if evidence == nil {
		evidence = []leakage.Evidence{}
	}
	return CaseResponse{
		ID:                  c.ID,
		CaseNumber:          c.CaseNumber,
		Title:               c.Title,
		Category:            c.Category.String(),
		Severity:            c.Severity.String(),
		Priority:            c.Priority.String(),
		Status:              c.Status.String(),
		SubStatus:           string(c.SubStatus),
		LeakageAmount:       c.LeakageAmount,
		RecoveredAmount:     c.RecoveredAmount,
		OutstandingAmount:   c.OutstandingAmount(),
		Currency:            c.Currency.String(),
		Vendor:              c.Vendor,
		Domain:              c.Domain.String(),
		InvoiceID:           c.InvoiceID,
		InvoiceNumber:       c.InvoiceNumber,
		ResultID:            c.ResultID,
		Assignee:            c.Assignee,
		DueDate:             c.DueDate,
		SLAStatus:           string(c.SLAStatus),
		RelatedTransactions: c.RelatedTransactions,
		AllowedTransitions:  allowed,
		Activities:          activities,
		Evidence:            evidence,
		RecoveredAt:         c.RecoveredAt,
		ClosedAt:            c.ClosedAt,
		CreatedAt:           c.CreatedAt,
		UpdatedAt:           c.UpdatedAt,
		Version:             c.Version,
	}
}

// ToCaseResponses converts a list of domain cases
func ToCaseResponses(cases []leakage.LeakageCase) []CaseResponse {
	out := make([]CaseResponse, len(cases))
	for i := range cases {
		out[i] = ToCaseResponse(&cases[i])
	}
	return out
}

// SubmissionResult is the outcome of evaluating one invoice
type SubmissionResult struct {
	Result *leakage.DiscrepancyResult `json:"result"`
	Case   *CaseResponse              `json:"case,omitempty"`
}

// BatchItem is the outcome for one invoice of a batch
type BatchItem struct {
	Index         int                        `json:"index"`
	InvoiceNumber string                     `json:"invoice_number"`
	Result        *leakage.DiscrepancyResult `json:"result,omitempty"`
	Case          *CaseResponse              `json:"case,omitempty"`
	Error         string                     `json:"error,omitempty"`
	ErrorCode     string                     `json:"error_code,omitempty"`
}

// AuditScan summarizes a batch run
type AuditScan struct {
	ScanID       string          `json:"scan_id"`
	StartedAt    time.Time       `json:"started_at"`
	CompletedAt  time.Time       `json:"completed_at"`
	Total        int             `json:"total"`
	Evaluated    int             `json:"evaluated"`
	Failed       int             `json:"failed"`
	CasesOpened  int             `json:"cases_opened"`
	TotalLeakage decimal.Decimal `json:"total_leakage"`
	StatusCounts map[string]int  `json:"status_counts"`
	Items        []BatchItem     `json:"items"`
}
