// Package export renders cases and discrepancy results as CSV or XLSX.
// Money is written with decimal.String so no precision is lost.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spendaudit/backend/internal/domain/leakage"
	"github.com/spendaudit/backend/internal/domain/shared"
)

// Format is an export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a requested format; empty means CSV
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", shared.NewDomainErrorf(shared.CodeValidation, "unsupported export format %q", s)
}

// ContentType returns the MIME type for the format
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Filename returns base with the format's extension
func (f Format) Filename(base string) string {
	return base + "." + string(f)
}

// Table is a flat header plus rows of cell text
type Table struct {
	Sheet   string
	Headers []string
	Rows    [][]string
}

// Write renders t to w in the given format
func Write(w io.Writer, f Format, t Table) error {
	switch f {
	case FormatXLSX:
		return WriteXLSX(w, t)
	default:
		return WriteCSV(w, t)
	}
}

// WriteCSV renders t as RFC 4180 CSV
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Headers); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// CasesTable flattens cases into one row per case
func CasesTable(cases []leakage.LeakageCase) Table {
	t := Table{
		Sheet: "Cases",
		Headers: []string{
			"case_number", "status", "sub_status", "category", "severity", "priority",
			"domain", "vendor", "invoice_number", "currency", "leakage_amount",
			"recovered_amount", "outstanding_amount", "assignee", "sla_status",
			"due_date", "created_at", "closed_at", "related_transactions",
		},
		Rows: make([][]string, 0, len(cases)),
	}
	for i := range cases {
		c := &cases[i]
		assignee := ""
		if c.Assignee != nil {
			assignee = *c.Assignee
		}
		t.Rows = append(t.Rows, []string{
			c.CaseNumber,
			string(c.Status),
			string(c.SubStatus),
			string(c.Category),
			string(c.Severity),
			string(c.Priority),
			string(c.Domain),
			c.Vendor,
			c.InvoiceNumber,
			string(c.Currency),
			c.LeakageAmount.String(),
			c.RecoveredAmount.String(),
			c.OutstandingAmount().String(),
			assignee,
			string(c.SLAStatus),
			formatTime(c.DueDate),
			formatTime(c.CreatedAt),
			formatTimePtr(c.ClosedAt),
			strings.Join(c.RelatedTransactions, ";"),
		})
	}
	return t
}

// ResultsTable flattens discrepancy results into one row per result
func ResultsTable(results []leakage.DiscrepancyResult) Table {
	t := Table{
		Sheet: "Discrepancies",
		Headers: []string{
			"result_id", "invoice_number", "domain", "vendor", "status", "currency",
			"expected_amount", "invoiced_amount", "discrepancy", "discrepancy_percent",
			"leakage_amount", "pending_verification", "reference_error", "evaluated_at",
		},
		Rows: make([][]string, 0, len(results)),
	}
	for i := range results {
		r := &results[i]
		pct := ""
		if r.DiscrepancyPercent != nil {
			pct = r.DiscrepancyPercent.String()
		}
		t.Rows = append(t.Rows, []string{
			r.ID.String(),
			r.InvoiceNumber,
			string(r.Domain),
			r.Vendor,
			string(r.Status),
			string(r.Currency),
			r.ExpectedAmount.String(),
			r.InvoicedAmount.String(),
			r.Discrepancy.String(),
			pct,
			r.LeakageAmount.String(),
			strconv.FormatBool(r.PendingVerification),
			r.ReferenceError,
			formatTime(r.EvaluatedAt),
		})
	}
	return t
}
