package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// orderClause builds a whitelisted ORDER BY clause
func orderClause(orderBy, orderDir string, allowed map[string]bool, defaultField string) string {
	return ValidateSortField(orderBy, allowed, defaultField) + " " + ValidateSortOrder(orderDir)
}

// CaseSortFields contains allowed sort fields for leakage cases
var CaseSortFields = map[string]bool{
	"id":             true,
	"created_at":     true,
	"updated_at":     true,
	"case_number":    true,
	"severity":       true,
	"status":         true,
	"leakage_amount": true,
	"vendor":         true,
	"due_date":       true,
	"sla_status":     true,
}

// ResultSortFields contains allowed sort fields for discrepancy results
var ResultSortFields = map[string]bool{
	"id":             true,
	"evaluated_at":   true,
	"invoice_number": true,
	"vendor":         true,
	"domain":         true,
	"status":         true,
	"discrepancy":    true,
	"leakage_amount": true,
}
