package leakage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/spendaudit/backend/internal/domain/shared"
)

// CaseFilter narrows case listings
type CaseFilter struct {
	shared.Filter
	Status    CaseStatus
	Severity  Severity
	Category  Category
	Domain    Domain
	Vendor    string
	Assignee  string
	SLAStatus SLAStatus
	OpenOnly  bool
}

// Matches reports whether c passes the filter's predicates (paging is ignored)
func (f CaseFilter) Matches(c *LeakageCase) bool {
	switch {
	case f.Status != "" && c.Status != f.Status:
		return false
	case f.Severity != "" && c.Severity != f.Severity:
		return false
	case f.Category != "" && c.Category != f.Category:
		return false
	case f.Domain != "" && c.Domain != f.Domain:
		return false
	case f.Vendor != "" && c.Vendor != f.Vendor:
		return false
	case f.SLAStatus != "" && c.SLAStatus != f.SLAStatus:
		return false
	case f.OpenOnly && c.IsTerminal():
		return false
	}
	if f.Assignee != "" && (c.Assignee == nil || *c.Assignee != f.Assignee) {
		return false
	}
	return true
}

// ErrCaseClosed is returned by SLA writes against a closed or false-positive case
var ErrCaseClosed = shared.NewDomainError(shared.CodeInvalidState, "Case is closed")

// CaseRepository is the case store. Writes other than UpdateSLAStatus must
// never change a stored case's SLA status.
type CaseRepository interface {
	// FindByID returns the case or a NOT_FOUND error
	FindByID(ctx context.Context, id uuid.UUID) (*LeakageCase, error)
	// FindByCaseNumber returns the case or a NOT_FOUND error
	FindByCaseNumber(ctx context.Context, caseNumber string) (*LeakageCase, error)
	// FindByResultID returns the case opened from a result or a NOT_FOUND error
	FindByResultID(ctx context.Context, resultID uuid.UUID) (*LeakageCase, error)
	// FindAll lists cases matching the filter, newest first
	FindAll(ctx context.Context, filter CaseFilter) ([]LeakageCase, int64, error)
	// FindOpen returns every non-terminal case
	FindOpen(ctx context.Context) ([]LeakageCase, error)
	// Create inserts a new case
	Create(ctx context.Context, c *LeakageCase) error
	// SaveWithLock persists c only if the stored version is c.Version-1,
	// otherwise it returns a CONCURRENCY_CONFLICT error
	SaveWithLock(ctx context.Context, c *LeakageCase) error
	// UpdateSLAStatus atomically writes only the SLA status of an open case.
	// A case that became terminal is left untouched and ErrCaseClosed is returned.
	UpdateSLAStatus(ctx context.Context, id uuid.UUID, status SLAStatus) error
}

// ResultFilter narrows discrepancy result listings
type ResultFilter struct {
	shared.Filter
	Domain Domain
	Vendor string
	Status ResultStatus
	From   *time.Time
	To     *time.Time
}

// Matches reports whether r passes the filter's predicates (paging is ignored)
func (f ResultFilter) Matches(r *DiscrepancyResult) bool {
	switch {
	case f.Domain != "" && r.Domain != f.Domain:
		return false
	case f.Vendor != "" && r.Vendor != f.Vendor:
		return false
	case f.Status != "" && r.Status != f.Status:
		return false
	case f.From != nil && r.EvaluatedAt.Before(*f.From):
		return false
	case f.To != nil && r.EvaluatedAt.After(*f.To):
		return false
	}
	return true
}

// ResultRepository stores discrepancy results. Results are insert-only.
type ResultRepository interface {
	// Save inserts a result
	Save(ctx context.Context, r *DiscrepancyResult) error
	// FindByID returns the result or a NOT_FOUND error
	FindByID(ctx context.Context, id uuid.UUID) (*DiscrepancyResult, error)
	// FindAll lists results matching the filter, newest first
	FindAll(ctx context.Context, filter ResultFilter) ([]DiscrepancyResult, int64, error)
}
