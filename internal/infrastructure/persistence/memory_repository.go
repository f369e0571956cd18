package persistence

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spendaudit/backend/internal/domain/leakage"
	"github.com/spendaudit/backend/internal/domain/shared"
)

// InMemoryCaseRepository is a process-local case store used when no
// database is configured and in tests
type InMemoryCaseRepository struct {
	mu       sync.RWMutex
	cases    map[uuid.UUID]*leakage.LeakageCase
	byNumber map[string]uuid.UUID
	byResult map[uuid.UUID]uuid.UUID
}

// NewInMemoryCaseRepository creates an empty InMemoryCaseRepository
func NewInMemoryCaseRepository() *InMemoryCaseRepository {
	return &InMemoryCaseRepository{
		cases:    make(map[uuid.UUID]*leakage.LeakageCase),
		byNumber: make(map[string]uuid.UUID),
		byResult: make(map[uuid.UUID]uuid.UUID),
	}
}

// FindByID finds a case by its ID
func (r *InMemoryCaseRepository) FindByID(ctx context.Context, id uuid.UUID) (*leakage.LeakageCase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cases[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return c.Clone(), nil
}

// FindByCaseNumber finds a case by its case number
func (r *InMemoryCaseRepository) FindByCaseNumber(ctx context.Context, caseNumber string) (*leakage.LeakageCase, error) {
	r.mu.RLock()
	id, ok := r.byNumber[caseNumber]
	r.mu.RUnlock()
	if !ok {
		return nil, shared.ErrNotFound
	}
	return r.FindByID(ctx, id)
}

// FindByResultID finds the case opened from a discrepancy result
func (r *InMemoryCaseRepository) FindByResultID(ctx context.Context, resultID uuid.UUID) (*leakage.LeakageCase, error) {
	r.mu.RLock()
	id, ok := r.byResult[resultID]
	r.mu.RUnlock()
	if !ok {
		return nil, shared.ErrNotFound
	}
	return r.FindByID(ctx, id)
}

// FindAll finds all cases matching the filter
func (r *InMemoryCaseRepository) FindAll(ctx context.Context, filter leakage.CaseFilter) ([]leakage.LeakageCase, int64, error) {
	r.mu.RLock()
	matched := make([]leakage.LeakageCase, 0, len(r.cases))
	for _, c := range r.cases {
		if filter.Matches(c) {
			matched = append(matched, *c.Clone())
		}
	}
	r.mu.RUnlock()

	sortCases(matched, filter.OrderBy, filter.OrderDir)
	total := int64(len(matched))
	return paginate(matched, filter.Filter), total, nil
}

// FindOpen returns every case that is not in a terminal status
func (r *InMemoryCaseRepository) FindOpen(ctx context.Context) ([]leakage.LeakageCase, error) {
	r.mu.RLock()
	out := make([]leakage.LeakageCase, 0, len(r.cases))
	for _, c := range r.cases {
		if !c.IsTerminal() {
			out = append(out, *c.Clone())
		}
	}
	r.mu.RUnlock()

	sortCases(out, "due_date", "ASC")
	return out, nil
}

// Create inserts a new case
func (r *InMemoryCaseRepository) Create(ctx context.Context, c *leakage.LeakageCase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cases[c.ID]; ok {
		return shared.NewDomainErrorf(shared.CodeAlreadyExists, "Case %s already exists", c.ID)
	}
	if _, ok := r.byNumber[c.CaseNumber]; ok {
		return shared.NewDomainErrorf(shared.CodeAlreadyExists, "Case number %s already exists", c.CaseNumber)
	}
	if _, ok := r.byResult[c.ResultID]; ok {
		return shared.NewDomainErrorf(shared.CodeAlreadyExists, "Case already exists for result %s", c.ResultID)
	}
	r.cases[c.ID] = c.Clone()
	r.byNumber[c.CaseNumber] = c.ID
	r.byResult[c.ResultID] = c.ID
	return nil
}

// SaveWithLock saves with optimistic locking (checks version).
// The stored SLA status is kept.
func (r *InMemoryCaseRepository) SaveWithLock(ctx context.Context, c *leakage.LeakageCase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.cases[c.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Version != c.Version-1 {
		return shared.NewDomainErrorf(shared.CodeConcurrencyConflict, "Case %s was modified by another process", c.CaseNumber)
	}
	next := c.Clone()
	next.SLAStatus = stored.SLAStatus
	r.cases[c.ID] = next
	return nil
}

// UpdateSLAStatus writes only the SLA status of a case
func (r *InMemoryCaseRepository) UpdateSLAStatus(ctx context.Context, id uuid.UUID, status leakage.SLAStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cases[id]
	if !ok {
		return shared.ErrNotFound
	}
	if c.IsTerminal() {
		return leakage.ErrCaseClosed
	}
	c.SLAStatus = status
	return nil
}

// InMemoryResultRepository is a process-local discrepancy result store
type InMemoryResultRepository struct {
	mu      sync.RWMutex
	results map[uuid.UUID]*leakage.DiscrepancyResult
}

// NewInMemoryResultRepository creates an empty InMemoryResultRepository
func NewInMemoryResultRepository() *InMemoryResultRepository {
	return &InMemoryResultRepository{results: make(map[uuid.UUID]*leakage.DiscrepancyResult)}
}

// Save inserts a result
func (r *InMemoryResultRepository) Save(ctx context.Context, res *leakage.DiscrepancyResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.results[res.ID]; ok {
		return shared.NewDomainErrorf(shared.CodeAlreadyExists, "Result %s already exists", res.ID)
	}
	cp := *res
	r.results[res.ID] = &cp
	return nil
}

// FindByID finds a result by its ID
func (r *InMemoryResultRepository) FindByID(ctx context.Context, id uuid.UUID) (*leakage.DiscrepancyResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.results[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *res
	return &cp, nil
}

// FindAll finds all results matching the filter, newest first
func (r *InMemoryResultRepository) FindAll(ctx context.Context, filter leakage.ResultFilter) ([]leakage.DiscrepancyResult, int64, error) {
	r.mu.RLock()
	matched := make([]leakage.DiscrepancyResult, 0, len(r.results))
	for _, res := range r.results {
		if filter.Matches(res) {
			matched = append(matched, *res)
		}
	}
	r.mu.RUnlock()

	asc := ValidateSortOrder(filter.OrderDir) == "ASC"
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.EvaluatedAt.Equal(b.EvaluatedAt) {
			return a.ID.String() < b.ID.String()
		}
		if asc {
			return a.EvaluatedAt.Before(b.EvaluatedAt)
		}
		return a.EvaluatedAt.After(b.EvaluatedAt)
	})
	total := int64(len(matched))
	return paginate(matched, filter.Filter), total, nil
}

func sortCases(cases []leakage.LeakageCase, orderBy, orderDir string) {
	field := ValidateSortField(orderBy, CaseSortFields, "created_at")
	asc := ValidateSortOrder(orderDir) == "ASC"
	compare := func(a, b *leakage.LeakageCase) int {
		switch field {
		case "leakage_amount":
			return a.LeakageAmount.Cmp(b.LeakageAmount)
		case "due_date":
			return a.DueDate.Compare(b.DueDate)
		case "updated_at":
			return a.UpdatedAt.Compare(b.UpdatedAt)
		case "case_number":
			return strings.Compare(a.CaseNumber, b.CaseNumber)
		case "vendor":
			return strings.Compare(a.Vendor, b.Vendor)
		case "status":
			return strings.Compare(string(a.Status), string(b.Status))
		case "severity":
			return strings.Compare(string(a.Severity), string(b.Severity))
		case "sla_status":
			return strings.Compare(string(a.SLAStatus), string(b.SLAStatus))
		case "id":
			return strings.Compare(a.ID.String(), b.ID.String())
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}
	sort.SliceStable(cases, func(i, j int) bool {
		cmp := compare(&cases[i], &cases[j])
		if cmp == 0 {
			return cases[i].CaseNumber < cases[j].CaseNumber
		}
		if asc {
			return cmp < 0
		}
		return cmp > 0
	})
}

func paginate[T any](items []T, f shared.Filter) []T {
	if f.PageSize <= 0 {
		return items
	}
	start := f.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + f.PageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

var (
	_ leakage.CaseRepository   = (*InMemoryCaseRepository)(nil)
	_ leakage.ResultRepository = (*InMemoryResultRepository)(nil)
)
