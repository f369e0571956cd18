package leakage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spendaudit/backend/internal/domain/shared"
)

// ReconciliationService dispatches invoices to the evaluator registered for
// their domain and normalizes the output into a DiscrepancyResult
type ReconciliationService struct {
	mu         sync.RWMutex
	evaluators map[Domain]Evaluator
	refs       ReferenceProvider
	now        func() time.Time
}

// ReconciliationOption configures a ReconciliationService
type ReconciliationOption func(*ReconciliationService)

// WithClock overrides the clock used to stamp results
func WithClock(now func() time.Time) ReconciliationOption {
	return func(s *ReconciliationService) {
		s.now = now
	}
}

// WithEvaluator registers an additional or replacement evaluator
func WithEvaluator(e Evaluator) ReconciliationOption {
	return func(s *ReconciliationService) {
		s.evaluators[e.Domain()] = e
	}
}

// NewReconciliationService creates a service with the default evaluators
func NewReconciliationService(refs ReferenceProvider, th Thresholds, opts ...ReconciliationOption) *ReconciliationService {
	s := &ReconciliationService{
		evaluators: make(map[Domain]Evaluator),
		refs:       refs,
		now:        time.Now,
	}
	for _, e := range DefaultEvaluators(th) {
		s.evaluators[e.Domain()] = e
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds or replaces the evaluator for its domain
func (s *ReconciliationService) Register(e Evaluator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evaluators[e.Domain()] = e
}

// Evaluator returns the evaluator registered for a domain
func (s *ReconciliationService) Evaluator(d Domain) (Evaluator, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.evaluators[d]
	return e, ok
}

// Evaluators returns the registered evaluators ordered by domain
func (s *ReconciliationService) Evaluators() []Evaluator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Evaluator, 0, len(s.evaluators))
	for _, e := range s.evaluators {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Domain() < out[j].Domain() })
	return out
}

// Reconcile validates and evaluates one invoice.
// Validation errors are returned. Missing or ambiguous reference data yields
// an unresolved or manual_review result rather than an error, so the invoice
// is never reported as compliant.
func (s *ReconciliationService) Reconcile(ctx context.Context, inv *Invoice) (*DiscrepancyResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	if inv.ID == uuid.Nil {
		// Ingested invoices are immutable; the generated id lives on a copy.
		ingested := *inv
		ingested.ID = uuid.New()
		inv = &ingested
	}
	e, ok := s.Evaluator(inv.Domain)
	if !ok {
		return nil, validationError("no evaluator registered for domain %s", inv.Domain)
	}

	ev, err := e.Evaluate(ctx, inv, s.refs)
	if err != nil {
		if shared.IsReferenceError(err) {
			return unresolvedResult(inv, err, s.now()), nil
		}
		var de *shared.DomainError
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, fmt.Errorf("evaluate %s invoice %s: %w", inv.Domain, inv.InvoiceNumber, err)
	}
	return newResult(inv, ev, s.now()), nil
}

// unresolvedResult treats the whole invoiced amount as at risk
func unresolvedResult(inv *Invoice, cause error, at time.Time) *DiscrepancyResult {
	code := shared.CodeOf(cause)
	status := ResultStatusUnresolved
	if code == shared.CodeReferenceDataAmbiguous {
		status = ResultStatusManualReview
	}
	ev := newEvaluation(decimal.Zero, status)
	ev.Notes = []string{cause.Error()}
	r := newResult(inv, ev, at)
	r.ReferenceError = code
	r.Metrics = nil
	return r
}

