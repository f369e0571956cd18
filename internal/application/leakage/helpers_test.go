package leakage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spendaudit/backend/internal/domain/leakage"
	"github.com/spendaudit/backend/internal/domain/shared"
	"github.com/spendaudit/backend/internal/infrastructure/persistence"
	"github.com/spendaudit/backend/internal/infrastructure/reference"
)

var testNow = time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)

type fakeLock struct {
	l *fakeLocker
}

func (f fakeLock) Release(context.Context) error {
	f.l.mu.Lock()
	f.l.released++
	f.l.mu.Unlock()
	return nil
}

// fakeLocker records acquisitions without blocking
type fakeLocker struct {
	mu       sync.Mutex
	keys     []string
	released int
	err      error
}

func (f *fakeLocker) Acquire(_ context.Context, key string) (Lock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.keys = append(f.keys, key)
	return fakeLock{l: f}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

type recordingMetrics struct {
	mu          sync.Mutex
	evaluations int
	failures    int
	sweeps      int
}

func (m *recordingMetrics) RecordEvaluation(context.Context, *leakage.DiscrepancyResult, time.Duration) {
	m.mu.Lock()
	m.evaluations++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordEvaluationFailure(context.Context, leakage.Domain) {
	m.mu.Lock()
	m.failures++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordSLASweep(context.Context, int, int, time.Duration) {
	m.mu.Lock()
	m.sweeps++
	m.mu.Unlock()
}

// conflictingCaseRepo fails the next n versioned saves with a conflict
type conflictingCaseRepo struct {
	*persistence.InMemoryCaseRepository
	conflicts int
	saves     int
}

func (r *conflictingCaseRepo) SaveWithLock(ctx context.Context, c *leakage.LeakageCase) error {
	r.saves++
	if r.conflicts > 0 {
		r.conflicts--
		return shared.NewDomainError(shared.CodeConcurrencyConflict, "stale version")
	}
	return r.InMemoryCaseRepository.SaveWithLock(ctx, c)
}

// failingSLARepo rejects SLA writes for one case number
type failingSLARepo struct {
	*persistence.InMemoryCaseRepository
	failFor string
}

func (r *failingSLARepo) UpdateSLAStatus(ctx context.Context, id uuid.UUID, status leakage.SLAStatus) error {
	c, err := r.FindByID(ctx, id)
	if err == nil && c.CaseNumber == r.failFor {
		return errors.New("write failed")
	}
	return r.InMemoryCaseRepository.UpdateSLAStatus(ctx, id, status)
}

// staleOpenRepo serves FindOpen from a snapshot taken before cases closed
type staleOpenRepo struct {
	*persistence.InMemoryCaseRepository
	snapshot []leakage.LeakageCase
}

func (r *staleOpenRepo) FindOpen(ctx context.Context) ([]leakage.LeakageCase, error) {
	return r.snapshot, nil
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testReferences() *reference.MemoryProvider {
	return reference.NewMemoryProvider(reference.Dataset{
		RateCards: []leakage.RateCard{{
			ID:          "RC-1",
			Vendor:      "FastFreight",
			Route:       "MUM-PUN",
			VehicleType: "32ft",
			RatePerKm:   d("10"),
			ValidFrom:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		}},
	})
}

// tripInvoice bills kms on the FastFreight rate card at 10 per km
func tripInvoice(number, kms, amount string) *leakage.Invoice {
	return &leakage.Invoice{
		InvoiceNumber:  number,
		Vendor:         "FastFreight",
		Domain:         leakage.DomainLogistics,
		InvoiceDate:    time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		InvoicedAmount: d(amount),
		Logistics: &leakage.LogisticsDetails{
			Route:        "MUM-PUN",
			VehicleType:  "32ft",
			TripSheetKms: d(kms),
		},
	}
}

type fixture struct {
	cases     *persistence.InMemoryCaseRepository
	results   *persistence.InMemoryResultRepository
	locker    *fakeLocker
	publisher *recordingPublisher
	metrics   *recordingMetrics
	leakage   *LeakageService
}

func newFixture(opts ...LeakageServiceOption) *fixture {
	f := &fixture{
		cases:     persistence.NewInMemoryCaseRepository(),
		results:   persistence.NewInMemoryResultRepository(),
		locker:    &fakeLocker{},
		publisher: &recordingPublisher{},
		metrics:   &recordingMetrics{},
	}
	reconciler := leakage.NewReconciliationService(testReferences(), leakage.DefaultThresholds(),
		leakage.WithClock(func() time.Time { return testNow }))
	classifier := leakage.NewClassifier(leakage.DefaultCasePolicy())
	base := []LeakageServiceOption{
		WithEventPublisher(f.publisher),
		WithLocker(f.locker),
		WithMetrics(f.metrics),
		WithNow(func() time.Time { return testNow }),
	}
	f.leakage = NewLeakageService(reconciler, classifier, f.results, f.cases, append(base, opts...)...)
	return f
}

// openFlaggedCase submits an overbilled trip and returns its case
func (f *fixture) openFlaggedCase(ctx context.Context, number string) *CaseResponse {
	sub, err := f.leakage.SubmitInvoice(ctx, tripInvoice(number, "100", "1500"))
	if err != nil {
		panic(err)
	}
	return sub.Case
}
