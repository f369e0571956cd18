package leakage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"github.com/spendaudit/backend/internal/domain/leakage"
	"github.com/spendaudit/backend/internal/domain/shared"
	"github.com/spendaudit/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultBatchWorkers = 8

// LeakageService runs invoices through reconciliation and opens cases for
// anomalous results
type LeakageService struct {
	reconciler   *leakage.ReconciliationService
	classifier   *leakage.Classifier
	resultRepo   leakage.ResultRepository
	caseRepo     leakage.CaseRepository
	publisher    shared.EventPublisher
	locker       Locker
	metrics      Metrics
	logger       *zap.Logger
	now          func() time.Time
	batchWorkers int
	autoOpen     bool
}

// LeakageServiceOption is a functional option for configuring LeakageService
type LeakageServiceOption func(*LeakageService)

// WithEventPublisher publishes case events after they are persisted
func WithEventPublisher(p shared.EventPublisher) LeakageServiceOption {
	return func(s *LeakageService) {
		s.publisher = p
	}
}

// WithLocker sets the locker used to serialize case creation per result
func WithLocker(l Locker) LeakageServiceOption {
	return func(s *LeakageService) {
		s.locker = l
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(m Metrics) LeakageServiceOption {
	return func(s *LeakageService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) LeakageServiceOption {
	return func(s *LeakageService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithNow overrides the clock
func WithNow(now func() time.Time) LeakageServiceOption {
	return func(s *LeakageService) {
		s.now = now
	}
}

// WithBatchWorkers bounds the number of invoices evaluated concurrently
func WithBatchWorkers(n int) LeakageServiceOption {
	return func(s *LeakageService) {
		if n > 0 {
			s.batchWorkers = n
		}
	}
}

// WithAutoOpenCases controls whether SubmitInvoice opens cases automatically
func WithAutoOpenCases(enabled bool) LeakageServiceOption {
	return func(s *LeakageService) {
		s.autoOpen = enabled
	}
}

// NewLeakageService creates a new LeakageService
func NewLeakageService(
	reconciler *leakage.ReconciliationService,
	classifier *leakage.Classifier,
	resultRepo leakage.ResultRepository,
	caseRepo leakage.CaseRepository,
	opts ...LeakageServiceOption,
) *LeakageService {
	s := &LeakageService{
		reconciler:   reconciler,
		classifier:   classifier,
		resultRepo:   resultRepo,
		caseRepo:     caseRepo,
		metrics:      noopMetrics{},
		logger:       zap.NewNop(),
		now:          time.Now,
		batchWorkers: defaultBatchWorkers,
		autoOpen:     true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitInvoice evaluates one invoice, stores the result and opens a case
// when the classifier says so
func (s *LeakageService) SubmitInvoice(ctx context.Context, inv *leakage.Invoice) (*SubmissionResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "leakage.submit_invoice")
	defer span.End()

	domain := leakage.Domain("")
	if inv != nil {
		domain = inv.Domain
		telemetry.SetAttributes(span,
			telemetry.SpanAttrInvoiceNumber, inv.InvoiceNumber,
			telemetry.SpanAttrDomain, domain.String(),
			telemetry.SpanAttrVendor, inv.Vendor,
		)
	}

	start := time.Now()
	result, err := s.reconciler.Reconcile(ctx, inv)
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordEvaluationFailure(ctx, domain)
		return nil, err
	}
	s.metrics.RecordEvaluation(ctx, result, time.Since(start))
	telemetry.SetAttributes(span,
		telemetry.SpanAttrStatus, result.Status.String(),
		telemetry.SpanAttrDiscrepancy, result.Discrepancy.String(),
	)

	if err := s.resultRepo.Save(ctx, result); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.logger.Info("invoice evaluated",
		zap.String("invoice_number", result.InvoiceNumber),
		zap.String("domain", result.Domain.String()),
		zap.String("status", result.Status.String()),
		zap.String("discrepancy", result.Discrepancy.String()),
		zap.String("result_id", result.ID.String()),
	)

	out := &SubmissionResult{Result: result}
	if !s.autoOpen || !s.classifier.ShouldOpenCase(result) {
		return out, nil
	}
	c, err := s.openCase(ctx, result, "system")
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrCaseNumber, c.CaseNumber)
	resp := ToCaseResponse(c)
	out.Case = &resp
	return out, nil
}

// SubmitBatch evaluates invoices concurrently. Failures are reported per
// invoice and never abort the rest of the batch.
func (s *LeakageService) SubmitBatch(ctx context.Context, invoices []*leakage.Invoice) []BatchItem {
	ctx, span := telemetry.StartSpan(ctx, "leakage.submit_batch",
		telemetry.WithAttribute(telemetry.SpanAttrBatchSize, len(invoices)))
	defer span.End()

	items := make([]BatchItem, len(invoices))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchWorkers)
	for i, inv := range invoices {
		items[i].Index = i
		if inv != nil {
			items[i].InvoiceNumber = inv.InvoiceNumber
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				items[i].Error = err.Error()
				return nil
			}
			sub, err := s.SubmitInvoice(gctx, inv)
			if err != nil {
				items[i].Error = err.Error()
				items[i].ErrorCode = shared.CodeOf(err)
				s.logger.Warn("batch invoice failed",
					zap.Int("index", i),
					zap.String("invoice_number", items[i].InvoiceNumber),
					zap.Error(err),
				)
				return nil
			}
			items[i].Result = sub.Result
			items[i].Case = sub.Case
			return nil
		})
	}
	_ = g.Wait()
	return items
}

// RunAuditScan evaluates a batch and summarizes it under a sortable scan id
func (s *LeakageService) RunAuditScan(ctx context.Context, invoices []*leakage.Invoice) *AuditScan {
	started := s.now()
	scan := &AuditScan{
		ScanID:       "SCAN-" + ulid.MustNew(ulid.Timestamp(started), ulid.DefaultEntropy()).String(),
		StartedAt:    started,
		Total:        len(invoices),
		TotalLeakage: decimal.Zero,
		StatusCounts: make(map[string]int),
	}
	scan.Items = s.SubmitBatch(ctx, invoices)
	for _, it := range scan.Items {
		if it.Result == nil {
			scan.Failed++
			continue
		}
		scan.Evaluated++
		scan.StatusCounts[it.Result.Status.String()]++
		scan.TotalLeakage = scan.TotalLeakage.Add(it.Result.LeakageAmount)
		if it.Case != nil {
			scan.CasesOpened++
		}
	}
	scan.CompletedAt = s.now()
	s.logger.Info("audit scan completed",
		zap.String("scan_id", scan.ScanID),
		zap.Int("total", scan.Total),
		zap.Int("failed", scan.Failed),
		zap.Int("cases_opened", scan.CasesOpened),
		zap.String("total_leakage", scan.TotalLeakage.String()),
	)
	return scan
}

// OpenCase opens a case for a stored result. A result can back at most one case.
func (s *LeakageService) OpenCase(ctx context.Context, resultID uuid.UUID, actor string) (*CaseResponse, error) {
	result, err := s.resultRepo.FindByID(ctx, resultID)
	if err != nil {
		return nil, err
	}
	c, err := s.openCase(ctx, result, actor)
	if err != nil {
		return nil, err
	}
	resp := ToCaseResponse(c)
	return &resp, nil
}

func (s *LeakageService) openCase(ctx context.Context, result *leakage.DiscrepancyResult, actor string) (*leakage.LeakageCase, error) {
	if s.locker != nil {
		lock, err := s.locker.Acquire(ctx, "result:"+result.ID.String())
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("failed to release result lock", zap.Error(err))
			}
		}()
	}

	existing, err := s.caseRepo.FindByResultID(ctx, result.ID)
	if err == nil {
		return nil, shared.NewDomainErrorf(shared.CodeAlreadyExists, "Case %s already exists for result %s", existing.CaseNumber, result.ID)
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	c, err := s.classifier.OpenCase(result, actor, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.caseRepo.Create(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info("leakage case opened",
		zap.String("case_number", c.CaseNumber),
		zap.String("category", c.Category.String()),
		zap.String("severity", c.Severity.String()),
		zap.String("leakage_amount", c.LeakageAmount.String()),
	)
	publishEvents(ctx, s.publisher, s.logger, c)
	return c, nil
}

// GetDiscrepancy returns a stored result
func (s *LeakageService) GetDiscrepancy(ctx context.Context, id uuid.UUID) (*leakage.DiscrepancyResult, error) {
	return s.resultRepo.FindByID(ctx, id)
}

// ListDiscrepancies lists stored results
func (s *LeakageService) ListDiscrepancies(ctx context.Context, filter leakage.ResultFilter) (shared.Paginated[leakage.DiscrepancyResult], error) {
	items, total, err := s.resultRepo.FindAll(ctx, filter)
	if err != nil {
		return shared.Paginated[leakage.DiscrepancyResult]{}, err
	}
	return shared.NewPaginated(items, total, filter.Page, filter.PageSize), nil
}

// ListAllDiscrepancies returns every result matching the filter's predicates
func (s *LeakageService) ListAllDiscrepancies(ctx context.Context, filter leakage.ResultFilter) ([]leakage.DiscrepancyResult, error) {
	filter.Page = 0
	filter.PageSize = 0
	items, _, err := s.resultRepo.FindAll(ctx, filter)
	return items, err
}

// publishEvents publishes and clears the aggregate's pending events.
// Publishing failures are logged; the state change is already persisted.
func publishEvents(ctx context.Context, p shared.EventPublisher, logger *zap.Logger, agg shared.AggregateRoot) {
	events := agg.GetDomainEvents()
	agg.ClearDomainEvents()
	if p == nil || len(events) == 0 {
		return
	}
	if err := p.Publish(ctx, events...); err != nil {
		logger.Warn("failed to publish domain events",
			zap.String("aggregate_id", agg.GetID().String()),
			zap.Int("count", len(events)),
			zap.Error(err),
		)
	}
}
