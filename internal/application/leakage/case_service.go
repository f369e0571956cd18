package leakage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spendaudit/backend/internal/domain/leakage"
	"github.com/spendaudit/backend/internal/domain/shared"
	"go.uber.org/zap"
)

const defaultMaxRetries = 3

// CaseService applies lifecycle commands to cases with single-writer-per-case
// semantics: a keyed lock around load, mutate and a version-checked save.
type CaseService struct {
	caseRepo   leakage.CaseRepository
	locker     Locker
	publisher  shared.EventPublisher
	logger     *zap.Logger
	now        func() time.Time
	maxRetries int
}

// CaseServiceOption is a functional option for configuring CaseService
type CaseServiceOption func(*CaseService)

// WithCaseEventPublisher publishes case events after they are persisted
func WithCaseEventPublisher(p shared.EventPublisher) CaseServiceOption {
	return func(s *CaseService) {
		s.publisher = p
	}
}

// WithCaseLogger sets the logger
func WithCaseLogger(l *zap.Logger) CaseServiceOption {
	return func(s *CaseService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCaseClock overrides the clock
func WithCaseClock(now func() time.Time) CaseServiceOption {
	return func(s *CaseService) {
		s.now = now
	}
}

// WithMaxRetries sets how many times a version conflict is retried
func WithMaxRetries(n int) CaseServiceOption {
	return func(s *CaseService) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

// NewCaseService creates a new CaseService
func NewCaseService(caseRepo leakage.CaseRepository, locker Locker, opts ...CaseServiceOption) *CaseService {
	s := &CaseService{
		caseRepo:   caseRepo,
		locker:     locker,
		logger:     zap.NewNop(),
		now:        time.Now,
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TransitionCommand moves a case to a new status
type TransitionCommand struct {
	CaseID uuid.UUID
	To     leakage.CaseStatus
	Actor  string
	Note   string
}

// Transition moves a case along an allowed lifecycle edge
func (s *CaseService) Transition(ctx context.Context, cmd TransitionCommand) (*CaseResponse, error) {
	return s.mutate(ctx, cmd.CaseID, "transition", func(c *leakage.LeakageCase, at time.Time) error {
		return c.Transition(cmd.To, cmd.Actor, cmd.Note, at)
	})
}

// Assign sets or clears the case assignee
func (s *CaseService) Assign(ctx context.Context, caseID uuid.UUID, assignee, actor string) (*CaseResponse, error) {
	return s.mutate(ctx, caseID, "assign", func(c *leakage.LeakageCase, at time.Time) error {
		return c.Assign(assignee, actor, at)
	})
}

// AttachEvidence appends evidence to a case
func (s *CaseService) AttachEvidence(ctx context.Context, caseID uuid.UUID, ev leakage.Evidence, actor string) (*CaseResponse, error) {
	return s.mutate(ctx, caseID, "attach_evidence", func(c *leakage.LeakageCase, at time.Time) error {
		_, err := c.AttachEvidence(ev, actor, at)
		return err
	})
}

// AddComment appends a comment to a case
func (s *CaseService) AddComment(ctx context.Context, caseID uuid.UUID, actor, text string) (*CaseResponse, error) {
	return s.mutate(ctx, caseID, "comment", func(c *leakage.LeakageCase, at time.Time) error {
		return c.AddComment(actor, text, at)
	})
}

// ResolveVerification clears a pending verification sub-status
func (s *CaseService) ResolveVerification(ctx context.Context, caseID uuid.UUID, actor, note string) (*CaseResponse, error) {
	return s.mutate(ctx, caseID, "resolve_verification", func(c *leakage.LeakageCase, at time.Time) error {
		return c.ResolveVerification(actor, note, at)
	})
}

// MarkRecovered records the recovered amount and moves the case to recovered
func (s *CaseService) MarkRecovered(ctx context.Context, caseID uuid.UUID, amount decimal.Decimal, actor, note string) (*CaseResponse, error) {
	return s.mutate(ctx, caseID, "mark_recovered", func(c *leakage.LeakageCase, at time.Time) error {
		return c.MarkRecovered(amount, actor, note, at)
	})
}

// GetCase returns a case by ID
func (s *CaseService) GetCase(ctx context.Context, id uuid.UUID) (*CaseResponse, error) {
	c, err := s.caseRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToCaseResponse(c)
	return &resp, nil
}

// GetCaseByNumber returns a case by its case number
func (s *CaseService) GetCaseByNumber(ctx context.Context, caseNumber string) (*CaseResponse, error) {
	c, err := s.caseRepo.FindByCaseNumber(ctx, caseNumber)
	if err != nil {
		return nil, err
	}
	resp := ToCaseResponse(c)
	return &resp, nil
}

// ListCases lists cases matching the filter
func (s *CaseService) ListCases(ctx context.Context, filter leakage.CaseFilter) (shared.Paginated[CaseResponse], error) {
	cases, total, err := s.caseRepo.FindAll(ctx, filter)
	if err != nil {
		return shared.Paginated[CaseResponse]{}, err
	}
	return shared.NewPaginated(ToCaseResponses(cases), total, filter.Page, filter.PageSize), nil
}

// ListAllCases returns every case matching the filter's predicates
func (s *CaseService) ListAllCases(ctx context.Context, filter leakage.CaseFilter) ([]leakage.LeakageCase, error) {
	filter.Page = 0
	filter.PageSize = 0
	cases, _, err := s.caseRepo.FindAll(ctx, filter)
	return cases, err
}

// mutate runs fn against fresh state under the case lock and saves with a
// version check, retrying on conflicts
func (s *CaseService) mutate(ctx context.Context, id uuid.UUID, op string, fn func(*leakage.LeakageCase, time.Time) error) (*CaseResponse, error) {
	lock, err := s.locker.Acquire(ctx, "case:"+id.String())
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("failed to release case lock", zap.String("case_id", id.String()), zap.Error(err))
		}
	}()

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		c, err := s.caseRepo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := fn(c, s.now()); err != nil {
			return nil, err
		}
		err = s.caseRepo.SaveWithLock(ctx, c)
		if err == nil {
			s.logger.Info("case updated",
				zap.String("case_number", c.CaseNumber),
				zap.String("operation", op),
				zap.String("status", c.Status.String()),
				zap.Int("version", c.Version),
			)
			publishEvents(ctx, s.publisher, s.logger, c)
			resp := ToCaseResponse(c)
			return &resp, nil
		}
		if !errors.Is(err, shared.ErrConcurrencyConflict) {
			return nil, err
		}
		s.logger.Debug("case version conflict, retrying",
			zap.String("case_id", id.String()),
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
		)
	}
	return nil, shared.NewDomainErrorf(shared.CodeConcurrencyConflict,
		"Case %s was modified concurrently; %s failed after %d attempts", id, op, s.maxRetries+1)
}
