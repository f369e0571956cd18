package leakage

import (
	"context"
	"errors"
	"time"

	"github.com/spendaudit/backend/internal/domain/leakage"
	"go.uber.org/zap"
)

// SweepResult summarizes one SLA sweep
type SweepResult struct {
	Checked  int            `json:"checked"`
	Updated  int            `json:"updated"`
	Counts   map[string]int `json:"counts"`
	SweptAt  time.Time      `json:"swept_at"`
	Duration string         `json:"duration"`
}

// SLAService recomputes the SLA status of open cases.
// It writes only the SLA status field and records no activities.
type SLAService struct {
	caseRepo       leakage.CaseRepository
	atRiskFraction float64
	metrics        Metrics
	logger         *zap.Logger
	now            func() time.Time
}

// NewSLAService creates a new SLAService
func NewSLAService(caseRepo leakage.CaseRepository, atRiskFraction float64, logger *zap.Logger, metrics Metrics) *SLAService {
	if atRiskFraction <= 0 || atRiskFraction >= 1 {
		atRiskFraction = leakage.DefaultAtRiskFraction
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &SLAService{
		caseRepo:       caseRepo,
		atRiskFraction: atRiskFraction,
		metrics:        metrics,
		logger:         logger,
		now:            time.Now,
	}
}

// SetClock overrides the clock
func (s *SLAService) SetClock(now func() time.Time) {
	s.now = now
}

// Sweep evaluates every open case and writes changed SLA statuses.
// Running it again at the same instant changes nothing.
func (s *SLAService) Sweep(ctx context.Context) (*SweepResult, error) {
	start := time.Now()
	now := s.now()
	cases, err := s.caseRepo.FindOpen(ctx)
	if err != nil {
		return nil, err
	}

	res := &SweepResult{Counts: make(map[string]int), SweptAt: now}
	for i := range cases {
		c := &cases[i]
		if c.IsTerminal() {
			continue
		}
		res.Checked++
		status := c.SLAStatusAt(now, s.atRiskFraction)
		res.Counts[string(status)]++
		if status == c.SLAStatus {
			continue
		}
		if err := s.caseRepo.UpdateSLAStatus(ctx, c.ID, status); err != nil {
			if errors.Is(err, leakage.ErrCaseClosed) {
				s.logger.Debug("case closed during sweep", zap.String("case_number", c.CaseNumber))
				continue
			}
			s.logger.Error("failed to update SLA status",
				zap.String("case_number", c.CaseNumber),
				zap.Error(err),
			)
			continue
		}
		res.Updated++
		if status == leakage.SLAStatusBreached {
			s.logger.Warn("case SLA breached",
				zap.String("case_number", c.CaseNumber),
				zap.Time("due_date", c.DueDate),
			)
		}
	}
	elapsed := time.Since(start)
	res.Duration = elapsed.String()
	s.metrics.RecordSLASweep(ctx, res.Checked, res.Updated, elapsed)
	s.logger.Debug("SLA sweep completed",
		zap.Int("checked", res.Checked),
		zap.Int("updated", res.Updated),
	)
	return res, nil
}
