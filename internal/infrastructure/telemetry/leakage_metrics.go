package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spendaudit/backend/internal/domain/leakage"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// OpenCaseSource lists open cases for periodic gauge collection
type OpenCaseSource interface {
	FindOpen(ctx context.Context) ([]leakage.LeakageCase, error)
}

// LeakageMetricsConfig holds configuration for leakage metrics
type LeakageMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 1 minute
	Cases           OpenCaseSource
}

// LeakageMetrics records evaluation, case and SLA metrics. Amounts are
// recorded in minor currency units (paise/cents).
type LeakageMetrics struct {
	logger *zap.Logger
	cases  OpenCaseSource

	evaluationsTotal   *Counter
	evaluationFailures *Counter
	evaluationDuration *Histogram
	leakageDetected    *Counter

	casesOpened      *Counter
	caseTransitions  *Counter
	amountRecovered  *Counter
	openCases        *Gauge
	slaSweepDuration *Histogram
	slaUpdates       *Counter

	interval    time.Duration
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once
}

// NewLeakageMetrics creates a new LeakageMetrics instance
func NewLeakageMetrics(cfg LeakageMetricsConfig) (*LeakageMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := cfg.CollectInterval
	if interval <= 0 {
		interval = time.Minute
	}

	lm := &LeakageMetrics{
		logger:   logger,
		cases:    cfg.Cases,
		interval: interval,
		stopChan: make(chan struct{}),
	}

	counters := []struct {
		dst               **Counter
		name, desc, unit string
	}{
		{&lm.evaluationsTotal, "leakage_evaluations_total", "Invoices evaluated, by domain and result status", "{invoices}"},
		{&lm.evaluationFailures, "leakage_evaluation_failures_total", "Invoices that could not be evaluated", "{invoices}"},
		{&lm.leakageDetected, "leakage_detected_amount_total", "Leakage detected in minor currency units", "{minor_units}"},
		{&lm.casesOpened, "leakage_cases_opened_total", "Leakage cases opened", "{cases}"},
		{&lm.caseTransitions, "leakage_case_transitions_total", "Case lifecycle transitions", "{transitions}"},
		{&lm.amountRecovered, "leakage_recovered_amount_total", "Amount recovered in minor currency units", "{minor_units}"},
		{&lm.slaUpdates, "leakage_sla_updates_total", "SLA status changes written by sweeps", "{cases}"},
	}
	var err error
	for _, c := range counters {
		if *c.dst, err = NewCounter(cfg.Meter, c.name, c.desc, c.unit); err != nil {
			return nil, err
		}
	}

	if lm.openCases, err = NewGauge(cfg.Meter, "leakage_open_cases", "Open cases by SLA status", "{cases}"); err != nil {
		return nil, err
	}
	if lm.evaluationDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "leakage_evaluation_duration_seconds",
		Description: "Time to evaluate one invoice",
		Unit:        "s",
		Boundaries:  EvaluationDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if lm.slaSweepDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "leakage_sla_sweep_duration_seconds",
		Description: "Time to run one SLA sweep",
		Unit:        "s",
		Boundaries:  SweepDurationBuckets,
	}); err != nil {
		return nil, err
	}
	return lm, nil
}

// minorUnits converts an amount to the smallest currency unit
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// RecordEvaluation records a completed evaluation
func (lm *LeakageMetrics) RecordEvaluation(ctx context.Context, r *leakage.DiscrepancyResult, elapsed time.Duration) {
	domain := AttrDomain.String(string(r.Domain))
	lm.evaluationsTotal.Inc(ctx, domain, AttrStatus.String(string(r.Status)))
	lm.evaluationDuration.RecordDuration(ctx, elapsed, domain)
	if r.LeakageAmount.IsPositive() {
		lm.leakageDetected.Add(ctx, minorUnits(r.LeakageAmount), domain, AttrCurrency.String(string(r.Currency)))
	}
}

// RecordEvaluationFailure records an invoice that failed validation or evaluation
func (lm *LeakageMetrics) RecordEvaluationFailure(ctx context.Context, domain leakage.Domain) {
	lm.evaluationFailures.Inc(ctx, AttrDomain.String(string(domain)))
}

// RecordSLASweep records one SLA sweep
func (lm *LeakageMetrics) RecordSLASweep(ctx context.Context, checked, updated int, elapsed time.Duration) {
	lm.slaSweepDuration.RecordDuration(ctx, elapsed)
	if updated > 0 {
		lm.slaUpdates.Add(ctx, int64(updated))
	}
}

// RecordCaseOpened records a new case
func (lm *LeakageMetrics) RecordCaseOpened(ctx context.Context, e *leakage.CaseOpenedEvent) {
	lm.casesOpened.Inc(ctx,
		AttrDomain.String(string(e.Domain)),
		AttrCategory.String(string(e.Category)),
		AttrSeverity.String(string(e.Severity)),
	)
}

// RecordTransition records a lifecycle transition
func (lm *LeakageMetrics) RecordTransition(ctx context.Context, e *leakage.CaseStatusChangedEvent) {
	lm.caseTransitions.Inc(ctx,
		AttrFromStatus.String(string(e.FromStatus)),
		AttrToStatus.String(string(e.ToStatus)),
	)
}

// RecordRecovery records the amount recovered on a case
func (lm *LeakageMetrics) RecordRecovery(ctx context.Context, e *leakage.CaseRecoveredEvent) {
	lm.amountRecovered.Add(ctx, minorUnits(e.RecoveredAmount), AttrDomain.String(string(e.Domain)))
}

// StartPeriodicCollection samples open case counts every interval.
// Non-blocking; use Stop to end collection.
func (lm *LeakageMetrics) StartPeriodicCollection(ctx context.Context) {
	if lm.cases == nil {
		return
	}
	lm.collectOnce.Do(func() {
		go lm.runPeriodicCollection(ctx)
	})
}

func (lm *LeakageMetrics) runPeriodicCollection(ctx context.Context) {
	ticker := time.NewTicker(lm.interval)
	defer ticker.Stop()

	lm.CollectOpenCases(ctx)
	for {
		select {
		case <-lm.stopChan:
			lm.logger.Info("Stopping periodic leakage metrics collection")
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			lm.CollectOpenCases(ctx)
		}
	}
}

// CollectOpenCases records the open case gauge once
func (lm *LeakageMetrics) CollectOpenCases(ctx context.Context) {
	open, err := lm.cases.FindOpen(ctx)
	if err != nil {
		lm.logger.Warn("Failed to load open cases for metrics", zap.Error(err))
		return
	}
	counts := map[leakage.SLAStatus]int64{
		leakage.SLAStatusOnTrack:  0,
		leakage.SLAStatusAtRisk:   0,
		leakage.SLAStatusBreached: 0,
	}
	for i := range open {
		counts[open[i].SLAStatus]++
	}
	for status, n := range counts {
		lm.openCases.Record(ctx, n, AttrSLAStatus.String(string(status)))
	}
}

// Stop stops the periodic collection
func (lm *LeakageMetrics) Stop() {
	lm.stopOnce.Do(func() {
		close(lm.stopChan)
	})
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewLeakageMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
