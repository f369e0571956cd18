package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	appleakage "github.com/spendaudit/backend/internal/application/leakage"
	"github.com/spendaudit/backend/internal/domain/leakage"
	"github.com/spendaudit/backend/internal/domain/shared"
	"github.com/spendaudit/backend/internal/infrastructure/event"
	"github.com/spendaudit/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
)

var _ appleakage.Metrics = (*telemetry.LeakageMetrics)(nil)

type stubOpenCases struct {
	cases []leakage.LeakageCase
	err   error
}

func (s stubOpenCases) FindOpen(context.Context) ([]leakage.LeakageCase, error) {
	return s.cases, s.err
}

func newLeakageMetrics(t *testing.T, src telemetry.OpenCaseSource) (*telemetry.LeakageMetrics, func() map[string]metricdata.Aggregation) {
	t.Helper()
	reader, provider := newManualMeter(t)
	lm, err := telemetry.NewLeakageMetrics(telemetry.LeakageMetricsConfig{
		Meter:  provider.Meter("leakage"),
		Logger: zaptest.NewLogger(t),
		Cases:  src,
	})
	require.NoError(t, err)
	return lm, func() map[string]metricdata.Aggregation { return collect(t, reader) }
}

func TestNewLeakageMetrics_NilMeter(t *testing.T) {
	lm, err := telemetry.NewLeakageMetrics(telemetry.LeakageMetricsConfig{})
	require.Error(t, err)
	assert.Nil(t, lm)
	assert.Equal(t, "NewLeakageMetrics: meter cannot be nil", err.Error())
}

func TestLeakageMetrics_RecordEvaluation(t *testing.T) {
	lm, collectNow := newLeakageMetrics(t, nil)
	ctx := context.Background()

	lm.RecordEvaluation(ctx, &leakage.DiscrepancyResult{
		Domain:        leakage.DomainLogistics,
		Status:        leakage.ResultStatusFlagged,
		Currency:      "INR",
		LeakageAmount: decimal.RequireFromString("7130.50"),
	}, 3*time.Millisecond)
	lm.RecordEvaluation(ctx, &leakage.DiscrepancyResult{
		Domain:        leakage.DomainSaaS,
		Status:        leakage.ResultStatusCompliant,
		Currency:      "INR",
		LeakageAmount: decimal.Zero,
	}, time.Millisecond)
	lm.RecordEvaluationFailure(ctx, leakage.DomainMarketing)
	lm.RecordSLASweep(ctx, 10, 2, 50*time.Millisecond)

	data := collectNow()
	assert.Equal(t, int64(2), sumInt(t, data["leakage_evaluations_total"]))
	assert.Equal(t, int64(713050), sumInt(t, data["leakage_detected_amount_total"]))
	assert.Equal(t, int64(1), sumInt(t, data["leakage_evaluation_failures_total"]))
	assert.Equal(t, int64(2), sumInt(t, data["leakage_sla_updates_total"]))
}

func TestCaseMetricsHandler_ThroughEventBus(t *testing.T) {
	lm, collectNow := newLeakageMetrics(t, nil)
	bus := event.NewInMemoryEventBus(zaptest.NewLogger(t))
	bus.Subscribe(telemetry.NewCaseMetricsHandler(lm))
	ctx := context.Background()

	now := time.Date(2024, 11, 4, 10, 0, 0, 0, time.UTC)
	result := &leakage.DiscrepancyResult{
		ID:            uuid.New(),
		InvoiceID:     uuid.New(),
		InvoiceNumber: "INV-77",
		Domain:        leakage.DomainLogistics,
		Vendor:        "FastFreight Logistics",
		Currency:      "INR",
		Status:        leakage.ResultStatusFlagged,
		LeakageAmount: decimal.NewFromInt(7130),
	}
	c, err := leakage.NewLeakageCase(leakage.NewCaseParams{
		CaseNumber: "LC-TEST",
		Result:     result,
		Category:   leakage.CategoryRateCard,
		Severity:   leakage.SeverityHigh,
		Priority:   leakage.PriorityHigh,
		DueDate:    now.Add(72 * time.Hour),
		OpenedAt:   now,
	})
	require.NoError(t, err)
	require.NoError(t, c.Transition(leakage.CaseStatusTriaged, "lead", "", now.Add(time.Hour)))

	events := c.GetDomainEvents()
	events = append(events, &leakage.CaseRecoveredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(leakage.EventTypeCaseRecovered, leakage.AggregateTypeLeakageCase, c.ID, now),
		Domain:          leakage.DomainLogistics,
		RecoveredAmount: decimal.NewFromInt(5000),
	})
	require.NoError(t, bus.Publish(ctx, events...))

	data := collectNow()
	assert.Equal(t, int64(1), sumInt(t, data["leakage_cases_opened_total"]))
	assert.Equal(t, int64(1), sumInt(t, data["leakage_case_transitions_total"]))
	assert.Equal(t, int64(500000), sumInt(t, data["leakage_recovered_amount_total"]))
}

func TestLeakageMetrics_CollectOpenCases(t *testing.T) {
	src := stubOpenCases{cases: []leakage.LeakageCase{
		{SLAStatus: leakage.SLAStatusOnTrack},
		{SLAStatus: leakage.SLAStatusBreached},
		{SLAStatus: leakage.SLAStatusBreached},
	}}
	lm, collectNow := newLeakageMetrics(t, src)
	lm.CollectOpenCases(context.Background())

	gauge, ok := collectNow()["leakage_open_cases"].(metricdata.Gauge[int64])
	require.True(t, ok)
	values := make(map[string]int64)
	for _, dp := range gauge.DataPoints {
		v, _ := dp.Attributes.Value(telemetry.AttrSLAStatus)
		values[v.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"on_track": 1, "at_risk": 0, "breached": 2}, values)
}

func TestLeakageMetrics_PeriodicCollection(t *testing.T) {
	lm, _ := newLeakageMetrics(t, stubOpenCases{err: errors.New("db down")})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// errors are logged, not fatal
	lm.StartPeriodicCollection(ctx)
	lm.StartPeriodicCollection(ctx)
	time.Sleep(10 * time.Millisecond)
	lm.Stop()
	lm.Stop()
}
