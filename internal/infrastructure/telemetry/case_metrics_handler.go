package telemetry

import (
	"context"

	"github.com/spendaudit/backend/internal/domain/leakage"
	"github.com/spendaudit/backend/internal/domain/shared"
)

// CaseMetricsHandler subscribes to case events and feeds LeakageMetrics
type CaseMetricsHandler struct {
	metrics *LeakageMetrics
}

// NewCaseMetricsHandler creates a CaseMetricsHandler
func NewCaseMetricsHandler(m *LeakageMetrics) *CaseMetricsHandler {
	return &CaseMetricsHandler{metrics: m}
}

// Name returns the handler name used in logs
func (h *CaseMetricsHandler) Name() string {
	return "case_metrics"
}

// EventTypes returns the case events this handler records
func (h *CaseMetricsHandler) EventTypes() []string {
	return []string{
		leakage.EventTypeCaseOpened,
		leakage.EventTypeCaseStatusChanged,
		leakage.EventTypeCaseRecovered,
	}
}

// Handle records one case event
func (h *CaseMetricsHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *leakage.CaseOpenedEvent:
		h.metrics.RecordCaseOpened(ctx, e)
	case *leakage.CaseStatusChangedEvent:
		h.metrics.RecordTransition(ctx, e)
	case *leakage.CaseRecoveredEvent:
		h.metrics.RecordRecovery(ctx, e)
	}
	return nil
}

var _ shared.EventHandler = (*CaseMetricsHandler)(nil)
