package leakage

import (
	"context"

	"github.com/spendaudit/backend/internal/domain/leakage"
	"github.com/spendaudit/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// CaseAuditLogHandler writes case lifecycle events to the audit log
type CaseAuditLogHandler struct {
	logger *zap.Logger
}

// NewCaseAuditLogHandler creates a new CaseAuditLogHandler
func NewCaseAuditLogHandler(logger *zap.Logger) *CaseAuditLogHandler {
	return &CaseAuditLogHandler{logger: logger.Named("case_audit")}
}

// EventTypes returns the event types this handler is interested in
func (h *CaseAuditLogHandler) EventTypes() []string {
	return []string{
		leakage.EventTypeCaseOpened,
		leakage.EventTypeCaseStatusChanged,
		leakage.EventTypeCaseAssigned,
		leakage.EventTypeCaseRecovered,
	}
}

// Handle logs the event with its case identifiers
func (h *CaseAuditLogHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_id", event.EventID().String()),
		zap.String("event_type", event.EventType()),
		zap.String("case_id", event.AggregateID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
	}
	switch e := event.(type) {
	case *leakage.CaseOpenedEvent:
		fields = append(fields,
			zap.String("case_number", e.CaseNumber),
			zap.String("severity", e.Severity.String()),
			zap.String("leakage_amount", e.LeakageAmount.String()),
		)
	case *leakage.CaseStatusChangedEvent:
		fields = append(fields,
			zap.String("case_number", e.CaseNumber),
			zap.String("from", e.FromStatus.String()),
			zap.String("to", e.ToStatus.String()),
			zap.String("actor", e.Actor),
		)
	case *leakage.CaseAssignedEvent:
		fields = append(fields,
			zap.String("case_number", e.CaseNumber),
			zap.String("assignee", e.Assignee),
		)
	case *leakage.CaseRecoveredEvent:
		fields = append(fields,
			zap.String("case_number", e.CaseNumber),
			zap.String("recovered_amount", e.RecoveredAmount.String()),
		)
	}
	h.logger.Info("case event", fields...)
	return nil
}
