package leakage

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spendaudit/backend/internal/domain/shared"
)

// Event type names
const (
	EventTypeCaseOpened        = "CaseOpened"
	EventTypeCaseStatusChanged = "CaseStatusChanged"
	EventTypeCaseAssigned      = "CaseAssigned"
	EventTypeCaseRecovered     = "CaseRecovered"
)

// AggregateTypeLeakageCase is the aggregate type recorded on case events
const AggregateTypeLeakageCase = "LeakageCase"

// CaseOpenedEvent is raised when a case is opened from a discrepancy result
type CaseOpenedEvent struct {
	shared.BaseDomainEvent
	CaseID        uuid.UUID       `json:"case_id"`
	CaseNumber    string          `json:"case_number"`
	Domain        Domain          `json:"domain"`
	Category      Category        `json:"category"`
	Severity      Severity        `json:"severity"`
	Vendor        string          `json:"vendor"`
	LeakageAmount decimal.Decimal `json:"leakage_amount"`
}

// EventType returns the event type name
func (e *CaseOpenedEvent) EventType() string {
	return EventTypeCaseOpened
}

// NewCaseOpenedEvent creates a CaseOpenedEvent
func NewCaseOpenedEvent(c *LeakageCase) *CaseOpenedEvent {
	return &CaseOpenedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCaseOpened, AggregateTypeLeakageCase, c.ID, c.CreatedAt),
		CaseID:          c.ID,
		CaseNumber:      c.CaseNumber,
		Domain:          c.Domain,
		Category:        c.Category,
		Severity:        c.Severity,
		Vendor:          c.Vendor,
		LeakageAmount:   c.LeakageAmount,
	}
}

// CaseStatusChangedEvent is raised on every lifecycle transition
type CaseStatusChangedEvent struct {
	shared.BaseDomainEvent
	CaseID     uuid.UUID  `json:"case_id"`
	CaseNumber string     `json:"case_number"`
	Domain     Domain     `json:"domain"`
	FromStatus CaseStatus `json:"from_status"`
	ToStatus   CaseStatus `json:"to_status"`
	Actor      string     `json:"actor"`
}

// EventType returns the event type name
func (e *CaseStatusChangedEvent) EventType() string {
	return EventTypeCaseStatusChanged
}

// NewCaseStatusChangedEvent creates a CaseStatusChangedEvent
func NewCaseStatusChangedEvent(c *LeakageCase, from, to CaseStatus, actor string) *CaseStatusChangedEvent {
	return &CaseStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCaseStatusChanged, AggregateTypeLeakageCase, c.ID, c.UpdatedAt),
		CaseID:          c.ID,
		CaseNumber:      c.CaseNumber,
		Domain:          c.Domain,
		FromStatus:      from,
		ToStatus:        to,
		Actor:           actor,
	}
}

// CaseAssignedEvent is raised when the assignee changes
type CaseAssignedEvent struct {
	shared.BaseDomainEvent
	CaseID     uuid.UUID `json:"case_id"`
	CaseNumber string    `json:"case_number"`
	Assignee   string    `json:"assignee"`
	Actor      string    `json:"actor"`
}

// EventType returns the event type name
func (e *CaseAssignedEvent) EventType() string {
	return EventTypeCaseAssigned
}

// NewCaseAssignedEvent creates a CaseAssignedEvent
func NewCaseAssignedEvent(c *LeakageCase, actor string) *CaseAssignedEvent {
	assignee := ""
	if c.Assignee != nil {
		assignee = *c.Assignee
	}
	return &CaseAssignedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCaseAssigned, AggregateTypeLeakageCase, c.ID, c.UpdatedAt),
		CaseID:          c.ID,
		CaseNumber:      c.CaseNumber,
		Assignee:        assignee,
		Actor:           actor,
	}
}

// CaseRecoveredEvent is raised when money is recovered on a case
type CaseRecoveredEvent struct {
	shared.BaseDomainEvent
	CaseID          uuid.UUID       `json:"case_id"`
	CaseNumber      string          `json:"case_number"`
	Domain          Domain          `json:"domain"`
	Vendor          string          `json:"vendor"`
	LeakageAmount   decimal.Decimal `json:"leakage_amount"`
	RecoveredAmount decimal.Decimal `json:"recovered_amount"`
	Actor           string          `json:"actor"`
}

// EventType returns the event type name
func (e *CaseRecoveredEvent) EventType() string {
	return EventTypeCaseRecovered
}

// NewCaseRecoveredEvent creates a CaseRecoveredEvent
func NewCaseRecoveredEvent(c *LeakageCase, actor string) *CaseRecoveredEvent {
	return &CaseRecoveredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCaseRecovered, AggregateTypeLeakageCase, c.ID, c.UpdatedAt),
		CaseID:          c.ID,
		CaseNumber:      c.CaseNumber,
		Domain:          c.Domain,
		Vendor:          c.Vendor,
		LeakageAmount:   c.LeakageAmount,
		RecoveredAmount: c.RecoveredAmount,
		Actor:           actor,
	}
}
