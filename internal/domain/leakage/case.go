package leakage

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spendaudit/backend/internal/domain/shared"
	"github.com/spendaudit/backend/internal/domain/shared/valueobject"
)

// CaseStatus is a state of the case lifecycle
type CaseStatus string

const (
	CaseStatusNew               CaseStatus = "new"
	CaseStatusTriaged           CaseStatus = "triaged"
	CaseStatusInvestigating     CaseStatus = "investigating"
	CaseStatusPendingApproval   CaseStatus = "pending_approval"
	CaseStatusConfirmed         CaseStatus = "confirmed"
	CaseStatusRecoveryInitiated CaseStatus = "recovery_initiated"
	CaseStatusRecovered         CaseStatus = "recovered"
	CaseStatusClosed            CaseStatus = "closed"
	CaseStatusDisputed          CaseStatus = "disputed"
	CaseStatusFalsePositive     CaseStatus = "false_positive"
)

// caseTransitions lists the allowed edges of the lifecycle
var caseTransitions = map[CaseStatus][]CaseStatus{
	CaseStatusNew:               {CaseStatusTriaged, CaseStatusFalsePositive},
	CaseStatusTriaged:           {CaseStatusInvestigating, CaseStatusFalsePositive},
	CaseStatusInvestigating:     {CaseStatusPendingApproval, CaseStatusDisputed, CaseStatusFalsePositive},
	CaseStatusPendingApproval:   {CaseStatusConfirmed, CaseStatusRecoveryInitiated, CaseStatusDisputed, CaseStatusFalsePositive},
	CaseStatusConfirmed:         {CaseStatusRecoveryInitiated, CaseStatusDisputed, CaseStatusFalsePositive},
	CaseStatusRecoveryInitiated: {CaseStatusRecovered},
	CaseStatusRecovered:         {CaseStatusClosed},
	CaseStatusDisputed:          {CaseStatusInvestigating, CaseStatusClosed, CaseStatusFalsePositive},
}

// AllCaseStatuses returns every lifecycle state
func AllCaseStatuses() []CaseStatus {
	return []CaseStatus{
		CaseStatusNew, CaseStatusTriaged, CaseStatusInvestigating, CaseStatusPendingApproval,
		CaseStatusConfirmed, CaseStatusRecoveryInitiated, CaseStatusRecovered, CaseStatusClosed,
		CaseStatusDisputed, CaseStatusFalsePositive,
	}
}

// IsValid checks if the status is a lifecycle state
func (s CaseStatus) IsValid() bool {
	for _, v := range AllCaseStatuses() {
		if v == s {
			return true
		}
	}
	return false
}

// String returns the string representation of CaseStatus
func (s CaseStatus) String() string {
	return string(s)
}

// IsTerminal returns true for closed and false_positive
func (s CaseStatus) IsTerminal() bool {
	return s == CaseStatusClosed || s == CaseStatusFalsePositive
}

// CanTransitionTo reports whether to is an allowed next state
func (s CaseStatus) CanTransitionTo(to CaseStatus) bool {
	for _, next := range caseTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the states reachable in one transition
func (s CaseStatus) NextStatuses() []CaseStatus {
	return append([]CaseStatus(nil), caseTransitions[s]...)
}

// requiresVerification marks states a case cannot enter while its
// evidence is pending verification
func (s CaseStatus) requiresVerification() bool {
	switch s {
	case CaseStatusPendingApproval, CaseStatusConfirmed, CaseStatusRecoveryInitiated, CaseStatusRecovered:
		return true
	}
	return false
}

// SubStatus qualifies a case status
type SubStatus string

const (
	SubStatusNone                SubStatus = ""
	SubStatusPendingVerification SubStatus = "pending_verification"
)

// SLAStatus is the urgency of an open case relative to its due date
type SLAStatus string

const (
	SLAStatusOnTrack  SLAStatus = "on_track"
	SLAStatusAtRisk   SLAStatus = "at_risk"
	SLAStatusBreached SLAStatus = "breached"
)

// IsValid checks if the SLA status is known
func (s SLAStatus) IsValid() bool {
	return s == SLAStatusOnTrack || s == SLAStatusAtRisk || s == SLAStatusBreached
}

// ActivityType groups ledger entries
type ActivityType string

const (
	ActivityCreated      ActivityType = "created"
	ActivityStatusChange ActivityType = "status_change"
	ActivityAssignment   ActivityType = "assignment"
	ActivityEvidence     ActivityType = "evidence"
	ActivityComment      ActivityType = "comment"
	ActivityRecovery     ActivityType = "recovery"
	ActivityVerification ActivityType = "verification"
)

// Activity is an immutable ledger entry recorded on every case mutation
type Activity struct {
	ID         uuid.UUID    `json:"id"`
	Timestamp  time.Time    `json:"timestamp"`
	Action     string       `json:"action"`
	User       string       `json:"user"`
	Details    string       `json:"details"`
	Type       ActivityType `json:"type"`
	FromStatus CaseStatus   `json:"from_status,omitempty"`
	ToStatus   CaseStatus   `json:"to_status,omitempty"`
}

// Evidence is a document attached to a case
type Evidence struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	URI         string    `json:"uri"`
	Description string    `json:"description"`
	UploadedBy  string    `json:"uploaded_by"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// LeakageCase is the aggregate root for an investigation into a discrepancy
type LeakageCase struct {
	shared.BaseAggregateRoot
	CaseNumber          string
	Category            Category
	Severity            Severity
	Priority            Priority
	Status              CaseStatus
	SubStatus           SubStatus
	LeakageAmount       decimal.Decimal
	RecoveredAmount     decimal.Decimal
	Currency            valueobject.Currency
	Vendor              string
	Domain              Domain
	InvoiceID           uuid.UUID
	InvoiceNumber       string
	ResultID            uuid.UUID
	Title               string
	Assignee            *string
	DueDate             time.Time
	SLAStatus           SLAStatus
	RelatedTransactions []string
	Activities          []Activity
	Evidence            []Evidence
	RecoveredAt         *time.Time
	ClosedAt            *time.Time
}

// NewCaseParams carries the classifier's decisions for a new case
type NewCaseParams struct {
	CaseNumber string
	Result     *DiscrepancyResult
	Category   Category
	Severity   Severity
	Priority   Priority
	DueDate    time.Time
	Actor      string
	OpenedAt   time.Time
}

// NewLeakageCase creates a case in status new with a creation activity
func NewLeakageCase(p NewCaseParams) (*LeakageCase, error) {
	if p.Result == nil {
		return nil, validationError("discrepancy result is required")
	}
	if strings.TrimSpace(p.CaseNumber) == "" {
		return nil, validationError("case number is required")
	}
	if !p.Severity.IsValid() || !p.Priority.IsValid() {
		return nil, validationError("severity and priority are required")
	}
	if !p.DueDate.After(p.OpenedAt) {
		return nil, validationError("due date must be after the open time")
	}
	r := p.Result
	c := &LeakageCase{
		BaseAggregateRoot:   shared.NewBaseAggregateRoot(),
		CaseNumber:          p.CaseNumber,
		Category:            p.Category,
		Severity:            p.Severity,
		Priority:            p.Priority,
		Status:              CaseStatusNew,
		LeakageAmount:       decimal.Max(r.LeakageAmount, decimal.Zero),
		RecoveredAmount:     decimal.Zero,
		Currency:            r.Currency,
		Vendor:              r.Vendor,
		Domain:              r.Domain,
		InvoiceID:           r.InvoiceID,
		InvoiceNumber:       r.InvoiceNumber,
		ResultID:            r.ID,
		Title:               fmt.Sprintf("%s: %s on %s", p.Category.Label(), r.Status, r.InvoiceNumber),
		DueDate:             p.DueDate,
		SLAStatus:           SLAStatusOnTrack,
		RelatedTransactions: append([]string(nil), r.RelatedTransactions...),
	}
	c.CreatedAt = p.OpenedAt
	c.UpdatedAt = p.OpenedAt
	if r.PendingVerification {
		c.SubStatus = SubStatusPendingVerification
	}
	c.appendActivity(Activity{
		Timestamp: p.OpenedAt,
		Action:    "Case opened",
		User:      actorOrSystem(p.Actor),
		Details:   fmt.Sprintf("Opened from %s result with leakage %s", r.Status, c.LeakageAmount.String()),
		Type:      ActivityCreated,
		ToStatus:  CaseStatusNew,
	})
	c.AddDomainEvent(NewCaseOpenedEvent(c))
	return c, nil
}

// Transition moves the case along an allowed edge and appends one activity.
// Transitions into recovered must go through MarkRecovered.
func (c *LeakageCase) Transition(to CaseStatus, actor, note string, at time.Time) error {
	if !to.IsValid() {
		return validationError("unknown case status %q", to)
	}
	if to == CaseStatusRecovered {
		return shared.NewDomainError(shared.CodeInvalidTransition, "Transition to recovered requires a recovered amount")
	}
	if err := c.checkTransition(to); err != nil {
		return err
	}
	from := c.Status
	c.applyStatus(to, at)
	c.record(Activity{
		Timestamp:  at,
		Action:     fmt.Sprintf("Status changed from %s to %s", from, to),
		User:       actorOrSystem(actor),
		Details:    note,
		Type:       ActivityStatusChange,
		FromStatus: from,
		ToStatus:   to,
	}, at)
	c.AddDomainEvent(NewCaseStatusChangedEvent(c, from, to, actor))
	return nil
}

// MarkRecovered records the recovered amount and moves the case to recovered
// in a single step
func (c *LeakageCase) MarkRecovered(amount decimal.Decimal, actor, note string, at time.Time) error {
	if err := c.checkTransition(CaseStatusRecovered); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return validationError("recovered amount must be positive")
	}
	if amount.GreaterThan(c.LeakageAmount) {
		return validationError("recovered amount %s exceeds leakage amount %s", amount.String(), c.LeakageAmount.String())
	}
	from := c.Status
	c.RecoveredAmount = amount
	recoveredAt := at
	c.RecoveredAt = &recoveredAt
	c.applyStatus(CaseStatusRecovered, at)
	details := fmt.Sprintf("Recovered %s of %s", amount.String(), c.LeakageAmount.String())
	if note != "" {
		details += ": " + note
	}
	c.record(Activity{
		Timestamp:  at,
		Action:     "Recovery recorded",
		User:       actorOrSystem(actor),
		Details:    details,
		Type:       ActivityRecovery,
		FromStatus: from,
		ToStatus:   CaseStatusRecovered,
	}, at)
	c.AddDomainEvent(NewCaseRecoveredEvent(c, actor))
	return nil
}

// Assign sets or clears the assignee
func (c *LeakageCase) Assign(assignee, actor string, at time.Time) error {
	if err := c.ensureOpen("assign"); err != nil {
		return err
	}
	assignee = strings.TrimSpace(assignee)
	previous := ""
	if c.Assignee != nil {
		previous = *c.Assignee
	}
	details := fmt.Sprintf("Assigned to %s", assignee)
	if assignee == "" {
		c.Assignee = nil
		details = "Assignment cleared"
	} else {
		c.Assignee = &assignee
	}
	if previous != "" {
		details += fmt.Sprintf(" (was %s)", previous)
	}
	c.record(Activity{
		Timestamp: at,
		Action:    "Case assigned",
		User:      actorOrSystem(actor),
		Details:   details,
		Type:      ActivityAssignment,
	}, at)
	c.AddDomainEvent(NewCaseAssignedEvent(c, actor))
	return nil
}

// AttachEvidence appends an evidence record
func (c *LeakageCase) AttachEvidence(ev Evidence, actor string, at time.Time) (*Evidence, error) {
	if err := c.ensureOpen("attach evidence to"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(ev.Name) == "" {
		return nil, validationError("evidence name is required")
	}
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.UploadedBy == "" {
		ev.UploadedBy = actorOrSystem(actor)
	}
	ev.UploadedAt = at
	c.Evidence = append(c.Evidence, ev)
	c.record(Activity{
		Timestamp: at,
		Action:    "Evidence attached",
		User:      actorOrSystem(actor),
		Details:   ev.Name,
		Type:      ActivityEvidence,
	}, at)
	return &c.Evidence[len(c.Evidence)-1], nil
}

// AddComment appends a comment activity
func (c *LeakageCase) AddComment(actor, text string, at time.Time) error {
	if err := c.ensureOpen("comment on"); err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return validationError("comment cannot be empty")
	}
	c.record(Activity{
		Timestamp: at,
		Action:    "Comment added",
		User:      actorOrSystem(actor),
		Details:   text,
		Type:      ActivityComment,
	}, at)
	return nil
}

// ResolveVerification clears the pending verification sub-status
func (c *LeakageCase) ResolveVerification(actor, note string, at time.Time) error {
	if err := c.ensureOpen("resolve verification on"); err != nil {
		return err
	}
	if c.SubStatus != SubStatusPendingVerification {
		return shared.NewDomainError(shared.CodeInvalidState, "Case is not pending verification")
	}
	c.SubStatus = SubStatusNone
	c.record(Activity{
		Timestamp: at,
		Action:    "Verification resolved",
		User:      actorOrSystem(actor),
		Details:   note,
		Type:      ActivityVerification,
	}, at)
	return nil
}

// IsTerminal returns true if the case can no longer change
func (c *LeakageCase) IsTerminal() bool {
	return c.Status.IsTerminal()
}

// IsPendingVerification returns true while verification blocks approval
func (c *LeakageCase) IsPendingVerification() bool {
	return c.SubStatus == SubStatusPendingVerification
}

// OutstandingAmount returns leakage not yet recovered
func (c *LeakageCase) OutstandingAmount() decimal.Decimal {
	return c.LeakageAmount.Sub(c.RecoveredAmount)
}

// SLAWindow returns the original time allowed for the case
func (c *LeakageCase) SLAWindow() time.Duration {
	return c.DueDate.Sub(c.CreatedAt)
}

// Clone returns a deep copy without pending domain events
func (c *LeakageCase) Clone() *LeakageCase {
	cp := *c
	cp.ClearDomainEvents()
	if c.Assignee != nil {
		a := *c.Assignee
		cp.Assignee = &a
	}
	if c.RecoveredAt != nil {
		t := *c.RecoveredAt
		cp.RecoveredAt = &t
	}
	if c.ClosedAt != nil {
		t := *c.ClosedAt
		cp.ClosedAt = &t
	}
	cp.RelatedTransactions = append([]string(nil), c.RelatedTransactions...)
	cp.Activities = append([]Activity(nil), c.Activities...)
	cp.Evidence = append([]Evidence(nil), c.Evidence...)
	return &cp
}

func (c *LeakageCase) checkTransition(to CaseStatus) error {
	if !c.Status.CanTransitionTo(to) {
		return shared.NewDomainErrorf(shared.CodeInvalidTransition, "Cannot transition case %s from %s to %s", c.CaseNumber, c.Status, to)
	}
	if to.requiresVerification() && c.IsPendingVerification() {
		return shared.NewDomainErrorf(shared.CodeInvalidTransition, "Case %s is pending verification and cannot move to %s", c.CaseNumber, to)
	}
	return nil
}

func (c *LeakageCase) ensureOpen(action string) error {
	if c.IsTerminal() {
		return shared.NewDomainErrorf(shared.CodeInvalidState, "Cannot %s case in %s status", action, c.Status)
	}
	return nil
}

func (c *LeakageCase) applyStatus(to CaseStatus, at time.Time) {
	c.Status = to
	if to.IsTerminal() {
		closedAt := at
		c.ClosedAt = &closedAt
	}
}

// record appends an activity and bumps the version
func (c *LeakageCase) record(a Activity, at time.Time) {
	c.appendActivity(a)
	c.Touch(at)
	c.IncrementVersion()
}

func (c *LeakageCase) appendActivity(a Activity) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	c.Activities = append(c.Activities, a)
}

func actorOrSystem(actor string) string {
	if strings.TrimSpace(actor) == "" {
		return "system"
	}
	return actor
}
