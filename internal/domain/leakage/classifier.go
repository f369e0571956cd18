package leakage

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

// Category of a leakage case
type Category string

const (
	CategoryRateCard          Category = "rate_card"
	CategoryLicenseCompliance Category = "license_compliance"
	CategoryFeeStructure      Category = "fee_structure"
	CategoryDeliverable       Category = "deliverable"
	CategoryPriceVariance     Category = "price_variance"
	CategoryDuplicatePayment  Category = "duplicate_payment"
	CategoryAddendumTiming    Category = "addendum_timing"
	CategoryContract          Category = "contract"
	CategoryReferenceData     Category = "reference_data"
)

// String returns the string representation of Category
func (c Category) String() string {
	return string(c)
}

// Label returns a human readable category name
func (c Category) Label() string {
	words := strings.Split(string(c), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// CategoryFor returns the case category for a domain
func CategoryFor(d Domain) Category {
	switch d {
	case DomainLogistics:
		return CategoryRateCard
	case DomainSaaS:
		return CategoryLicenseCompliance
	case DomainRecruitment:
		return CategoryFeeStructure
	case DomainMarketing:
		return CategoryDeliverable
	case DomainInfrastructure:
		return CategoryPriceVariance
	case DomainDuplicate:
		return CategoryDuplicatePayment
	case DomainAddendum:
		return CategoryAddendumTiming
	}
	return CategoryContract
}

// SeverityThresholds are the leakage amounts at which severity steps up
type SeverityThresholds struct {
	Critical decimal.Decimal `json:"critical"`
	High     decimal.Decimal `json:"high"`
	Medium   decimal.Decimal `json:"medium"`
}

// CasePolicy configures the classifier
type CasePolicy struct {
	Severity   SeverityThresholds
	SLAWindows map[Severity]time.Duration
}

// DefaultCasePolicy returns the standard severity bands and SLA windows
func DefaultCasePolicy() CasePolicy {
	day := 24 * time.Hour
	return CasePolicy{
		Severity: SeverityThresholds{
			Critical: decimal.NewFromInt(500000),
			High:     decimal.NewFromInt(100000),
			Medium:   decimal.NewFromInt(10000),
		},
		SLAWindows: map[Severity]time.Duration{
			SeverityCritical: 3 * day,
			SeverityHigh:     7 * day,
			SeverityMedium:   14 * day,
			SeverityLow:      30 * day,
		},
	}
}

// Classification is the classifier's decision for a result
type Classification struct {
	OpenCase  bool
	Category  Category
	Severity  Severity
	Priority  Priority
	SLAWindow time.Duration
}

// Classifier decides whether a result warrants a case and how urgent it is
type Classifier struct {
	policy CasePolicy
}

// NewClassifier creates a Classifier
func NewClassifier(policy CasePolicy) *Classifier {
	return &Classifier{policy: policy}
}

// Policy returns the classifier's policy
func (c *Classifier) Policy() CasePolicy {
	return c.policy
}

// ShouldOpenCase reports whether r is anomalous enough for an investigation
func (c *Classifier) ShouldOpenCase(r *DiscrepancyResult) bool {
	switch r.Status {
	case ResultStatusFlagged, ResultStatusOverLicensed, ResultStatusOvercharged,
		ResultStatusOverbilled, ResultStatusConfirmedDuplicate, ResultStatusPotentialDuplicate,
		ResultStatusUnderReview, ResultStatusAddendumMismatch, ResultStatusUnresolved,
		ResultStatusManualReview:
		return true
	case ResultStatusVariance:
		return r.LeakageAmount.IsPositive()
	}
	return r.PendingVerification && !r.Discrepancy.IsZero()
}

// SeverityFor maps a leakage amount onto the severity bands
func (c *Classifier) SeverityFor(amount decimal.Decimal) Severity {
	t := c.policy.Severity
	switch {
	case amount.GreaterThanOrEqual(t.Critical):
		return SeverityCritical
	case amount.GreaterThanOrEqual(t.High):
		return SeverityHigh
	case amount.GreaterThanOrEqual(t.Medium):
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Classify decides category, severity, priority and SLA window for r
func (c *Classifier) Classify(r *DiscrepancyResult) Classification {
	category := CategoryFor(r.Domain)
	switch r.Status {
	case ResultStatusUnresolved:
		category = CategoryContract
	case ResultStatusManualReview:
		category = CategoryReferenceData
	}

	severity := c.SeverityFor(r.LeakageAmount).Max(r.SeverityFloor)
	if r.Status == ResultStatusConfirmedDuplicate {
		severity = severity.Max(SeverityHigh)
	}
	return Classification{
		OpenCase:  c.ShouldOpenCase(r),
		Category:  category,
		Severity:  severity,
		Priority:  PriorityFor(severity),
		SLAWindow: c.policy.SLAWindows[severity],
	}
}

// OpenCase builds a new case for r. It fails with a validation error when
// the result does not warrant a case.
func (c *Classifier) OpenCase(r *DiscrepancyResult, actor string, now time.Time) (*LeakageCase, error) {
	cl := c.Classify(r)
	if !cl.OpenCase {
		return nil, validationError("result %s with status %s does not warrant a case", r.ID, r.Status)
	}
	window := cl.SLAWindow
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	return NewLeakageCase(NewCaseParams{
		CaseNumber: NewCaseNumber(now),
		Result:     r,
		Category:   cl.Category,
		Severity:   cl.Severity,
		Priority:   cl.Priority,
		DueDate:    now.Add(window),
		Actor:      actor,
		OpenedAt:   now,
	})
}

// NewCaseNumber returns a sortable case number such as LC-01J9Z...
func NewCaseNumber(at time.Time) string {
	return "LC-" + ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()).String()
}
