package leakage

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"github.com/spendaudit/backend/internal/domain/shared/strategy"
	"github.com/spendaudit/backend/internal/domain/shared/valueobject"
)

// DuplicateEvaluator matches a payment against the vendor's payment ledger
type DuplicateEvaluator struct {
	strategy.BaseStrategy
	thresholds Thresholds
}

// NewDuplicateEvaluator creates a DuplicateEvaluator
func NewDuplicateEvaluator(th Thresholds) *DuplicateEvaluator {
	return &DuplicateEvaluator{
		BaseStrategy: strategy.NewBaseStrategy("duplicate_payment", strategy.StrategyTypeEvaluation,
			"Payment matched against prior payments in the lookback window"),
		thresholds: th,
	}
}

// Domain returns DomainDuplicate
func (e *DuplicateEvaluator) Domain() Domain {
	return DomainDuplicate
}

// Evaluate loads the ledger for the lookback window and evaluates inv
func (e *DuplicateEvaluator) Evaluate(ctx context.Context, inv *Invoice, refs ReferenceProvider) (*Evaluation, error) {
	paidOn := inv.Payment.PaymentDate
	from := paidOn.AddDate(0, -e.thresholds.DuplicateLookbackMonths, 0)
	ledger, err := refs.GetPaymentLedger(ctx, inv.VendorKey(), from, paidOn)
	if err != nil {
		return nil, err
	}
	return EvaluateDuplicate(inv, ledger, e.thresholds), nil
}

// NormalizeInvoiceNumber uppercases, strips non-alphanumerics and leading zeros
func NormalizeInvoiceNumber(n string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(n) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimLeft(b.String(), "0")
}

// DuplicateMatch is a ledger payment that matches the evaluated payment
type DuplicateMatch struct {
	Record PaymentRecord
	Exact  bool
}

// FindDuplicateMatches returns ledger payments whose normalized invoice number
// equals inv's and whose amount is within the tolerance. A match is exact when
// the raw numbers and amounts are identical.
func FindDuplicateMatches(inv *Invoice, ledger []PaymentRecord, th Thresholds) []DuplicateMatch {
	paidOn := inv.Payment.PaymentDate
	from := paidOn.AddDate(0, -th.DuplicateLookbackMonths, 0)
	norm := NormalizeInvoiceNumber(inv.InvoiceNumber)
	raw := strings.TrimSpace(inv.InvoiceNumber)
	tolerance := valueobject.ApplyPercent(inv.InvoicedAmount, th.DuplicateAmountTolerancePercent)

	var matches []DuplicateMatch
	for _, rec := range ledger {
		if inv.Payment.PaymentRef != "" && rec.PaymentRef == inv.Payment.PaymentRef {
			continue
		}
		if !strings.EqualFold(rec.VendorCode, inv.VendorKey()) {
			continue
		}
		if rec.PaymentDate.Before(from) || rec.PaymentDate.After(paidOn) {
			continue
		}
		if norm == "" || NormalizeInvoiceNumber(rec.InvoiceNumber) != norm {
			continue
		}
		if rec.Amount.Sub(inv.InvoicedAmount).Abs().GreaterThan(tolerance) {
			continue
		}
		exact := strings.EqualFold(strings.TrimSpace(rec.InvoiceNumber), raw) && rec.Amount.Equal(inv.InvoicedAmount)
		matches = append(matches, DuplicateMatch{Record: rec, Exact: exact})
	}
	return matches
}

// EvaluateDuplicate classifies ledger matches. A single exact match paid on a
// different date is a confirmed duplicate, a single formatting-only match is a
// potential duplicate, and anything else that matches needs review.
// Any match puts the full payment at risk, so expected is zero.
func EvaluateDuplicate(inv *Invoice, ledger []PaymentRecord, th Thresholds) *Evaluation {
	matches := FindDuplicateMatches(inv, ledger, th)
	if len(matches) == 0 {
		ev := newEvaluation(inv.InvoicedAmount, ResultStatusCompliant)
		ev.Metrics[MetricMatchedPayments] = decimal.Zero
		return ev
	}

	paidOn := inv.Payment.PaymentDate
	var status ResultStatus
	switch {
	case len(matches) > 1:
		status = ResultStatusUnderReview
	case matches[0].Exact && sameDay(matches[0].Record.PaymentDate, paidOn):
		status = ResultStatusUnderReview
	case matches[0].Exact:
		status = ResultStatusConfirmedDuplicate
	default:
		status = ResultStatusPotentialDuplicate
	}

	ev := newEvaluation(decimal.Zero, status)
	ev.Metrics[MetricMatchedPayments] = decimal.NewFromInt(int64(len(matches)))
	original := matches[0].Record
	for _, m := range matches[1:] {
		if m.Record.PaymentDate.Before(original.PaymentDate) {
			original = m.Record
		}
	}
	ev.Metrics[MetricDaysBetween] = decimal.NewFromInt(int64(daysBetween(original.PaymentDate, paidOn)))
	if status == ResultStatusConfirmedDuplicate {
		ev.SeverityFloor = SeverityHigh
	}
	for _, m := range matches {
		ref := m.Record.PaymentRef
		if ref == "" {
			ref = m.Record.InvoiceNumber
		}
		ev.RelatedTransactions = append(ev.RelatedTransactions, ref)
		ev.Lines = append(ev.Lines, LineDetail{
			Key:         ref,
			Description: m.Record.InvoiceNumber,
			Quantity:    decimal.NewFromInt(1),
			Expected:    decimal.Zero,
			Actual:      m.Record.Amount,
			Variance:    m.Record.Amount,
			Status:      matchKind(m),
		})
	}
	return ev
}

func matchKind(m DuplicateMatch) string {
	if m.Exact {
		return "exact"
	}
	return "fuzzy"
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// daysBetween returns whole calendar days from the earlier to the later date
func daysBetween(a, b time.Time) int {
	if b.Before(a) {
		a, b = b, a
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	start := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	end := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start).Hours() / 24)
}

