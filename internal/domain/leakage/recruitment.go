package leakage

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/spendaudit/backend/internal/domain/shared/strategy"
	"github.com/spendaudit/backend/internal/domain/shared/valueobject"
)

// RecruitmentEvaluator checks placement fees against the agency's slab table
type RecruitmentEvaluator struct {
	strategy.BaseStrategy
	thresholds Thresholds
}

// NewRecruitmentEvaluator creates a RecruitmentEvaluator
func NewRecruitmentEvaluator(th Thresholds) *RecruitmentEvaluator {
	return &RecruitmentEvaluator{
		BaseStrategy: strategy.NewBaseStrategy("recruitment_fee", strategy.StrategyTypeEvaluation,
			"Placement fee versus the salary-slab fee percent"),
		thresholds: th,
	}
}

// Domain returns DomainRecruitment
func (e *RecruitmentEvaluator) Domain() Domain {
	return DomainRecruitment
}

// Evaluate resolves the agency fee structure and evaluates inv
func (e *RecruitmentEvaluator) Evaluate(ctx context.Context, inv *Invoice, refs ReferenceProvider) (*Evaluation, error) {
	fs, err := refs.GetFeeStructure(ctx, inv.VendorKey())
	if err != nil {
		return nil, err
	}
	return EvaluateRecruitment(inv, fs, e.thresholds)
}

// ValidateSlabs checks that slabs start at zero, are contiguous and end unbounded
func ValidateSlabs(slabs []SalarySlab) error {
	if len(slabs) == 0 {
		return validationError("fee structure has no salary slabs")
	}
	if !slabs[0].Min.IsZero() {
		return validationError("first salary slab must start at 0")
	}
	for i, s := range slabs {
		if s.FeePercent.IsNegative() {
			return validationError("salary slab %d has a negative fee percent", i)
		}
		last := i == len(slabs)-1
		if s.Max == nil {
			if !last {
				return validationError("only the last salary slab may be unbounded")
			}
			continue
		}
		if !s.Max.GreaterThan(s.Min) {
			return validationError("salary slab %d has max not above min", i)
		}
		if last {
			return validationError("last salary slab must be unbounded")
		}
		if !slabs[i+1].Min.Equal(*s.Max) {
			return validationError("salary slabs %d and %d are not contiguous", i, i+1)
		}
	}
	return nil
}

// ResolveSlab returns the slab containing ctc
func ResolveSlab(slabs []SalarySlab, ctc decimal.Decimal) (*SalarySlab, error) {
	if err := ValidateSlabs(slabs); err != nil {
		return nil, err
	}
	for i := range slabs {
		if slabs[i].Contains(ctc) {
			return &slabs[i], nil
		}
	}
	return nil, missingReference("no salary slab contains CTC %s", ctc.String())
}

// EvaluateRecruitment computes expectedFee = ctc * feePercent / 100.
// Overcharges above the escalation percent raise the severity floor to high.
// Unverified salaries mark the result as pending verification.
func EvaluateRecruitment(inv *Invoice, fs *FeeStructure, th Thresholds) (*Evaluation, error) {
	r := inv.Recruitment
	slab, err := ResolveSlab(fs.Slabs, r.CandidateCTC)
	if err != nil {
		return nil, err
	}

	expected := valueobject.ApplyPercent(r.CandidateCTC, slab.FeePercent)
	discrepancy := inv.InvoicedAmount.Sub(expected)

	status := ResultStatusCompliant
	switch discrepancy.Sign() {
	case 1:
		status = ResultStatusOvercharged
	case -1:
		status = ResultStatusUndercharged
	}

	ev := newEvaluation(expected, status)
	ev.Metrics[MetricFeePercent] = slab.FeePercent
	pct := valueobject.PercentOf(discrepancy, expected)
	if status == ResultStatusOvercharged && pct != nil && pct.GreaterThan(th.RecruitmentEscalationPercent) {
		ev.SeverityFloor = SeverityHigh
	}
	if !r.SalaryVerified {
		ev.PendingVerification = true
		ev.Notes = append(ev.Notes, "candidate salary not verified")
	}
	ev.Lines = []LineDetail{{
		Key:             r.CandidateName,
		Description:     r.Position,
		Quantity:        r.CandidateCTC,
		Expected:        expected,
		Actual:          inv.InvoicedAmount,
		Variance:        discrepancy,
		VariancePercent: pct,
		Status:          string(status),
	}}
	return ev, nil
}
