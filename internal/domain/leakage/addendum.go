package leakage

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spendaudit/backend/internal/domain/shared/strategy"
	"github.com/spendaudit/backend/internal/domain/shared/valueobject"
)

// AddendumEvaluator checks that the addendum applied to an invoice is the one
// in force for its service period
type AddendumEvaluator struct {
	strategy.BaseStrategy
}

// NewAddendumEvaluator creates an AddendumEvaluator
func NewAddendumEvaluator() *AddendumEvaluator {
	return &AddendumEvaluator{
		BaseStrategy: strategy.NewBaseStrategy("addendum_timing", strategy.StrategyTypeEvaluation,
			"Applied addendum rates versus the version effective for the service period"),
	}
}

// Domain returns DomainAddendum
func (e *AddendumEvaluator) Domain() Domain {
	return DomainAddendum
}

// Evaluate resolves the contract's addendum versions and evaluates inv
func (e *AddendumEvaluator) Evaluate(ctx context.Context, inv *Invoice, refs ReferenceProvider) (*Evaluation, error) {
	versions, err := refs.GetAddendumVersions(ctx, inv.Addendum.ContractRef)
	if err != nil {
		return nil, err
	}
	return EvaluateAddendum(inv, versions)
}

// OrderVersions sorts versions by EffectiveFrom and checks the windows.
// A window that does not move forward is a validation error; overlapping
// windows are ambiguous.
func OrderVersions(versions []AddendumVersion) ([]AddendumVersion, error) {
	if len(versions) == 0 {
		return nil, missingReference("no addendum versions")
	}
	ordered := make([]AddendumVersion, len(versions))
	copy(ordered, versions)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].EffectiveFrom.Before(ordered[j].EffectiveFrom)
	})
	for i, v := range ordered {
		if v.EffectiveTo != nil && !v.EffectiveTo.After(v.EffectiveFrom) {
			return nil, validationError("addendum version %s ends before it starts", v.Version)
		}
		if i == 0 {
			continue
		}
		prev := ordered[i-1]
		if prev.EffectiveTo == nil || prev.EffectiveTo.After(v.EffectiveFrom) {
			return nil, ambiguousReference("addendum versions %s and %s overlap", prev.Version, v.Version)
		}
	}
	return ordered, nil
}

// ResolveAddendum returns the single version whose window contains [start, end)
func ResolveAddendum(ordered []AddendumVersion, start, end time.Time) (*AddendumVersion, error) {
	var overlapping []int
	for i, v := range ordered {
		if v.Overlaps(start, end) {
			overlapping = append(overlapping, i)
		}
	}
	switch {
	case len(overlapping) == 0:
		return nil, missingReference("no addendum version effective on %s", start.Format(time.DateOnly))
	case len(overlapping) > 1:
		return nil, ambiguousReference("service period starting %s spans %d addendum versions", start.Format(time.DateOnly), len(overlapping))
	}
	v := ordered[overlapping[0]]
	if !v.Covers(start, end) {
		return nil, missingReference("addendum version %s covers only part of the service period", v.Version)
	}
	return &v, nil
}

// EvaluateAddendum prices each item at the correct version's rate.
// potential_overcharge = Σ qty * (appliedRate - correctRate); positive means
// the vendor overcharged and the amount is recoverable, negative means we underpaid.
func EvaluateAddendum(inv *Invoice, versions []AddendumVersion) (*Evaluation, error) {
	a := inv.Addendum
	ordered, err := OrderVersions(versions)
	if err != nil {
		return nil, err
	}
	start, end := a.ServicePeriod(inv.InvoiceDate)
	correct, err := ResolveAddendum(ordered, start, end)
	if err != nil {
		return nil, err
	}
	var applied *AddendumVersion
	for i := range ordered {
		if ordered[i].Version == a.AppliedVersion {
			applied = &ordered[i]
			break
		}
	}
	if applied == nil {
		return nil, missingReference("applied addendum version %s not found for contract %s", a.AppliedVersion, a.ContractRef)
	}

	expected := decimal.Zero
	overcharge := decimal.Zero
	pctSum := decimal.Zero
	counted := 0
	lines := make([]LineDetail, 0, len(a.Items))
	for _, it := range a.Items {
		correctRate, ok := correct.Rates[it.ItemCode]
		if !ok {
			return nil, missingReference("item %s has no rate in addendum version %s", it.ItemCode, correct.Version)
		}
		appliedRate, ok := applied.Rates[it.ItemCode]
		if !ok {
			return nil, missingReference("item %s has no rate in addendum version %s", it.ItemCode, applied.Version)
		}
		rateDiff := appliedRate.Sub(correctRate)
		difference := it.Quantity.Mul(rateDiff)
		expected = expected.Add(it.Quantity.Mul(correctRate))
		overcharge = overcharge.Add(difference)
		pct := valueobject.PercentOf(rateDiff, correctRate)
		if pct != nil {
			pctSum = pctSum.Add(pct.Abs())
			counted++
		}
		lines = append(lines, LineDetail{
			Key:             it.ItemCode,
			Quantity:        it.Quantity,
			Expected:        correctRate,
			Actual:          appliedRate,
			Variance:        difference,
			VariancePercent: pct,
			Status:          correct.Version,
		})
	}

	status := ResultStatusCompliant
	if applied.Version != correct.Version {
		switch overcharge.Sign() {
		case 1:
			status = ResultStatusAddendumMismatch
		case -1:
			status = ResultStatusUndercharged
		}
	}

	ev := newEvaluation(expected, status)
	ev.Lines = lines
	ev.Metrics[MetricPotentialOvercharge] = overcharge
	rateDifference := decimal.Zero
	if counted > 0 {
		rateDifference = pctSum.Div(decimal.NewFromInt(int64(counted)))
	}
	ev.Metrics[MetricRateDifference] = rateDifference.Round(4)
	leak := decimal.Max(overcharge, decimal.Zero)
	ev.Leakage = &leak
	ev.RelatedTransactions = []string{a.ContractRef + "/" + applied.Version}
	if applied.Version != correct.Version {
		ev.RelatedTransactions = append(ev.RelatedTransactions, a.ContractRef+"/"+correct.Version)
		ev.Notes = append(ev.Notes, "applied version "+applied.Version+", effective version "+correct.Version)
	}
	return ev, nil
}
