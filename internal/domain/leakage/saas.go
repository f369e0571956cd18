package leakage

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/spendaudit/backend/internal/domain/shared/strategy"
	"github.com/spendaudit/backend/internal/domain/shared/valueobject"
)

// SaaSEvaluator checks billed license counts against the purchase order and contract
type SaaSEvaluator struct {
	strategy.BaseStrategy
	thresholds Thresholds
}

// NewSaaSEvaluator creates a SaaSEvaluator
func NewSaaSEvaluator(th Thresholds) *SaaSEvaluator {
	return &SaaSEvaluator{
		BaseStrategy: strategy.NewBaseStrategy("saas_license", strategy.StrategyTypeEvaluation,
			"Licenses billed versus licenses purchased and contracted"),
		thresholds: th,
	}
}

// Domain returns DomainSaaS
func (e *SaaSEvaluator) Domain() Domain {
	return DomainSaaS
}

// Evaluate resolves the SaaS contract for the product and evaluates inv
func (e *SaaSEvaluator) Evaluate(ctx context.Context, inv *Invoice, refs ReferenceProvider) (*Evaluation, error) {
	contract, err := refs.GetSaaSContract(ctx, inv.VendorKey(), inv.SaaS.Product)
	if err != nil {
		return nil, err
	}
	return EvaluateSaaS(inv, contract, e.thresholds), nil
}

// EvaluateSaaS computes expected = licensesInPO * unitPrice.
// Billing above the PO is over_licensed, escalated to flagged when billed
// licenses exceed both the PO and the contract by more than the large margin.
// At or below the PO, utilization under the threshold is under_utilized.
func EvaluateSaaS(inv *Invoice, contract *SaaSContract, th Thresholds) *Evaluation {
	s := inv.SaaS
	billed := decimal.NewFromInt(s.LicensesBilled)
	inPO := decimal.NewFromInt(s.LicensesInPO)
	inContract := decimal.NewFromInt(contract.LicensesInContract)

	expected := inPO.Mul(contract.UnitPrice)
	licenseDiff := billed.Sub(inPO)
	amountDiff := licenseDiff.Mul(contract.UnitPrice)

	var status ResultStatus
	switch {
	case s.LicensesBilled > s.LicensesInPO:
		status = ResultStatusOverLicensed
		if exceedsByMargin(billed, inPO, th.SaaSLargeMarginPercent) &&
			exceedsByMargin(billed, inContract, th.SaaSLargeMarginPercent) {
			status = ResultStatusFlagged
		}
	case underUtilized(s, th.SaaSUtilizationPercent):
		status = ResultStatusUnderUtilized
	default:
		status = ResultStatusCompliant
	}

	ev := newEvaluation(expected, status)
	ev.Metrics[MetricLicenseDiff] = licenseDiff
	ev.Metrics[MetricAmountDiff] = amountDiff
	if util := valueobject.PercentOf(decimal.NewFromInt(s.LicensesUsed), billed); util != nil {
		ev.Metrics[MetricUtilizationPercent] = util.Round(2)
	}
	ev.Lines = []LineDetail{{
		Key:      s.Product,
		Quantity: billed,
		Expected: expected,
		Actual:   billed.Mul(contract.UnitPrice),
		Variance: amountDiff,
		Status:   string(status),
	}}
	if contract.ContractRef != "" {
		ev.RelatedTransactions = []string{contract.ContractRef}
	}
	return ev
}

// exceedsByMargin reports whether value > base * (1 + margin/100)
func exceedsByMargin(value, base, marginPercent decimal.Decimal) bool {
	limit := base.Add(valueobject.ApplyPercent(base, marginPercent))
	return value.GreaterThan(limit)
}

func underUtilized(s *SaaSDetails, thresholdPercent decimal.Decimal) bool {
	util := valueobject.PercentOf(decimal.NewFromInt(s.LicensesUsed), decimal.NewFromInt(s.LicensesBilled))
	return util != nil && util.LessThan(thresholdPercent)
}
