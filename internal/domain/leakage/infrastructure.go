package leakage

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/spendaudit/backend/internal/domain/shared/strategy"
	"github.com/spendaudit/backend/internal/domain/shared/valueobject"
)

// Item price-variance statuses
const (
	ItemNormal  = "normal"
	ItemHigh    = "high"
	ItemOutlier = "outlier"
)

// InfrastructureEvaluator checks unit prices against historical averages
type InfrastructureEvaluator struct {
	strategy.BaseStrategy
	thresholds Thresholds
}

// NewInfrastructureEvaluator creates an InfrastructureEvaluator
func NewInfrastructureEvaluator(th Thresholds) *InfrastructureEvaluator {
	return &InfrastructureEvaluator{
		BaseStrategy: strategy.NewBaseStrategy("infrastructure_price_variance", strategy.StrategyTypeEvaluation,
			"Unit prices versus historical average prices per item"),
		thresholds: th,
	}
}

// Domain returns DomainInfrastructure
func (e *InfrastructureEvaluator) Domain() Domain {
	return DomainInfrastructure
}

// Evaluate resolves the historical price of every item and evaluates inv
func (e *InfrastructureEvaluator) Evaluate(ctx context.Context, inv *Invoice, refs ReferenceProvider) (*Evaluation, error) {
	prices := make(map[string]decimal.Decimal, len(inv.Infrastructure.Items))
	for _, it := range inv.Infrastructure.Items {
		if _, done := prices[it.ItemCode]; done {
			continue
		}
		hp, err := refs.GetHistoricalPrice(ctx, it.ItemCode)
		if err != nil {
			return nil, err
		}
		prices[it.ItemCode] = hp.AveragePrice
	}
	return EvaluateInfrastructure(inv, prices, e.thresholds)
}

// ItemVarianceStatus classifies a signed variance percent.
// Up to and including the high threshold is normal, up to and including
// the outlier threshold is high, beyond it is an outlier.
func ItemVarianceStatus(pct decimal.Decimal, th Thresholds) string {
	switch {
	case pct.LessThanOrEqual(th.InfraHighPercent):
		return ItemNormal
	case pct.LessThanOrEqual(th.InfraOutlierPercent):
		return ItemHigh
	default:
		return ItemOutlier
	}
}

// EvaluateInfrastructure computes expected = Σ quantity * historical price.
// The invoice takes its worst item status: outlier is flagged, high is variance.
func EvaluateInfrastructure(inv *Invoice, historical map[string]decimal.Decimal, th Thresholds) (*Evaluation, error) {
	expected := decimal.Zero
	totalVariance := decimal.Zero
	totalExpected := decimal.Zero
	worst := ItemNormal
	lines := make([]LineDetail, 0, len(inv.Infrastructure.Items))

	for _, it := range inv.Infrastructure.Items {
		avg, ok := historical[it.ItemCode]
		if !ok {
			return nil, missingReference("no historical price for item %s", it.ItemCode)
		}
		if !avg.IsPositive() {
			return nil, validationError("historical price for item %s must be positive", it.ItemCode)
		}
		variance := it.UnitPrice.Sub(avg)
		pct := valueobject.PercentOf(variance, avg)
		status := ItemVarianceStatus(*pct, th)
		worst = worseItemStatus(worst, status)

		lineExpected := it.Quantity.Mul(avg)
		expected = expected.Add(lineExpected)
		if variance.IsPositive() {
			totalVariance = totalVariance.Add(variance.Mul(it.Quantity))
			totalExpected = totalExpected.Add(lineExpected)
		}
		lines = append(lines, LineDetail{
			Key:             it.ItemCode,
			Description:     it.Description,
			Quantity:        it.Quantity,
			Expected:        avg,
			Actual:          it.UnitPrice,
			Variance:        variance,
			VariancePercent: pct,
			Status:          status,
		})
	}

	status := ResultStatusCompliant
	switch worst {
	case ItemOutlier:
		status = ResultStatusFlagged
	case ItemHigh:
		status = ResultStatusVariance
	}

	ev := newEvaluation(expected, status)
	ev.Lines = lines
	ev.Metrics[MetricTotalVariance] = totalVariance
	ev.Metrics[MetricTotalExpected] = totalExpected
	return ev, nil
}

func worseItemStatus(a, b string) string {
	rank := map[string]int{ItemNormal: 0, ItemHigh: 1, ItemOutlier: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
