package leakage

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spendaudit/backend/internal/domain/shared/strategy"
	"github.com/spendaudit/backend/internal/domain/shared/valueobject"
)

// Deliverable line statuses
const (
	LineDelivered    = "delivered"
	LinePartial      = "partial"
	LineOverbilled   = "overbilled"
	LineNotDelivered = "not_delivered"
)

// MarketingEvaluator checks billed deliverables against the statement of work
type MarketingEvaluator struct {
	strategy.BaseStrategy
}

// NewMarketingEvaluator creates a MarketingEvaluator
func NewMarketingEvaluator() *MarketingEvaluator {
	return &MarketingEvaluator{
		BaseStrategy: strategy.NewBaseStrategy("marketing_deliverable", strategy.StrategyTypeEvaluation,
			"Billed deliverable quantities versus the statement of work"),
	}
}

// Domain returns DomainMarketing
func (e *MarketingEvaluator) Domain() Domain {
	return DomainMarketing
}

// Evaluate resolves the project SOW and evaluates inv
func (e *MarketingEvaluator) Evaluate(ctx context.Context, inv *Invoice, refs ReferenceProvider) (*Evaluation, error) {
	sow, err := refs.GetStatementOfWork(ctx, inv.VendorKey(), inv.Marketing.ProjectRef)
	if err != nil {
		return nil, err
	}
	return EvaluateMarketing(inv, sow)
}

// DeliverableStatus classifies one line by billed versus contracted quantity
func DeliverableStatus(billed, contracted decimal.Decimal) string {
	switch {
	case billed.IsZero() && contracted.IsPositive():
		return LineNotDelivered
	case billed.Equal(contracted):
		return LineDelivered
	case billed.LessThan(contracted):
		return LinePartial
	default:
		return LineOverbilled
	}
}

// EvaluateMarketing builds a line per SOW deliverable. Deliverables absent
// from the invoice count as billed 0; invoice lines not in the SOW are
// missing reference data.
func EvaluateMarketing(inv *Invoice, sow *StatementOfWork) (*Evaluation, error) {
	m := inv.Marketing
	billed := make(map[string]decimal.Decimal, len(m.Lines))
	for _, l := range m.Lines {
		billed[strings.ToUpper(l.DeliverableCode)] = l.QuantityBilled
	}
	known := make(map[string]struct{}, len(sow.Deliverables))
	for _, d := range sow.Deliverables {
		known[strings.ToUpper(d.Code)] = struct{}{}
	}
	for _, l := range m.Lines {
		if _, ok := known[strings.ToUpper(l.DeliverableCode)]; !ok {
			return nil, missingReference("deliverable %s is not in the statement of work for %s", l.DeliverableCode, sow.ProjectRef)
		}
	}

	expected := decimal.Zero
	lines := make([]LineDetail, 0, len(sow.Deliverables))
	var overbilled, shortfall bool
	for _, d := range sow.Deliverables {
		qty := billed[strings.ToUpper(d.Code)]
		exp := d.Quantity.Mul(d.UnitPrice)
		act := qty.Mul(d.UnitPrice)
		status := DeliverableStatus(qty, d.Quantity)
		switch status {
		case LineOverbilled:
			overbilled = true
		case LinePartial, LineNotDelivered:
			shortfall = true
		}
		expected = expected.Add(exp)
		lines = append(lines, LineDetail{
			Key:             d.Code,
			Description:     d.Description,
			Quantity:        qty,
			Expected:        exp,
			Actual:          act,
			Variance:        act.Sub(exp),
			VariancePercent: valueobject.PercentOf(act.Sub(exp), exp),
			Status:          status,
		})
	}

	var status ResultStatus
	switch {
	case !m.DeliveryVerified && shortfall:
		status = ResultStatusFlagged
	case overbilled:
		status = ResultStatusOverbilled
	case shortfall:
		status = ResultStatusPartialDelivery
	default:
		status = ResultStatusCompliant
	}

	ev := newEvaluation(expected, status)
	ev.Lines = lines
	if !m.DeliveryVerified {
		ev.Notes = append(ev.Notes, "delivery not verified")
	}
	return ev, nil
}
