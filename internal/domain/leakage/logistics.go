package leakage

import (
	"context"
	"strings"
	"time"

	"github.com/spendaudit/backend/internal/domain/shared/strategy"
	"github.com/spendaudit/backend/internal/domain/shared/valueobject"
)

// LogisticsEvaluator checks trip billing against contracted per-km rate cards
type LogisticsEvaluator struct {
	strategy.BaseStrategy
	thresholds Thresholds
}

// NewLogisticsEvaluator creates a LogisticsEvaluator
func NewLogisticsEvaluator(th Thresholds) *LogisticsEvaluator {
	return &LogisticsEvaluator{
		BaseStrategy: strategy.NewBaseStrategy("logistics_rate_card", strategy.StrategyTypeEvaluation,
			"Trip sheet kilometers priced at the contracted per-km rate"),
		thresholds: th,
	}
}

// Domain returns DomainLogistics
func (e *LogisticsEvaluator) Domain() Domain {
	return DomainLogistics
}

// Evaluate resolves the vendor's rate cards for the route and evaluates inv
func (e *LogisticsEvaluator) Evaluate(ctx context.Context, inv *Invoice, refs ReferenceProvider) (*Evaluation, error) {
	cards, err := refs.GetRateCards(ctx, inv.VendorKey(), inv.Logistics.Route)
	if err != nil {
		return nil, err
	}
	card, err := SelectRateCard(cards, inv.Logistics.VehicleType, inv.InvoiceDate)
	if err != nil {
		return nil, err
	}
	return EvaluateLogistics(inv, card, e.thresholds), nil
}

// SelectRateCard picks the single card for the vehicle type valid on date.
// No match is missing reference data; more than one match is ambiguous.
func SelectRateCard(cards []RateCard, vehicleType string, date time.Time) (*RateCard, error) {
	var matches []RateCard
	for _, c := range cards {
		if !strings.EqualFold(c.VehicleType, vehicleType) {
			continue
		}
		if c.ValidOn(date) {
			matches = append(matches, c)
		}
	}
	switch len(matches) {
	case 0:
		return nil, missingReference("no rate card valid on %s for vehicle type %q", date.Format(time.DateOnly), vehicleType)
	case 1:
		return &matches[0], nil
	default:
		return nil, ambiguousReference("%d rate cards valid on %s for vehicle type %q", len(matches), date.Format(time.DateOnly), vehicleType)
	}
}

// EvaluateLogistics prices the trip sheet at the card rate.
// |pct| below the compliant threshold is compliant, up to and including the
// minor threshold is a minor variance, anything above is flagged.
func EvaluateLogistics(inv *Invoice, card *RateCard, th Thresholds) *Evaluation {
	kms := inv.Logistics.TripSheetKms
	expected := kms.Mul(card.RatePerKm)
	discrepancy := inv.InvoicedAmount.Sub(expected)

	status := ResultStatusFlagged
	pct := valueobject.PercentOf(discrepancy, expected)
	switch {
	case pct == nil:
		if discrepancy.IsZero() {
			status = ResultStatusCompliant
		}
	case pct.Abs().LessThan(th.RateCardCompliantPercent):
		status = ResultStatusCompliant
	case pct.Abs().LessThanOrEqual(th.RateCardMinorPercent):
		status = ResultStatusMinorVariance
	}

	ev := newEvaluation(expected, status)
	ev.Metrics[MetricRatePerKm] = card.RatePerKm
	ev.Lines = []LineDetail{{
		Key:             card.Route,
		Description:     card.VehicleType,
		Quantity:        kms,
		Expected:        expected,
		Actual:          inv.InvoicedAmount,
		Variance:        discrepancy,
		VariancePercent: pct,
		Status:          string(status),
	}}
	if card.ID != "" {
		ev.RelatedTransactions = []string{card.ID}
	}
	return ev
}
