package leakage

import (
	"github.com/shopspring/decimal"
)

// Thresholds holds every classification boundary used by the evaluators.
// Values are percentages unless noted.
type Thresholds struct {
	RateCardCompliantPercent        decimal.Decimal `json:"rate_card_compliant_percent"`
	RateCardMinorPercent            decimal.Decimal `json:"rate_card_minor_percent"`
	SaaSUtilizationPercent          decimal.Decimal `json:"saas_utilization_percent"`
	SaaSLargeMarginPercent          decimal.Decimal `json:"saas_large_margin_percent"`
	RecruitmentEscalationPercent    decimal.Decimal `json:"recruitment_escalation_percent"`
	InfraHighPercent                decimal.Decimal `json:"infra_high_percent"`
	InfraOutlierPercent             decimal.Decimal `json:"infra_outlier_percent"`
	DuplicateLookbackMonths         int             `json:"duplicate_lookback_months"`
	DuplicateAmountTolerancePercent decimal.Decimal `json:"duplicate_amount_tolerance_percent"`
}

// DefaultThresholds returns the standard thresholds
func DefaultThresholds() Thresholds {
	return Thresholds{
		RateCardCompliantPercent:        decimal.NewFromInt(1),
		RateCardMinorPercent:            decimal.NewFromInt(5),
		SaaSUtilizationPercent:          decimal.NewFromInt(70),
		SaaSLargeMarginPercent:          decimal.NewFromInt(10),
		RecruitmentEscalationPercent:    decimal.NewFromInt(15),
		InfraHighPercent:                decimal.NewFromInt(10),
		InfraOutlierPercent:             decimal.NewFromInt(25),
		DuplicateLookbackMonths:         12,
		DuplicateAmountTolerancePercent: decimal.RequireFromString("0.5"),
	}
}

// Validate checks that the thresholds are internally consistent
func (t Thresholds) Validate() error {
	for name, v := range map[string]decimal.Decimal{
		"rate_card_compliant_percent":        t.RateCardCompliantPercent,
		"rate_card_minor_percent":            t.RateCardMinorPercent,
		"saas_utilization_percent":           t.SaaSUtilizationPercent,
		"saas_large_margin_percent":          t.SaaSLargeMarginPercent,
		"recruitment_escalation_percent":     t.RecruitmentEscalationPercent,
		"infra_high_percent":                 t.InfraHighPercent,
		"infra_outlier_percent":              t.InfraOutlierPercent,
		"duplicate_amount_tolerance_percent": t.DuplicateAmountTolerancePercent,
	} {
		if v.IsNegative() {
			return validationError("threshold %s cannot be negative", name)
		}
	}
	if t.RateCardCompliantPercent.GreaterThan(t.RateCardMinorPercent) {
		return validationError("rate card compliant threshold must not exceed minor threshold")
	}
	if t.InfraHighPercent.GreaterThan(t.InfraOutlierPercent) {
		return validationError("infrastructure high threshold must not exceed outlier threshold")
	}
	if t.DuplicateLookbackMonths <= 0 {
		return validationError("duplicate lookback must be at least one month")
	}
	return nil
}
