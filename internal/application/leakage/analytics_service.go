package leakage

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/spendaudit/backend/internal/domain/leakage"
	"github.com/spendaudit/backend/internal/domain/shared/valueobject"
)

const defaultTopVendors = 20

// CategoryBreakdown aggregates cases of one category
type CategoryBreakdown struct {
	Count   int             `json:"count"`
	Leakage decimal.Decimal `json:"leakage"`
}

// MonthlyTrendPoint is detected versus recovered leakage for a month
type MonthlyTrendPoint struct {
	Month     string          `json:"month"`
	Cases     int             `json:"cases"`
	Detected  decimal.Decimal `json:"detected"`
	Recovered decimal.Decimal `json:"recovered"`
}

// DashboardSummary is the portfolio view of all cases
type DashboardSummary struct {
	TotalCases           int                          `json:"total_cases"`
	OpenCases            int                          `json:"open_cases"`
	PendingInvestigation int                          `json:"pending_investigation"`
	BreachedCases        int                          `json:"breached_cases"`
	AtRiskCases          int                          `json:"at_risk_cases"`
	TotalLeakage         decimal.Decimal              `json:"total_leakage"`
	TotalRecovered       decimal.Decimal              `json:"total_recovered"`
	RecoveryRate         decimal.Decimal              `json:"recovery_rate"`
	ByStatus             map[string]int               `json:"by_status"`
	BySeverity           map[string]int               `json:"by_severity"`
	ByCategory           map[string]CategoryBreakdown `json:"by_category"`
	MonthlyTrend         []MonthlyTrendPoint          `json:"monthly_trend"`
}

// VendorSummary aggregates cases for one vendor
type VendorSummary struct {
	Vendor         string          `json:"vendor"`
	CaseCount      int             `json:"case_count"`
	OpenCases      int             `json:"open_cases"`
	TotalLeakage   decimal.Decimal `json:"total_leakage"`
	TotalRecovered decimal.Decimal `json:"total_recovered"`
	Categories     map[string]int  `json:"categories"`
}

// ValidationRule describes one check the engine performs
type ValidationRule struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Domain      string `json:"domain"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Threshold   string `json:"threshold"`
}

// AnalyticsService derives read-only summaries from the case store
type AnalyticsService struct {
	caseRepo   leakage.CaseRepository
	thresholds leakage.Thresholds
}

// NewAnalyticsService creates a new AnalyticsService
func NewAnalyticsService(caseRepo leakage.CaseRepository, thresholds leakage.Thresholds) *AnalyticsService {
	return &AnalyticsService{caseRepo: caseRepo, thresholds: thresholds}
}

func (s *AnalyticsService) allCases(ctx context.Context) ([]leakage.LeakageCase, error) {
	cases, _, err := s.caseRepo.FindAll(ctx, leakage.CaseFilter{})
	return cases, err
}

// Dashboard returns totals, breakdowns and the monthly trend
func (s *AnalyticsService) Dashboard(ctx context.Context) (*DashboardSummary, error) {
	cases, err := s.allCases(ctx)
	if err != nil {
		return nil, err
	}
	sum := &DashboardSummary{
		TotalLeakage:   decimal.Zero,
		TotalRecovered: decimal.Zero,
		RecoveryRate:   decimal.Zero,
		ByStatus:       make(map[string]int),
		BySeverity:     make(map[string]int),
		ByCategory:     make(map[string]CategoryBreakdown),
		MonthlyTrend:   []MonthlyTrendPoint{},
	}
	months := make(map[string]*MonthlyTrendPoint)
	for i := range cases {
		c := &cases[i]
		sum.TotalCases++
		sum.TotalLeakage = sum.TotalLeakage.Add(c.LeakageAmount)
		sum.TotalRecovered = sum.TotalRecovered.Add(c.RecoveredAmount)
		sum.ByStatus[c.Status.String()]++
		sum.BySeverity[c.Severity.String()]++
		cb := sum.ByCategory[c.Category.String()]
		cb.Count++
		cb.Leakage = cb.Leakage.Add(c.LeakageAmount)
		sum.ByCategory[c.Category.String()] = cb

		if !c.IsTerminal() {
			sum.OpenCases++
			switch c.SLAStatus {
			case leakage.SLAStatusBreached:
				sum.BreachedCases++
			case leakage.SLAStatusAtRisk:
				sum.AtRiskCases++
			}
		}
		switch c.Status {
		case leakage.CaseStatusNew, leakage.CaseStatusTriaged, leakage.CaseStatusInvestigating:
			sum.PendingInvestigation++
		}

		key := c.CreatedAt.UTC().Format("2006-01")
		p, ok := months[key]
		if !ok {
			p = &MonthlyTrendPoint{Month: key, Detected: decimal.Zero, Recovered: decimal.Zero}
			months[key] = p
		}
		p.Cases++
		p.Detected = p.Detected.Add(c.LeakageAmount)
		p.Recovered = p.Recovered.Add(c.RecoveredAmount)
	}
	if rate := valueobject.PercentOf(sum.TotalRecovered, sum.TotalLeakage); rate != nil {
		sum.RecoveryRate = rate.Round(2)
	}
	for _, p := range months {
		sum.MonthlyTrend = append(sum.MonthlyTrend, *p)
	}
	sort.Slice(sum.MonthlyTrend, func(i, j int) bool {
		return sum.MonthlyTrend[i].Month < sum.MonthlyTrend[j].Month
	})
	return sum, nil
}

// VendorAnalytics returns vendors ranked by total leakage, at most limit of them
func (s *AnalyticsService) VendorAnalytics(ctx context.Context, limit int) ([]VendorSummary, error) {
	if limit <= 0 {
		limit = defaultTopVendors
	}
	cases, err := s.allCases(ctx)
	if err != nil {
		return nil, err
	}
	byVendor := make(map[string]*VendorSummary)
	for i := range cases {
		c := &cases[i]
		v, ok := byVendor[c.Vendor]
		if !ok {
			v = &VendorSummary{
				Vendor:         c.Vendor,
				TotalLeakage:   decimal.Zero,
				TotalRecovered: decimal.Zero,
				Categories:     make(map[string]int),
			}
			byVendor[c.Vendor] = v
		}
		v.CaseCount++
		if !c.IsTerminal() {
			v.OpenCases++
		}
		v.TotalLeakage = v.TotalLeakage.Add(c.LeakageAmount)
		v.TotalRecovered = v.TotalRecovered.Add(c.RecoveredAmount)
		v.Categories[c.Category.String()]++
	}
	out := make([]VendorSummary, 0, len(byVendor))
	for _, v := range byVendor {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TotalLeakage.Equal(out[j].TotalLeakage) {
			return out[i].TotalLeakage.GreaterThan(out[j].TotalLeakage)
		}
		return out[i].Vendor < out[j].Vendor
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ValidationRules lists the checks with thresholds rendered from configuration
func (s *AnalyticsService) ValidationRules() []ValidationRule {
	th := s.thresholds
	return []ValidationRule{
		{
			ID: "RATE_001", Name: "Rate card compliance", Domain: leakage.DomainLogistics.String(),
			Description: "Trip sheet kilometers multiplied by the contracted per-km rate must match the invoiced amount",
			Severity:    leakage.SeverityHigh.String(),
			Threshold:   fmt.Sprintf("compliant below %s%%, minor variance up to %s%%, flagged above", th.RateCardCompliantPercent, th.RateCardMinorPercent),
		},
		{
			ID: "LIC_001", Name: "License count compliance", Domain: leakage.DomainSaaS.String(),
			Description: "Licenses billed must not exceed licenses on the purchase order",
			Severity:    leakage.SeverityHigh.String(),
			Threshold:   fmt.Sprintf("flagged when over PO and contract by more than %s%%; under-utilized below %s%% usage", th.SaaSLargeMarginPercent, th.SaaSUtilizationPercent),
		},
		{
			ID: "FEE_001", Name: "Recruitment fee slab", Domain: leakage.DomainRecruitment.String(),
			Description: "Placement fee must equal CTC times the fee percent of the matching salary slab",
			Severity:    leakage.SeverityMedium.String(),
			Threshold:   fmt.Sprintf("overcharge above %s%% escalates to high severity", th.RecruitmentEscalationPercent),
		},
		{
			ID: "QTY_001", Name: "Deliverable quantity", Domain: leakage.DomainMarketing.String(),
			Description: "Billed deliverable quantities must match the statement of work",
			Severity:    leakage.SeverityMedium.String(),
			Threshold:   "any overbilled line; unverified shortfalls are flagged",
		},
		{
			ID: "PRICE_001", Name: "Unit price variance", Domain: leakage.DomainInfrastructure.String(),
			Description: "Unit prices are compared with the historical average price per item",
			Severity:    leakage.SeverityMedium.String(),
			Threshold:   fmt.Sprintf("high above %s%%, outlier above %s%%", th.InfraHighPercent, th.InfraOutlierPercent),
		},
		{
			ID: "DUP_001", Name: "Duplicate payment", Domain: leakage.DomainDuplicate.String(),
			Description: "Payments are matched against the vendor ledger by invoice number and amount",
			Severity:    leakage.SeverityCritical.String(),
			Threshold:   fmt.Sprintf("%d month lookback, amount tolerance %s%%", th.DuplicateLookbackMonths, th.DuplicateAmountTolerancePercent),
		},
		{
			ID: "ADD_001", Name: "Addendum timing", Domain: leakage.DomainAddendum.String(),
			Description: "Applied rates must come from the addendum version effective for the service period",
			Severity:    leakage.SeverityHigh.String(),
			Threshold:   "any positive potential overcharge",
		},
	}
}
