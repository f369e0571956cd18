package leakage

// Domain identifies one of the spend domains the engine reconciles
type Domain string

const (
	DomainLogistics      Domain = "logistics"
	DomainSaaS           Domain = "saas"
	DomainRecruitment    Domain = "recruitment"
	DomainMarketing      Domain = "marketing"
	DomainInfrastructure Domain = "infrastructure"
	DomainDuplicate      Domain = "duplicate"
	DomainAddendum       Domain = "addendum"
)

// AllDomains returns every supported domain in a stable order
func AllDomains() []Domain {
	return []Domain{
		DomainLogistics,
		DomainSaaS,
		DomainRecruitment,
		DomainMarketing,
		DomainInfrastructure,
		DomainDuplicate,
		DomainAddendum,
	}
}

// IsValid checks if the domain is supported
func (d Domain) IsValid() bool {
	switch d {
	case DomainLogistics, DomainSaaS, DomainRecruitment, DomainMarketing,
		DomainInfrastructure, DomainDuplicate, DomainAddendum:
		return true
	}
	return false
}

// String returns the string representation of Domain
func (d Domain) String() string {
	return string(d)
}

// ResultStatus is the classification of a single invoice evaluation
type ResultStatus string

const (
	ResultStatusCompliant          ResultStatus = "compliant"
	ResultStatusMinorVariance      ResultStatus = "minor_variance"
	ResultStatusFlagged            ResultStatus = "flagged"
	ResultStatusUnresolved         ResultStatus = "unresolved"    // reference data missing
	ResultStatusManualReview       ResultStatus = "manual_review" // reference data ambiguous
	ResultStatusOverLicensed       ResultStatus = "over_licensed"
	ResultStatusUnderUtilized      ResultStatus = "under_utilized"
	ResultStatusOvercharged        ResultStatus = "overcharged"
	ResultStatusUndercharged       ResultStatus = "undercharged"
	ResultStatusPartialDelivery    ResultStatus = "partial_delivery"
	ResultStatusOverbilled         ResultStatus = "overbilled"
	ResultStatusVariance           ResultStatus = "variance"
	ResultStatusConfirmedDuplicate ResultStatus = "confirmed_duplicate"
	ResultStatusPotentialDuplicate ResultStatus = "potential_duplicate"
	ResultStatusUnderReview        ResultStatus = "under_review"
	ResultStatusAddendumMismatch   ResultStatus = "addendum_mismatch"
)

// String returns the string representation of ResultStatus
func (s ResultStatus) String() string {
	return string(s)
}

// Metric keys recorded on DiscrepancyResult.Metrics
const (
	MetricLicenseDiff         = "license_diff"
	MetricAmountDiff          = "amount_diff"
	MetricUtilizationPercent  = "utilization_percent"
	MetricFeePercent          = "fee_percent"
	MetricTotalVariance       = "total_variance"
	MetricTotalExpected       = "total_expected"
	MetricPotentialOvercharge = "potential_overcharge"
	MetricRateDifference      = "rate_difference"
	MetricDaysBetween         = "days_between"
	MetricMatchedPayments     = "matched_payments"
	MetricRatePerKm           = "rate_per_km"
)
