package leakage

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/spendaudit/backend/internal/domain/shared"
	"github.com/spendaudit/backend/internal/domain/shared/strategy"
)

// Evaluation is the raw output of a domain evaluator before it is normalized
// into a DiscrepancyResult by the reconciliation service.
type Evaluation struct {
	Expected            decimal.Decimal
	Status              ResultStatus
	Lines               []LineDetail
	Metrics             map[string]decimal.Decimal
	PendingVerification bool
	SeverityFloor       Severity
	// Leakage overrides the default recoverable amount max(discrepancy, 0)
	Leakage             *decimal.Decimal
	RelatedTransactions []string
	Notes               []string
}

func newEvaluation(expected decimal.Decimal, status ResultStatus) *Evaluation {
	return &Evaluation{
		Expected: expected,
		Status:   status,
		Metrics:  make(map[string]decimal.Decimal),
	}
}

// Evaluator computes the expected value of an invoice for one domain.
// Implementations must be safe for concurrent use.
type Evaluator interface {
	strategy.Strategy
	// Domain returns the domain tag this evaluator handles
	Domain() Domain
	// Evaluate resolves the reference data for inv and evaluates it
	Evaluate(ctx context.Context, inv *Invoice, refs ReferenceProvider) (*Evaluation, error)
}

func missingReference(format string, args ...any) error {
	return shared.NewDomainErrorf(shared.CodeReferenceDataMissing, format, args...)
}

func ambiguousReference(format string, args ...any) error {
	return shared.NewDomainErrorf(shared.CodeReferenceDataAmbiguous, format, args...)
}

// DefaultEvaluators returns one evaluator per supported domain
func DefaultEvaluators(th Thresholds) []Evaluator {
	return []Evaluator{
		NewLogisticsEvaluator(th),
		NewSaaSEvaluator(th),
		NewRecruitmentEvaluator(th),
		NewMarketingEvaluator(),
		NewInfrastructureEvaluator(th),
		NewDuplicateEvaluator(th),
		NewAddendumEvaluator(),
	}
}
