package leakage

import (
	"context"
	"time"

	"github.com/spendaudit/backend/internal/domain/leakage"
)

// Lock is a held lock
type Lock interface {
	Release(ctx context.Context) error
}

// Locker serializes writers that share a key
type Locker interface {
	// Acquire blocks until the lock for key is held or ctx is done
	Acquire(ctx context.Context, key string) (Lock, error)
}

// Metrics records business metrics for evaluations and SLA sweeps
type Metrics interface {
	RecordEvaluation(ctx context.Context, r *leakage.DiscrepancyResult, elapsed time.Duration)
	RecordEvaluationFailure(ctx context.Context, domain leakage.Domain)
	RecordSLASweep(ctx context.Context, checked, updated int, elapsed time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) RecordEvaluation(context.Context, *leakage.DiscrepancyResult, time.Duration) {}
func (noopMetrics) RecordEvaluationFailure(context.Context, leakage.Domain)                      {}
func (noopMetrics) RecordSLASweep(context.Context, int, int, time.Duration)                      {}
