package telemetry

import (
	"context"
	"time"

	"github.com/spendaudit/backend/internal/infrastructure/config"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for store query spans.
type DBTracingConfig struct {
	Enabled bool
	// IncludeVariables puts bound values into db.statement. Case evidence and
	// vendor data end up in spans, so keep it off outside development.
	IncludeVariables bool
	// SlowQueryThreshold flags spans of slower statements (default 200ms)
	SlowQueryThreshold time.Duration
	// DBName is reported as db.name
	DBName string
	// TracerProvider overrides the global provider. Nil uses the global one.
	TracerProvider trace.TracerProvider
}

// DefaultDBTracingConfig returns default configuration for store tracing.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		Enabled:            false,
		SlowQueryThreshold: 200 * time.Millisecond,
		DBName:             "leakage",
	}
}

// DBTracingConfigFrom maps the telemetry section to store tracing. Statement
// spans need both telemetry and db_tracing enabled.
func DBTracingConfigFrom(cfg config.TelemetryConfig, dbName string) DBTracingConfig {
	out := DefaultDBTracingConfig()
	out.Enabled = cfg.Enabled && cfg.DBTracing
	out.IncludeVariables = cfg.TraceSQLVariables
	if dbName != "" {
		out.DBName = dbName
	}
	return out
}

type dbTracingStartKey struct{}

// RegisterDBTracing installs otelgorm on db so every statement gets a client
// span under the caller's span, plus slow-query flagging on those spans.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		logger.Debug("Store tracing disabled, skipping otelgorm registration")
		return nil
	}
	if cfg.SlowQueryThreshold <= 0 {
		cfg.SlowQueryThreshold = DefaultDBTracingConfig().SlowQueryThreshold
	}

	// pool stats are sampled by DBMetrics
	opts := []otelgorm.Option{otelgorm.WithoutMetrics()}
	if cfg.DBName != "" {
		opts = append(opts, otelgorm.WithDBName(cfg.DBName))
	}
	if !cfg.IncludeVariables {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if cfg.TracerProvider != nil {
		opts = append(opts, otelgorm.WithTracerProvider(cfg.TracerProvider))
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}
	if err := registerSlowQuerySpans(db, cfg.SlowQueryThreshold); err != nil {
		return err
	}

	logger.Info("Store tracing enabled",
		zap.Bool("include_variables", cfg.IncludeVariables),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThreshold),
	)
	return nil
}

// registerSlowQuerySpans times each statement and annotates its span before
// otelgorm ends it.
func registerSlowQuerySpans(db *gorm.DB, threshold time.Duration) error {
	before := func(tx *gorm.DB) {
		if tx.Statement.Context != nil {
			tx.Statement.Context = context.WithValue(tx.Statement.Context, dbTracingStartKey{}, time.Now())
		}
	}
	after := func(tx *gorm.DB) {
		ctx := tx.Statement.Context
		if ctx == nil {
			return
		}
		span := trace.SpanFromContext(ctx)
		if !span.IsRecording() {
			return
		}
		start, ok := ctx.Value(dbTracingStartKey{}).(time.Time)
		if !ok {
			return
		}
		if elapsed := time.Since(start); elapsed > threshold {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
			)
			span.AddEvent("slow_query_warning", trace.WithAttributes(
				attribute.Int64("duration_ms", elapsed.Milliseconds()),
				attribute.Int64("threshold_ms", threshold.Milliseconds()),
			))
		}
	}

	cb := db.Callback()
	registrations := []func() error{
		func() error { return cb.Create().Before("gorm:create").Register("leakage_tracing:before_create", before) },
		func() error { return cb.Query().Before("gorm:query").Register("leakage_tracing:before_query", before) },
		func() error { return cb.Update().Before("gorm:update").Register("leakage_tracing:before_update", before) },
		func() error { return cb.Delete().Before("gorm:delete").Register("leakage_tracing:before_delete", before) },
		func() error { return cb.Row().Before("gorm:row").Register("leakage_tracing:before_row", before) },
		func() error { return cb.Raw().Before("gorm:raw").Register("leakage_tracing:before_raw", before) },
		func() error {
			return cb.Create().After("gorm:create").Before("otel:after:create").Register("leakage_tracing:after_create", after)
		},
		func() error {
			return cb.Query().After("gorm:query").Before("otel:after:select").Register("leakage_tracing:after_query", after)
		},
		func() error {
			return cb.Update().After("gorm:update").Before("otel:after:update").Register("leakage_tracing:after_update", after)
		},
		func() error {
			return cb.Delete().After("gorm:delete").Before("otel:after:delete").Register("leakage_tracing:after_delete", after)
		},
		func() error {
			return cb.Row().After("gorm:row").Before("otel:after:row").Register("leakage_tracing:after_row", after)
		},
		func() error {
			return cb.Raw().After("gorm:raw").Before("otel:after:raw").Register("leakage_tracing:after_raw", after)
		},
	}
	for _, register := range registrations {
		if err := register(); err != nil {
			return err
		}
	}
	return nil
}
