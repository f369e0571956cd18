package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spendaudit/backend/internal/domain/leakage"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Log        LogConfig
	HTTP       HTTPConfig
	SLA        SLAConfig
	Thresholds ThresholdsConfig
	Severity   SeverityConfig
	Batch      BatchConfig
	Lock       LockConfig
	Reference  ReferenceConfig
	Telemetry  TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // memory, postgres, sqlite
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	SQLitePath      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	MaxBatchSize     int
	BatchRateLimit   int           // batch requests per client per window, 0 disables
	BatchRateWindow  time.Duration
	CORSAllowOrigins []string
	TrustedProxies   []string
}

// SLAConfig holds SLA monitor settings
type SLAConfig struct {
	Enabled        bool
	CheckInterval  time.Duration
	AtRiskFraction float64
}

// ThresholdsConfig holds the evaluator boundaries, all in percent unless noted
type ThresholdsConfig struct {
	RateCardCompliantPercent        float64
	RateCardMinorPercent            float64
	SaaSUtilizationPercent          float64
	SaaSLargeMarginPercent          float64
	RecruitmentEscalationPercent    float64
	InfraHighPercent                float64
	InfraOutlierPercent             float64
	DuplicateLookbackMonths         int
	DuplicateAmountTolerancePercent float64
}

// SeverityConfig holds the severity bands and per-severity SLA windows
type SeverityConfig struct {
	CriticalAmount float64
	HighAmount     float64
	MediumAmount   float64
	CriticalSLA    time.Duration
	HighSLA        time.Duration
	MediumSLA      time.Duration
	LowSLA         time.Duration
}

// BatchConfig holds batch evaluation settings
type BatchConfig struct {
	Workers       int
	AutoOpenCases bool
}

// LockConfig holds case lock settings
type LockConfig struct {
	Backend       string // local, redis
	TTL           time.Duration
	RetryInterval time.Duration
	RetryLimit    int
	MaxRetries    int // version conflict retries
}

// ReferenceConfig holds reference data settings
type ReferenceConfig struct {
	Source      string // fixture, database
	FixturePath string
	CacheTTL    time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool   // Whether to export metrics
	CollectorEndpoint string // OTEL Collector endpoint (e.g., "localhost:4317")
	ServiceName       string
	Insecure          bool // Use insecure (non-TLS) connection (development only)
	ExportInterval    time.Duration
	SamplingRatio     float64 // Trace sampling ratio in [0, 1]
	DBTracing         bool    // Span every store statement when Enabled
	TraceSQLVariables bool    // Include bound values in statement spans (development only)
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with LEAKAGE_ prefix (e.g., LEAKAGE_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("LEAKAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Booleans default to true, so they must be registered to be overridable
	v.SetDefault("sla.enabled", true)
	v.SetDefault("batch.auto_open_cases", true)
	v.SetDefault("telemetry.sampling_ratio", 1.0)
	v.SetDefault("telemetry.db_tracing", true)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			SQLitePath:      v.GetString("database.sqlite_path"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			MaxBatchSize:     v.GetInt("http.max_batch_size"),
			BatchRateLimit:   v.GetInt("http.batch_rate_limit"),
			BatchRateWindow:  v.GetDuration("http.batch_rate_window"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
		},
		SLA: SLAConfig{
			Enabled:        v.GetBool("sla.enabled"),
			CheckInterval:  v.GetDuration("sla.check_interval"),
			AtRiskFraction: v.GetFloat64("sla.at_risk_fraction"),
		},
		Thresholds: ThresholdsConfig{
			RateCardCompliantPercent:        v.GetFloat64("thresholds.rate_card_compliant_percent"),
			RateCardMinorPercent:            v.GetFloat64("thresholds.rate_card_minor_percent"),
			SaaSUtilizationPercent:          v.GetFloat64("thresholds.saas_utilization_percent"),
			SaaSLargeMarginPercent:          v.GetFloat64("thresholds.saas_large_margin_percent"),
			RecruitmentEscalationPercent:    v.GetFloat64("thresholds.recruitment_escalation_percent"),
			InfraHighPercent:                v.GetFloat64("thresholds.infra_high_percent"),
			InfraOutlierPercent:             v.GetFloat64("thresholds.infra_outlier_percent"),
			DuplicateLookbackMonths:         v.GetInt("thresholds.duplicate_lookback_months"),
			DuplicateAmountTolerancePercent: v.GetFloat64("thresholds.duplicate_amount_tolerance_percent"),
		},
		Severity: SeverityConfig{
			CriticalAmount: v.GetFloat64("severity.critical_amount"),
			HighAmount:     v.GetFloat64("severity.high_amount"),
			MediumAmount:   v.GetFloat64("severity.medium_amount"),
			CriticalSLA:    v.GetDuration("severity.critical_sla"),
			HighSLA:        v.GetDuration("severity.high_sla"),
			MediumSLA:      v.GetDuration("severity.medium_sla"),
			LowSLA:         v.GetDuration("severity.low_sla"),
		},
		Batch: BatchConfig{
			Workers:       v.GetInt("batch.workers"),
			AutoOpenCases: v.GetBool("batch.auto_open_cases"),
		},
		Lock: LockConfig{
			Backend:       v.GetString("lock.backend"),
			TTL:           v.GetDuration("lock.ttl"),
			RetryInterval: v.GetDuration("lock.retry_interval"),
			RetryLimit:    v.GetInt("lock.retry_limit"),
			MaxRetries:    v.GetInt("lock.max_retries"),
		},
		Reference: ReferenceConfig{
			Source:      v.GetString("reference.source"),
			FixturePath: v.GetString("reference.fixture_path"),
			CacheTTL:    v.GetDuration("reference.cache_ttl"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			ExportInterval:    v.GetDuration("telemetry.export_interval"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			DBTracing:         v.GetBool("telemetry.db_tracing"),
			TraceSQLVariables: v.GetBool("telemetry.trace_sql_variables"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	day := 24 * time.Hour
	if cfg.App.Name == "" {
		cfg.App.Name = "leakage-engine"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "memory"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "leakage"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "leakage.db"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 60 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 10 << 20 // 10MB
	}
	if cfg.HTTP.MaxBatchSize == 0 {
		cfg.HTTP.MaxBatchSize = 1000
	}
	if cfg.HTTP.BatchRateWindow == 0 {
		cfg.HTTP.BatchRateWindow = time.Minute
	}
	if cfg.SLA.CheckInterval == 0 {
		cfg.SLA.CheckInterval = 15 * time.Minute
	}
	if cfg.SLA.AtRiskFraction == 0 {
		cfg.SLA.AtRiskFraction = leakage.DefaultAtRiskFraction
	}

	th := leakage.DefaultThresholds()
	setPercent(&cfg.Thresholds.RateCardCompliantPercent, th.RateCardCompliantPercent)
	setPercent(&cfg.Thresholds.RateCardMinorPercent, th.RateCardMinorPercent)
	setPercent(&cfg.Thresholds.SaaSUtilizationPercent, th.SaaSUtilizationPercent)
	setPercent(&cfg.Thresholds.SaaSLargeMarginPercent, th.SaaSLargeMarginPercent)
	setPercent(&cfg.Thresholds.RecruitmentEscalationPercent, th.RecruitmentEscalationPercent)
	setPercent(&cfg.Thresholds.InfraHighPercent, th.InfraHighPercent)
	setPercent(&cfg.Thresholds.InfraOutlierPercent, th.InfraOutlierPercent)
	setPercent(&cfg.Thresholds.DuplicateAmountTolerancePercent, th.DuplicateAmountTolerancePercent)
	if cfg.Thresholds.DuplicateLookbackMonths == 0 {
		cfg.Thresholds.DuplicateLookbackMonths = th.DuplicateLookbackMonths
	}

	if cfg.Severity.CriticalAmount == 0 {
		cfg.Severity.CriticalAmount = 500000
	}
	if cfg.Severity.HighAmount == 0 {
		cfg.Severity.HighAmount = 100000
	}
	if cfg.Severity.MediumAmount == 0 {
		cfg.Severity.MediumAmount = 10000
	}
	if cfg.Severity.CriticalSLA == 0 {
		cfg.Severity.CriticalSLA = 3 * day
	}
	if cfg.Severity.HighSLA == 0 {
		cfg.Severity.HighSLA = 7 * day
	}
	if cfg.Severity.MediumSLA == 0 {
		cfg.Severity.MediumSLA = 14 * day
	}
	if cfg.Severity.LowSLA == 0 {
		cfg.Severity.LowSLA = 30 * day
	}

	if cfg.Batch.Workers == 0 {
		cfg.Batch.Workers = 8
	}
	if cfg.Lock.Backend == "" {
		cfg.Lock.Backend = "local"
	}
	if cfg.Lock.TTL == 0 {
		cfg.Lock.TTL = 30 * time.Second
	}
	if cfg.Lock.RetryInterval == 0 {
		cfg.Lock.RetryInterval = 50 * time.Millisecond
	}
	if cfg.Lock.RetryLimit == 0 {
		cfg.Lock.RetryLimit = 100
	}
	if cfg.Lock.MaxRetries == 0 {
		cfg.Lock.MaxRetries = 3
	}
	if cfg.Reference.Source == "" {
		cfg.Reference.Source = "fixture"
	}
	if cfg.Reference.CacheTTL == 0 {
		cfg.Reference.CacheTTL = 10 * time.Minute
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "leakage-engine"
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = 30 * time.Second
	}
}

func setPercent(dst *float64, def decimal.Decimal) {
	if *dst == 0 {
		*dst = def.InexactFloat64()
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "memory", "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be one of memory, postgres, sqlite, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	switch c.Lock.Backend {
	case "local":
	case "redis":
		if !c.Redis.Enabled {
			return fmt.Errorf("lock.backend=redis requires redis.enabled=true")
		}
	default:
		return fmt.Errorf("lock.backend must be local or redis, got %q", c.Lock.Backend)
	}
	switch c.Reference.Source {
	case "fixture":
	case "database":
		if c.Database.Driver == "memory" {
			return fmt.Errorf("reference.source=database requires a postgres or sqlite database")
		}
	default:
		return fmt.Errorf("reference.source must be fixture or database, got %q", c.Reference.Source)
	}
	if c.SLA.AtRiskFraction <= 0 || c.SLA.AtRiskFraction >= 1 {
		return fmt.Errorf("sla.at_risk_fraction must be between 0 and 1, got %f", c.SLA.AtRiskFraction)
	}
	if c.Batch.Workers < 0 {
		return fmt.Errorf("batch.workers cannot be negative")
	}
	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0 and 1, got %f", c.Telemetry.SamplingRatio)
	}
	if !(c.Severity.CriticalAmount >= c.Severity.HighAmount && c.Severity.HighAmount >= c.Severity.MediumAmount) {
		return fmt.Errorf("severity amounts must satisfy critical >= high >= medium")
	}
	if err := c.LeakageThresholds().Validate(); err != nil {
		return fmt.Errorf("invalid thresholds: %w", err)
	}

	if c.App.Env == "production" {
		if c.Database.Driver == "postgres" {
			if c.Database.Password == "" {
				return fmt.Errorf("database.password is required in production")
			}
			if c.Database.SSLMode == "disable" {
				return fmt.Errorf("database.sslmode cannot be 'disable' in production")
			}
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}
	return nil
}

// LeakageThresholds converts the thresholds section into evaluator thresholds
func (c *Config) LeakageThresholds() leakage.Thresholds {
	t := c.Thresholds
	return leakage.Thresholds{
		RateCardCompliantPercent:        decimal.NewFromFloat(t.RateCardCompliantPercent),
		RateCardMinorPercent:            decimal.NewFromFloat(t.RateCardMinorPercent),
		SaaSUtilizationPercent:          decimal.NewFromFloat(t.SaaSUtilizationPercent),
		SaaSLargeMarginPercent:          decimal.NewFromFloat(t.SaaSLargeMarginPercent),
		RecruitmentEscalationPercent:    decimal.NewFromFloat(t.RecruitmentEscalationPercent),
		InfraHighPercent:                decimal.NewFromFloat(t.InfraHighPercent),
		InfraOutlierPercent:             decimal.NewFromFloat(t.InfraOutlierPercent),
		DuplicateLookbackMonths:         t.DuplicateLookbackMonths,
		DuplicateAmountTolerancePercent: decimal.NewFromFloat(t.DuplicateAmountTolerancePercent),
	}
}

// CasePolicy converts the severity section into a classifier policy
func (c *Config) CasePolicy() leakage.CasePolicy {
	s := c.Severity
	return leakage.CasePolicy{
		Severity: leakage.SeverityThresholds{
			Critical: decimal.NewFromFloat(s.CriticalAmount),
			High:     decimal.NewFromFloat(s.HighAmount),
			Medium:   decimal.NewFromFloat(s.MediumAmount),
		},
		SLAWindows: map[leakage.Severity]time.Duration{
			leakage.SeverityCritical: s.CriticalSLA,
			leakage.SeverityHigh:     s.HighSLA,
			leakage.SeverityMedium:   s.MediumSLA,
			leakage.SeverityLow:      s.LowSLA,
		},
	}
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
