// Package scheduler runs background jobs. The SLA monitor periodically
// recomputes the SLA status of open leakage cases.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	appleakage "github.com/spendaudit/backend/internal/application/leakage"
	"go.uber.org/zap"
)

// RunStatus represents the outcome of one sweep run
type RunStatus string

const (
	RunStatusRunning RunStatus = "RUNNING"
	RunStatusSuccess RunStatus = "SUCCESS"
	RunStatusFailed  RunStatus = "FAILED"
	RunStatusSkipped RunStatus = "SKIPPED"
)

// Trigger names what started a sweep
const (
	TriggerStartup  = "startup"
	TriggerInterval = "interval"
	TriggerManual   = "manual"
)

// Sweeper recomputes SLA statuses
type Sweeper interface {
	Sweep(ctx context.Context) (*appleakage.SweepResult, error)
}

// SweepRun records one sweep attempt
type SweepRun struct {
	ID          uuid.UUID               `json:"id"`
	Trigger     string                  `json:"trigger"`
	Status      RunStatus               `json:"status"`
	Error       string                  `json:"error,omitempty"`
	StartedAt   time.Time               `json:"started_at"`
	CompletedAt *time.Time              `json:"completed_at,omitempty"`
	Result      *appleakage.SweepResult `json:"result,omitempty"`
}

func newSweepRun(trigger string) *SweepRun {
	return &SweepRun{
		ID:        uuid.New(),
		Trigger:   trigger,
		Status:    RunStatusRunning,
		StartedAt: time.Now(),
	}
}

func (r *SweepRun) finish(status RunStatus, err error) {
	now := time.Now()
	r.Status = status
	r.CompletedAt = &now
	if err != nil {
		r.Error = err.Error()
	}
}

// SLAMonitorConfig holds SLA monitor configuration
type SLAMonitorConfig struct {
	// Enabled determines if the periodic loop runs. Manual sweeps work either way.
	Enabled bool

	// Interval between periodic sweeps
	Interval time.Duration

	// SweepTimeout bounds a single sweep
	SweepTimeout time.Duration

	// RunOnStart sweeps once immediately after Start
	RunOnStart bool

	// LockKey is the lock that keeps replicas from sweeping at the same time
	LockKey string

	// LockWait is how long a sweep waits for LockKey before skipping
	LockWait time.Duration
}

// DefaultSLAMonitorConfig returns default configuration
func DefaultSLAMonitorConfig() SLAMonitorConfig {
	return SLAMonitorConfig{
		Enabled:      true,
		Interval:     15 * time.Minute,
		SweepTimeout: 5 * time.Minute,
		RunOnStart:   true,
		LockKey:      "leakage:sla-sweep",
		LockWait:     2 * time.Second,
	}
}

// Validate checks the configuration
func (c SLAMonitorConfig) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}
	if c.SweepTimeout <= 0 {
		return fmt.Errorf("%w: sweep timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// SLAMonitorOption configures an SLAMonitor
type SLAMonitorOption func(*SLAMonitor)

// WithSweepLocker makes every sweep hold the configured lock key
func WithSweepLocker(l appleakage.Locker) SLAMonitorOption {
	return func(m *SLAMonitor) { m.locker = l }
}

// SLAMonitor runs SLA sweeps on an interval and on demand.
// At most one sweep runs at a time per process; with a shared locker, per deployment.
type SLAMonitor struct {
	config  SLAMonitorConfig
	sweeper Sweeper
	locker  appleakage.Locker
	logger  *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	sweeping  atomic.Bool

	runMu   sync.RWMutex
	lastRun *SweepRun
}

// NewSLAMonitor creates a new SLA monitor
func NewSLAMonitor(config SLAMonitorConfig, sweeper Sweeper, logger *zap.Logger, opts ...SLAMonitorOption) (*SLAMonitor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultSLAMonitorConfig()
	if config.LockKey == "" {
		config.LockKey = defaults.LockKey
	}
	if config.LockWait <= 0 {
		config.LockWait = defaults.LockWait
	}
	m := &SLAMonitor{
		config:  config,
		sweeper: sweeper,
		logger:  logger.Named("sla_monitor"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Start starts the periodic loop. Calling it twice is a no-op.
func (m *SLAMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.isRunning {
		m.mu.Unlock()
		return nil
	}
	if !m.config.Enabled {
		m.mu.Unlock()
		m.logger.Info("SLA monitor is disabled")
		return nil
	}
	m.isRunning = true
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	m.wg.Add(1)
	go m.runLoop(ctx)

	m.logger.Info("SLA monitor started",
		zap.Duration("interval", m.config.Interval),
		zap.Bool("run_on_start", m.config.RunOnStart),
	)
	return nil
}

// Stop stops the loop and waits for an in-flight sweep, bounded by ctx
func (m *SLAMonitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.isRunning {
		m.mu.Unlock()
		return nil
	}
	m.isRunning = false
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("SLA monitor stopped gracefully")
		return nil
	case <-ctx.Done():
		m.logger.Warn("SLA monitor stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the periodic loop is active
func (m *SLAMonitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isRunning
}

// LastRun returns a copy of the most recent sweep run, or nil
func (m *SLAMonitor) LastRun() *SweepRun {
	m.runMu.RLock()
	defer m.runMu.RUnlock()
	if m.lastRun == nil {
		return nil
	}
	run := *m.lastRun
	return &run
}

// RunNow sweeps immediately. It returns ErrSweepInProgress when another
// sweep holds the process slot or the shared lock.
func (m *SLAMonitor) RunNow(ctx context.Context) (*SweepRun, error) {
	run, err := m.execute(ctx, TriggerManual)
	if err != nil {
		return run, err
	}
	if run.Status == RunStatusSkipped {
		return run, ErrSweepInProgress
	}
	if run.Status == RunStatusFailed {
		return run, fmt.Errorf("SLA sweep failed: %s", run.Error)
	}
	return run, nil
}

func (m *SLAMonitor) runLoop(ctx context.Context) {
	defer m.wg.Done()

	if m.config.RunOnStart {
		m.tick(ctx, TriggerStartup)
	}

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Debug("SLA monitor loop stopping")
			return
		case <-ticker.C:
			m.tick(ctx, TriggerInterval)
		}
	}
}

func (m *SLAMonitor) tick(ctx context.Context, trigger string) {
	run, err := m.execute(ctx, trigger)
	if err != nil {
		m.logger.Debug("SLA sweep not started", zap.String("trigger", trigger), zap.Error(err))
		return
	}
	if run.Status == RunStatusFailed {
		m.logger.Error("SLA sweep failed",
			zap.String("run_id", run.ID.String()),
			zap.String("trigger", trigger),
			zap.String("error", run.Error),
		)
	}
}

// execute runs one sweep. An error means no run was attempted.
func (m *SLAMonitor) execute(ctx context.Context, trigger string) (*SweepRun, error) {
	if !m.sweeping.CompareAndSwap(false, true) {
		return nil, ErrSweepInProgress
	}
	defer m.sweeping.Store(false)

	run := newSweepRun(trigger)
	defer m.record(run)

	if m.locker != nil {
		lockCtx, cancel := context.WithTimeout(ctx, m.config.LockWait)
		lock, err := m.locker.Acquire(lockCtx, m.config.LockKey)
		cancel()
		if err != nil {
			m.logger.Debug("SLA sweep lock held elsewhere, skipping",
				zap.String("lock_key", m.config.LockKey),
				zap.Error(err),
			)
			run.finish(RunStatusSkipped, nil)
			return run, nil
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("failed to release SLA sweep lock", zap.Error(err))
			}
		}()
	}

	sweepCtx, cancel := context.WithTimeout(ctx, m.config.SweepTimeout)
	defer cancel()

	result, err := m.sweeper.Sweep(sweepCtx)
	if err != nil {
		run.finish(RunStatusFailed, err)
		return run, nil
	}
	run.Result = result
	run.finish(RunStatusSuccess, nil)

	m.logger.Info("SLA sweep completed",
		zap.String("run_id", run.ID.String()),
		zap.String("trigger", trigger),
		zap.Int("checked", result.Checked),
		zap.Int("updated", result.Updated),
	)
	return run, nil
}

func (m *SLAMonitor) record(run *SweepRun) {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	m.lastRun = run
}
