package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	appleakage "github.com/spendaudit/backend/internal/application/leakage"
	"github.com/spendaudit/backend/internal/infrastructure/lock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweeper struct {
	calls   atomic.Int32
	err     error
	block   chan struct{}
	started chan struct{}
}

func (f *fakeSweeper) Sweep(ctx context.Context) (*appleakage.SweepResult, error) {
	f.calls.Add(1)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &appleakage.SweepResult{Checked: 3, Updated: 1, Counts: map[string]int{"on_track": 3}}, nil
}

func testMonitorConfig() SLAMonitorConfig {
	cfg := DefaultSLAMonitorConfig()
	cfg.Interval = 10 * time.Millisecond
	cfg.SweepTimeout = time.Second
	cfg.LockWait = 20 * time.Millisecond
	return cfg
}

func TestSLAMonitorConfig_Validate(t *testing.T) {
	cfg := DefaultSLAMonitorConfig()
	require.NoError(t, cfg.Validate())

	cfg.Interval = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultSLAMonitorConfig()
	cfg.SweepTimeout = -time.Second
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	_, err := NewSLAMonitor(cfg, &fakeSweeper{}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSLAMonitor_RunNow(t *testing.T) {
	sweeper := &fakeSweeper{}
	m, err := NewSLAMonitor(testMonitorConfig(), sweeper, nil)
	require.NoError(t, err)
	assert.Nil(t, m.LastRun())

	run, err := m.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RunStatusSuccess, run.Status)
	assert.Equal(t, TriggerManual, run.Trigger)
	require.NotNil(t, run.Result)
	assert.Equal(t, 1, run.Result.Updated)
	assert.NotNil(t, run.CompletedAt)

	last := m.LastRun()
	require.NotNil(t, last)
	assert.Equal(t, run.ID, last.ID)
}

func TestSLAMonitor_RunNowFailure(t *testing.T) {
	sweeper := &fakeSweeper{err: errors.New("database unavailable")}
	m, err := NewSLAMonitor(testMonitorConfig(), sweeper, nil)
	require.NoError(t, err)

	run, err := m.RunNow(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database unavailable")
	assert.Equal(t, RunStatusFailed, run.Status)
	assert.Equal(t, RunStatusFailed, m.LastRun().Status)
}

func TestSLAMonitor_RejectsOverlappingSweeps(t *testing.T) {
	sweeper := &fakeSweeper{block: make(chan struct{}), started: make(chan struct{}, 1)}
	m, err := NewSLAMonitor(testMonitorConfig(), sweeper, nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := m.RunNow(context.Background())
		done <- err
	}()
	<-sweeper.started

	_, err = m.RunNow(context.Background())
	assert.ErrorIs(t, err, ErrSweepInProgress)

	close(sweeper.block)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), sweeper.calls.Load())
}

func TestSLAMonitor_SkipsWhenLockHeld(t *testing.T) {
	locker := lock.NewLocalLocker()
	cfg := testMonitorConfig()
	sweeper := &fakeSweeper{}
	m, err := NewSLAMonitor(cfg, sweeper, nil, WithSweepLocker(locker))
	require.NoError(t, err)

	held, err := locker.Acquire(context.Background(), cfg.LockKey)
	require.NoError(t, err)

	run, err := m.RunNow(context.Background())
	assert.ErrorIs(t, err, ErrSweepInProgress)
	assert.Equal(t, RunStatusSkipped, run.Status)
	assert.Zero(t, sweeper.calls.Load())

	require.NoError(t, held.Release(context.Background()))

	run, err = m.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RunStatusSuccess, run.Status)
}

func TestSLAMonitor_StartStop(t *testing.T) {
	sweeper := &fakeSweeper{}
	m, err := NewSLAMonitor(testMonitorConfig(), sweeper, nil)
	require.NoError(t, err)

	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Start(context.Background()))
	assert.True(t, m.IsRunning())

	assert.Eventually(t, func() bool { return sweeper.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Stop(ctx))
	assert.False(t, m.IsRunning())
	require.NoError(t, m.Stop(ctx))

	calls := sweeper.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, sweeper.calls.Load())
}

func TestSLAMonitor_Disabled(t *testing.T) {
	cfg := testMonitorConfig()
	cfg.Enabled = false
	sweeper := &fakeSweeper{}
	m, err := NewSLAMonitor(cfg, sweeper, nil)
	require.NoError(t, err)

	require.NoError(t, m.Start(context.Background()))
	assert.False(t, m.IsRunning())

	_, err = m.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), sweeper.calls.Load())
}
