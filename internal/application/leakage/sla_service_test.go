package leakage

import (
	"context"
	"testing"
	"time"

	"github.com/spendaudit/backend/internal/domain/leakage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSLAService_SweepIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	low := f.openFlaggedCase(ctx, "TRK-200")

	svc := NewSLAService(f.cases, 0.25, zap.NewNop(), f.metrics)
	day := 24 * time.Hour

	svc.SetClock(func() time.Time { return testNow.Add(day) })
	res, err := svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Checked)
	assert.Zero(t, res.Updated)
	assert.Equal(t, 1, res.Counts[string(leakage.SLAStatusOnTrack)])

	// past due
	svc.SetClock(func() time.Time { return low.DueDate.Add(time.Minute) })
	res, err = svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	res, err = svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Updated)
	assert.Equal(t, 1, res.Counts[string(leakage.SLAStatusBreached)])

	stored, err := f.cases.FindByID(ctx, low.ID)
	require.NoError(t, err)
	assert.Equal(t, leakage.SLAStatusBreached, stored.SLAStatus)
	assert.Equal(t, low.Version, stored.Version)
	assert.Len(t, stored.Activities, len(low.Activities))
	assert.Equal(t, 3, f.metrics.sweeps)
}

func TestSLAService_AtRiskBeforeDue(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	c := f.openFlaggedCase(ctx, "TRK-201")

	svc := NewSLAService(f.cases, 0.25, nil, nil)
	window := c.DueDate.Sub(c.CreatedAt)
	svc.SetClock(func() time.Time { return c.DueDate.Add(-window / 10) })

	res, err := svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Counts[string(leakage.SLAStatusAtRisk)])
}

func TestSLAService_SkipsTerminalCases(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	c := f.openFlaggedCase(ctx, "TRK-202")
	cases := newCaseService(f, f.cases)
	_, err := cases.Transition(ctx, TransitionCommand{CaseID: c.ID, To: leakage.CaseStatusFalsePositive, Actor: "lead"})
	require.NoError(t, err)

	svc := NewSLAService(f.cases, 0.25, nil, nil)
	svc.SetClock(func() time.Time { return c.DueDate.Add(time.Hour) })
	res, err := svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Checked)

	stored, err := f.cases.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, leakage.SLAStatusOnTrack, stored.SLAStatus)
}

func TestSLAService_ContinuesPastWriteFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	bad := f.openFlaggedCase(ctx, "TRK-203")
	good := f.openFlaggedCase(ctx, "TRK-204")

	repo := &failingSLARepo{InMemoryCaseRepository: f.cases, failFor: bad.CaseNumber}
	svc := NewSLAService(repo, 0.25, nil, nil)
	svc.SetClock(func() time.Time { return good.DueDate.Add(time.Hour) })

	res, err := svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Checked)
	assert.Equal(t, 1, res.Updated)

	stored, err := f.cases.FindByID(ctx, good.ID)
	require.NoError(t, err)
	assert.Equal(t, leakage.SLAStatusBreached, stored.SLAStatus)
}

func TestSLAService_CaseClosedDuringSweep(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	c := f.openFlaggedCase(ctx, "TRK-205")

	open, err := f.cases.FindOpen(ctx)
	require.NoError(t, err)
	_, err = newCaseService(f, f.cases).Transition(ctx, TransitionCommand{CaseID: c.ID, To: leakage.CaseStatusFalsePositive, Actor: "lead"})
	require.NoError(t, err)

	repo := &staleOpenRepo{InMemoryCaseRepository: f.cases, snapshot: open}
	svc := NewSLAService(repo, 0.25, nil, nil)
	svc.SetClock(func() time.Time { return c.DueDate.Add(time.Hour) })

	res, err := svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Checked)
	assert.Zero(t, res.Updated)

	stored, err := f.cases.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, leakage.CaseStatusFalsePositive, stored.Status)
	assert.Equal(t, leakage.SLAStatusOnTrack, stored.SLAStatus)
}
