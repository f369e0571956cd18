package leakage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spendaudit/backend/internal/domain/leakage"
	"github.com/spendaudit/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCaseService(f *fixture, repo leakage.CaseRepository, opts ...CaseServiceOption) *CaseService {
	base := []CaseServiceOption{
		WithCaseEventPublisher(f.publisher),
		WithCaseClock(func() time.Time { return testNow.Add(time.Hour) }),
	}
	return NewCaseService(repo, f.locker, append(base, opts...)...)
}

func TestCaseService_TransitionWalksLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	opened := f.openFlaggedCase(ctx, "TRK-100")
	svc := newCaseService(f, f.cases)

	steps := []leakage.CaseStatus{
		leakage.CaseStatusTriaged,
		leakage.CaseStatusInvestigating,
		leakage.CaseStatusPendingApproval,
		leakage.CaseStatusRecoveryInitiated,
	}
	var resp *CaseResponse
	var err error
	for _, to := range steps {
		resp, err = svc.Transition(ctx, TransitionCommand{CaseID: opened.ID, To: to, Actor: "lead", Note: "moving on"})
		require.NoError(t, err, "transition to %s", to)
	}
	assert.Equal(t, string(leakage.CaseStatusRecoveryInitiated), resp.Status)
	assert.Equal(t, opened.Version+len(steps), resp.Version)
	assert.Equal(t, []string{string(leakage.CaseStatusRecovered)}, resp.AllowedTransitions)

	resp, err = svc.MarkRecovered(ctx, opened.ID, d("300"), "lead", "credit note received")
	require.NoError(t, err)
	assert.Equal(t, string(leakage.CaseStatusRecovered), resp.Status)
	assert.True(t, d("200").Equal(resp.OutstandingAmount))

	resp, err = svc.Transition(ctx, TransitionCommand{CaseID: opened.ID, To: leakage.CaseStatusClosed, Actor: "lead"})
	require.NoError(t, err)
	assert.NotNil(t, resp.ClosedAt)

	assert.Contains(t, f.publisher.types(), leakage.EventTypeCaseRecovered)
	assert.Contains(t, f.publisher.types(), leakage.EventTypeCaseStatusChanged)
	assert.Len(t, f.locker.keys, 1+len(steps)+2)
	assert.Equal(t, len(f.locker.keys), f.locker.released)
}

func TestCaseService_InvalidTransitionLeavesCaseUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	opened := f.openFlaggedCase(ctx, "TRK-101")
	svc := newCaseService(f, f.cases)

	_, err := svc.Transition(ctx, TransitionCommand{CaseID: opened.ID, To: leakage.CaseStatusClosed, Actor: "lead"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInvalidTransition))

	stored, err := svc.GetCase(ctx, opened.ID)
	require.NoError(t, err)
	assert.Equal(t, opened.Version, stored.Version)
	assert.Len(t, stored.Activities, len(opened.Activities))
}

func TestCaseService_RetriesVersionConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	opened := f.openFlaggedCase(ctx, "TRK-102")
	repo := &conflictingCaseRepo{InMemoryCaseRepository: f.cases, conflicts: 2}
	svc := newCaseService(f, repo)

	resp, err := svc.Transition(ctx, TransitionCommand{CaseID: opened.ID, To: leakage.CaseStatusTriaged, Actor: "lead"})
	require.NoError(t, err)
	assert.Equal(t, 3, repo.saves)
	assert.Equal(t, opened.Version+1, resp.Version)
	assert.Len(t, resp.Activities, len(opened.Activities)+1)
}

func TestCaseService_GivesUpAfterMaxRetries(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	opened := f.openFlaggedCase(ctx, "TRK-103")
	repo := &conflictingCaseRepo{InMemoryCaseRepository: f.cases, conflicts: 10}
	svc := newCaseService(f, repo, WithMaxRetries(1))

	_, err := svc.Assign(ctx, opened.ID, "auditor", "lead")
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrConcurrencyConflict))
	assert.Equal(t, 2, repo.saves)

	stored, err := svc.GetCase(ctx, opened.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Assignee)
}

func TestCaseService_AssignCommentAndEvidence(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	opened := f.openFlaggedCase(ctx, "TRK-104")
	svc := newCaseService(f, f.cases)

	resp, err := svc.Assign(ctx, opened.ID, "auditor", "lead")
	require.NoError(t, err)
	require.NotNil(t, resp.Assignee)
	assert.Equal(t, "auditor", *resp.Assignee)

	resp, err = svc.AddComment(ctx, opened.ID, "auditor", "vendor contacted")
	require.NoError(t, err)

	resp, err = svc.AttachEvidence(ctx, opened.ID, leakage.Evidence{Name: "trip-sheet.pdf", Type: "document"}, "auditor")
	require.NoError(t, err)
	require.Len(t, resp.Evidence, 1)
	assert.Equal(t, "trip-sheet.pdf", resp.Evidence[0].Name)
	assert.Len(t, resp.Activities, len(opened.Activities)+3)

	_, err = svc.AddComment(ctx, opened.ID, "auditor", "  ")
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

func TestCaseService_MutationsKeepStoredSLAStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	opened := f.openFlaggedCase(ctx, "TRK-105")
	svc := newCaseService(f, f.cases)

	require.NoError(t, f.cases.UpdateSLAStatus(ctx, opened.ID, leakage.SLAStatusBreached))
	_, err := svc.Transition(ctx, TransitionCommand{CaseID: opened.ID, To: leakage.CaseStatusTriaged, Actor: "lead"})
	require.NoError(t, err)

	stored, err := svc.GetCase(ctx, opened.ID)
	require.NoError(t, err)
	assert.Equal(t, string(leakage.SLAStatusBreached), stored.SLAStatus)
}

func TestCaseService_ConcurrentWritersAllLand(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	opened := f.openFlaggedCase(ctx, "TRK-106")
	svc := NewCaseService(f.cases, &mutexLocker{})

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddComment(ctx, opened.ID, "auditor", "note")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := svc.GetCase(ctx, opened.ID)
	require.NoError(t, err)
	assert.Equal(t, opened.Version+writers, stored.Version)
	assert.Len(t, stored.Activities, len(opened.Activities)+writers)
}

func TestCaseService_Lookups(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	first := f.openFlaggedCase(ctx, "TRK-107")
	f.openFlaggedCase(ctx, "TRK-108")
	svc := newCaseService(f, f.cases)

	byNumber, err := svc.GetCaseByNumber(ctx, first.CaseNumber)
	require.NoError(t, err)
	assert.Equal(t, first.ID, byNumber.ID)

	_, err = svc.GetCase(ctx, uuid.New())
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	page, err := svc.ListCases(ctx, leakage.CaseFilter{Filter: shared.Filter{Page: 1, PageSize: 1}, Vendor: "FastFreight"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Len(t, page.Items, 1)

	all, err := svc.ListAllCases(ctx, leakage.CaseFilter{Filter: shared.Filter{Page: 1, PageSize: 1}})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

// mutexLocker serializes every key on one mutex
type mutexLocker struct {
	mu sync.Mutex
}

type mutexLock struct{ l *mutexLocker }

func (m mutexLock) Release(context.Context) error {
	m.l.mu.Unlock()
	return nil
}

func (m *mutexLocker) Acquire(context.Context, string) (Lock, error) {
	m.mu.Lock()
	return mutexLock{l: m}, nil
}
