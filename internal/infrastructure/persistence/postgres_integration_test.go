//go:build integration

package persistence

import (
	"context"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spendaudit/backend/internal/domain/leakage"
	"github.com/spendaudit/backend/internal/domain/shared"
	"github.com/spendaudit/backend/internal/infrastructure/migration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newPostgresDB starts a throwaway PostgreSQL container and applies the SQL
// migrations, so the stores run against the production schema.
func newPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("leakage_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	m, err := migration.New(sqlDB, migrationsDir(t), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Up())
	return db
}

func migrationsDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "migrations")
}

func TestPostgres_CaseLifecycle(t *testing.T) {
	ctx := context.Background()
	db := newPostgresDB(t)
	results := NewGormResultRepository(db)
	cases := NewGormCaseRepository(db)

	c := newTestCase(t, "LC-PG-0001", "FastFreight Logistics", 2500)
	result := newTestResult("FastFreight Logistics", 2500)
	result.ID = c.ResultID
	require.NoError(t, results.Save(ctx, result))
	require.NoError(t, cases.Create(ctx, c))

	got, err := cases.FindByCaseNumber(ctx, "LC-PG-0001")
	require.NoError(t, err)
	require.NoError(t, got.Transition(leakage.CaseStatusTriaged, "auditor", "", testNow.Add(time.Hour)))
	require.NoError(t, cases.SaveWithLock(ctx, got))

	stale, err := cases.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, leakage.CaseStatusTriaged, stale.Status)
	assert.Len(t, stale.Activities, 2)

	stale.Version = 1
	err = cases.SaveWithLock(ctx, stale)
	require.Error(t, err)
	assert.Equal(t, shared.CodeConcurrencyConflict, shared.CodeOf(err))

	require.NoError(t, cases.UpdateSLAStatus(ctx, c.ID, leakage.SLAStatusAtRisk))
	open, err := cases.FindOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, leakage.SLAStatusAtRisk, open[0].SLAStatus)
}

func TestPostgres_ConcurrentCaseCreation(t *testing.T) {
	ctx := context.Background()
	cases := NewGormCaseRepository(newPostgresDB(t))
	resultID := uuid.New()

	contenders := make([]*leakage.LeakageCase, 5)
	for i := range contenders {
		contenders[i] = newTestCase(t, "LC-RACE-"+string(rune('A'+i)), "Acme", 900)
		contenders[i].ResultID = resultID
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for _, c := range contenders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := cases.Create(ctx, c); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded, "a result backs at most one case")
}
