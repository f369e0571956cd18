package persistence

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spendaudit/backend/internal/domain/leakage"
	"github.com/spendaudit/backend/internal/domain/shared/valueobject"
	"github.com/spendaudit/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testNow = time.Date(2024, 11, 4, 10, 0, 0, 0, time.UTC)

// newSQLiteDB opens a migrated in-memory database on a single connection
func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	return db
}

func newTestResult(vendor string, leak int64) *leakage.DiscrepancyResult {
	pct := decimal.NewFromInt(10)
	return &leakage.DiscrepancyResult{
		ID:                  uuid.New(),
		InvoiceID:           uuid.New(),
		InvoiceNumber:       "INV-" + uuid.NewString()[:8],
		Domain:              leakage.DomainLogistics,
		Vendor:              vendor,
		Currency:            valueobject.INR,
		ExpectedAmount:      decimal.NewFromInt(10000),
		InvoicedAmount:      decimal.NewFromInt(10000 + leak),
		Discrepancy:         decimal.NewFromInt(leak),
		DiscrepancyPercent:  &pct,
		Status:              leakage.ResultStatusOvercharged,
		LeakageAmount:       decimal.NewFromInt(leak),
		Metrics:             map[string]decimal.Decimal{"distance_km": decimal.NewFromInt(150)},
		RelatedTransactions: []string{"TRIP-1"},
		Notes:               []string{"rate card RC-1"},
		EvaluatedAt:         testNow,
	}
}

func newTestCase(t *testing.T, number, vendor string, leak int64) *leakage.LeakageCase {
	t.Helper()
	c, err := leakage.NewLeakageCase(leakage.NewCaseParams{
		CaseNumber: number,
		Result:     newTestResult(vendor, leak),
		Category:   leakage.CategoryRateCard,
		Severity:   leakage.SeverityHigh,
		Priority:   leakage.PriorityHigh,
		DueDate:    testNow.Add(72 * time.Hour),
		Actor:      "auditor",
		OpenedAt:   testNow,
	})
	require.NoError(t, err)
	c.ClearDomainEvents()
	return c
}
