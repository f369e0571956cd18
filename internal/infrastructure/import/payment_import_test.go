package csvimport

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spendaudit/backend/internal/domain/leakage"
	"github.com/spendaudit/backend/internal/domain/shared"
	"github.com/spendaudit/backend/internal/infrastructure/export"
	"github.com/spendaudit/backend/internal/infrastructure/reference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ledgerCSV = `Payment Ref,Vendor Code,Invoice Number,Amount,Payment Date
PAY-100,V-ACME,INV-2024-0100,1200.00,2024-03-01
PAY-101,V-ACME,INV-2024-0101,abc,2024-03-02
PAY-100,V-ACME,INV-2024-0102,50,2024-03-03
PAY-102,V-GLOBEX,INV-2024-0200,75.25,15/03/2024
`

type failingSink struct{ err error }

func (s failingSink) RecordPayment(context.Context, leakage.PaymentRecord) error { return s.err }

func TestPaymentImporter_Import(t *testing.T) {
	ctx := context.Background()
	provider := reference.NewMemoryProvider(reference.Dataset{})
	importer := NewPaymentImporter(provider)

	result, err := importer.Import(ctx, strings.NewReader(ledgerCSV), export.FormatCSV, false)
	require.NoError(t, err)

	assert.Equal(t, 4, result.TotalRows)
	assert.Equal(t, 2, result.ValidRows)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 2, result.ErrorRows)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, 3, result.Errors[0].Row)
	assert.Equal(t, ErrCodeImportInvalidType, result.Errors[0].Code)
	assert.Equal(t, ErrCodeImportDuplicateInFile, result.Errors[1].Code)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	ledger, err := provider.GetPaymentLedger(ctx, "V-GLOBEX", from, to)
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.Equal(t, "75.25", ledger[0].Amount.String())
	assert.True(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC).Equal(ledger[0].PaymentDate))
}

func TestPaymentImporter_ReimportCountsDuplicates(t *testing.T) {
	ctx := context.Background()
	importer := NewPaymentImporter(reference.NewMemoryProvider(reference.Dataset{}))

	_, err := importer.Import(ctx, strings.NewReader(ledgerCSV), export.FormatCSV, false)
	require.NoError(t, err)

	result, err := importer.Import(ctx, strings.NewReader(ledgerCSV), export.FormatCSV, false)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Imported)
	assert.Equal(t, 2, result.Duplicates)
	assert.Equal(t, ErrCodeImportDuplicateInDB, result.Errors[len(result.Errors)-1].Code)
}

func TestPaymentImporter_DryRun(t *testing.T) {
	ctx := context.Background()
	provider := reference.NewMemoryProvider(reference.Dataset{})

	result, err := NewPaymentImporter(provider).Import(ctx, strings.NewReader(ledgerCSV), export.FormatCSV, true)
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Equal(t, 2, result.ValidRows)
	assert.Zero(t, result.Imported)
	assert.Len(t, result.Preview, 2)

	ledger, err := provider.GetPaymentLedger(ctx, "V-ACME", time.Time{}, time.Now())
	require.NoError(t, err)
	assert.Empty(t, ledger)
}

func TestPaymentImporter_XLSX(t *testing.T) {
	data := workbook(t, [][]string{
		{"payment_ref", "vendor_code", "invoice_number", "amount", "payment_date"},
		{"PAY-900", "V-ACME", "INV-9", "10", "2024-05-01"},
	})

	result, err := NewPaymentImporter(reference.NewMemoryProvider(reference.Dataset{})).
		Import(context.Background(), bytes.NewReader(data), export.FormatXLSX, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
}

func TestPaymentImporter_FileErrors(t *testing.T) {
	importer := NewPaymentImporter(failingSink{}, WithMaxRows(1))
	ctx := context.Background()

	tests := []struct {
		name    string
		input   string
		message string
	}{
		{"empty", "", "cannot read upload"},
		{"missing columns", "payment_ref,amount\nPAY-1,5\n", "missing required columns: vendor_code, invoice_number, payment_date"},
		{"no rows", "payment_ref,vendor_code,invoice_number,amount,payment_date\n", "no data rows"},
		{"too many rows", "payment_ref,vendor_code,invoice_number,amount,payment_date\nA,V,I,1,2024-01-01\nB,V,I,1,2024-01-01\n", "maximum row count"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := importer.Import(ctx, strings.NewReader(tt.input), export.FormatCSV, false)
			require.Error(t, err)
			assert.True(t, errors.Is(err, shared.ErrValidation))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestPaymentImporter_WriteFailure(t *testing.T) {
	importer := NewPaymentImporter(failingSink{err: errors.New("connection reset")})
	input := "payment_ref,vendor_code,invoice_number,amount,payment_date\nA,V,I,1,2024-01-01\n"

	result, err := importer.Import(context.Background(), strings.NewReader(input), export.FormatCSV, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ErrorRows)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, ErrCodeImportWriteFailed, result.Errors[0].Code)
}

func TestFormatFromFilename(t *testing.T) {
	f, err := FormatFromFilename("ledger.XLSX")
	require.NoError(t, err)
	assert.Equal(t, export.FormatXLSX, f)

	f, err = FormatFromFilename("ledger.csv")
	require.NoError(t, err)
	assert.Equal(t, export.FormatCSV, f)

	_, err = FormatFromFilename("ledger.pdf")
	assert.Error(t, err)
	_, err = FormatFromFilename("ledger")
	assert.Error(t, err)
}
