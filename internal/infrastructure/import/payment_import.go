package csvimport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spendaudit/backend/internal/domain/leakage"
	"github.com/spendaudit/backend/internal/domain/shared"
	"github.com/spendaudit/backend/internal/infrastructure/export"
	"go.uber.org/zap"
)

// Ledger columns, after header normalization
const (
	ColPaymentRef    = "payment_ref"
	ColVendorCode    = "vendor_code"
	ColInvoiceNumber = "invoice_number"
	ColAmount        = "amount"
	ColPaymentDate   = "payment_date"
)

const previewRows = 5

// PaymentLedgerRules are the field rules for a payment ledger upload
func PaymentLedgerRules() []FieldRule {
	return []FieldRule{
		Field(ColPaymentRef).Required().MaxLength(60).Unique().Build(),
		Field(ColVendorCode).Required().MaxLength(60).Build(),
		Field(ColInvoiceNumber).Required().MaxLength(100).Build(),
		Field(ColAmount).Required().Decimal().Positive().Build(),
		Field(ColPaymentDate).Required().Date().Build(),
	}
}

// PaymentSink stores ledger entries. A repeated payment reference is
// reported as ALREADY_EXISTS.
type PaymentSink interface {
	RecordPayment(ctx context.Context, rec leakage.PaymentRecord) error
}

// ImportResult summarizes a ledger upload
type ImportResult struct {
	DryRun      bool                    `json:"dry_run"`
	TotalRows   int                     `json:"total_rows"`
	ValidRows   int                     `json:"valid_rows"`
	Imported    int                     `json:"imported"`
	Duplicates  int                     `json:"duplicates"`
	ErrorRows   int                     `json:"error_rows"`
	Errors      []RowError              `json:"errors,omitempty"`
	IsTruncated bool                    `json:"is_truncated,omitempty"`
	TotalErrors int                     `json:"total_errors,omitempty"`
	Preview     []leakage.PaymentRecord `json:"preview,omitempty"`
}

// ImporterOption configures a PaymentImporter
type ImporterOption func(*PaymentImporter)

// WithMaxRows caps the number of data rows accepted
func WithMaxRows(n int) ImporterOption {
	return func(i *PaymentImporter) { i.maxRows = n }
}

// WithMaxErrors caps the number of row errors reported
func WithMaxErrors(n int) ImporterOption {
	return func(i *PaymentImporter) { i.maxErrors = n }
}

// WithImportLogger sets the logger
func WithImportLogger(l *zap.Logger) ImporterOption {
	return func(i *PaymentImporter) { i.logger = l }
}

// PaymentImporter loads payment ledger uploads into a PaymentSink.
// Rows that fail validation are reported and skipped; the rest are written.
type PaymentImporter struct {
	sink      PaymentSink
	logger    *zap.Logger
	maxRows   int
	maxErrors int
}

// NewPaymentImporter creates a new PaymentImporter
func NewPaymentImporter(sink PaymentSink, opts ...ImporterOption) *PaymentImporter {
	i := &PaymentImporter{
		sink:      sink,
		logger:    zap.NewNop(),
		maxRows:   10000,
		maxErrors: 100,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// FormatFromFilename picks the upload format from the file extension
func FormatFromFilename(name string) (export.Format, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		return "", shared.NewDomainErrorf(shared.CodeValidation, "file %q has no extension", name)
	}
	return export.ParseFormat(ext)
}

// NewRowReader opens r in the given format
func NewRowReader(r io.Reader, format export.Format) (RowReader, error) {
	if format == export.FormatXLSX {
		return NewXLSXReader(r)
	}
	return NewCSVParser(r)
}

// Import validates every row of r and, unless dryRun, records the valid ones.
// File-level problems (encoding, missing columns, no rows) are VALIDATION errors.
func (i *PaymentImporter) Import(ctx context.Context, r io.Reader, format export.Format, dryRun bool) (*ImportResult, error) {
	reader, err := NewRowReader(r, format)
	if err != nil {
		return nil, shared.NewDomainErrorf(shared.CodeValidation, "cannot read upload: %v", err)
	}
	if missing := MissingHeaders(reader, []string{ColPaymentRef, ColVendorCode, ColInvoiceNumber, ColAmount, ColPaymentDate}); len(missing) > 0 {
		return nil, shared.NewDomainErrorf(shared.CodeValidation, "missing required columns: %s", strings.Join(missing, ", "))
	}

	rows, err := ReadAllRows(reader)
	if err != nil {
		return nil, shared.NewDomainErrorf(shared.CodeValidation, "malformed upload: %v", err)
	}
	if len(rows) == 0 {
		return nil, shared.NewDomainErrorf(shared.CodeValidation, "%v", ErrNoDataRows)
	}
	if i.maxRows > 0 && len(rows) > i.maxRows {
		return nil, shared.NewDomainErrorf(shared.CodeValidation, "%v: %d rows, limit %d", ErrTooManyRows, len(rows), i.maxRows)
	}

	validator := NewFieldValidator(PaymentLedgerRules(), i.maxErrors)
	errs := validator.Errors()
	result := &ImportResult{DryRun: dryRun, TotalRows: len(rows)}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !validator.ValidateRow(row) {
			result.ErrorRows++
			continue
		}
		rec, err := toPaymentRecord(row)
		if err != nil {
			errs.Add(RowError{Row: row.LineNumber, Code: ErrCodeImportMalformedRow, Message: err.Error()})
			result.ErrorRows++
			continue
		}
		result.ValidRows++
		if len(result.Preview) < previewRows {
			result.Preview = append(result.Preview, rec)
		}
		if dryRun {
			continue
		}

		if err := i.sink.RecordPayment(ctx, rec); err != nil {
			if errors.Is(err, shared.ErrAlreadyExists) {
				result.Duplicates++
				errs.Add(RowError{
					Row: row.LineNumber, Column: ColPaymentRef, Code: ErrCodeImportDuplicateInDB,
					Message: fmt.Sprintf("payment '%s' already recorded", rec.PaymentRef), Value: rec.PaymentRef,
				})
				continue
			}
			errs.Add(RowError{Row: row.LineNumber, Code: ErrCodeImportWriteFailed, Message: err.Error()})
			result.ErrorRows++
			continue
		}
		result.Imported++
	}

	result.Errors = errs.Errors()
	result.IsTruncated = errs.IsTruncated()
	result.TotalErrors = errs.TotalCount()

	i.logger.Info("payment ledger import finished",
		zap.Bool("dry_run", dryRun),
		zap.Int("total_rows", result.TotalRows),
		zap.Int("imported", result.Imported),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("error_rows", result.ErrorRows),
	)
	return result, nil
}

func toPaymentRecord(row *Row) (leakage.PaymentRecord, error) {
	amount, err := decimal.NewFromString(row.Get(ColAmount))
	if err != nil {
		return leakage.PaymentRecord{}, err
	}
	date, err := ParseDate(row.Get(ColPaymentDate))
	if err != nil {
		return leakage.PaymentRecord{}, err
	}
	return leakage.PaymentRecord{
		PaymentRef:    row.Get(ColPaymentRef),
		VendorCode:    row.Get(ColVendorCode),
		InvoiceNumber: row.Get(ColInvoiceNumber),
		Amount:        amount,
		PaymentDate:   date,
	}, nil
}
