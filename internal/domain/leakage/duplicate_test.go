package leakage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paymentInvoice(number, amount string, day int) *Invoice {
	return &Invoice{
		InvoiceNumber:  number,
		Vendor:         "Apex Supplies",
		VendorCode:     "V-APX",
		Domain:         DomainDuplicate,
		InvoiceDate:    date(2024, 7, 1),
		InvoicedAmount: d(amount),
		Payment: &PaymentDetails{
			PaymentRef:  "PAY-NEW",
			PaymentDate: date(2024, 7, day),
		},
	}
}

func ledgerEntry(ref, number, amount string, paidOn int) PaymentRecord {
	return PaymentRecord{
		PaymentRef:    ref,
		VendorCode:    "V-APX",
		InvoiceNumber: number,
		Amount:        d(amount),
		PaymentDate:   date(2024, 7, paidOn),
	}
}

func TestNormalizeInvoiceNumber(t *testing.T) {
	tests := map[string]string{
		"INV-00123":  "INV00123",
		"inv/00123 ": "INV00123",
		"000123":     "123",
		"--":         "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeInvoiceNumber(in), in)
	}
}

func TestEvaluateDuplicate(t *testing.T) {
	th := DefaultThresholds()

	t.Run("worked scenario paid twice fifteen days apart", func(t *testing.T) {
		ledger := []PaymentRecord{ledgerEntry("PAY-1", "INV-7781", "485000", 1)}
		ev := EvaluateDuplicate(paymentInvoice("INV-7781", "485000", 16), ledger, th)
		assert.Equal(t, ResultStatusConfirmedDuplicate, ev.Status)
		assert.True(t, ev.Expected.IsZero())
		assert.Equal(t, "15", ev.Metrics[MetricDaysBetween].String())
		assert.Equal(t, SeverityHigh, ev.SeverityFloor)
		assert.Equal(t, []string{"PAY-1"}, ev.RelatedTransactions)
	})

	t.Run("formatting-only difference is a potential duplicate", func(t *testing.T) {
		ledger := []PaymentRecord{ledgerEntry("PAY-1", "INV7781", "485000", 1)}
		ev := EvaluateDuplicate(paymentInvoice("inv-7781", "485000", 16), ledger, th)
		assert.Equal(t, ResultStatusPotentialDuplicate, ev.Status)
	})

	t.Run("amount within tolerance is a potential duplicate", func(t *testing.T) {
		ledger := []PaymentRecord{ledgerEntry("PAY-1", "INV-7781", "484000", 1)}
		ev := EvaluateDuplicate(paymentInvoice("INV-7781", "485000", 16), ledger, th)
		assert.Equal(t, ResultStatusPotentialDuplicate, ev.Status)
	})

	t.Run("amount beyond tolerance is not a match", func(t *testing.T) {
		ledger := []PaymentRecord{ledgerEntry("PAY-1", "INV-7781", "400000", 1)}
		ev := EvaluateDuplicate(paymentInvoice("INV-7781", "485000", 16), ledger, th)
		assert.Equal(t, ResultStatusCompliant, ev.Status)
		assert.True(t, ev.Expected.Equal(d("485000")))
	})

	t.Run("same-day exact match needs review", func(t *testing.T) {
		ledger := []PaymentRecord{ledgerEntry("PAY-1", "INV-7781", "485000", 16)}
		ev := EvaluateDuplicate(paymentInvoice("INV-7781", "485000", 16), ledger, th)
		assert.Equal(t, ResultStatusUnderReview, ev.Status)
	})

	t.Run("several matches need review", func(t *testing.T) {
		ledger := []PaymentRecord{
			ledgerEntry("PAY-1", "INV-7781", "485000", 1),
			ledgerEntry("PAY-2", "INV7781", "485000", 8),
		}
		ev := EvaluateDuplicate(paymentInvoice("INV-7781", "485000", 16), ledger, th)
		assert.Equal(t, ResultStatusUnderReview, ev.Status)
		assert.Equal(t, "15", ev.Metrics[MetricDaysBetween].String())
		assert.Len(t, ev.Lines, 2)
	})

	t.Run("the payment itself is ignored", func(t *testing.T) {
		ledger := []PaymentRecord{ledgerEntry("PAY-NEW", "INV-7781", "485000", 16)}
		ev := EvaluateDuplicate(paymentInvoice("INV-7781", "485000", 16), ledger, th)
		assert.Equal(t, ResultStatusCompliant, ev.Status)
	})

	t.Run("payments outside the lookback are ignored", func(t *testing.T) {
		old := ledgerEntry("PAY-0", "INV-7781", "485000", 1)
		old.PaymentDate = date(2023, 6, 1)
		ev := EvaluateDuplicate(paymentInvoice("INV-7781", "485000", 16), []PaymentRecord{old}, th)
		assert.Equal(t, ResultStatusCompliant, ev.Status)
	})
}

func TestDuplicateEvaluator_UsesLookbackWindow(t *testing.T) {
	refs := newStubRefs()
	refs.ledger = []PaymentRecord{ledgerEntry("PAY-1", "INV-7781", "485000", 1)}
	ev, err := NewDuplicateEvaluator(DefaultThresholds()).Evaluate(context.Background(), paymentInvoice("INV-7781", "485000", 16), refs)
	require.NoError(t, err)
	assert.True(t, refs.ledgerCalled)
	assert.Equal(t, ResultStatusConfirmedDuplicate, ev.Status)
}
