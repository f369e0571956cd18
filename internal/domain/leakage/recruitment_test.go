package leakage

import (
	"errors"
	"testing"

	"github.com/spendaudit/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func standardSlabs() []SalarySlab {
	return []SalarySlab{
		{Min: d("0"), Max: dp("1000000"), FeePercent: d("8.33")},
		{Min: d("1000000"), Max: dp("2500000"), FeePercent: d("12")},
		{Min: d("2500000"), FeePercent: d("15")},
	}
}

func recruitmentInvoice(ctc, amount string, verified bool) *Invoice {
	return &Invoice{
		InvoiceNumber:  "HR-778",
		Vendor:         "TalentBridge",
		Domain:         DomainRecruitment,
		InvoiceDate:    date(2024, 5, 2),
		InvoicedAmount: d(amount),
		Recruitment: &RecruitmentDetails{
			CandidateName:  "A. Rao",
			Position:       "Engineering Manager",
			CandidateCTC:   d(ctc),
			SalaryVerified: verified,
		},
	}
}

func TestResolveSlab(t *testing.T) {
	slabs := standardSlabs()
	tests := []struct {
		ctc  string
		want string
	}{
		{"0", "8.33"},
		{"999999.99", "8.33"},
		{"1000000", "12"},
		{"2500000", "15"},
		{"90000000", "15"},
	}
	for _, tt := range tests {
		t.Run(tt.ctc, func(t *testing.T) {
			slab, err := ResolveSlab(slabs, d(tt.ctc))
			require.NoError(t, err)
			assert.Equal(t, tt.want, slab.FeePercent.String())
		})
	}
}

func TestValidateSlabs(t *testing.T) {
	tests := []struct {
		name  string
		slabs []SalarySlab
	}{
		{"empty", nil},
		{"does not start at zero", []SalarySlab{{Min: d("100"), FeePercent: d("8")}}},
		{"gap", []SalarySlab{{Min: d("0"), Max: dp("100"), FeePercent: d("8")}, {Min: d("200"), FeePercent: d("9")}}},
		{"overlap", []SalarySlab{{Min: d("0"), Max: dp("100"), FeePercent: d("8")}, {Min: d("50"), FeePercent: d("9")}}},
		{"bounded last slab", []SalarySlab{{Min: d("0"), Max: dp("100"), FeePercent: d("8")}}},
		{"unbounded middle slab", []SalarySlab{{Min: d("0"), FeePercent: d("8")}, {Min: d("100"), FeePercent: d("9")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSlabs(tt.slabs)
			assert.True(t, errors.Is(err, shared.ErrValidation))
		})
	}
	assert.NoError(t, ValidateSlabs(standardSlabs()))
}

func TestEvaluateRecruitment(t *testing.T) {
	fs := &FeeStructure{Vendor: "TalentBridge", Slabs: standardSlabs()}
	th := DefaultThresholds()

	t.Run("exact fee is compliant", func(t *testing.T) {
		ev, err := EvaluateRecruitment(recruitmentInvoice("1800000", "216000", true), fs, th)
		require.NoError(t, err)
		assert.True(t, ev.Expected.Equal(d("216000")))
		assert.Equal(t, ResultStatusCompliant, ev.Status)
		assert.False(t, ev.PendingVerification)
	})

	t.Run("small overcharge keeps default severity", func(t *testing.T) {
		ev, err := EvaluateRecruitment(recruitmentInvoice("1800000", "230000", true), fs, th)
		require.NoError(t, err)
		assert.Equal(t, ResultStatusOvercharged, ev.Status)
		assert.Equal(t, Severity(""), ev.SeverityFloor)
	})

	t.Run("overcharge above fifteen percent escalates to high", func(t *testing.T) {
		ev, err := EvaluateRecruitment(recruitmentInvoice("1800000", "270000", true), fs, th)
		require.NoError(t, err)
		assert.Equal(t, ResultStatusOvercharged, ev.Status)
		assert.Equal(t, SeverityHigh, ev.SeverityFloor)
	})

	t.Run("undercharge", func(t *testing.T) {
		ev, err := EvaluateRecruitment(recruitmentInvoice("1800000", "200000", true), fs, th)
		require.NoError(t, err)
		assert.Equal(t, ResultStatusUndercharged, ev.Status)
	})

	t.Run("unverified salary is pending verification regardless of sign", func(t *testing.T) {
		ev, err := EvaluateRecruitment(recruitmentInvoice("1800000", "200000", false), fs, th)
		require.NoError(t, err)
		assert.True(t, ev.PendingVerification)
	})

	t.Run("malformed slabs are a validation error", func(t *testing.T) {
		bad := &FeeStructure{Slabs: []SalarySlab{{Min: d("10"), FeePercent: d("8")}}}
		_, err := EvaluateRecruitment(recruitmentInvoice("1800000", "200000", true), bad, th)
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})
}
