package leakage

import (
	"errors"
	"testing"

	"github.com/spendaudit/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func campaignSOW() *StatementOfWork {
	return &StatementOfWork{
		Vendor:     "BrightAds",
		ProjectRef: "DIWALI-24",
		Deliverables: []SOWDeliverable{
			{Code: "VID", Description: "30s video spots", Quantity: d("4"), UnitPrice: d("150000")},
			{Code: "SOC", Description: "Social posts", Quantity: d("20"), UnitPrice: d("5000")},
		},
	}
}

func marketingInvoice(verified bool, amount string, lines ...MarketingLine) *Invoice {
	return &Invoice{
		InvoiceNumber:  "BA-0091",
		Vendor:         "BrightAds",
		Domain:         DomainMarketing,
		InvoiceDate:    date(2024, 11, 10),
		InvoicedAmount: d(amount),
		Marketing: &MarketingDetails{
			ProjectRef:       "DIWALI-24",
			DeliveryVerified: verified,
			Lines:            lines,
		},
	}
}

func TestDeliverableStatus(t *testing.T) {
	assert.Equal(t, LineDelivered, DeliverableStatus(d("4"), d("4")))
	assert.Equal(t, LinePartial, DeliverableStatus(d("3"), d("4")))
	assert.Equal(t, LineOverbilled, DeliverableStatus(d("5"), d("4")))
	assert.Equal(t, LineNotDelivered, DeliverableStatus(d("0"), d("4")))
	assert.Equal(t, LineDelivered, DeliverableStatus(d("0"), d("0")))
}

func TestEvaluateMarketing(t *testing.T) {
	sow := campaignSOW()

	t.Run("fully delivered is compliant", func(t *testing.T) {
		ev, err := EvaluateMarketing(marketingInvoice(true, "700000",
			MarketingLine{DeliverableCode: "VID", QuantityBilled: d("4")},
			MarketingLine{DeliverableCode: "SOC", QuantityBilled: d("20")},
		), sow)
		require.NoError(t, err)
		assert.True(t, ev.Expected.Equal(d("700000")))
		assert.Equal(t, ResultStatusCompliant, ev.Status)
	})

	t.Run("overbilled line wins over partial", func(t *testing.T) {
		ev, err := EvaluateMarketing(marketingInvoice(true, "740000",
			MarketingLine{DeliverableCode: "VID", QuantityBilled: d("5")},
			MarketingLine{DeliverableCode: "SOC", QuantityBilled: d("12")},
		), sow)
		require.NoError(t, err)
		assert.Equal(t, ResultStatusOverbilled, ev.Status)
		require.Len(t, ev.Lines, 2)
		assert.Equal(t, LineOverbilled, ev.Lines[0].Status)
		assert.True(t, ev.Lines[0].Variance.Equal(d("150000")))
		assert.Equal(t, LinePartial, ev.Lines[1].Status)
	})

	t.Run("verified partial delivery", func(t *testing.T) {
		ev, err := EvaluateMarketing(marketingInvoice(true, "600000",
			MarketingLine{DeliverableCode: "VID", QuantityBilled: d("4")},
		), sow)
		require.NoError(t, err)
		assert.Equal(t, ResultStatusPartialDelivery, ev.Status)
		assert.Equal(t, LineNotDelivered, ev.Lines[1].Status)
	})

	t.Run("unverified shortfall is flagged even when overbilled", func(t *testing.T) {
		ev, err := EvaluateMarketing(marketingInvoice(false, "750000",
			MarketingLine{DeliverableCode: "VID", QuantityBilled: d("5")},
		), sow)
		require.NoError(t, err)
		assert.Equal(t, ResultStatusFlagged, ev.Status)
	})

	t.Run("unverified full delivery is compliant", func(t *testing.T) {
		ev, err := EvaluateMarketing(marketingInvoice(false, "700000",
			MarketingLine{DeliverableCode: "vid", QuantityBilled: d("4")},
			MarketingLine{DeliverableCode: "SOC", QuantityBilled: d("20")},
		), sow)
		require.NoError(t, err)
		assert.Equal(t, ResultStatusCompliant, ev.Status)
	})

	t.Run("deliverable codes differing only in case are rejected", func(t *testing.T) {
		inv := marketingInvoice(true, "700000",
			MarketingLine{DeliverableCode: "VID", QuantityBilled: d("4")},
			MarketingLine{DeliverableCode: "vid", QuantityBilled: d("1")},
			MarketingLine{DeliverableCode: "SOC", QuantityBilled: d("20")},
		)
		err := inv.Validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})

	t.Run("line outside the SOW is missing reference data", func(t *testing.T) {
		_, err := EvaluateMarketing(marketingInvoice(true, "10000",
			MarketingLine{DeliverableCode: "PRINT", QuantityBilled: d("1")},
		), sow)
		assert.True(t, errors.Is(err, shared.ErrReferenceDataMissing))
	})
}
