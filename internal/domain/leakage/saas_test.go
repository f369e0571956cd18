package leakage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func saasInvoice(po, billed, used int64, amount string) *Invoice {
	return &Invoice{
		InvoiceNumber:  "SAAS-2024-03",
		Vendor:         "CloudSuite",
		Domain:         DomainSaaS,
		InvoiceDate:    date(2024, 3, 1),
		InvoicedAmount: d(amount),
		SaaS: &SaaSDetails{
			Product:        "CRM Enterprise",
			LicensesInPO:   po,
			LicensesBilled: billed,
			LicensesUsed:   used,
		},
	}
}

func TestEvaluateSaaS(t *testing.T) {
	contract := &SaaSContract{
		ContractRef:        "CT-CRM-01",
		Vendor:             "CloudSuite",
		Product:            "CRM Enterprise",
		LicensesInContract: 2500,
		UnitPrice:          d("1188"),
	}

	t.Run("worked scenario is over licensed", func(t *testing.T) {
		ev := EvaluateSaaS(saasInvoice(2500, 2650, 2400, "3148200"), contract, DefaultThresholds())
		assert.True(t, ev.Expected.Equal(d("2970000")))
		assert.True(t, ev.Metrics[MetricAmountDiff].Equal(d("178200")))
		assert.True(t, ev.Metrics[MetricLicenseDiff].Equal(d("150")))
		assert.Equal(t, ResultStatusOverLicensed, ev.Status)
	})

	t.Run("large margin over PO and contract is flagged", func(t *testing.T) {
		ev := EvaluateSaaS(saasInvoice(2500, 2800, 2700, "3326400"), contract, DefaultThresholds())
		assert.Equal(t, ResultStatusFlagged, ev.Status)
	})

	t.Run("large margin over PO but within contract stays over licensed", func(t *testing.T) {
		big := *contract
		big.LicensesInContract = 3000
		ev := EvaluateSaaS(saasInvoice(2500, 2800, 2700, "3326400"), &big, DefaultThresholds())
		assert.Equal(t, ResultStatusOverLicensed, ev.Status)
	})

	t.Run("low utilization is informational", func(t *testing.T) {
		ev := EvaluateSaaS(saasInvoice(2500, 2500, 1500, "2970000"), contract, DefaultThresholds())
		assert.Equal(t, ResultStatusUnderUtilized, ev.Status)
		assert.Equal(t, "60", ev.Metrics[MetricUtilizationPercent].String())
	})

	t.Run("utilization at threshold is compliant", func(t *testing.T) {
		ev := EvaluateSaaS(saasInvoice(2500, 2500, 1750, "2970000"), contract, DefaultThresholds())
		assert.Equal(t, ResultStatusCompliant, ev.Status)
	})

	t.Run("zero billed has no utilization metric", func(t *testing.T) {
		ev := EvaluateSaaS(saasInvoice(10, 0, 0, "0"), contract, DefaultThresholds())
		assert.Equal(t, ResultStatusCompliant, ev.Status)
		_, ok := ev.Metrics[MetricUtilizationPercent]
		assert.False(t, ok)
	})
}
