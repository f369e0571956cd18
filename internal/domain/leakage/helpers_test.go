package leakage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spendaudit/backend/internal/domain/shared"
)

// stubRefs is a ReferenceProvider backed by plain maps
type stubRefs struct {
	rateCards    []RateCard
	contracts    map[string]*SaaSContract
	fees         map[string]*FeeStructure
	sows         map[string]*StatementOfWork
	prices       map[string]*HistoricalPrice
	ledger       []PaymentRecord
	addenda      map[string][]AddendumVersion
	ledgerCalled bool
}

func newStubRefs() *stubRefs {
	return &stubRefs{
		contracts: map[string]*SaaSContract{},
		fees:      map[string]*FeeStructure{},
		sows:      map[string]*StatementOfWork{},
		prices:    map[string]*HistoricalPrice{},
		addenda:   map[string][]AddendumVersion{},
	}
}

func notFound(what string) error {
	return shared.NewDomainError(shared.CodeReferenceDataMissing, what+" not found")
}

func (s *stubRefs) GetRateCards(_ context.Context, vendor, route string) ([]RateCard, error) {
	var out []RateCard
	for _, c := range s.rateCards {
		if c.Vendor == vendor && c.Route == route {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, notFound("rate card")
	}
	return out, nil
}

func (s *stubRefs) GetSaaSContract(_ context.Context, vendor, product string) (*SaaSContract, error) {
	if c, ok := s.contracts[vendor+"/"+product]; ok {
		return c, nil
	}
	return nil, notFound("saas contract")
}

func (s *stubRefs) GetFeeStructure(_ context.Context, vendor string) (*FeeStructure, error) {
	if f, ok := s.fees[vendor]; ok {
		return f, nil
	}
	return nil, notFound("fee structure")
}

func (s *stubRefs) GetStatementOfWork(_ context.Context, vendor, project string) (*StatementOfWork, error) {
	if w, ok := s.sows[vendor+"/"+project]; ok {
		return w, nil
	}
	return nil, notFound("statement of work")
}

func (s *stubRefs) GetHistoricalPrice(_ context.Context, item string) (*HistoricalPrice, error) {
	if p, ok := s.prices[item]; ok {
		return p, nil
	}
	return nil, notFound("historical price")
}

func (s *stubRefs) GetPaymentLedger(_ context.Context, vendorCode string, from, to time.Time) ([]PaymentRecord, error) {
	s.ledgerCalled = true
	var out []PaymentRecord
	for _, p := range s.ledger {
		if p.VendorCode == vendorCode && !p.PaymentDate.Before(from) && !p.PaymentDate.After(to) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubRefs) GetAddendumVersions(_ context.Context, contract string) ([]AddendumVersion, error) {
	if v, ok := s.addenda[contract]; ok {
		return v, nil
	}
	return nil, notFound("addendum versions")
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func date(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func ptrTime(t time.Time) *time.Time {
	return &t
}

func logisticsInvoice(kms, amount string) *Invoice {
	return &Invoice{
		InvoiceNumber:  "TRK-1001",
		Vendor:         "FastFreight",
		Domain:         DomainLogistics,
		InvoiceDate:    date(2024, 3, 15),
		InvoicedAmount: d(amount),
		Logistics: &LogisticsDetails{
			Route:        "MUM-PUN",
			VehicleType:  "32ft",
			TripSheetKms: d(kms),
		},
	}
}

func rateCard(rate string) RateCard {
	return RateCard{
		ID:          "RC-1",
		Vendor:      "FastFreight",
		Route:       "MUM-PUN",
		VehicleType: "32ft",
		RatePerKm:   d(rate),
		ValidFrom:   date(2024, 1, 1),
		ValidTo:     ptrTime(date(2024, 12, 31)),
	}
}
