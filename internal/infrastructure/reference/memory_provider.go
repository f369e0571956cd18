// Package reference provides ReferenceProvider implementations: an in-memory
// dataset loadable from JSON fixtures, a GORM provider over the ref_* tables
// and a read-through caching decorator.
package reference

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spendaudit/backend/internal/domain/leakage"
	"github.com/spendaudit/backend/internal/domain/shared"
)

// Dataset is the serialized form of all reference data
type Dataset struct {
	RateCards        []leakage.RateCard        `json:"rate_cards"`
	SaaSContracts    []leakage.SaaSContract    `json:"saas_contracts"`
	FeeStructures    []leakage.FeeStructure    `json:"fee_structures"`
	StatementsOfWork []leakage.StatementOfWork `json:"statements_of_work"`
	HistoricalPrices []leakage.HistoricalPrice `json:"historical_prices"`
	Payments         []leakage.PaymentRecord   `json:"payments"`
	AddendumVersions []leakage.AddendumVersion `json:"addendum_versions"`
}

// MemoryProvider serves reference data from memory. Lookups on names are
// case-insensitive.
type MemoryProvider struct {
	mu sync.RWMutex
	ds Dataset
}

// NewMemoryProvider creates a provider over ds
func NewMemoryProvider(ds Dataset) *MemoryProvider {
	return &MemoryProvider{ds: ds}
}

// LoadDataset decodes a JSON dataset
func LoadDataset(r io.Reader) (Dataset, error) {
	var ds Dataset
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ds); err != nil {
		return Dataset{}, fmt.Errorf("decode reference dataset: %w", err)
	}
	return ds, nil
}

// LoadFile reads a JSON dataset from path
func LoadFile(path string) (*MemoryProvider, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open reference fixture: %w", err)
	}
	defer f.Close()

	ds, err := LoadDataset(f)
	if err != nil {
		return nil, err
	}
	return NewMemoryProvider(ds), nil
}

// Replace swaps the whole dataset
func (p *MemoryProvider) Replace(ds Dataset) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ds = ds
}

// RecordPayment appends a payment unless its reference is already in the ledger
func (p *MemoryProvider) RecordPayment(_ context.Context, rec leakage.PaymentRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, existing := range p.ds.Payments {
		if same(existing.PaymentRef, rec.PaymentRef) {
			return shared.NewDomainErrorf(shared.CodeAlreadyExists, "payment %s already recorded", rec.PaymentRef)
		}
	}
	p.ds.Payments = append(p.ds.Payments, rec)
	return nil
}

func same(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func missing(format string, args ...any) error {
	return shared.NewDomainErrorf(shared.CodeReferenceDataMissing, format, args...)
}

// GetRateCards implements leakage.ReferenceProvider
func (p *MemoryProvider) GetRateCards(ctx context.Context, vendor, route string) ([]leakage.RateCard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []leakage.RateCard
	for _, c := range p.ds.RateCards {
		if same(c.Vendor, vendor) && same(c.Route, route) {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, missing("No rate card for vendor %s on route %s", vendor, route)
	}
	return out, nil
}

// GetSaaSContract implements leakage.ReferenceProvider
func (p *MemoryProvider) GetSaaSContract(ctx context.Context, vendor, product string) (*leakage.SaaSContract, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	var found []leakage.SaaSContract
	for _, c := range p.ds.SaaSContracts {
		if same(c.Vendor, vendor) && same(c.Product, product) {
			found = append(found, c)
		}
	}
	switch len(found) {
	case 0:
		return nil, missing("No SaaS contract for %s %s", vendor, product)
	case 1:
		c := found[0]
		return &c, nil
	}
	return nil, shared.NewDomainErrorf(shared.CodeReferenceDataAmbiguous, "%d SaaS contracts match %s %s", len(found), vendor, product)
}

// GetFeeStructure implements leakage.ReferenceProvider
func (p *MemoryProvider) GetFeeStructure(ctx context.Context, vendor string) (*leakage.FeeStructure, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, f := range p.ds.FeeStructures {
		if same(f.Vendor, vendor) {
			out := f
			out.Slabs = append([]leakage.SalarySlab(nil), f.Slabs...)
			return &out, nil
		}
	}
	return nil, missing("No fee structure for vendor %s", vendor)
}

// GetStatementOfWork implements leakage.ReferenceProvider
func (p *MemoryProvider) GetStatementOfWork(ctx context.Context, vendor, projectRef string) (*leakage.StatementOfWork, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, w := range p.ds.StatementsOfWork {
		if same(w.Vendor, vendor) && same(w.ProjectRef, projectRef) {
			out := w
			out.Deliverables = append([]leakage.SOWDeliverable(nil), w.Deliverables...)
			return &out, nil
		}
	}
	return nil, missing("No statement of work for %s project %s", vendor, projectRef)
}

// GetHistoricalPrice implements leakage.ReferenceProvider
func (p *MemoryProvider) GetHistoricalPrice(ctx context.Context, itemCode string) (*leakage.HistoricalPrice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, h := range p.ds.HistoricalPrices {
		if same(h.ItemCode, itemCode) {
			out := h
			return &out, nil
		}
	}
	return nil, missing("No historical price for item %s", itemCode)
}

// GetPaymentLedger implements leakage.ReferenceProvider. An empty ledger is not an error.
func (p *MemoryProvider) GetPaymentLedger(ctx context.Context, vendorCode string, from, to time.Time) ([]leakage.PaymentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := []leakage.PaymentRecord{}
	for _, rec := range p.ds.Payments {
		if !same(rec.VendorCode, vendorCode) {
			continue
		}
		if rec.PaymentDate.Before(from) || rec.PaymentDate.After(to) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PaymentDate.Before(out[j].PaymentDate)
	})
	return out, nil
}

// GetAddendumVersions implements leakage.ReferenceProvider
func (p *MemoryProvider) GetAddendumVersions(ctx context.Context, contractRef string) ([]leakage.AddendumVersion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []leakage.AddendumVersion
	for _, v := range p.ds.AddendumVersions {
		if same(v.ContractRef, contractRef) {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil, missing("No addendum versions for contract %s", contractRef)
	}
	return out, nil
}

var _ leakage.ReferenceProvider = (*MemoryProvider)(nil)
