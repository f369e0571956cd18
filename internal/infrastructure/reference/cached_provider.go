package reference

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/spendaudit/backend/internal/domain/leakage"
	"github.com/spendaudit/backend/internal/infrastructure/cache"
	"go.uber.org/zap"
)

// CachedProvider is a read-through cache in front of another provider.
// Contract data is cached for the TTL; the payment ledger always goes to the
// underlying provider. Lookup failures are never cached.
type CachedProvider struct {
	next   leakage.ReferenceProvider
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedProvider wraps next with c
func NewCachedProvider(next leakage.ReferenceProvider, c cache.Cache, ttl time.Duration, logger *zap.Logger) *CachedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedProvider{next: next, cache: c, ttl: ttl, logger: logger}
}

func cacheKey(kind string, parts ...string) string {
	norm := make([]string, len(parts))
	for i, p := range parts {
		norm[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return kind + ":" + strings.Join(norm, "|")
}

func readThrough[T any](ctx context.Context, p *CachedProvider, key string, load func() (T, error)) (T, error) {
	var zero T
	if raw, ok, err := p.cache.Get(ctx, key); err != nil {
		p.logger.Warn("reference cache read failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		p.logger.Warn("discarding undecodable reference cache entry", zap.String("key", key))
	}

	v, err := load()
	if err != nil {
		return zero, err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return v, nil
	}
	if err := p.cache.Set(ctx, key, raw, p.ttl); err != nil {
		p.logger.Warn("reference cache write failed", zap.String("key", key), zap.Error(err))
	}
	return v, nil
}

// GetRateCards implements leakage.ReferenceProvider
func (p *CachedProvider) GetRateCards(ctx context.Context, vendor, route string) ([]leakage.RateCard, error) {
	return readThrough(ctx, p, cacheKey("rate_cards", vendor, route), func() ([]leakage.RateCard, error) {
		return p.next.GetRateCards(ctx, vendor, route)
	})
}

// GetSaaSContract implements leakage.ReferenceProvider
func (p *CachedProvider) GetSaaSContract(ctx context.Context, vendor, product string) (*leakage.SaaSContract, error) {
	return readThrough(ctx, p, cacheKey("saas_contract", vendor, product), func() (*leakage.SaaSContract, error) {
		return p.next.GetSaaSContract(ctx, vendor, product)
	})
}

// GetFeeStructure implements leakage.ReferenceProvider
func (p *CachedProvider) GetFeeStructure(ctx context.Context, vendor string) (*leakage.FeeStructure, error) {
	return readThrough(ctx, p, cacheKey("fee_structure", vendor), func() (*leakage.FeeStructure, error) {
		return p.next.GetFeeStructure(ctx, vendor)
	})
}

// GetStatementOfWork implements leakage.ReferenceProvider
func (p *CachedProvider) GetStatementOfWork(ctx context.Context, vendor, projectRef string) (*leakage.StatementOfWork, error) {
	return readThrough(ctx, p, cacheKey("sow", vendor, projectRef), func() (*leakage.StatementOfWork, error) {
		return p.next.GetStatementOfWork(ctx, vendor, projectRef)
	})
}

// GetHistoricalPrice implements leakage.ReferenceProvider
func (p *CachedProvider) GetHistoricalPrice(ctx context.Context, itemCode string) (*leakage.HistoricalPrice, error) {
	return readThrough(ctx, p, cacheKey("historical_price", itemCode), func() (*leakage.HistoricalPrice, error) {
		return p.next.GetHistoricalPrice(ctx, itemCode)
	})
}

// GetPaymentLedger implements leakage.ReferenceProvider without caching
func (p *CachedProvider) GetPaymentLedger(ctx context.Context, vendorCode string, from, to time.Time) ([]leakage.PaymentRecord, error) {
	return p.next.GetPaymentLedger(ctx, vendorCode, from, to)
}

// GetAddendumVersions implements leakage.ReferenceProvider
func (p *CachedProvider) GetAddendumVersions(ctx context.Context, contractRef string) ([]leakage.AddendumVersion, error) {
	return readThrough(ctx, p, cacheKey("addendum_versions", contractRef), func() ([]leakage.AddendumVersion, error) {
		return p.next.GetAddendumVersions(ctx, contractRef)
	})
}

var _ leakage.ReferenceProvider = (*CachedProvider)(nil)
