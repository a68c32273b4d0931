package rates

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"orusfx/internal/currency"
	apperrors "orusfx/internal/errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a fetched batch of rates is served.
const DefaultTTL = time.Hour

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Snapshot is one batch of rates against Base.
type Snapshot struct {
	Base      string                     `json:"base"`
	Rates     map[string]decimal.Decimal `json:"rates"`
	FetchedAt time.Time                  `json:"fetched_at"`
	ExpiresAt time.Time                  `json:"expires_at"`
}

func (s *Snapshot) fresh(now time.Time) bool {
	return s != nil && now.Before(s.ExpiresAt)
}

// SharedCache is an optional second cache tier shared between processes.
type SharedCache interface {
	Get(ctx context.Context, base string) (*Snapshot, bool, error)
	Set(ctx context.Context, snap *Snapshot) error
}

// Config configures a Provider.
// MaxStale bounds how long past expiry a snapshot may be served while
// the source is failing. Zero means one TTL.
type Config struct {
	TTL           time.Duration
	MaxStale      time.Duration
	MarkupPercent decimal.Decimal
}

// Provider answers rate queries from a cached base-currency snapshot.
type Provider struct {
	source Source
	table  *currency.Table
	shared SharedCache
	ttl      time.Duration
	maxStale time.Duration
	markup decimal.Decimal
	logger *zap.Logger
	now    func() time.Time

	snap  atomic.Pointer[Snapshot]
	group singleflight.Group
}

// Option customizes a Provider.
type Option func(*Provider)

// WithSharedCache adds a second-level cache consulted before the source.
func WithSharedCache(c SharedCache) Option {
	return func(p *Provider) { p.shared = c }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

func NewProvider(source Source, table *currency.Table, cfg Config, logger *zap.Logger, opts ...Option) *Provider {
	if source == nil {
		panic("rate source is required")
	}
	if table == nil {
		panic("currency table is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxStale <= 0 {
		cfg.MaxStale = cfg.TTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Provider{
		source: source,
		table:  table,
		ttl:      cfg.TTL,
		maxStale: cfg.MaxStale,
		markup:   cfg.MarkupPercent,
		logger:   logger.Named("rates"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Base returns the shared base currency.
func (p *Provider) Base() string {
	return p.table.Base()
}

// MarkupPercent returns the configured customer markup in percent.
func (p *Provider) MarkupPercent() decimal.Decimal {
	return p.markup
}

// Rate returns how many units of to one unit of from buys, without markup.
func (p *Provider) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	if from == to {
		return one, nil
	}
	if !p.table.Supported(from) || !p.table.Supported(to) {
		return decimal.Zero, fmt.Errorf("%w: %s/%s not supported", apperrors.ErrRateUnavailable, from, to)
	}

	snap, err := p.snapshot(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	fromRate, err := snap.baseRate(from)
	if err != nil {
		return decimal.Zero, err
	}
	toRate, err := snap.baseRate(to)
	if err != nil {
		return decimal.Zero, err
	}
	return toRate.Div(fromRate), nil
}

// CustomerRate applies the markup against the payer:
// rate * (1 - markup/100).
func (p *Provider) CustomerRate(rate decimal.Decimal) decimal.Decimal {
	return rate.Mul(one.Sub(p.markup.Div(hundred)))
}

// Rates returns the current snapshot, refreshing it if expired.
func (p *Provider) Rates(ctx context.Context) (*Snapshot, error) {
	return p.snapshot(ctx)
}

// Invalidate drops the in-memory snapshot so the next read refreshes.
func (p *Provider) Invalidate() {
	p.snap.Store(nil)
}

func (s *Snapshot) baseRate(code string) (decimal.Decimal, error) {
	if code == s.Base {
		return one, nil
	}
	r, ok := s.Rates[code]
	if !ok || !r.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: no rate for %s", apperrors.ErrRateUnavailable, code)
	}
	return r, nil
}

func (p *Provider) snapshot(ctx context.Context) (*Snapshot, error) {
	if s := p.snap.Load(); s.fresh(p.now()) {
		return s, nil
	}

	base := p.table.Base()
	v, err, _ := p.group.Do(base, func() (interface{}, error) {
		if s := p.snap.Load(); s.fresh(p.now()) {
			return s, nil
		}
		return p.refresh(ctx, base)
	})
	if err != nil {
		if stale := p.snap.Load(); stale != nil && p.now().Before(stale.ExpiresAt.Add(p.maxStale)) {
			p.logger.Warn("rate refresh failed, serving stale rates",
				zap.String("base", base),
				zap.Time("fetched_at", stale.FetchedAt),
				zap.Error(err))
			return stale, nil
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrRateUnavailable, err)
	}
	return v.(*Snapshot), nil
}

func (p *Provider) refresh(ctx context.Context, base string) (*Snapshot, error) {
	now := p.now()

	if p.shared != nil {
		s, found, err := p.shared.Get(ctx, base)
		if err != nil {
			p.logger.Warn("shared rate cache read failed", zap.String("base", base), zap.Error(err))
		} else if found && s.fresh(now) {
			p.snap.Store(s)
			return s, nil
		}
	}

	rates, err := p.source.FetchRates(ctx, base)
	if err != nil {
		return nil, err
	}
	s := &Snapshot{
		Base:      base,
		Rates:     rates,
		FetchedAt: now,
		ExpiresAt: now.Add(p.ttl),
	}
	p.snap.Store(s)
	p.logger.Debug("rates refreshed", zap.String("base", base), zap.Int("count", len(rates)))

	if p.shared != nil {
		if err := p.shared.Set(ctx, s); err != nil {
			p.logger.Warn("shared rate cache write failed", zap.String("base", base), zap.Error(err))
		}
	}
	return s, nil
}
