package rates

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"orusfx/internal/currency"
	apperrors "orusfx/internal/errors"
	"orusfx/internal/repositories/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingSource struct {
	calls atomic.Int32
	delay time.Duration
	rates map[string]decimal.Decimal
	err   error
}

func (s *countingSource) FetchRates(_ context.Context, _ string) (map[string]decimal.Decimal, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.rates, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newSource() *countingSource {
	return &countingSource{rates: map[string]decimal.Decimal{
		"EUR": d("0.92"),
		"INR": d("83.5"),
		"GBP": d("0.8"),
	}}
}

func TestProvider_Rate(t *testing.T) {
	src := newSource()
	p := NewProvider(src, currency.Default(), Config{MarkupPercent: d("1.5")}, zap.NewNop())
	ctx := context.Background()

	tests := []struct {
		name    string
		from    string
		to      string
		want    string
		wantErr error
	}{
		{name: "identity", from: "JPY", to: "JPY", want: "1"},
		{name: "from base", from: "USD", to: "INR", want: "83.5"},
		{name: "to base", from: "GBP", to: "USD", want: "1.25"},
		{name: "cross", from: "GBP", to: "INR", want: "104.375"},
		{name: "unsupported", from: "USD", to: "XYZ", wantErr: apperrors.ErrRateUnavailable},
		{name: "source has no rate", from: "USD", to: "KES", wantErr: apperrors.ErrRateUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Rate(ctx, tt.from, tt.to)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(d(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestProvider_IdentityDoesNotTouchSource(t *testing.T) {
	src := newSource()
	p := NewProvider(src, currency.Default(), Config{}, zap.NewNop())

	rate, err := p.Rate(context.Background(), "EUR", "EUR")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, int32(0), src.calls.Load())
}

func TestProvider_CustomerRate(t *testing.T) {
	p := NewProvider(newSource(), currency.Default(), Config{MarkupPercent: d("1.5")}, zap.NewNop())
	assert.Equal(t, "82.2475", p.CustomerRate(d("83.5")).String())

	noMarkup := NewProvider(newSource(), currency.Default(), Config{}, zap.NewNop())
	assert.True(t, noMarkup.CustomerRate(d("83.5")).Equal(d("83.5")))
}

func TestProvider_CachesUntilTTL(t *testing.T) {
	src := newSource()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	p := NewProvider(src, currency.Default(), Config{TTL: time.Hour}, zap.NewNop(), WithClock(clock.Now))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := p.Rate(ctx, "USD", "EUR")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), src.calls.Load())

	clock.Advance(59 * time.Minute)
	_, err := p.Rate(ctx, "USD", "EUR")
	require.NoError(t, err)
	assert.Equal(t, int32(1), src.calls.Load())

	clock.Advance(2 * time.Minute)
	_, err = p.Rate(ctx, "USD", "EUR")
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestProvider_CollapsesConcurrentRefresh(t *testing.T) {
	src := newSource()
	src.delay = 50 * time.Millisecond
	p := NewProvider(src, currency.Default(), Config{}, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Rate(context.Background(), "USD", "INR")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestProvider_SourceFailure(t *testing.T) {
	src := newSource()
	clock := &fakeClock{now: time.Now()}
	p := NewProvider(src, currency.Default(), Config{TTL: time.Minute}, zap.NewNop(), WithClock(clock.Now))
	ctx := context.Background()

	t.Run("no snapshot yet", func(t *testing.T) {
		src.err = errors.New("feed down")
		_, err := p.Rate(ctx, "USD", "EUR")
		assert.ErrorIs(t, err, apperrors.ErrRateUnavailable)
	})

	t.Run("stale snapshot is served", func(t *testing.T) {
		src.err = nil
		_, err := p.Rate(ctx, "USD", "EUR")
		require.NoError(t, err)

		clock.Advance(90 * time.Second)
		src.err = errors.New("feed down")
		rate, err := p.Rate(ctx, "USD", "EUR")
		require.NoError(t, err)
		assert.True(t, rate.Equal(d("0.92")))
	})

	t.Run("stale window exhausted", func(t *testing.T) {
		// fetched at t0, expired at t0+1m, stale allowed until t0+2m
		clock.Advance(30 * 24 * time.Hour)
		_, err := p.Rate(ctx, "USD", "INR")
		assert.ErrorIs(t, err, apperrors.ErrRateUnavailable)

		src.err = nil
		rate, err := p.Rate(ctx, "USD", "INR")
		require.NoError(t, err)
		assert.True(t, rate.Equal(d("83.5")))
	})
}

func TestProvider_MaxStale(t *testing.T) {
	src := newSource()
	clock := &fakeClock{now: time.Now()}
	p := NewProvider(src, currency.Default(), Config{TTL: time.Hour, MaxStale: 10 * time.Minute}, zap.NewNop(), WithClock(clock.Now))
	ctx := context.Background()

	_, err := p.Rate(ctx, "USD", "INR")
	require.NoError(t, err)
	src.err = errors.New("feed down")

	clock.Advance(time.Hour + 5*time.Minute)
	_, err = p.Rate(ctx, "USD", "INR")
	require.NoError(t, err)

	clock.Advance(6 * time.Minute)
	_, err = p.Rate(ctx, "USD", "INR")
	assert.ErrorIs(t, err, apperrors.ErrRateUnavailable)
}

func TestStaticSource(t *testing.T) {
	table := currency.Default()
	src := NewStaticSource(table)

	rates, err := src.FetchRates(context.Background(), "USD")
	require.NoError(t, err)
	assert.True(t, rates["INR"].Equal(d("83.5")))

	_, err = src.FetchRates(context.Background(), "EUR")
	assert.Error(t, err)
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("base") != "USD" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"base":"USD","rates":{"eur":0.92,"INR":"83.5"}}`))
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, time.Second)

	rates, err := src.FetchRates(context.Background(), "USD")
	require.NoError(t, err)
	assert.True(t, rates["EUR"].Equal(d("0.92")))
	assert.True(t, rates["INR"].Equal(d("83.5")))

	_, err = src.FetchRates(context.Background(), "EUR")
	assert.Error(t, err)
}

func TestProvider_SharedCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	shared := NewRedisCache(cache.NewCacheService(client, time.Hour))

	first := newSource()
	p1 := NewProvider(first, currency.Default(), Config{}, zap.NewNop(), WithSharedCache(shared))
	_, err := p1.Rate(context.Background(), "USD", "EUR")
	require.NoError(t, err)

	second := newSource()
	p2 := NewProvider(second, currency.Default(), Config{}, zap.NewNop(), WithSharedCache(shared))
	rate, err := p2.Rate(context.Background(), "USD", "INR")
	require.NoError(t, err)
	assert.True(t, rate.Equal(d("83.5")))

	assert.Equal(t, int32(1), first.calls.Load())
	assert.Equal(t, int32(0), second.calls.Load())
}
