package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"portfolio_dashboard/internal/domain/entity"
	"portfolio_dashboard/internal/pkg/cache"
	"portfolio_dashboard/internal/pkg/logger"
	"portfolio_dashboard/internal/pkg/ratelimit"
	"portfolio_dashboard/internal/pkg/retry"
)

type fakeAdapter struct {
	source   string
	calls    atomic.Int64
	balances []entity.TokenBalance
	err      error
}

func (f *fakeAdapter) Source() string { return f.source }

func (f *fakeAdapter) FetchBalances(context.Context, entity.Account) ([]entity.TokenBalance, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.balances, nil
}

func (f *fakeAdapter) FetchPrices(context.Context) (entity.PriceMap, error) {
	return nil, nil
}

func (f *fakeAdapter) ExplorerURL(string) string { return "" }

type fakePrices struct {
	prices entity.PriceMap
}

func (f *fakePrices) PricesFor(context.Context, string) (entity.PriceMap, error) {
	return f.prices, nil
}

func (f *fakePrices) WarmUp(context.Context, int) {}

func testOrchestrator(t *testing.T, adapter *fakeAdapter, prices entity.PriceMap, debounce time.Duration) (*Orchestrator, chan entity.AccountUpdate) {
	t.Helper()
	c := cache.New(cache.Options{SweepInterval: time.Hour}, nil)
	t.Cleanup(c.Close)

	updates := make(chan entity.AccountUpdate, 16)
	account := entity.Account{
		ID:     "acc-1",
		Type:   entity.AccountWallet,
		Chain:  adapter.source,
		Source: adapter.source,
	}
	o := NewOrchestrator(account, OrchestratorDeps{
		Adapter: adapter,
		Prices:  &fakePrices{prices: prices},
		Valuer:  NewValuer(nil),
		Limiter: ratelimit.NewSlidingWindow(ratelimit.Limit{Max: 100, Window: time.Second}),
		Retry:   retry.NewPolicy(3, time.Millisecond),
		Cache:   c,
		Updates: updates,
		Logger:  logger.NewSlogAdapter(),
	}, OrchestratorTimings{
		Debounce:       debounce,
		MinRefresh:     time.Minute,
		RequestTimeout: time.Second,
	})
	return o, updates
}

func awaitUpdate(t *testing.T, updates chan entity.AccountUpdate) entity.AccountUpdate {
	t.Helper()
	select {
	case u := <-updates:
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for account update")
		return entity.AccountUpdate{}
	}
}

func TestFetchCycleValuation(t *testing.T) {
	adapter := &fakeAdapter{
		source: "solana",
		balances: []entity.TokenBalance{
			{Token: entity.Token{Symbol: "USDC", Decimals: 6, Address: "mintusdc"}, RawBalance: "1500000"},
		},
	}
	o, updates := testOrchestrator(t, adapter, entity.PriceMap{"mintusdc": {Price: 2.0}}, time.Millisecond)

	o.Trigger()
	u := awaitUpdate(t, updates)

	require.Equal(t, "acc-1", u.AccountID)
	require.Nil(t, u.Err)
	require.Equal(t, 3.0, u.Value)
	require.Len(t, u.Balances, 1)
	require.Equal(t, StateSettledOK, o.State())
}

func TestDebounceCollapsesRapidTriggers(t *testing.T) {
	adapter := &fakeAdapter{source: "solana"}
	o, updates := testOrchestrator(t, adapter, entity.PriceMap{}, 100*time.Millisecond)

	o.Trigger()
	time.Sleep(30 * time.Millisecond)
	o.Trigger()
	time.Sleep(30 * time.Millisecond)
	o.Trigger()

	awaitUpdate(t, updates)
	require.Equal(t, int64(1), adapter.calls.Load(), "rapid triggers collapse into one fetch")
}

func TestCacheShortCircuitsWithinRefreshWindow(t *testing.T) {
	adapter := &fakeAdapter{
		source: "solana",
		balances: []entity.TokenBalance{
			{Token: entity.Token{Symbol: "SOL", Decimals: 9}, RawBalance: "1000000000"},
		},
	}
	o, updates := testOrchestrator(t, adapter, entity.PriceMap{"SOL": {Price: 100.0}}, time.Millisecond)

	o.Trigger()
	first := awaitUpdate(t, updates)
	require.Equal(t, 100.0, first.Value)

	o.Trigger()
	second := awaitUpdate(t, updates)
	require.Equal(t, first.Value, second.Value)
	require.Equal(t, int64(1), adapter.calls.Load(), "second cycle is served from cache")
}

func TestFailedCyclePublishesTypedError(t *testing.T) {
	adapter := &fakeAdapter{
		source: "aptos",
		err:    entity.NewValidationError("aptos", "malformed resources response", nil),
	}
	o, updates := testOrchestrator(t, adapter, entity.PriceMap{}, time.Millisecond)

	o.Trigger()
	u := awaitUpdate(t, updates)

	require.NotNil(t, u.Err)
	require.Equal(t, entity.ErrValidation, u.Err.Kind)
	require.Equal(t, int64(1), adapter.calls.Load(), "validation errors are terminal")
	require.Equal(t, StateSettledError, o.State())
}

func TestTransientErrorExhaustsRetryBudget(t *testing.T) {
	adapter := &fakeAdapter{
		source: "sei",
		err:    entity.NewTransientError("sei", "rpc unreachable", nil),
	}
	o, updates := testOrchestrator(t, adapter, entity.PriceMap{}, time.Millisecond)

	o.Trigger()
	u := awaitUpdate(t, updates)

	require.NotNil(t, u.Err)
	require.Equal(t, int64(3), adapter.calls.Load())
}

func TestTriggerDuringFlightReruns(t *testing.T) {
	block := make(chan struct{})
	adapter := &fakeAdapter{source: "solana"}
	o, updates := testOrchestrator(t, adapter, entity.PriceMap{}, time.Millisecond)

	// Wrap the adapter so the first fetch blocks until released.
	blocking := &blockingAdapter{inner: adapter, gate: block}
	o.adapter = blocking

	o.Trigger()
	require.Eventually(t, func() bool { return o.State() == StateInFlight },
		time.Second, time.Millisecond)

	o.Trigger()
	close(block)

	awaitUpdate(t, updates)
	awaitUpdate(t, updates)
	require.Equal(t, int64(1), adapter.calls.Load(),
		"rerun is served from the fresh cache entry")
}

type blockingAdapter struct {
	inner *fakeAdapter
	gate  chan struct{}
}

func (b *blockingAdapter) Source() string { return b.inner.Source() }

func (b *blockingAdapter) FetchBalances(ctx context.Context, acc entity.Account) ([]entity.TokenBalance, error) {
	<-b.gate
	return b.inner.FetchBalances(ctx, acc)
}

func (b *blockingAdapter) FetchPrices(ctx context.Context) (entity.PriceMap, error) {
	return b.inner.FetchPrices(ctx)
}

func (b *blockingAdapter) ExplorerURL(addr string) string { return b.inner.ExplorerURL(addr) }
