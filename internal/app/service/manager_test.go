package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"portfolio_dashboard/internal/app/port"
	"portfolio_dashboard/internal/domain/entity"
	"portfolio_dashboard/internal/pkg/cache"
	"portfolio_dashboard/internal/pkg/logger"
	"portfolio_dashboard/internal/pkg/ratelimit"
	"portfolio_dashboard/internal/pkg/retry"
)

func newManagerFixture(t *testing.T, accounts []entity.Account, adapters ...*fakeAdapter) (*Manager, chan entity.AccountUpdate) {
	t.Helper()
	c := cache.New(cache.Options{SweepInterval: time.Hour}, nil)
	t.Cleanup(c.Close)

	reg := testRegistry{}
	for _, a := range adapters {
		reg = append(reg, a)
	}

	updates := make(chan entity.AccountUpdate, 16)
	m, err := NewManager(accounts, reg, OrchestratorDeps{
		Prices:  &fakePrices{prices: entity.PriceMap{"X": {Price: 1.0}}},
		Valuer:  NewValuer(nil),
		Limiter: ratelimit.NewSlidingWindow(ratelimit.Limit{Max: 100, Window: time.Second}),
		Retry:   retry.NewPolicy(1, time.Millisecond),
		Cache:   c,
		Updates: updates,
		Logger:  logger.NewSlogAdapter(),
	}, OrchestratorTimings{
		Debounce:       time.Millisecond,
		MinRefresh:     time.Minute,
		RequestTimeout: time.Second,
	}, 4, logger.NewSlogAdapter())
	require.NoError(t, err)
	return m, updates
}

// testRegistry implements port.SourceRegistry over a slice of fakes.
type testRegistry []*fakeAdapter

func (r testRegistry) Adapter(source string) (port.SourceAdapter, bool) {
	for _, a := range r {
		if a.source == source {
			return a, true
		}
	}
	return nil, false
}

func (r testRegistry) Sources() []string {
	out := make([]string, 0, len(r))
	for _, a := range r {
		out = append(out, a.source)
	}
	return out
}

func TestFailureIsolation(t *testing.T) {
	accounts := []entity.Account{
		{ID: "a1", Type: entity.AccountWallet, Chain: "solana", Source: "solana"},
		{ID: "a2", Type: entity.AccountWallet, Chain: "aptos", Source: "aptos"},
		{ID: "a3", Type: entity.AccountWallet, Chain: "sui", Source: "sui"},
	}
	good1 := &fakeAdapter{source: "solana", balances: []entity.TokenBalance{
		{Token: entity.Token{Symbol: "X", Decimals: 0}, RawBalance: "5"},
	}}
	bad := &fakeAdapter{source: "aptos", err: entity.NewValidationError("aptos", "malformed", nil)}
	good2 := &fakeAdapter{source: "sui", balances: []entity.TokenBalance{
		{Token: entity.Token{Symbol: "X", Decimals: 0}, RawBalance: "7"},
	}}

	m, updates := newManagerFixture(t, accounts, good1, bad, good2)
	m.RefreshAll()

	got := make(map[string]entity.AccountUpdate, 3)
	for i := 0; i < 3; i++ {
		u := awaitUpdate(t, updates)
		got[u.AccountID] = u
	}

	require.Nil(t, got["a1"].Err)
	require.Equal(t, 5.0, got["a1"].Value)
	require.NotNil(t, got["a2"].Err)
	require.Nil(t, got["a3"].Err)
	require.Equal(t, 7.0, got["a3"].Value)
}

func TestUnknownSourceIsStartupError(t *testing.T) {
	accounts := []entity.Account{
		{ID: "a1", Type: entity.AccountWallet, Chain: "dogecoin", Source: "dogecoin"},
	}
	c := cache.New(cache.Options{SweepInterval: time.Hour}, nil)
	t.Cleanup(c.Close)

	_, err := NewManager(accounts, testRegistry{}, OrchestratorDeps{
		Prices:  &fakePrices{},
		Valuer:  NewValuer(nil),
		Limiter: ratelimit.NewSlidingWindow(ratelimit.Limit{}),
		Retry:   retry.NewPolicy(1, time.Millisecond),
		Cache:   c,
		Updates: make(chan entity.AccountUpdate, 1),
		Logger:  logger.NewSlogAdapter(),
	}, OrchestratorTimings{
		Debounce:       time.Millisecond,
		MinRefresh:     time.Minute,
		RequestTimeout: time.Second,
	}, 1, logger.NewSlogAdapter())

	require.Error(t, err)
	require.Contains(t, err.Error(), "dogecoin")
}

func TestInactiveAccountsSkipped(t *testing.T) {
	accounts := []entity.Account{
		{ID: "live", Type: entity.AccountWallet, Chain: "solana", Source: "solana", Status: entity.WalletActive},
		{ID: "dead", Type: entity.AccountWallet, Chain: "solana", Source: "solana", Status: entity.WalletInactive},
	}
	adapter := &fakeAdapter{source: "solana"}
	m, _ := newManagerFixture(t, accounts, adapter)

	require.True(t, m.RefreshAccount("live"))
	require.False(t, m.RefreshAccount("dead"))
	require.Len(t, m.Accounts(), 1)
}
