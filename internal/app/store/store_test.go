package store

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"portfolio_dashboard/internal/domain/entity"
)

func testAccounts() []entity.Account {
	return []entity.Account{
		{ID: "eth-1", Name: "Hot Wallet", Type: entity.AccountWallet, Chain: "ethereum", Source: "ethereum"},
		{ID: "sol-1", Name: "Solana Main", Type: entity.AccountWallet, Chain: "solana", Source: "solana"},
		{ID: "kraken-1", Name: "Kraken", Type: entity.AccountCEX, Platform: "kraken", Source: "kraken"},
		{ID: "bank-1", Name: "Checking", Type: entity.AccountBank, Source: "tfi"},
	}
}

func TestTotalEqualsSumOfAccountValues(t *testing.T) {
	s := New(testAccounts(), nil)

	s.Apply(Action{Type: UpdateAccountValue, AccountID: "eth-1", Value: 100})
	s.Apply(Action{Type: UpdateAccountValue, AccountID: "sol-1", Value: 50})
	s.Apply(Action{Type: UpdateAccountValue, AccountID: "kraken-1", Value: 25})

	snap := s.Snapshot()
	require.Equal(t, 175.0, snap.CurrentBalance.Total)
	require.Equal(t, 150.0, snap.CurrentBalance.ByType[entity.AccountWallet])
	require.Equal(t, 25.0, snap.CurrentBalance.ByType[entity.AccountCEX])
	require.Equal(t, 100.0, snap.Allocation.ByChain["ethereum"])
	require.Equal(t, 50.0, snap.Allocation.ByChain["solana"])
	require.Equal(t, 25.0, snap.Allocation.ByPlatform["kraken"])
}

func TestUpdateIsIdempotentPerAccount(t *testing.T) {
	s := New(testAccounts(), nil)

	s.Apply(Action{Type: UpdateAccountValue, AccountID: "eth-1", Value: 100})
	s.Apply(Action{Type: UpdateAccountValue, AccountID: "eth-1", Value: 100})
	s.Apply(Action{Type: UpdateAccountValue, AccountID: "eth-1", Value: 100})

	require.Equal(t, 100.0, s.Snapshot().CurrentBalance.Total)
}

func TestUpdateReplacesNotAccumulates(t *testing.T) {
	s := New(testAccounts(), nil)

	s.Apply(Action{Type: UpdateAccountValue, AccountID: "eth-1", Value: 100})
	s.Apply(Action{Type: UpdateAccountValue, AccountID: "eth-1", Value: 40})

	snap := s.Snapshot()
	require.Equal(t, 40.0, snap.CurrentBalance.Total)
	require.Equal(t, 40.0, snap.Accounts[0].Value)
}

func TestUnknownAccountIgnored(t *testing.T) {
	s := New(testAccounts(), nil)

	s.Apply(Action{Type: UpdateAccountValue, AccountID: "ghost", Value: 9999})
	s.Apply(Action{Type: SetError, AccountID: "ghost", Err: "boom"})

	snap := s.Snapshot()
	require.Equal(t, 0.0, snap.CurrentBalance.Total)
	require.Empty(t, snap.Errors)
}

func TestNonFiniteValueRejected(t *testing.T) {
	s := New(testAccounts(), nil)
	s.Apply(Action{Type: UpdateAccountValue, AccountID: "eth-1", Value: 100})

	s.Apply(Action{Type: UpdateAccountValue, AccountID: "eth-1", Value: math.NaN()})
	s.Apply(Action{Type: UpdateAccountValue, AccountID: "eth-1", Value: math.Inf(1)})

	snap := s.Snapshot()
	require.Equal(t, 100.0, snap.Accounts[0].Value, "previous value survives")
	require.Equal(t, 100.0, snap.CurrentBalance.Total)
}

func TestErrorKeepsLastKnownValue(t *testing.T) {
	s := New(testAccounts(), nil)
	s.Apply(Action{Type: UpdateAccountValue, AccountID: "sol-1", Value: 75})

	s.Apply(Action{Type: SetError, AccountID: "sol-1", Err: "rpc unreachable"})
	snap := s.Snapshot()
	require.Equal(t, 75.0, snap.CurrentBalance.Total)
	require.Equal(t, "rpc unreachable", snap.Errors["sol-1"])

	// A later successful update clears the error.
	s.Apply(Action{Type: UpdateAccountValue, AccountID: "sol-1", Value: 80})
	snap = s.Snapshot()
	require.Empty(t, snap.Errors)
	require.Equal(t, 80.0, snap.CurrentBalance.Total)
}

func TestTogglePrivacy(t *testing.T) {
	s := New(testAccounts(), nil)
	require.False(t, s.Snapshot().IsPrivate)

	s.Apply(Action{Type: TogglePrivacy})
	require.True(t, s.Snapshot().IsPrivate)
	s.Apply(Action{Type: TogglePrivacy})
	require.False(t, s.Snapshot().IsPrivate)
}

func TestSetDataResetsErrors(t *testing.T) {
	s := New(testAccounts(), nil)
	s.Apply(Action{Type: SetError, AccountID: "eth-1", Err: "boom"})

	accounts := testAccounts()
	accounts[0].Value = 10
	s.Apply(Action{Type: SetData, Accounts: accounts})

	snap := s.Snapshot()
	require.Empty(t, snap.Errors)
	require.Equal(t, 10.0, snap.CurrentBalance.Total)
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s := New(testAccounts(), nil)
	s.Apply(Action{Type: UpdateAccountValue, AccountID: "eth-1", Value: 100})

	snap := s.Snapshot()
	snap.Accounts[0].Value = 0
	snap.CurrentBalance.ByType[entity.AccountWallet] = 0
	snap.Allocation.ByChain["ethereum"] = 0
	snap.Errors["eth-1"] = "mutated"

	fresh := s.Snapshot()
	require.Equal(t, 100.0, fresh.Accounts[0].Value)
	require.Equal(t, 100.0, fresh.CurrentBalance.ByType[entity.AccountWallet])
	require.Equal(t, 100.0, fresh.Allocation.ByChain["ethereum"])
	require.Empty(t, fresh.Errors)
}

func TestRunConsumesUpdatesAndActions(t *testing.T) {
	s := New(testAccounts(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.Updates() <- entity.AccountUpdate{AccountID: "eth-1", Value: 42, At: time.Now()}
	s.Updates() <- entity.AccountUpdate{
		AccountID: "sol-1",
		Err:       entity.NewTransientError("solana", "rpc unreachable", nil),
	}
	s.Dispatch(Action{Type: SetLoading, Loading: true})

	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return snap.CurrentBalance.Total == 42 &&
			snap.Errors["sol-1"] != "" &&
			snap.Loading
	}, time.Second, 5*time.Millisecond)
}
