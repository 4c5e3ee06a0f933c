package tfi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"portfolio_dashboard/internal/domain/entity"
	"portfolio_dashboard/internal/infrastructure/configloader"
	"portfolio_dashboard/internal/pkg/logger"
)

func TestStatementValueAsSingleUSDRow(t *testing.T) {
	a := NewAdapter([]configloader.TFIAccountConfig{
		{ID: "checking", Name: "Checking", Type: "bank", StatementValue: 4200.50},
	}, logger.NewSlogAdapter())

	balances, err := a.FetchBalances(context.Background(), entity.Account{ID: "checking"})
	require.NoError(t, err)
	require.Len(t, balances, 1)
	require.Equal(t, "USD", balances[0].Token.Symbol)
	require.Equal(t, "420050", balances[0].RawBalance)
	require.Equal(t, "4200.5", balances[0].UIAmount().String())
}

func TestMissingStatementValueFailsClosed(t *testing.T) {
	a := NewAdapter(nil, logger.NewSlogAdapter())

	_, err := a.FetchBalances(context.Background(), entity.Account{ID: "unknown"})
	require.Error(t, err)
	require.Equal(t, entity.ErrConfiguration, entity.ErrorKindOf(err))
}

func TestPricesPinUSD(t *testing.T) {
	a := NewAdapter(nil, logger.NewSlogAdapter())
	prices, err := a.FetchPrices(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1.0, prices["USD"].Price)
}
