package evm

import (
	"context"
	"fmt"
	"strings"

	"portfolio_dashboard/internal/app/port"
	"portfolio_dashboard/internal/domain/entity"
	"portfolio_dashboard/internal/infrastructure/configloader"
	"portfolio_dashboard/internal/infrastructure/httpclient"
)

// Adapter serves one EVM chain. Balances come from a batched JSON-RPC call
// (native plus every configured token), prices from DEX Screener keyed by
// lowercased contract address. The native coin has no contract address, so
// its quote is taken from the configured wrapped-native token and published
// under the uppercased native symbol as well.
type Adapter struct {
	network  configloader.EVMNetworkConfig
	provider *ClientProvider
	prices   httpclient.DEXScreenerClient
	logger   port.Logger
}

// NewAdapter creates the adapter for one configured EVM network.
func NewAdapter(network configloader.EVMNetworkConfig, provider *ClientProvider, prices httpclient.DEXScreenerClient, logger port.Logger) *Adapter {
	return &Adapter{
		network:  network,
		provider: provider,
		prices:   prices,
		logger:   logger,
	}
}

// Source implements port.SourceAdapter.
func (a *Adapter) Source() string {
	return a.network.Identifier
}

// FetchBalances implements port.SourceAdapter.
func (a *Adapter) FetchBalances(ctx context.Context, account entity.Account) ([]entity.TokenBalance, error) {
	if account.PublicKey == "" {
		return nil, entity.NewConfigurationError(a.Source(), "wallet account has no public key")
	}

	client, err := a.provider.GetClient(a.network)
	if err != nil {
		return nil, entity.NewTransientError(a.Source(), "no RPC client available", err)
	}

	nativeDecimals := a.network.NativeDecimals
	if nativeDecimals == 0 {
		nativeDecimals = 18
	}

	requests := []balanceRequest{{
		Native: true,
		Wallet: account.PublicKey,
		Token:  entity.Token{Symbol: a.network.NativeSymbol, Name: a.network.NativeSymbol, Decimals: nativeDecimals},
	}}
	for _, token := range a.network.Tokens {
		requests = append(requests, balanceRequest{
			Wallet: account.PublicKey,
			Token: entity.Token{
				Symbol:   token.Symbol,
				Name:     token.Name,
				Decimals: token.Decimals,
				Address:  strings.ToLower(token.Address),
			},
		})
	}

	results, err := client.GetBalances(ctx, requests)
	if err != nil {
		return nil, err
	}

	balances := make([]entity.TokenBalance, 0, len(results))
	for _, res := range results {
		if res.Err != nil {
			a.logger.Warn("Balance sub-request failed",
				"network", a.Source(), "wallet", account.PublicKey,
				"token", res.Token.Symbol, "error", res.Err)
			continue
		}
		raw := "0"
		if res.Balance != nil {
			raw = res.Balance.String()
		}
		balances = append(balances, entity.TokenBalance{Token: res.Token, RawBalance: raw})
	}
	return balances, nil
}

// FetchPrices implements port.SourceAdapter.
func (a *Adapter) FetchPrices(ctx context.Context) (entity.PriceMap, error) {
	if a.network.DEXScreenerChainID == "" {
		a.logger.Warn("No DEX Screener chain id configured, prices will be zero", "network", a.Source())
		return entity.PriceMap{}, nil
	}

	addresses := make([]string, 0, len(a.network.Tokens)+1)
	for _, token := range a.network.Tokens {
		addresses = append(addresses, strings.ToLower(token.Address))
	}
	wrapped := strings.ToLower(a.network.WrappedNativeToken)
	if wrapped != "" && wrapped != ZeroAddress {
		addresses = append(addresses, wrapped)
	}

	prices, err := a.prices.GetTokenPricesUSD(ctx, a.network.DEXScreenerChainID, addresses)
	if err != nil {
		return nil, err
	}

	if wrapped != "" {
		if quote, ok := prices[wrapped]; ok {
			prices[strings.ToUpper(a.network.NativeSymbol)] = quote
		} else {
			a.logger.Warn("No price for wrapped native token, native coin will be unvalued",
				"network", a.Source(), "wrappedAddress", wrapped)
		}
	}
	return prices, nil
}

// ExplorerURL implements port.SourceAdapter.
func (a *Adapter) ExplorerURL(address string) string {
	if a.network.BlockExplorerURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/address/%s", strings.TrimRight(a.network.BlockExplorerURL, "/"), address)
}
