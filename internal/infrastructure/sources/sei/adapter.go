package sei

import (
	"context"
	"fmt"
	"strings"

	"portfolio_dashboard/internal/app/port"
	"portfolio_dashboard/internal/domain/entity"
	"portfolio_dashboard/internal/infrastructure/configloader"
	"portfolio_dashboard/internal/infrastructure/httpclient"
)

const (
	sourceKey = "sei"

	nativeDenom    = "usei"
	nativeDecimals = 6
)

type bankBalancesResponse struct {
	Balances []struct {
		Denom  string `json:"denom"`
		Amount string `json:"amount"`
	} `json:"balances"`
}

// Adapter serves Sei wallets from the Cosmos bank LCD endpoint, mapping
// denoms to tracked tokens. Symbol-keyed CoinGecko quotes, as with the other
// non-addressed chains.
type Adapter struct {
	cfg       configloader.RESTSourceConfig
	rest      *httpclient.RESTClient
	prices    httpclient.CoinGeckoClient
	assetIDs  map[string]string
	logger    port.Logger
	tokenMeta map[string]configloader.TokenConfig
}

// NewAdapter creates the Sei adapter.
func NewAdapter(cfg configloader.RESTSourceConfig, rest *httpclient.RESTClient, prices httpclient.CoinGeckoClient, assetIDs map[string]string, logger port.Logger) *Adapter {
	meta := make(map[string]configloader.TokenConfig, len(cfg.Tokens))
	for _, t := range cfg.Tokens {
		meta[t.Address] = t
	}
	return &Adapter{cfg: cfg, rest: rest, prices: prices, assetIDs: assetIDs, logger: logger, tokenMeta: meta}
}

// Source implements port.SourceAdapter.
func (a *Adapter) Source() string { return sourceKey }

// FetchBalances implements port.SourceAdapter.
func (a *Adapter) FetchBalances(ctx context.Context, account entity.Account) ([]entity.TokenBalance, error) {
	if a.cfg.Endpoint == "" {
		return nil, entity.NewConfigurationError(sourceKey, "no LCD endpoint configured")
	}
	if account.PublicKey == "" {
		return nil, entity.NewConfigurationError(sourceKey, "wallet account has no public key")
	}

	url := fmt.Sprintf("%s/cosmos/bank/v1beta1/balances/%s", strings.TrimRight(a.cfg.Endpoint, "/"), account.PublicKey)
	var resp bankBalancesResponse
	if err := a.rest.DoJSON(ctx, sourceKey, "GET", url, nil, nil, &resp); err != nil {
		return nil, err
	}

	var balances []entity.TokenBalance
	for _, bal := range resp.Balances {
		token := entity.Token{Symbol: bal.Denom, Decimals: nativeDecimals}
		switch {
		case bal.Denom == nativeDenom:
			token.Symbol = "SEI"
			token.Name = "Sei"
		default:
			meta, ok := a.tokenMeta[bal.Denom]
			if !ok {
				a.logger.Debug("Skipping untracked denom", "source", sourceKey, "denom", bal.Denom)
				continue
			}
			token.Symbol = meta.Symbol
			token.Name = meta.Name
			token.Decimals = meta.Decimals
		}
		balances = append(balances, entity.TokenBalance{Token: token, RawBalance: bal.Amount})
	}
	return balances, nil
}

// FetchPrices implements port.SourceAdapter.
func (a *Adapter) FetchPrices(ctx context.Context) (entity.PriceMap, error) {
	return a.prices.GetSimplePricesUSD(ctx, a.assetIDs)
}

// ExplorerURL implements port.SourceAdapter.
func (a *Adapter) ExplorerURL(address string) string {
	explorer := a.cfg.BlockExplorerURL
	if explorer == "" {
		explorer = "https://www.seiscan.app/pacific-1"
	}
	return fmt.Sprintf("%s/accounts/%s", strings.TrimRight(explorer, "/"), address)
}
