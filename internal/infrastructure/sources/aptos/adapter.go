package aptos

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
	sourceKey = "aptos"

	coinStorePrefix = "0x1::coin::CoinStore<"
	aptosCoinType   = "0x1::aptos_coin::AptosCoin"
	aptosDecimals   = 8
)

type resource struct {
	Type string `json:"type"`
	Data struct {
		Coin struct {
			Value string `json:"value"`
		} `json:"coin"`
	} `json:"data"`
}

// Adapter serves Aptos wallets from a fullnode's account resources endpoint.
// Prices are symbol-keyed: Aptos coin types are long generic strings that the
// price providers do not index, so quotes come from CoinGecko by asset id.
type Adapter struct {
	cfg       configloader.RESTSourceConfig
	rest      *httpclient.RESTClient
	prices    httpclient.CoinGeckoClient
	assetIDs  map[string]string
	logger    port.Logger
	tokenMeta map[string]configloader.TokenConfig
}

// NewAdapter creates the Aptos adapter. assetIDs maps symbols to CoinGecko
// ids for the coins this source tracks.
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
		return nil, entity.NewConfigurationError(sourceKey, "no fullnode endpoint configured")
	}
	if account.PublicKey == "" {
		return nil, entity.NewConfigurationError(sourceKey, "wallet account has no public key")
	}

	url := fmt.Sprintf("%s/v1/accounts/%s/resources", strings.TrimRight(a.cfg.Endpoint, "/"), account.PublicKey)
	var resources []resource
	if err := a.rest.DoJSON(ctx, sourceKey, "GET", url, nil, nil, &resources); err != nil {
		return nil, err
	}

	var balances []entity.TokenBalance
	for _, res := range resources {
		if !strings.HasPrefix(res.Type, coinStorePrefix) || !strings.HasSuffix(res.Type, ">") {
			continue
		}
		coinType := strings.TrimSuffix(strings.TrimPrefix(res.Type, coinStorePrefix), ">")

		token := entity.Token{Symbol: coinType, Decimals: aptosDecimals}
		switch {
		case coinType == aptosCoinType:
			token.Symbol = "APT"
			token.Name = "Aptos"
		default:
			meta, ok := a.tokenMeta[coinType]
			if !ok {
				a.logger.Debug("Skipping untracked coin store", "source", sourceKey, "coinType", coinType)
				continue
			}
			token.Symbol = meta.Symbol
			token.Name = meta.Name
			token.Decimals = meta.Decimals
		}

		balances = append(balances, entity.TokenBalance{Token: token, RawBalance: res.Data.Coin.Value})
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
		explorer = "https://explorer.aptoslabs.com"
	}
	return fmt.Sprintf("%s/account/%s", strings.TrimRight(explorer, "/"), address)
}
