package bitcoin

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
	sourceKey = "bitcoin"

	btcDecimals = 8
)

type addressStats struct {
	ChainStats struct {
		FundedTxoSum uint64 `json:"funded_txo_sum"`
		SpentTxoSum  uint64 `json:"spent_txo_sum"`
	} `json:"chain_stats"`
	MempoolStats struct {
		FundedTxoSum uint64 `json:"funded_txo_sum"`
		SpentTxoSum  uint64 `json:"spent_txo_sum"`
	} `json:"mempool_stats"`
}

// Adapter serves Bitcoin addresses from an Esplora-style address endpoint:
// balance is confirmed funded minus spent outputs, in satoshis. The BTC row
// is conventionally kept visible even at zero balance (the keep-zero asset
// policy defaults to bitcoin:BTC).
type Adapter struct {
	cfg      configloader.RESTSourceConfig
	rest     *httpclient.RESTClient
	prices   httpclient.CoinGeckoClient
	assetIDs map[string]string
	logger   port.Logger
}

// NewAdapter creates the Bitcoin adapter.
func NewAdapter(cfg configloader.RESTSourceConfig, rest *httpclient.RESTClient, prices httpclient.CoinGeckoClient, assetIDs map[string]string, logger port.Logger) *Adapter {
	return &Adapter{cfg: cfg, rest: rest, prices: prices, assetIDs: assetIDs, logger: logger}
}

// Source implements port.SourceAdapter.
func (a *Adapter) Source() string { return sourceKey }

// FetchBalances implements port.SourceAdapter.
func (a *Adapter) FetchBalances(ctx context.Context, account entity.Account) ([]entity.TokenBalance, error) {
	if a.cfg.Endpoint == "" {
		return nil, entity.NewConfigurationError(sourceKey, "no esplora endpoint configured")
	}
	if account.PublicKey == "" {
		return nil, entity.NewConfigurationError(sourceKey, "wallet account has no address")
	}

	url := fmt.Sprintf("%s/address/%s", strings.TrimRight(a.cfg.Endpoint, "/"), account.PublicKey)
	var stats addressStats
	if err := a.rest.DoJSON(ctx, sourceKey, "GET", url, nil, nil, &stats); err != nil {
		return nil, err
	}

	funded := stats.ChainStats.FundedTxoSum
	spent := stats.ChainStats.SpentTxoSum
	var sats uint64
	if funded > spent {
		sats = funded - spent
	}

	return []entity.TokenBalance{{
		Token:      entity.Token{Symbol: "BTC", Name: "Bitcoin", Decimals: btcDecimals},
		RawBalance: fmt.Sprintf("%d", sats),
	}}, nil
}

// FetchPrices implements port.SourceAdapter.
func (a *Adapter) FetchPrices(ctx context.Context) (entity.PriceMap, error) {
	return a.prices.GetSimplePricesUSD(ctx, a.assetIDs)
}

// ExplorerURL implements port.SourceAdapter.
func (a *Adapter) ExplorerURL(address string) string {
	explorer := a.cfg.BlockExplorerURL
	if explorer == "" {
		explorer = "https://mempool.space"
	}
	return fmt.Sprintf("%s/address/%s", strings.TrimRight(explorer, "/"), address)
}
