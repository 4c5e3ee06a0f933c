package sui

import (
	"context"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"portfolio_dashboard/internal/app/port"
	"portfolio_dashboard/internal/domain/entity"
	"portfolio_dashboard/internal/infrastructure/configloader"
	"portfolio_dashboard/internal/infrastructure/httpclient"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	sourceKey = "sui"

	suiCoinType = "0x2::sui::SUI"
	suiDecimals = 9
)

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result jsoniter.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type coinBalance struct {
	CoinType     string `json:"coinType"`
	TotalBalance string `json:"totalBalance"`
}

// Adapter serves Sui wallets via the suix_getAllBalances RPC. Quotes are
// symbol-keyed through CoinGecko, like the other chains without usable
// per-token price addressing.
type Adapter struct {
	cfg       configloader.RESTSourceConfig
	rest      *httpclient.RESTClient
	prices    httpclient.CoinGeckoClient
	assetIDs  map[string]string
	logger    port.Logger
	tokenMeta map[string]configloader.TokenConfig
}

// NewAdapter creates the Sui adapter.
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
		return nil, entity.NewConfigurationError(sourceKey, "no RPC endpoint configured")
	}
	if account.PublicKey == "" {
		return nil, entity.NewConfigurationError(sourceKey, "wallet account has no public key")
	}

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0", ID: 1,
		Method: "suix_getAllBalances",
		Params: []interface{}{account.PublicKey},
	})
	if err != nil {
		return nil, entity.NewValidationError(sourceKey, "failed to encode RPC request", err)
	}

	var resp rpcResponse
	if err := a.rest.DoJSON(ctx, sourceKey, "POST", a.cfg.Endpoint, nil, body, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, entity.NewDomainError(sourceKey, fmt.Sprintf("RPC error %d: %s", resp.Error.Code, resp.Error.Message))
	}

	var coins []coinBalance
	if err := json.Unmarshal(resp.Result, &coins); err != nil {
		return nil, entity.NewValidationError(sourceKey, "malformed suix_getAllBalances result", err)
	}

	var balances []entity.TokenBalance
	for _, coin := range coins {
		token := entity.Token{Symbol: coin.CoinType, Decimals: suiDecimals}
		switch {
		case coin.CoinType == suiCoinType:
			token.Symbol = "SUI"
			token.Name = "Sui"
		default:
			meta, ok := a.tokenMeta[coin.CoinType]
			if !ok {
				a.logger.Debug("Skipping untracked coin type", "source", sourceKey, "coinType", coin.CoinType)
				continue
			}
			token.Symbol = meta.Symbol
			token.Name = meta.Name
			token.Decimals = meta.Decimals
		}
		balances = append(balances, entity.TokenBalance{Token: token, RawBalance: coin.TotalBalance})
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
		explorer = "https://suiscan.xyz/mainnet"
	}
	return fmt.Sprintf("%s/account/%s", strings.TrimRight(explorer, "/"), address)
}
