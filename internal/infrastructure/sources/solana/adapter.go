package solana

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
	sourceKey = "solana"

	tokenProgramID = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	// wrappedSOLMint prices native SOL, which has no mint of its own.
	wrappedSOLMint = "So11111111111111111111111111111111111111112"

	nativeDecimals = 9
)

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result jsoniter.RawMessage `json:"result"`
	Error  *rpcError           `json:"error"`
}

type balanceResult struct {
	Value uint64 `json:"value"`
}

type tokenAccountsResult struct {
	Value []struct {
		Account struct {
			Data struct {
				Parsed struct {
					Info struct {
						Mint        string `json:"mint"`
						TokenAmount struct {
							Amount   string `json:"amount"`
							Decimals uint8  `json:"decimals"`
						} `json:"tokenAmount"`
					} `json:"info"`
				} `json:"parsed"`
			} `json:"data"`
		} `json:"account"`
	} `json:"value"`
}

// Adapter serves Solana wallets over plain JSON-RPC: getBalance for native
// SOL and getTokenAccountsByOwner (jsonParsed) for SPL positions. Prices are
// mint-address-keyed via DEX Screener; native SOL is priced through the
// wrapped SOL mint and republished under the SOL symbol.
type Adapter struct {
	cfg    configloader.RESTSourceConfig
	rest   *httpclient.RESTClient
	prices httpclient.DEXScreenerClient
	logger port.Logger

	// mint -> symbol/name from config, so SPL positions render with a
	// human-readable symbol instead of the raw mint.
	tokenMeta map[string]configloader.TokenConfig
}

// NewAdapter creates the Solana adapter.
func NewAdapter(cfg configloader.RESTSourceConfig, rest *httpclient.RESTClient, prices httpclient.DEXScreenerClient, logger port.Logger) *Adapter {
	meta := make(map[string]configloader.TokenConfig, len(cfg.Tokens))
	for _, t := range cfg.Tokens {
		meta[t.Address] = t
	}
	return &Adapter{cfg: cfg, rest: rest, prices: prices, logger: logger, tokenMeta: meta}
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

	var native balanceResult
	if err := a.call(ctx, "getBalance", []interface{}{account.PublicKey}, &native); err != nil {
		return nil, err
	}

	var tokenAccounts tokenAccountsResult
	params := []interface{}{
		account.PublicKey,
		map[string]string{"programId": tokenProgramID},
		map[string]string{"encoding": "jsonParsed"},
	}
	if err := a.call(ctx, "getTokenAccountsByOwner", params, &tokenAccounts); err != nil {
		return nil, err
	}

	balances := []entity.TokenBalance{{
		Token:      entity.Token{Symbol: "SOL", Name: "Solana", Decimals: nativeDecimals},
		RawBalance: fmt.Sprintf("%d", native.Value),
	}}

	for _, acc := range tokenAccounts.Value {
		info := acc.Account.Data.Parsed.Info
		token := entity.Token{
			Symbol:   info.Mint,
			Decimals: info.TokenAmount.Decimals,
			Address:  info.Mint,
		}
		if meta, ok := a.tokenMeta[info.Mint]; ok {
			token.Symbol = meta.Symbol
			token.Name = meta.Name
		}
		balances = append(balances, entity.TokenBalance{Token: token, RawBalance: info.TokenAmount.Amount})
	}
	return balances, nil
}

// FetchPrices implements port.SourceAdapter.
func (a *Adapter) FetchPrices(ctx context.Context) (entity.PriceMap, error) {
	addresses := []string{wrappedSOLMint}
	for mint := range a.tokenMeta {
		addresses = append(addresses, mint)
	}

	prices, err := a.prices.GetTokenPricesUSD(ctx, "solana", addresses)
	if err != nil {
		return nil, err
	}

	if quote, ok := prices[strings.ToLower(wrappedSOLMint)]; ok {
		prices["SOL"] = quote
	}
	return prices, nil
}

// ExplorerURL implements port.SourceAdapter.
func (a *Adapter) ExplorerURL(address string) string {
	explorer := a.cfg.BlockExplorerURL
	if explorer == "" {
		explorer = "https://solscan.io"
	}
	return fmt.Sprintf("%s/account/%s", strings.TrimRight(explorer, "/"), address)
}

func (a *Adapter) call(ctx context.Context, method string, params []interface{}, out any) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return entity.NewValidationError(sourceKey, "failed to encode RPC request", err)
	}

	var resp rpcResponse
	if err := a.rest.DoJSON(ctx, sourceKey, "POST", a.cfg.Endpoint, nil, body, &resp); err != nil {
		return err
	}
	if resp.Error != nil {
		return entity.NewDomainError(sourceKey, fmt.Sprintf("RPC error %d: %s", resp.Error.Code, resp.Error.Message))
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return entity.NewValidationError(sourceKey, fmt.Sprintf("malformed %s result", method), err)
	}
	return nil
}
