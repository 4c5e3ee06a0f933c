package kraken

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"

	"portfolio_dashboard/internal/app/port"
	"portfolio_dashboard/internal/domain/entity"
	"portfolio_dashboard/internal/infrastructure/configloader"
	"portfolio_dashboard/internal/infrastructure/httpclient"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	sourceKey = "kraken"

	balancePath = "/0/private/Balance"
	tickerPath  = "/0/public/Ticker"

	// Exchange balances arrive as decimal strings; they are normalized to
	// base units at this fixed scale.
	exchangeDecimals = 8
)

// assetNames maps Kraken's legacy asset codes to display symbols.
var assetNames = map[string]string{
	"XXBT": "BTC",
	"XBT":  "BTC",
	"XETH": "ETH",
	"XXRP": "XRP",
	"XXLM": "XLM",
	"ZUSD": "USD",
	"ZEUR": "EUR",
}

// tickerPairs maps display symbols to the USD ticker pair used for pricing.
// Stable assets are pinned to 1 and never queried.
var tickerPairs = map[string]string{
	"BTC":  "XBTUSD",
	"ETH":  "ETHUSD",
	"SOL":  "SOLUSD",
	"XRP":  "XRPUSD",
	"XLM":  "XLMUSD",
	"DOT":  "DOTUSD",
	"ADA":  "ADAUSD",
	"ATOM": "ATOMUSD",
}

var stableAssets = map[string]struct{}{
	"USD": {}, "USDT": {}, "USDC": {}, "DAI": {},
}

type privateResponse struct {
	Error  []string            `json:"error"`
	Result jsoniter.RawMessage `json:"result"`
}

type tickerInfo struct {
	C []string `json:"c"`
}

// Adapter is the Kraken exchange integration. Private calls are form-encoded
// and signed per Kraken's scheme (see sign.go); a response with a non-empty
// error array is a domain failure, retryable only for nonce/timeout errors.
// Without both credential environment variables the source fails closed.
type Adapter struct {
	baseURL string
	apiKey  string
	secret  []byte
	confErr *entity.FetchError
	nonces  *nonceSource
	rest    *httpclient.RESTClient
	logger  port.Logger
}

// NewAdapter creates the Kraken adapter, resolving credentials from the
// environment variables named in the config.
func NewAdapter(cfg configloader.ExchangeConfig, lookupEnv func(string) (string, bool), rest *httpclient.RESTClient, logger port.Logger) *Adapter {
	a := &Adapter{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		nonces:  newNonceSource(),
		rest:    rest,
		logger:  logger,
	}
	if a.baseURL == "" {
		a.baseURL = "https://api.kraken.com"
	}

	apiKey, okKey := lookupEnv(cfg.APIKeyEnv)
	secretB64, okSecret := lookupEnv(cfg.APISecretEnv)
	if cfg.APIKeyEnv == "" || cfg.APISecretEnv == "" || !okKey || !okSecret {
		a.confErr = entity.NewConfigurationError(sourceKey, "API credentials not configured")
		return a
	}
	secret, err := base64.StdEncoding.DecodeString(secretB64)
	if err != nil {
		a.confErr = entity.NewConfigurationError(sourceKey, "API secret is not valid base64")
		return a
	}
	a.apiKey = apiKey
	a.secret = secret
	return a
}

// Source implements port.SourceAdapter.
func (a *Adapter) Source() string { return sourceKey }

// FetchBalances implements port.SourceAdapter.
func (a *Adapter) FetchBalances(ctx context.Context, _ entity.Account) ([]entity.TokenBalance, error) {
	raw, err := a.privateCall(ctx, balancePath, url.Values{})
	if err != nil {
		return nil, err
	}

	var amounts map[string]string
	if err := json.Unmarshal(raw, &amounts); err != nil {
		return nil, entity.NewValidationError(sourceKey, "malformed Balance result", err)
	}

	balances := make([]entity.TokenBalance, 0, len(amounts))
	for asset, amountStr := range amounts {
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			a.logger.Warn("Skipping unparseable balance amount", "source", sourceKey, "asset", asset, "amount", amountStr)
			continue
		}
		symbol := normalizeAsset(asset)
		balances = append(balances, entity.TokenBalance{
			Token:      entity.Token{Symbol: symbol, Name: symbol, Decimals: exchangeDecimals},
			RawBalance: amount.Shift(exchangeDecimals).Truncate(0).String(),
		})
	}
	return balances, nil
}

// FetchPrices implements port.SourceAdapter.
func (a *Adapter) FetchPrices(ctx context.Context) (entity.PriceMap, error) {
	pairs := make([]string, 0, len(tickerPairs))
	pairToSymbol := make(map[string]string, len(tickerPairs))
	for symbol, pair := range tickerPairs {
		pairs = append(pairs, pair)
		pairToSymbol[pair] = symbol
	}

	reqURL := fmt.Sprintf("%s%s?pair=%s", a.baseURL, tickerPath, strings.Join(pairs, ","))
	var resp privateResponse
	if err := a.rest.DoJSON(ctx, sourceKey, "GET", reqURL, nil, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Error) > 0 {
		return nil, entity.NewDomainError(sourceKey, resp.Error[0])
	}

	var tickers map[string]tickerInfo
	if err := json.Unmarshal(resp.Result, &tickers); err != nil {
		return nil, entity.NewValidationError(sourceKey, "malformed Ticker result", err)
	}

	now := time.Now()
	prices := make(entity.PriceMap)
	for stable := range stableAssets {
		prices[stable] = entity.PriceQuote{Price: 1, Timestamp: now}
	}
	for pair, info := range tickers {
		symbol, ok := pairToSymbol[pair]
		if !ok {
			// Legacy result keys like XXBTZUSD instead of the requested XBTUSD.
			base := strings.TrimSuffix(strings.TrimSuffix(pair, "ZUSD"), "USD")
			symbol = normalizeAsset(base)
			if _, known := tickerPairs[symbol]; !known {
				continue
			}
		}
		if len(info.C) == 0 {
			continue
		}
		last, err := strconv.ParseFloat(info.C[0], 64)
		if err != nil || last <= 0 {
			continue
		}
		prices[symbol] = entity.PriceQuote{Price: last, Timestamp: now}
	}
	return prices, nil
}

// ExplorerURL implements port.SourceAdapter. Exchange balances have no
// on-chain address to link to.
func (a *Adapter) ExplorerURL(string) string { return "" }

func (a *Adapter) privateCall(ctx context.Context, path string, form url.Values) (jsoniter.RawMessage, error) {
	if a.confErr != nil {
		return nil, a.confErr
	}

	nonce := strconv.FormatInt(a.nonces.Next(), 10)
	form.Set("nonce", nonce)

	headers := map[string]string{
		"API-Key":      a.apiKey,
		"API-Sign":     sign(a.secret, path, nonce, form),
		"Content-Type": "application/x-www-form-urlencoded",
	}

	status, raw, err := a.rest.Do(ctx, sourceKey, "POST", a.baseURL+path, headers, []byte(form.Encode()))
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, entity.FetchErrorFromStatus(sourceKey, status, string(raw))
	}

	var resp privateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, entity.NewValidationError(sourceKey, "malformed private response", err)
	}
	if len(resp.Error) > 0 {
		return nil, entity.NewDomainError(sourceKey, resp.Error[0])
	}
	return resp.Result, nil
}

// normalizeAsset maps Kraken's internal asset codes (XXBT, ZUSD, BTC.S) to
// display symbols.
func normalizeAsset(asset string) string {
	// Staked and yield-bearing variants keep the underlying symbol.
	if idx := strings.IndexByte(asset, '.'); idx > 0 {
		asset = asset[:idx]
	}
	if mapped, ok := assetNames[asset]; ok {
		return mapped
	}
	return asset
}
