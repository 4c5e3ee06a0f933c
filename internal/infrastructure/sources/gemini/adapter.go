package gemini

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"
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
	sourceKey = "gemini"

	balancesPath = "/v1/balances"
	tickerPath   = "/v1/pubticker"

	exchangeDecimals = 8
)

var stableAssets = map[string]struct{}{
	"USD": {}, "USDT": {}, "USDC": {}, "GUSD": {}, "DAI": {},
}

type balanceEntry struct {
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
}

type tickerResponse struct {
	Last string `json:"last"`
}

type apiError struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// Adapter is the Gemini exchange integration. Private requests carry the
// payload as base64 JSON in X-GEMINI-PAYLOAD with an HMAC-SHA384 hex
// signature. Without both credential environment variables the source fails
// closed.
type Adapter struct {
	baseURL string
	apiKey  string
	secret  []byte
	confErr *entity.FetchError

	mu        sync.Mutex
	lastNonce int64

	rest   *httpclient.RESTClient
	logger port.Logger
}

// NewAdapter creates the Gemini adapter, resolving credentials from the
// environment variables named in the config.
func NewAdapter(cfg configloader.ExchangeConfig, lookupEnv func(string) (string, bool), rest *httpclient.RESTClient, logger port.Logger) *Adapter {
	a := &Adapter{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		rest:    rest,
		logger:  logger,
	}
	if a.baseURL == "" {
		a.baseURL = "https://api.gemini.com"
	}

	apiKey, okKey := lookupEnv(cfg.APIKeyEnv)
	secret, okSecret := lookupEnv(cfg.APISecretEnv)
	if cfg.APIKeyEnv == "" || cfg.APISecretEnv == "" || !okKey || !okSecret {
		a.confErr = entity.NewConfigurationError(sourceKey, "API credentials not configured")
		return a
	}
	a.apiKey = apiKey
	a.secret = []byte(secret)
	return a
}

// Source implements port.SourceAdapter.
func (a *Adapter) Source() string { return sourceKey }

// FetchBalances implements port.SourceAdapter.
func (a *Adapter) FetchBalances(ctx context.Context, _ entity.Account) ([]entity.TokenBalance, error) {
	raw, err := a.privateCall(ctx, balancesPath)
	if err != nil {
		return nil, err
	}

	var entries []balanceEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, entity.NewValidationError(sourceKey, "malformed balances response", err)
	}

	balances := make([]entity.TokenBalance, 0, len(entries))
	for _, e := range entries {
		amount, err := decimal.NewFromString(e.Amount)
		if err != nil {
			a.logger.Warn("Skipping unparseable balance amount", "source", sourceKey, "currency", e.Currency, "amount", e.Amount)
			continue
		}
		symbol := strings.ToUpper(e.Currency)
		balances = append(balances, entity.TokenBalance{
			Token:      entity.Token{Symbol: symbol, Name: symbol, Decimals: exchangeDecimals},
			RawBalance: amount.Shift(exchangeDecimals).Truncate(0).String(),
		})
	}
	return balances, nil
}

// pricedSymbols are the assets quoted against USD on the public ticker.
var pricedSymbols = []string{"BTC", "ETH", "SOL", "LINK", "MATIC"}

// FetchPrices implements port.SourceAdapter.
func (a *Adapter) FetchPrices(ctx context.Context) (entity.PriceMap, error) {
	now := time.Now()
	prices := make(entity.PriceMap)
	for stable := range stableAssets {
		prices[stable] = entity.PriceQuote{Price: 1, Timestamp: now}
	}

	for _, symbol := range pricedSymbols {
		reqURL := fmt.Sprintf("%s%s/%susd", a.baseURL, tickerPath, strings.ToLower(symbol))
		var ticker tickerResponse
		if err := a.rest.DoJSON(ctx, sourceKey, "GET", reqURL, nil, nil, &ticker); err != nil {
			// Unlisted pairs come back 400; other symbols still price.
			if fe, ok := err.(*entity.FetchError); ok && fe.Kind == entity.ErrDomain {
				a.logger.Debug("Ticker pair unavailable", "source", sourceKey, "symbol", symbol)
				continue
			}
			return nil, err
		}
		last, err := strconv.ParseFloat(ticker.Last, 64)
		if err != nil || last <= 0 {
			continue
		}
		prices[symbol] = entity.PriceQuote{Price: last, Timestamp: now}
	}
	return prices, nil
}

// ExplorerURL implements port.SourceAdapter.
func (a *Adapter) ExplorerURL(string) string { return "" }

func (a *Adapter) privateCall(ctx context.Context, path string) (jsoniter.RawMessage, error) {
	if a.confErr != nil {
		return nil, a.confErr
	}

	payload, err := json.Marshal(map[string]any{
		"request": path,
		"nonce":   a.nextNonce(),
	})
	if err != nil {
		return nil, entity.NewValidationError(sourceKey, "encoding request payload", err)
	}
	encoded := base64.StdEncoding.EncodeToString(payload)

	mac := hmac.New(sha512.New384, a.secret)
	mac.Write([]byte(encoded))

	headers := map[string]string{
		"Content-Type":       "text/plain",
		"X-GEMINI-APIKEY":    a.apiKey,
		"X-GEMINI-PAYLOAD":   encoded,
		"X-GEMINI-SIGNATURE": hex.EncodeToString(mac.Sum(nil)),
		"Cache-Control":      "no-cache",
	}

	status, raw, err := a.rest.Do(ctx, sourceKey, "POST", a.baseURL+path, headers, nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			return nil, entity.FetchErrorFromStatus(sourceKey, status, apiErr.Message)
		}
		return nil, entity.FetchErrorFromStatus(sourceKey, status, string(raw))
	}
	return raw, nil
}

// nextNonce returns a strictly increasing millisecond nonce.
func (a *Adapter) nextNonce() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	nonce := time.Now().UnixMilli()
	if nonce <= a.lastNonce {
		nonce = a.lastNonce + 1
	}
	a.lastNonce = nonce
	return nonce
}
