package httpclient

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"portfolio_dashboard/internal/domain/entity"
)

// CoinGeckoClient looks up USD spot prices for symbol-keyed assets (chains
// without per-token addressing: Aptos, Sui, Sei, Bitcoin).
type CoinGeckoClient interface {
	GetSimplePricesUSD(ctx context.Context, symbolToID map[string]string) (entity.PriceMap, error)
}

type coinGeckoClientImpl struct {
	rest    *RESTClient
	baseURL string
	apiKey  string
	logger  *zap.Logger
	now     func() time.Time
}

// NewCoinGeckoClient creates a CoinGeckoClient. apiKey may be empty for the
// public endpoint.
func NewCoinGeckoClient(rest *RESTClient, baseURL, apiKey string, logger *zap.Logger) CoinGeckoClient {
	return &coinGeckoClientImpl{
		rest:    rest,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		logger:  logger.Named("CoinGeckoClient"),
		now:     time.Now,
	}
}

// GetSimplePricesUSD resolves the given symbol -> CoinGecko asset id mapping
// to a symbol-keyed quote map in one batched call.
func (c *coinGeckoClientImpl) GetSimplePricesUSD(ctx context.Context, symbolToID map[string]string) (entity.PriceMap, error) {
	if len(symbolToID) == 0 {
		return entity.PriceMap{}, nil
	}

	ids := make([]string, 0, len(symbolToID))
	for _, id := range symbolToID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", c.baseURL, strings.Join(ids, ","))
	headers := map[string]string{}
	if c.apiKey != "" {
		headers["x-cg-pro-api-key"] = c.apiKey
	}

	var payload map[string]struct {
		Usd float64 `json:"usd"`
	}
	if err := c.rest.DoJSON(ctx, "coingecko", "GET", url, headers, nil, &payload); err != nil {
		return nil, err
	}

	prices := make(entity.PriceMap, len(symbolToID))
	for symbol, id := range symbolToID {
		quote, ok := payload[id]
		if !ok {
			c.logger.Warn("No price returned for asset id",
				zap.String("symbol", symbol),
				zap.String("assetId", id))
			continue
		}
		prices[strings.ToUpper(symbol)] = entity.PriceQuote{Price: quote.Usd, Timestamp: c.now()}
	}
	return prices, nil
}
