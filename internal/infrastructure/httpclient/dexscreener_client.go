package httpclient

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"portfolio_dashboard/internal/domain/entity"
	"portfolio_dashboard/internal/pkg/utils"
)

// DEXScreenerClient looks up USD prices for address-keyed assets (EVM
// chains, Solana) in batches against the DEX Screener token endpoint.
type DEXScreenerClient interface {
	GetTokenPricesUSD(ctx context.Context, chainID string, tokenAddresses []string) (entity.PriceMap, error)
}

// pairData is the subset of the DEX Screener pair payload we consume.
type pairData struct {
	ChainID     string         `json:"chainId"`
	PairAddress string         `json:"pairAddress"`
	BaseToken   pairToken      `json:"baseToken"`
	QuoteToken  pairToken      `json:"quoteToken"`
	PriceUsd    string         `json:"priceUsd"`
	Liquidity   *pairLiquidity `json:"liquidity"`
}

type pairToken struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

type pairLiquidity struct {
	Usd float64 `json:"usd"`
}

type dexScreenerClientImpl struct {
	rest                *RESTClient
	baseURL             string
	logger              *zap.Logger
	maxTokensPerRequest int
	now                 func() time.Time
}

// NewDEXScreenerClient creates a DEXScreenerClient.
func NewDEXScreenerClient(rest *RESTClient, baseURL string, logger *zap.Logger, maxTokensPerRequest int) DEXScreenerClient {
	if maxTokensPerRequest <= 0 {
		maxTokensPerRequest = 30
	}
	return &dexScreenerClientImpl{
		rest:                rest,
		baseURL:             strings.TrimRight(baseURL, "/"),
		logger:              logger.Named("DEXScreenerClient"),
		maxTokensPerRequest: maxTokensPerRequest,
		now:                 time.Now,
	}
}

// GetTokenPricesUSD fetches quotes for the given token addresses, batching
// per the endpoint's address limit. For each token the pair with the highest
// USD liquidity wins. Tokens without a usable pair are simply absent from the
// result; the caller treats a missing quote as zero value.
func (c *dexScreenerClientImpl) GetTokenPricesUSD(ctx context.Context, chainID string, tokenAddresses []string) (entity.PriceMap, error) {
	if len(tokenAddresses) == 0 {
		return entity.PriceMap{}, nil
	}

	prices := make(entity.PriceMap)
	for _, batch := range utils.BatchStrings(tokenAddresses, c.maxTokensPerRequest) {
		url := fmt.Sprintf("%s/tokens/v1/%s/%s", c.baseURL, chainID, strings.Join(batch, ","))

		var pairs []pairData
		if err := c.rest.DoJSON(ctx, "dexscreener", "GET", url, nil, nil, &pairs); err != nil {
			return nil, err
		}

		for _, addr := range batch {
			price, ok := c.selectBestPrice(pairs, addr)
			if !ok {
				c.logger.Warn("No usable pair returned for token address",
					zap.String("chainId", chainID),
					zap.String("tokenAddress", addr))
				continue
			}
			prices[strings.ToLower(addr)] = entity.PriceQuote{Price: price, Timestamp: c.now()}
		}
	}
	return prices, nil
}

func (c *dexScreenerClientImpl) selectBestPrice(pairs []pairData, baseTokenAddress string) (float64, bool) {
	var best *pairData
	for i := range pairs {
		pair := &pairs[i]
		if !strings.EqualFold(pair.BaseToken.Address, baseTokenAddress) {
			continue
		}
		if pair.PriceUsd == "" || pair.PriceUsd == "0" {
			continue
		}
		if best == nil || (pair.Liquidity != nil && best.Liquidity != nil && pair.Liquidity.Usd > best.Liquidity.Usd) {
			best = pair
		}
	}
	if best == nil {
		return 0, false
	}
	price, err := strconv.ParseFloat(best.PriceUsd, 64)
	if err != nil || price <= 0 {
		c.logger.Warn("Failed to parse pair price",
			zap.String("tokenAddress", baseTokenAddress),
			zap.String("priceUsd", best.PriceUsd))
		return 0, false
	}
	return price, true
}
