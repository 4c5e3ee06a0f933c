package tfi

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"portfolio_dashboard/internal/app/port"
	"portfolio_dashboard/internal/domain/entity"
	"portfolio_dashboard/internal/infrastructure/configloader"
)

const (
	sourceKey = "tfi"

	statementDecimals = 2
)

// Adapter serves bank and brokerage accounts whose value comes from manually
// entered statement figures rather than a live API. An account without a
// configured statement value fails closed.
type Adapter struct {
	values map[string]float64
	logger port.Logger
}

// NewAdapter indexes the configured statement values by account ID.
func NewAdapter(accounts []configloader.TFIAccountConfig, logger port.Logger) *Adapter {
	values := make(map[string]float64, len(accounts))
	for _, acc := range accounts {
		values[acc.ID] = acc.StatementValue
	}
	return &Adapter{values: values, logger: logger}
}

// Source implements port.SourceAdapter.
func (a *Adapter) Source() string { return sourceKey }

// FetchBalances implements port.SourceAdapter. The statement value is
// exposed as a single USD-denominated row so the common valuation path
// applies unchanged.
func (a *Adapter) FetchBalances(_ context.Context, account entity.Account) ([]entity.TokenBalance, error) {
	value, ok := a.values[account.ID]
	if !ok {
		return nil, entity.NewConfigurationError(sourceKey, "no statement value configured for account "+account.ID)
	}
	raw := decimal.NewFromFloat(value).Shift(statementDecimals).Truncate(0).String()
	return []entity.TokenBalance{
		{
			Token:      entity.Token{Symbol: "USD", Name: "US Dollar", Decimals: statementDecimals},
			RawBalance: raw,
		},
	}, nil
}

// FetchPrices implements port.SourceAdapter.
func (a *Adapter) FetchPrices(context.Context) (entity.PriceMap, error) {
	return entity.PriceMap{
		"USD": {Price: 1, Timestamp: time.Now()},
	}, nil
}

// ExplorerURL implements port.SourceAdapter.
func (a *Adapter) ExplorerURL(string) string { return "" }
