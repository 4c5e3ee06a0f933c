package entity

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Token holds the immutable metadata of an asset. Address is empty for
// assets that have no per-token addressing (native coins, exchange balances).
type Token struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name,omitempty"`
	Decimals uint8  `json:"decimals"`
	Address  string `json:"address,omitempty"`
}

// TokenBalance is one asset position of an account. RawBalance is an integer
// string in base units; the display amount is always derived from it so the
// two can never drift apart.
type TokenBalance struct {
	Token      Token  `json:"token"`
	RawBalance string `json:"rawBalance"`
}

// UIAmount returns RawBalance scaled down by the token's decimals.
// A malformed raw balance yields zero.
func (b TokenBalance) UIAmount() decimal.Decimal {
	raw, err := decimal.NewFromString(b.RawBalance)
	if err != nil {
		return decimal.Zero
	}
	return raw.Shift(-int32(b.Token.Decimals))
}

// PriceKey returns the key this balance expects its price quote under:
// the lowercased contract address when the chain has per-token addressing,
// the uppercased symbol otherwise.
func (b TokenBalance) PriceKey() string {
	if b.Token.Address != "" {
		return strings.ToLower(b.Token.Address)
	}
	return strings.ToUpper(b.Token.Symbol)
}

// PriceQuote is one USD price observation for an asset.
type PriceQuote struct {
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// PriceMap maps price keys (address or symbol, see TokenBalance.PriceKey)
// to quotes.
type PriceMap map[string]PriceQuote

// Lookup returns the quote for the given key, if present.
func (m PriceMap) Lookup(key string) (PriceQuote, bool) {
	q, ok := m[key]
	return q, ok
}
