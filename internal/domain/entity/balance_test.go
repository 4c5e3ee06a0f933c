package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUIAmountDerivation(t *testing.T) {
	b := TokenBalance{
		Token:      Token{Symbol: "USDC", Decimals: 6},
		RawBalance: "1500000",
	}
	require.Equal(t, "1.5", b.UIAmount().String())

	b = TokenBalance{
		Token:      Token{Symbol: "ETH", Decimals: 18},
		RawBalance: "1000000000000000000",
	}
	require.Equal(t, "1", b.UIAmount().String())

	b = TokenBalance{Token: Token{Symbol: "BTC", Decimals: 8}, RawBalance: "1"}
	require.Equal(t, "0.00000001", b.UIAmount().String())
}

func TestUIAmountMalformedRawIsZero(t *testing.T) {
	for _, raw := range []string{"", "abc", "1.5e", "0x10"} {
		b := TokenBalance{Token: Token{Decimals: 6}, RawBalance: raw}
		require.True(t, b.UIAmount().IsZero(), "raw %q", raw)
	}
}

func TestPriceKey(t *testing.T) {
	withAddr := TokenBalance{Token: Token{
		Symbol:  "USDC",
		Address: "0xA0b86991C6218b36c1d19D4a2e9Eb0cE3606eB48",
	}}
	require.Equal(t, "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", withAddr.PriceKey())

	native := TokenBalance{Token: Token{Symbol: "eth"}}
	require.Equal(t, "ETH", native.PriceKey())
}

func TestPriceMapLookup(t *testing.T) {
	m := PriceMap{"BTC": {Price: 60000}}
	q, ok := m.Lookup("BTC")
	require.True(t, ok)
	require.Equal(t, 60000.0, q.Price)

	_, ok = m.Lookup("btc")
	require.False(t, ok, "lookups are case-sensitive; keys are normalized at write time")
}
