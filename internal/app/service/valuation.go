package service

import (
	"strings"

	"portfolio_dashboard/internal/domain/entity"
	"portfolio_dashboard/internal/pkg/utils"
)

// Valuer turns a balance list and a price map into a USD account value.
// Zero-amount balances are dropped unless the asset is listed in the
// keep-zero set, keyed "source:SYMBOL".
type Valuer struct {
	keepZero map[string]struct{}
}

// NewValuer builds a Valuer from configured keep-zero keys. Keys are
// normalized to lowercase source and uppercase symbol.
func NewValuer(keepZeroKeys []string) *Valuer {
	keep := make(map[string]struct{}, len(keepZeroKeys))
	for _, key := range keepZeroKeys {
		src, sym, ok := strings.Cut(key, ":")
		if !ok {
			continue
		}
		keep[strings.ToLower(src)+":"+strings.ToUpper(sym)] = struct{}{}
	}
	return &Valuer{keepZero: keep}
}

// Value computes the USD value of the balances. A missing or stale-free
// price contributes zero rather than failing the account; non-finite
// intermediate results are clamped to zero.
func (v *Valuer) Value(balances []entity.TokenBalance, prices entity.PriceMap) float64 {
	var total float64
	for _, b := range balances {
		quote, ok := prices.Lookup(b.PriceKey())
		if !ok {
			continue
		}
		amount, _ := b.UIAmount().Float64()
		total += utils.ClampFinite(amount * quote.Price)
	}
	return utils.ClampFinite(total)
}

// Filter drops zero-amount balances, honoring the keep-zero set so assets
// like a wallet's BTC row stay visible at zero.
func (v *Valuer) Filter(source string, balances []entity.TokenBalance) []entity.TokenBalance {
	kept := make([]entity.TokenBalance, 0, len(balances))
	for _, b := range balances {
		if b.UIAmount().IsZero() {
			key := strings.ToLower(source) + ":" + strings.ToUpper(b.Token.Symbol)
			if _, keep := v.keepZero[key]; !keep {
				continue
			}
		}
		kept = append(kept, b)
	}
	return kept
}
