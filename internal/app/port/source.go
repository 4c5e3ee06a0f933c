package port

import (
	"context"

	"portfolio_dashboard/internal/domain/entity"
)

// SourceAdapter is the capability set every chain or exchange integration
// implements. Callers treat all adapters polymorphically; a failure surfaces
// as a typed *entity.FetchError and never panics past this boundary.
type SourceAdapter interface {
	// Source returns the registry key this adapter serves (chain identifier,
	// exchange platform or "tfi").
	Source() string

	// FetchBalances returns the current asset positions of the account.
	// Raw balances are integer strings in base units.
	FetchBalances(ctx context.Context, account entity.Account) ([]entity.TokenBalance, error)

	// FetchPrices returns USD quotes for the assets this source tracks,
	// keyed per the source's addressing convention (see entity.TokenBalance.PriceKey).
	FetchPrices(ctx context.Context) (entity.PriceMap, error)

	// ExplorerURL returns a block-explorer link for the address, or "" when
	// the source has no explorer.
	ExplorerURL(address string) string
}

// SourceRegistry resolves adapters by source key. The registry is closed:
// it is populated once at startup and an unknown key is a startup error,
// never a silent no-op at fetch time.
type SourceRegistry interface {
	Adapter(source string) (SourceAdapter, bool)
	Sources() []string
}

// PriceService caches quote maps per source so concurrent account fetches
// against the same source share one upstream price call per TTL window.
type PriceService interface {
	PricesFor(ctx context.Context, source string) (entity.PriceMap, error)

	// WarmUp pre-fetches quote maps for every registered source with at most
	// maxConcurrent upstream calls in flight. Failures are tolerated.
	WarmUp(ctx context.Context, maxConcurrent int)
}
