package entity

// CurrentBalance is the portfolio total and its per-type partition.
// Total always equals the sum of all account values; the store recomputes it
// synchronously with every account mutation.
type CurrentBalance struct {
	Total  float64                 `json:"total"`
	ByType map[AccountType]float64 `json:"byType"`
}

// Allocation breaks the portfolio down along the three display axes.
type Allocation struct {
	ByType     map[AccountType]float64 `json:"byType"`
	ByChain    map[string]float64      `json:"byChain"`
	ByPlatform map[string]float64      `json:"byPlatform"`
}

// PortfolioState is the single source of truth consumed by the presentation
// layer. Errors is keyed by account id and holds the message of the last
// failed fetch, if any; the account's value remains the last known one.
type PortfolioState struct {
	Accounts       []Account         `json:"accounts"`
	CurrentBalance CurrentBalance    `json:"currentBalance"`
	Allocation     Allocation        `json:"allocation"`
	Errors         map[string]string `json:"errors,omitempty"`
	IsPrivate      bool              `json:"isPrivate"`
	Loading        bool              `json:"loading"`
}
