package entity

import "time"

// AccountType tags the variant of an Account.
type AccountType string

const (
	AccountWallet AccountType = "wallet"
	AccountCEX    AccountType = "cex"
	AccountBank   AccountType = "bank"
	AccountBroker AccountType = "broker"
	AccountCredit AccountType = "credit"
	AccountDebit  AccountType = "debit"
)

// WalletStatus describes whether a wallet account is still being tracked.
type WalletStatus string

const (
	WalletActive   WalletStatus = "active"
	WalletInactive WalletStatus = "inactive"
	WalletStandby  WalletStatus = "standby"
)

// Account represents one tracked financial account of any kind. Wallet
// accounts additionally carry Chain/PublicKey/Status, exchange accounts carry
// Platform. Value is the last known USD valuation and is only mutated through
// the portfolio store.
type Account struct {
	ID          string       `json:"id" yaml:"id"`
	Name        string       `json:"name" yaml:"name"`
	Type        AccountType  `json:"type" yaml:"type"`
	Chain       string       `json:"chain,omitempty" yaml:"chain,omitempty"`
	PublicKey   string       `json:"publicKey,omitempty" yaml:"publicKey,omitempty"`
	Status      WalletStatus `json:"status,omitempty" yaml:"status,omitempty"`
	Platform    string       `json:"platform,omitempty" yaml:"platform,omitempty"`
	Source      string       `json:"source" yaml:"source"`
	Value       float64      `json:"value"`
	LastUpdated time.Time    `json:"lastUpdated"`
}

// IsActive reports whether the account should be scheduled for fetching.
// Non-wallet accounts have no status and are always active.
func (a Account) IsActive() bool {
	if a.Type != AccountWallet {
		return true
	}
	return a.Status == "" || a.Status == WalletActive
}
