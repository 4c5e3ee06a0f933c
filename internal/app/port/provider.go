package port

import "portfolio_dashboard/internal/domain/entity"

// AccountProvider supplies the account list constructed once at startup.
// Accounts are never deleted at runtime, only marked inactive.
type AccountProvider interface {
	GetAccounts() ([]entity.Account, error)
	GetAccountByID(id string) (*entity.Account, error)
}
