package port

import "portfolio_dashboard/internal/domain/entity"

// PortfolioReader is the read-only view the presentation layer consumes.
type PortfolioReader interface {
	Snapshot() entity.PortfolioState
}
