package restapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"portfolio_dashboard/internal/app/port"
	"portfolio_dashboard/internal/app/service"
	"portfolio_dashboard/internal/app/store"
	"portfolio_dashboard/internal/domain/entity"
)

// APIPortfolioResponse is the envelope for the portfolio snapshot endpoint.
type APIPortfolioResponse struct {
	Data          entity.PortfolioState `json:"data"`
	StatusMessage string                `json:"status_message"`
}

// APIAccountResponse is the envelope for the single-account endpoint.
type APIAccountResponse struct {
	Account     entity.Account `json:"account"`
	ExplorerURL string         `json:"explorer_url,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// PortfolioHandler serves the portfolio read model and the refresh/privacy
// commands. Reads come from store snapshots; commands go through the manager
// or the store's action channel, never by mutating state in the handler.
type PortfolioHandler struct {
	portfolioStore *store.PortfolioStore
	manager        *service.Manager
	accounts       port.AccountProvider
	registry       port.SourceRegistry
	logger         port.Logger
}

// NewPortfolioHandler creates a new PortfolioHandler.
func NewPortfolioHandler(
	s *store.PortfolioStore,
	m *service.Manager,
	accounts port.AccountProvider,
	registry port.SourceRegistry,
	logger port.Logger,
) *PortfolioHandler {
	return &PortfolioHandler{
		portfolioStore: s,
		manager:        m,
		accounts:       accounts,
		registry:       registry,
		logger:         logger,
	}
}

// GetPortfolioHandler returns the current portfolio snapshot. With privacy
// mode on, all monetary values are masked to zero before serialization.
func (h *PortfolioHandler) GetPortfolioHandler(c *gin.Context) {
	state := h.portfolioStore.Snapshot()
	if state.IsPrivate {
		maskValues(&state)
	}

	response := APIPortfolioResponse{Data: state}
	switch {
	case state.Loading:
		response.StatusMessage = "Portfolio refresh in progress."
	case len(state.Errors) > 0:
		response.StatusMessage = "Portfolio retrieved. Some accounts encountered errors."
	default:
		response.StatusMessage = "Portfolio retrieved successfully."
	}
	c.JSON(http.StatusOK, response)
}

// RefreshAllHandler triggers a refresh of every account.
func (h *PortfolioHandler) RefreshAllHandler(c *gin.Context) {
	h.manager.RefreshAll()
	c.JSON(http.StatusAccepted, gin.H{"status_message": "Refresh triggered for all accounts."})
}

// RefreshAccountHandler triggers a refresh of one account.
func (h *PortfolioHandler) RefreshAccountHandler(c *gin.Context) {
	id := c.Param("id")
	if !h.manager.RefreshAccount(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found or not managed"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status_message": "Refresh triggered.", "account_id": id})
}

// TogglePrivacyHandler flips privacy mode on the store.
func (h *PortfolioHandler) TogglePrivacyHandler(c *gin.Context) {
	h.portfolioStore.Dispatch(store.Action{Type: store.TogglePrivacy})
	c.JSON(http.StatusAccepted, gin.H{"status_message": "Privacy toggle dispatched."})
}

// GetAccountHandler returns one account with its explorer link and last
// recorded fetch error, if any.
func (h *PortfolioHandler) GetAccountHandler(c *gin.Context) {
	id := c.Param("id")
	account, err := h.accounts.GetAccountByID(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}

	state := h.portfolioStore.Snapshot()
	for _, acc := range state.Accounts {
		if acc.ID == id {
			found := acc
			account = &found
			break
		}
	}
	if state.IsPrivate {
		account.Value = 0
	}

	response := APIAccountResponse{Account: *account, Error: state.Errors[id]}
	if adapter, ok := h.registry.Adapter(account.Source); ok && account.PublicKey != "" {
		response.ExplorerURL = adapter.ExplorerURL(account.PublicKey)
	}
	c.JSON(http.StatusOK, response)
}

// HealthHandler reports liveness.
func (h *PortfolioHandler) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func maskValues(state *entity.PortfolioState) {
	for i := range state.Accounts {
		state.Accounts[i].Value = 0
	}
	state.CurrentBalance.Total = 0
	for k := range state.CurrentBalance.ByType {
		state.CurrentBalance.ByType[k] = 0
	}
	for k := range state.Allocation.ByType {
		state.Allocation.ByType[k] = 0
	}
	for k := range state.Allocation.ByChain {
		state.Allocation.ByChain[k] = 0
	}
	for k := range state.Allocation.ByPlatform {
		state.Allocation.ByPlatform[k] = 0
	}
}
