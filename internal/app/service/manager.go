package service

import (
	"context"
	"fmt"
	"time"

	"portfolio_dashboard/internal/app/port"
	"portfolio_dashboard/internal/domain/entity"
)

// Manager owns the orchestrator fleet, one per active account, and drives the
// periodic refresh loop. The adapter set is resolved once at construction;
// an account referencing an unknown source is a startup error.
type Manager struct {
	orchestrators map[string]*Orchestrator
	order         []string
	prices        port.PriceService
	interval      time.Duration
	maxConcurrent int
	logger        port.Logger
}

// NewManager builds one orchestrator per active account.
func NewManager(
	accounts []entity.Account,
	registry port.SourceRegistry,
	deps OrchestratorDeps,
	timings OrchestratorTimings,
	maxConcurrent int,
	logger port.Logger,
) (*Manager, error) {
	m := &Manager{
		orchestrators: make(map[string]*Orchestrator, len(accounts)),
		prices:        deps.Prices,
		interval:      timings.MinRefresh,
		maxConcurrent: maxConcurrent,
		logger:        logger,
	}
	for _, acc := range accounts {
		if !acc.IsActive() {
			logger.Debug("Skipping inactive account", "account", acc.ID, "status", string(acc.Status))
			continue
		}
		adapter, ok := registry.Adapter(acc.Source)
		if !ok {
			return nil, fmt.Errorf("account %s references unknown source %q", acc.ID, acc.Source)
		}
		accDeps := deps
		accDeps.Adapter = adapter
		m.orchestrators[acc.ID] = NewOrchestrator(acc, accDeps, timings)
		m.order = append(m.order, acc.ID)
	}
	return m, nil
}

// Run binds the lifetime context, warms the price cache, triggers an initial
// refresh and then re-triggers every refresh interval until the context is
// canceled. Blocks; run in its own goroutine.
func (m *Manager) Run(ctx context.Context) {
	for _, o := range m.orchestrators {
		o.Bind(ctx)
	}
	m.prices.WarmUp(ctx, m.maxConcurrent)
	m.RefreshAll()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.RefreshAll()
		}
	}
}

// RefreshAll triggers every orchestrator. Triggers are non-blocking; each
// account debounces and settles independently, so one failing source never
// stalls the rest.
func (m *Manager) RefreshAll() {
	for _, id := range m.order {
		m.orchestrators[id].Trigger()
	}
	m.logger.Debug("Refresh triggered", "accounts", len(m.order))
}

// RefreshAccount triggers one account and reports whether it is managed.
func (m *Manager) RefreshAccount(id string) bool {
	o, ok := m.orchestrators[id]
	if !ok {
		return false
	}
	o.Trigger()
	return true
}

// Accounts returns the managed accounts in configuration order.
func (m *Manager) Accounts() []entity.Account {
	accs := make([]entity.Account, 0, len(m.order))
	for _, id := range m.order {
		accs = append(accs, m.orchestrators[id].Account())
	}
	return accs
}
