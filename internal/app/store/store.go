package store

import (
	"context"
	"sync"
	"time"

	"portfolio_dashboard/internal/app/port"
	"portfolio_dashboard/internal/domain/entity"
	"portfolio_dashboard/internal/pkg/metrics"
	"portfolio_dashboard/internal/pkg/utils"
)

// ActionType enumerates the discrete actions the reducer understands.
type ActionType int

const (
	SetLoading ActionType = iota
	SetError
	SetData
	UpdateAccountValue
	TogglePrivacy
)

// Action is one state transition request. Which fields are read depends on
// Type: SetData uses Accounts, UpdateAccountValue uses AccountID/Value/At,
// SetError uses AccountID/Err, SetLoading uses Loading.
type Action struct {
	Type      ActionType
	Accounts  []entity.Account
	AccountID string
	Value     float64
	At        time.Time
	Err       string
	Loading   bool
}

// PortfolioStore is the single source of truth for account valuations and
// portfolio totals. All mutations flow through the reducer; logically
// concurrent updates are serialized into sequential state transitions by the
// Run loop, which is the channel's only consumer. Totals are recomputed
// synchronously with every account mutation, so the invariant
// total == sum of account values holds after every applied action.
type PortfolioStore struct {
	mu      sync.RWMutex
	state   entity.PortfolioState
	updates chan entity.AccountUpdate
	actions chan Action
	logger  port.Logger
}

// New creates a store seeded with the given accounts.
func New(accounts []entity.Account, logger port.Logger) *PortfolioStore {
	s := &PortfolioStore{
		updates: make(chan entity.AccountUpdate, 64),
		actions: make(chan Action, 64),
		logger:  logger,
	}
	s.state = entity.PortfolioState{
		Accounts: append([]entity.Account(nil), accounts...),
		Errors:   make(map[string]string),
	}
	s.recomputeLocked()
	return s
}

// Updates returns the channel orchestrators publish settled fetch outcomes
// on. The store's Run loop is its only consumer.
func (s *PortfolioStore) Updates() chan<- entity.AccountUpdate {
	return s.updates
}

// Dispatch enqueues an action for the Run loop.
func (s *PortfolioStore) Dispatch(a Action) {
	s.actions <- a
}

// Run drains update events and actions until the context is cancelled.
func (s *PortfolioStore) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-s.updates:
			s.applyUpdate(u)
		case a := <-s.actions:
			s.Apply(a)
		}
	}
}

func (s *PortfolioStore) applyUpdate(u entity.AccountUpdate) {
	if u.Err != nil {
		s.Apply(Action{Type: SetError, AccountID: u.AccountID, Err: u.Err.Message})
		return
	}
	s.Apply(Action{Type: UpdateAccountValue, AccountID: u.AccountID, Value: u.Value, At: u.At})
}

// Apply runs the reducer for one action. Exported so tests can drive the
// store deterministically; production code goes through Run.
func (s *PortfolioStore) Apply(a Action) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch a.Type {
	case SetLoading:
		s.state.Loading = a.Loading

	case SetError:
		if _, ok := s.findLocked(a.AccountID); !ok {
			if s.logger != nil {
				s.logger.Warn("Error update for unknown account id, ignoring", "account_id", a.AccountID)
			}
			return
		}
		s.state.Errors[a.AccountID] = a.Err

	case SetData:
		s.state.Accounts = append([]entity.Account(nil), a.Accounts...)
		s.state.Errors = make(map[string]string)
		s.recomputeLocked()

	case UpdateAccountValue:
		if !utils.IsFinite(a.Value) {
			if s.logger != nil {
				s.logger.Warn("Rejecting non-finite account value", "account_id", a.AccountID, "value", a.Value)
			}
			return
		}
		idx, ok := s.findLocked(a.AccountID)
		if !ok {
			if s.logger != nil {
				s.logger.Warn("Value update for unknown account id, ignoring", "account_id", a.AccountID)
			}
			return
		}
		s.state.Accounts[idx].Value = a.Value
		at := a.At
		if at.IsZero() {
			at = time.Now()
		}
		s.state.Accounts[idx].LastUpdated = at
		delete(s.state.Errors, a.AccountID)
		s.recomputeLocked()

	case TogglePrivacy:
		s.state.IsPrivate = !s.state.IsPrivate

	default:
		if s.logger != nil {
			s.logger.Error("Unknown action type", "type", int(a.Type))
		}
	}
}

// Snapshot returns a deep copy of the current portfolio state.
func (s *PortfolioStore) Snapshot() entity.PortfolioState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.state
	snap.Accounts = append([]entity.Account(nil), s.state.Accounts...)
	snap.Errors = make(map[string]string, len(s.state.Errors))
	for k, v := range s.state.Errors {
		snap.Errors[k] = v
	}
	snap.CurrentBalance.ByType = copyTypeMap(s.state.CurrentBalance.ByType)
	snap.Allocation.ByType = copyTypeMap(s.state.Allocation.ByType)
	snap.Allocation.ByChain = copyStringMap(s.state.Allocation.ByChain)
	snap.Allocation.ByPlatform = copyStringMap(s.state.Allocation.ByPlatform)
	return snap
}

func (s *PortfolioStore) findLocked(id string) (int, bool) {
	for i := range s.state.Accounts {
		if s.state.Accounts[i].ID == id {
			return i, true
		}
	}
	return 0, false
}

// recomputeLocked rebuilds totals and allocations from the account list.
// Summation is commutative and idempotent per account id, so interleaved
// per-account updates are order-independent.
func (s *PortfolioStore) recomputeLocked() {
	total := 0.0
	byType := make(map[entity.AccountType]float64)
	byChain := make(map[string]float64)
	byPlatform := make(map[string]float64)

	for _, acc := range s.state.Accounts {
		v := utils.ClampFinite(acc.Value)
		total += v
		byType[acc.Type] += v
		if acc.Chain != "" {
			byChain[acc.Chain] += v
		}
		if acc.Platform != "" {
			byPlatform[acc.Platform] += v
		}
	}

	s.state.CurrentBalance = entity.CurrentBalance{Total: total, ByType: byType}
	s.state.Allocation = entity.Allocation{
		ByType:     copyTypeMap(byType),
		ByChain:    byChain,
		ByPlatform: byPlatform,
	}
	metrics.PortfolioTotal.Set(total)
}

func copyTypeMap(m map[entity.AccountType]float64) map[entity.AccountType]float64 {
	out := make(map[entity.AccountType]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyStringMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
