package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"portfolio_dashboard/internal/app/port"
	"portfolio_dashboard/internal/domain/entity"
	"portfolio_dashboard/internal/pkg/cache"
	"portfolio_dashboard/internal/pkg/metrics"
	"portfolio_dashboard/internal/pkg/ratelimit"
	"portfolio_dashboard/internal/pkg/retry"
)

const balanceNamespace = "balances"

// FetchState is the lifecycle phase of one account's fetch machinery.
type FetchState int

const (
	StateIdle FetchState = iota
	StateDebouncing
	StateInFlight
	StateSettledOK
	StateSettledError
)

// cachedCycle is the settled result kept in the balance cache so triggers
// inside the minimum refresh window skip the network entirely.
type cachedCycle struct {
	Value    float64
	Balances []entity.TokenBalance
}

// Orchestrator owns the fetch lifecycle of exactly one account. Triggers are
// debounced; a trigger during an in-flight cycle marks a rerun instead of
// starting a second one, so at most one cycle per account runs at a time.
// Settled outcomes are published to the store's update channel, never applied
// directly.
type Orchestrator struct {
	account entity.Account
	adapter port.SourceAdapter
	prices  port.PriceService
	valuer  *Valuer
	limiter *ratelimit.SlidingWindow
	retry   retry.Policy
	cache   *cache.Cache
	updates chan<- entity.AccountUpdate
	logger  port.Logger

	debounce       time.Duration
	minRefresh     time.Duration
	requestTimeout time.Duration

	mu    sync.Mutex
	ctx   context.Context
	state FetchState
	timer *time.Timer
	rerun bool
}

// OrchestratorDeps bundles the shared collaborators one orchestrator needs.
type OrchestratorDeps struct {
	Adapter port.SourceAdapter
	Prices  port.PriceService
	Valuer  *Valuer
	Limiter *ratelimit.SlidingWindow
	Retry   retry.Policy
	Cache   *cache.Cache
	Updates chan<- entity.AccountUpdate
	Logger  port.Logger
}

// OrchestratorTimings groups the debounce and refresh windows.
type OrchestratorTimings struct {
	Debounce       time.Duration
	MinRefresh     time.Duration
	RequestTimeout time.Duration
}

// NewOrchestrator creates an idle orchestrator for the account.
func NewOrchestrator(account entity.Account, deps OrchestratorDeps, timings OrchestratorTimings) *Orchestrator {
	return &Orchestrator{
		account:        account,
		adapter:        deps.Adapter,
		prices:         deps.Prices,
		valuer:         deps.Valuer,
		limiter:        deps.Limiter,
		retry:          deps.Retry,
		cache:          deps.Cache,
		updates:        deps.Updates,
		logger:         deps.Logger,
		debounce:       timings.Debounce,
		minRefresh:     timings.MinRefresh,
		requestTimeout: timings.RequestTimeout,
		ctx:            context.Background(),
	}
}

// Bind sets the lifetime context for fetch cycles. Cycles started after the
// context is canceled settle with a transient error immediately.
func (o *Orchestrator) Bind(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ctx = ctx
}

// State returns the current lifecycle phase.
func (o *Orchestrator) State() FetchState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Account returns the account this orchestrator serves.
func (o *Orchestrator) Account() entity.Account {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.account
}

// Trigger requests a refresh. Rapid consecutive triggers collapse into one
// cycle: while debouncing the timer restarts, while in flight a single rerun
// is remembered.
func (o *Orchestrator) Trigger() {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch o.state {
	case StateInFlight:
		o.rerun = true
	case StateDebouncing:
		o.timer.Reset(o.debounce)
	default:
		o.state = StateDebouncing
		o.timer = time.AfterFunc(o.debounce, o.fire)
	}
}

// fire runs on the debounce timer's goroutine.
func (o *Orchestrator) fire() {
	o.mu.Lock()
	if o.state != StateDebouncing {
		o.mu.Unlock()
		return
	}
	o.state = StateInFlight
	ctx := o.ctx
	o.mu.Unlock()

	o.runCycle(ctx)

	o.mu.Lock()
	rerun := o.rerun
	o.rerun = false
	o.mu.Unlock()
	if rerun {
		o.Trigger()
	}
}

func (o *Orchestrator) runCycle(ctx context.Context) {
	source := o.account.Source

	if cached, _, ok := o.cache.Get(balanceNamespace, o.account.ID); ok {
		if cycle, ok := cached.(cachedCycle); ok {
			o.logger.Debug("Serving balances from cache", "account", o.account.ID, "source", source)
			o.publish(entity.AccountUpdate{
				AccountID: o.account.ID,
				Value:     cycle.Value,
				Balances:  cycle.Balances,
				At:        time.Now(),
			}, StateSettledOK)
			return
		}
	}

	start := time.Now()
	cycleCtx, cancel := context.WithTimeout(ctx, o.requestTimeout)
	defer cancel()

	var (
		balances []entity.TokenBalance
		value    float64
	)
	err := o.retry.Do(cycleCtx, func(ctx context.Context) error {
		metrics.FetchAttempts.WithLabelValues(source).Inc()
		if !o.limiter.Allow(source) {
			metrics.RateLimitRejections.WithLabelValues(source).Inc()
			return entity.NewRateLimitedError(source)
		}
		fetched, err := o.adapter.FetchBalances(ctx, o.account)
		if err != nil {
			return err
		}
		prices, err := o.prices.PricesFor(ctx, source)
		if err != nil {
			return err
		}
		balances = o.valuer.Filter(source, fetched)
		value = o.valuer.Value(balances, prices)
		return nil
	})
	metrics.FetchDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())

	now := time.Now()
	if err != nil {
		fe := asFetchError(source, err)
		metrics.FetchOutcomes.WithLabelValues(source, string(fe.Kind)).Inc()
		o.logger.Warn("Fetch cycle failed", "account", o.account.ID, "source", source, "kind", string(fe.Kind), "error", err)
		o.publish(entity.AccountUpdate{AccountID: o.account.ID, At: now, Err: fe}, StateSettledError)
		return
	}

	metrics.FetchOutcomes.WithLabelValues(source, "ok").Inc()
	o.cache.Set(balanceNamespace, o.account.ID, cachedCycle{Value: value, Balances: balances}, o.minRefresh)
	o.logger.Info("Fetch cycle settled", "account", o.account.ID, "source", source, "value", value, "assets", len(balances))
	o.publish(entity.AccountUpdate{
		AccountID: o.account.ID,
		Value:     value,
		Balances:  balances,
		At:        now,
	}, StateSettledOK)
}

func (o *Orchestrator) publish(u entity.AccountUpdate, settled FetchState) {
	o.updates <- u
	o.mu.Lock()
	o.state = settled
	o.mu.Unlock()
}

// asFetchError normalizes any failure leaving the retry loop into the typed
// form the store records.
func asFetchError(source string, err error) *entity.FetchError {
	var fe *entity.FetchError
	if errors.As(err, &fe) {
		return fe
	}
	return entity.NewTransientError(source, "fetch cycle failed", err)
}
