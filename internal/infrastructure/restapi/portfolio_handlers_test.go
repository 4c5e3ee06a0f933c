package restapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"portfolio_dashboard/internal/app/port"
	"portfolio_dashboard/internal/app/service"
	"portfolio_dashboard/internal/app/store"
	"portfolio_dashboard/internal/domain/entity"
	"portfolio_dashboard/internal/pkg/cache"
	"portfolio_dashboard/internal/pkg/logger"
	"portfolio_dashboard/internal/pkg/ratelimit"
	"portfolio_dashboard/internal/pkg/retry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type stubAdapter struct{ key string }

func (s stubAdapter) Source() string { return s.key }
func (s stubAdapter) FetchBalances(context.Context, entity.Account) ([]entity.TokenBalance, error) {
	return []entity.TokenBalance{
		{Token: entity.Token{Symbol: "X", Decimals: 0}, RawBalance: "5"},
	}, nil
}
func (s stubAdapter) FetchPrices(context.Context) (entity.PriceMap, error) {
	return entity.PriceMap{"X": {Price: 1}}, nil
}
func (s stubAdapter) ExplorerURL(addr string) string {
	return "https://explorer.example/address/" + addr
}

type stubRegistry map[string]port.SourceAdapter

func (r stubRegistry) Adapter(source string) (port.SourceAdapter, bool) {
	a, ok := r[source]
	return a, ok
}

func (r stubRegistry) Sources() []string {
	out := make([]string, 0, len(r))
	for k := range r {
		out = append(out, k)
	}
	return out
}

type stubProvider []entity.Account

func (p stubProvider) GetAccounts() ([]entity.Account, error) { return p, nil }
func (p stubProvider) GetAccountByID(id string) (*entity.Account, error) {
	for _, a := range p {
		if a.ID == id {
			found := a
			return &found, nil
		}
	}
	return nil, fmt.Errorf("account with id %s not found", id)
}

func newTestRouter(t *testing.T) (*gin.Engine, *store.PortfolioStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	accounts := []entity.Account{
		{ID: "sol-1", Name: "Solana Main", Type: entity.AccountWallet, Chain: "solana", PublicKey: "5Q544f", Source: "solana"},
	}
	registry := stubRegistry{"solana": stubAdapter{"solana"}}

	c := cache.New(cache.Options{SweepInterval: time.Hour}, nil)
	t.Cleanup(c.Close)

	s := store.New(accounts, nil)
	deps := service.OrchestratorDeps{
		Prices:  service.NewPriceService(registry, c, time.Minute, logger.NewSlogAdapter()),
		Valuer:  service.NewValuer(nil),
		Limiter: ratelimit.NewSlidingWindow(ratelimit.Limit{Max: 100, Window: time.Second}),
		Retry:   retry.NewPolicy(1, time.Millisecond),
		Cache:   c,
		Updates: s.Updates(),
		Logger:  logger.NewSlogAdapter(),
	}
	m, err := service.NewManager(accounts, registry, deps, service.OrchestratorTimings{
		Debounce:       time.Millisecond,
		MinRefresh:     time.Minute,
		RequestTimeout: time.Second,
	}, 2, logger.NewSlogAdapter())
	require.NoError(t, err)

	handler := NewPortfolioHandler(s, m, stubProvider(accounts), registry, logger.NewSlogAdapter())
	return SetupRouter(handler, zap.NewNop()), s
}

func doRequest(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestGetPortfolioSnapshot(t *testing.T) {
	router, s := newTestRouter(t)
	s.Apply(store.Action{Type: store.UpdateAccountValue, AccountID: "sol-1", Value: 123})

	w := doRequest(router, http.MethodGet, "/api/v1/portfolio")
	require.Equal(t, http.StatusOK, w.Code)

	var resp APIPortfolioResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 123.0, resp.Data.CurrentBalance.Total)
	require.Equal(t, "Portfolio retrieved successfully.", resp.StatusMessage)
}

func TestPrivacyMasksValues(t *testing.T) {
	router, s := newTestRouter(t)
	s.Apply(store.Action{Type: store.UpdateAccountValue, AccountID: "sol-1", Value: 123})
	s.Apply(store.Action{Type: store.TogglePrivacy})

	w := doRequest(router, http.MethodGet, "/api/v1/portfolio")
	require.Equal(t, http.StatusOK, w.Code)

	var resp APIPortfolioResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Data.IsPrivate)
	require.Equal(t, 0.0, resp.Data.CurrentBalance.Total)
	require.Equal(t, 0.0, resp.Data.Accounts[0].Value)
}

func TestTogglePrivacyEndpoint(t *testing.T) {
	router, s := newTestRouter(t)

	w := doRequest(router, http.MethodPost, "/api/v1/portfolio/privacy")
	require.Equal(t, http.StatusAccepted, w.Code)

	// The toggle goes through the store's action channel; drain it by
	// running the store loop briefly.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)
	require.Eventually(t, func() bool { return s.Snapshot().IsPrivate },
		time.Second, 5*time.Millisecond)
}

func TestGetAccountWithExplorerURL(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/api/v1/accounts/sol-1")
	require.Equal(t, http.StatusOK, w.Code)

	var resp APIAccountResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "sol-1", resp.Account.ID)
	require.Equal(t, "https://explorer.example/address/5Q544f", resp.ExplorerURL)
}

func TestGetUnknownAccount(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doRequest(router, http.MethodGet, "/api/v1/accounts/ghost")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRefreshEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	require.Equal(t, http.StatusAccepted, doRequest(router, http.MethodPost, "/api/v1/portfolio/refresh").Code)
	require.Equal(t, http.StatusAccepted, doRequest(router, http.MethodPost, "/api/v1/accounts/sol-1/refresh").Code)
	require.Equal(t, http.StatusNotFound, doRequest(router, http.MethodPost, "/api/v1/accounts/ghost/refresh").Code)
}

func TestHealthz(t *testing.T) {
	router, _ := newTestRouter(t)
	require.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/healthz").Code)
}
