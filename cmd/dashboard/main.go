package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"

	"portfolio_dashboard/internal/app/port"
	"portfolio_dashboard/internal/app/service"
	"portfolio_dashboard/internal/app/store"
	"portfolio_dashboard/internal/infrastructure/accountloader"
	"portfolio_dashboard/internal/infrastructure/configloader"
	"portfolio_dashboard/internal/infrastructure/httpclient"
	"portfolio_dashboard/internal/infrastructure/restapi"
	"portfolio_dashboard/internal/infrastructure/sources"
	"portfolio_dashboard/internal/infrastructure/sources/aptos"
	"portfolio_dashboard/internal/infrastructure/sources/bitcoin"
	"portfolio_dashboard/internal/infrastructure/sources/evm"
	"portfolio_dashboard/internal/infrastructure/sources/gemini"
	"portfolio_dashboard/internal/infrastructure/sources/kraken"
	"portfolio_dashboard/internal/infrastructure/sources/sei"
	"portfolio_dashboard/internal/infrastructure/sources/solana"
	"portfolio_dashboard/internal/infrastructure/sources/sui"
	"portfolio_dashboard/internal/infrastructure/sources/tfi"
	"portfolio_dashboard/internal/pkg/cache"
	"portfolio_dashboard/internal/pkg/logger"
	"portfolio_dashboard/internal/pkg/metrics"
	"portfolio_dashboard/internal/pkg/ratelimit"
	"portfolio_dashboard/internal/pkg/retry"
	"portfolio_dashboard/internal/pkg/utils"
)

func main() {
	zapLogger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize zap logger: %v\n", err)
		os.Exit(1)
	}
	defer zapLogger.Sync()

	slogHandler := zapslog.NewHandler(zapLogger.Core())
	logger.SetLogger(slog.New(slogHandler))
	appLogger := logger.NewSlogAdapter()

	cfgPath := utils.GetEnv("CONFIG_PATH", "config/config.yaml")
	cfg, err := configloader.Load(cfgPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", "path", cfgPath, "error", err)
	}
	zapLogger.Info("Configuration loaded", zap.String("path", cfgPath))

	metrics.MustRegisterMetrics()

	restTimeout := time.Duration(cfg.Fetch.RequestTimeoutSeconds) * time.Second
	restClient := httpclient.NewRESTClient(restTimeout, zapLogger)

	dexScreenerClient := httpclient.NewDEXScreenerClient(
		restClient,
		cfg.DEXScreener.BaseURL,
		zapLogger,
		cfg.DEXScreener.MaxTokensPerBatchRequest,
	)
	coinGeckoClient := httpclient.NewCoinGeckoClient(
		restClient,
		cfg.CoinGecko.BaseURL,
		os.Getenv(cfg.CoinGecko.APIKeyEnv),
		zapLogger,
	)

	registry := buildRegistry(cfg, restClient, dexScreenerClient, coinGeckoClient, appLogger)
	zapLogger.Info("Source registry resolved", zap.Strings("sources", registry.Sources()))

	appCache := cache.New(cache.Options{
		NamespaceBudgetBytes: cfg.Cache.NamespaceBudgetBytes,
		MaxEntryAge:          time.Duration(cfg.Cache.MaxEntryAgeMinutes) * time.Minute,
		SweepInterval:        time.Duration(cfg.Cache.SweepIntervalMinutes) * time.Minute,
	}, appLogger)
	defer appCache.Close()

	limiter := ratelimit.NewSlidingWindow(ratelimit.Limit{
		Max:    cfg.RateLimit.MaxRequests,
		Window: time.Duration(cfg.RateLimit.WindowMs) * time.Millisecond,
	})
	for source, entry := range cfg.RateLimit.PerSource {
		limiter.SetLimit(source, ratelimit.Limit{
			Max:    entry.MaxRequests,
			Window: time.Duration(entry.WindowMs) * time.Millisecond,
		})
	}

	retryPolicy := retry.NewPolicy(cfg.Retry.MaxAttempts, time.Duration(cfg.Retry.BaseDelayMs)*time.Millisecond)

	priceTTL := time.Duration(cfg.Fetch.PriceTTLMinutes) * time.Minute
	priceService := service.NewPriceService(registry, appCache, priceTTL, appLogger)
	valuer := service.NewValuer(cfg.KeepZero)

	accountProvider, err := accountloader.New(cfg, appLogger)
	if err != nil {
		logger.Fatal("Failed to load accounts", "error", err)
	}
	accounts, err := accountProvider.GetAccounts()
	if err != nil {
		logger.Fatal("Failed to list accounts", "error", err)
	}

	portfolioStore := store.New(accounts, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go portfolioStore.Run(ctx)

	manager, err := service.NewManager(
		accounts,
		registry,
		service.OrchestratorDeps{
			Prices:  priceService,
			Valuer:  valuer,
			Limiter: limiter,
			Retry:   retryPolicy,
			Cache:   appCache,
			Updates: portfolioStore.Updates(),
			Logger:  appLogger,
		},
		service.OrchestratorTimings{
			Debounce:       time.Duration(cfg.Fetch.DebounceMs) * time.Millisecond,
			MinRefresh:     time.Duration(cfg.Fetch.MinRefreshSeconds) * time.Second,
			RequestTimeout: restTimeout,
		},
		cfg.Performance.MaxConcurrentRoutines,
		appLogger,
	)
	if err != nil {
		logger.Fatal("Failed to build fetch manager", "error", err)
	}
	go manager.Run(ctx)

	handler := restapi.NewPortfolioHandler(portfolioStore, manager, accountProvider, registry, appLogger)
	router := restapi.SetupRouter(handler, zapLogger)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zapLogger.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutting down server...")
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		zapLogger.Fatal("Server forced to shutdown", zap.Error(err))
	}
	zapLogger.Info("Server exiting")
}

// buildRegistry resolves the closed adapter set from the configuration. All
// sources the config names are constructed here; nothing is registered after
// startup.
func buildRegistry(
	cfg *configloader.Config,
	restClient *httpclient.RESTClient,
	dexScreenerClient httpclient.DEXScreenerClient,
	coinGeckoClient httpclient.CoinGeckoClient,
	appLogger port.Logger,
) *sources.Registry {
	var adapters []port.SourceAdapter

	evmProvider := evm.NewClientProvider(cfg, appLogger)
	for _, network := range cfg.Networks {
		adapters = append(adapters, evm.NewAdapter(network, evmProvider, dexScreenerClient, appLogger))
	}

	for name, srcCfg := range cfg.Sources {
		switch name {
		case "solana":
			adapters = append(adapters, solana.NewAdapter(srcCfg, restClient, dexScreenerClient, appLogger))
		case "aptos":
			adapters = append(adapters, aptos.NewAdapter(srcCfg, restClient, coinGeckoClient, cfg.CoinGecko.AssetIDs, appLogger))
		case "sui":
			adapters = append(adapters, sui.NewAdapter(srcCfg, restClient, coinGeckoClient, cfg.CoinGecko.AssetIDs, appLogger))
		case "sei":
			adapters = append(adapters, sei.NewAdapter(srcCfg, restClient, coinGeckoClient, cfg.CoinGecko.AssetIDs, appLogger))
		case "bitcoin":
			adapters = append(adapters, bitcoin.NewAdapter(srcCfg, restClient, coinGeckoClient, cfg.CoinGecko.AssetIDs, appLogger))
		default:
			appLogger.Warn("Ignoring unknown source in configuration", "source", name)
		}
	}

	for name, exCfg := range cfg.Exchanges {
		switch name {
		case "kraken":
			adapters = append(adapters, kraken.NewAdapter(exCfg, os.LookupEnv, restClient, appLogger))
		case "gemini":
			adapters = append(adapters, gemini.NewAdapter(exCfg, os.LookupEnv, restClient, appLogger))
		default:
			appLogger.Warn("Ignoring unknown exchange in configuration", "exchange", name)
		}
	}

	adapters = append(adapters, tfi.NewAdapter(cfg.TFIAccounts, appLogger))

	return sources.NewRegistry(adapters...)
}
